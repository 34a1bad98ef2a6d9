package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/config"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/apperrors"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/models"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/relay"

	"github.com/sirupsen/logrus"
)

// Service defines the notify service operations
type Service interface {
	// NotifyLocalData reshapes an inbound status notification into the local
	// consumer schema and forwards it.
	NotifyLocalData(ctx context.Context, notification *models.StatusNotification) error
}

// service is an implementation of the Service interface
type service struct {
	relay relay.Relay
	cfg   *config.Config
	log   *logrus.Logger
}

// NewService creates a new service instance
func NewService(r relay.Relay, cfg *config.Config, log *logrus.Logger) Service {
	return &service{
		relay: r,
		cfg:   cfg,
		log:   log,
	}
}

// NotifyLocalData implements the reshape-and-forward operation
func (s *service) NotifyLocalData(ctx context.Context, notification *models.StatusNotification) error {
	if s.cfg.Local.URL == "" {
		s.log.Error("Not found local_url")
		return apperrors.NewConfig("Not found local_url.")
	}
	if s.cfg.Local.APIKey == "" {
		s.log.Error("Not found local_api_key")
		return apperrors.NewConfig("Not found local_api_key.")
	}

	events := make([]models.LocalEvent, 0, len(notification.Events))
	for _, ev := range notification.Events {
		local := models.LocalEvent{
			ObjectID:        ev.ID,
			ObjectType:      ev.Type,
			DetectionStatus: ev.Detect,
		}
		if ev.Location != nil {
			if loc, ok := parseLocation(*ev.Location); ok {
				local.Location = loc
			} else {
				// A half-parseable pair counts as a parse failure too; the
				// event goes out without a location rather than with a guess.
				s.log.WithField("location", *ev.Location).Warn("location value is not valid format")
			}
		}
		events = append(events, local)
	}

	outbound := &models.LocalNotification{
		DronePortID:       notification.Port,
		Timestamp:         notification.Datetime,
		AnyDetection:      notification.Detect,
		Events:            events,
		ReportEndpointURL: notification.ReportEndpoint,
	}

	return s.relay.Send(ctx, outbound)
}

// parseLocation parses a "lat,lon" string into a Location
func parseLocation(value string) (*models.Location, bool) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return nil, false
	}

	latitude, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, false
	}
	longitude, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, false
	}

	return &models.Location{Latitude: latitude, Longitude: longitude}, true
}
