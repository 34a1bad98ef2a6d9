package service

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/config"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/apperrors"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/cache"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/metrics"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/models"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/notifier"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/repository"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/storage"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	reportAPIPath     = "/api/v1/report"
	reportCachePrefix = "report:"
	reportCacheTTL    = time.Hour
)

// Datetime formats accepted on the ingestion and query APIs
var datetimeFormats = []string{time.RFC3339, "2006-01-02 15:04:05"}

// Service defines the business logic operations of the manage service
type Service interface {
	// IngestStatus persists an entry status with its events and relays the
	// notification downstream. Rows stay committed when the relay fails; the
	// relay error is surfaced to the caller and the payload is queued for retry.
	IngestStatus(ctx context.Context, req *models.StatusPostRequest) error

	// QueryStatuses returns at most max_count statuses matching the filters,
	// most recent first.
	QueryStatuses(ctx context.Context, port, afterDatetime string) ([]models.EntryStatusView, error)

	// GetReport downloads a report file from the blob store.
	GetReport(ctx context.Context, filename string) ([]byte, error)

	// PutReport uploads a report file, catalogs it and returns the generated
	// report identifier.
	PutReport(ctx context.Context, filename string, body io.Reader) (string, error)

	// RetryUndelivered re-relays queued notification payloads. Called by the
	// outbox worker; one attempt per entry per pass.
	RetryUndelivered(ctx context.Context) error
}

// service is an implementation of the Service interface
type service struct {
	repo     repository.Repository
	blobs    storage.BlobStore
	notifier notifier.Notifier
	cache    cache.RedisClient
	metrics  *metrics.Metrics
	cfg      *config.Config
	log      *logrus.Logger
}

// ServiceConfig holds the dependencies for the service
type ServiceConfig struct {
	Repository repository.Repository
	BlobStore  storage.BlobStore
	Notifier   notifier.Notifier
	Cache      cache.RedisClient
	Metrics    *metrics.Metrics
	Config     *config.Config
	Logger     *logrus.Logger
}

// NewService creates a new service instance
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &service{
		repo:     cfg.Repository,
		blobs:    cfg.BlobStore,
		notifier: cfg.Notifier,
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		cfg:      cfg.Config,
		log:      cfg.Logger,
	}, nil
}

// IngestStatus implements the ingestion pipeline: resolve the report
// reference, persist status and events in one transaction, then relay.
func (s *service) IngestStatus(ctx context.Context, req *models.StatusPostRequest) error {
	detectedAt, err := parseDatetime(req.Datetime)
	if err != nil {
		s.countIngestFailure(apperrors.CodeValidation)
		return apperrors.NewValidation("Invalid datetime format.")
	}

	// Empty report_id means no report; it is stored as NULL, not as "".
	reportEndpoint := ""
	var reportID *string
	if req.ReportID != "" {
		endpoint, err := s.resolveReportEndpoint(ctx, req.ReportID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.log.WithField("report_id", req.ReportID).Error("Not found report file")
				s.countIngestFailure(apperrors.CodeNotFound)
				return apperrors.NewNotFound("Not found report file.")
			}
			s.log.WithError(err).Error("Failed to resolve report reference")
			s.countIngestFailure(apperrors.CodePersistence)
			return apperrors.NewPersistence("Database query execution failed.")
		}
		reportEndpoint = endpoint
		reportID = &req.ReportID
	}

	status := &models.EntryStatus{
		Port:     req.Port,
		Datetime: detectedAt,
		Detect:   req.Detect,
		ReportID: reportID,
		Events:   make([]models.Event, 0, len(req.Events)),
	}
	for _, ev := range req.Events {
		status.Events = append(status.Events, models.Event{
			ObjectID:   ev.ID,
			ObjectType: ev.Type,
			Detect:     ev.Detect,
			Location:   ev.Location,
		})
	}

	if err := s.repo.CreateEntryStatus(ctx, status); err != nil {
		s.log.WithError(err).Error("Failed to persist entry status")
		s.countIngestFailure(apperrors.CodePersistence)
		return apperrors.NewPersistence("Database query execution failed.")
	}
	if s.metrics != nil {
		s.metrics.StatusIngestedTotal.Inc()
	}

	payload := &models.NotificationPayload{
		Port:           req.Port,
		Datetime:       detectedAt.Format(time.RFC3339),
		Detect:         req.Detect,
		Events:         req.Events,
		ReportEndpoint: reportEndpoint,
	}

	if err := s.notifier.Relay(ctx, payload); err != nil {
		// The status is already durable. The relay failure still fails the
		// call, but the payload is queued so the worker can redeliver.
		s.log.WithError(err).Error("Notification relay failed")
		if s.metrics != nil {
			s.metrics.RelayFailuresTotal.Inc()
		}
		s.queueForRetry(ctx, payload)
		return err
	}

	return nil
}

// queueForRetry records a failed notification in the outbox, best effort
func (s *service) queueForRetry(ctx context.Context, payload *models.NotificationPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.WithError(err).Error("Failed to serialize payload for outbox")
		return
	}
	entry := &models.NotificationOutbox{Payload: string(raw)}
	if err := s.repo.CreateOutboxEntry(ctx, entry); err != nil {
		s.log.WithError(err).Error("Failed to queue notification for retry")
	}
}

// resolveReportEndpoint looks up a report endpoint, consulting the cache first
func (s *service) resolveReportEndpoint(ctx context.Context, reportID string) (string, error) {
	if s.cache != nil {
		if endpoint, err := s.cache.Get(ctx, reportCachePrefix+reportID); err == nil && endpoint != "" {
			return endpoint, nil
		}
	}

	report, err := s.repo.FindReportByID(ctx, reportID)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, reportCachePrefix+reportID, report.Endpoint, reportCacheTTL); err != nil {
			s.log.WithError(err).Warn("Failed to cache report endpoint")
		}
	}
	return report.Endpoint, nil
}

// QueryStatuses implements the status query operation
func (s *service) QueryStatuses(ctx context.Context, port, afterDatetime string) ([]models.EntryStatusView, error) {
	maxCount := s.cfg.Query.MaxCount
	if maxCount <= 0 {
		s.log.WithField("max_count", maxCount).Error("Invalid configuration")
		return nil, apperrors.NewConfig("Invalid configuration.(max_count)")
	}

	var after *time.Time
	if afterDatetime != "" {
		parsed, err := parseDatetime(afterDatetime)
		if err != nil {
			return nil, apperrors.NewValidation("Invalid datetime format.")
		}
		after = &parsed
	}

	statuses, err := s.repo.ListEntryStatuses(ctx, port, after, maxCount)
	if err != nil {
		s.log.WithError(err).Error("Failed to query entry statuses")
		return nil, apperrors.NewPersistence("Database query execution failed.")
	}

	views := make([]models.EntryStatusView, 0, len(statuses))
	for _, status := range statuses {
		view := models.EntryStatusView{
			Port:     status.Port,
			Datetime: status.Datetime,
			Detect:   status.Detect,
			Events:   make([]models.StatusEvent, 0, len(status.Events)),
		}
		if status.ReportID != nil {
			endpoint, err := s.resolveReportEndpoint(ctx, *status.ReportID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				s.log.WithError(err).Error("Failed to resolve report endpoint")
				return nil, apperrors.NewPersistence("Database query execution failed.")
			}
			if err == nil {
				view.ReportEndpoint = &endpoint
			}
		}
		for _, ev := range status.Events {
			view.Events = append(view.Events, models.StatusEvent{
				ID:       ev.ObjectID,
				Type:     ev.ObjectType,
				Detect:   ev.Detect,
				Location: ev.Location,
			})
		}
		views = append(views, view)
	}

	if s.metrics != nil {
		s.metrics.StatusQueriesTotal.Inc()
	}
	return views, nil
}

// GetReport downloads a report file from the blob store
func (s *service) GetReport(ctx context.Context, filename string) ([]byte, error) {
	if s.blobs == nil || s.cfg.Storage.BucketName == "" {
		s.log.Error("Report storage is not configured (bucket_name)")
		return nil, apperrors.NewConfigInternal("Failed to load config file. bucket_name parameter is invalid.")
	}

	data, err := s.blobs.Get(ctx, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNoSuchKey) {
			s.log.WithField("filename", filename).Error("Not found report file")
			return nil, apperrors.NewNotFound("Not found report file.")
		}
		s.log.WithError(err).Error("Failed to get report file")
		return nil, apperrors.NewStorage("Failed to get a report file.")
	}

	if s.metrics != nil {
		s.metrics.ReportDownloadsTotal.Inc()
	}
	return data, nil
}

// PutReport uploads a report file, catalogs it, and returns the report id.
// When the catalog insert fails the uploaded blob is deleted again so that
// every stored blob keeps a discoverable catalog entry.
func (s *service) PutReport(ctx context.Context, filename string, body io.Reader) (string, error) {
	if s.blobs == nil || s.cfg.Storage.BucketName == "" {
		s.log.Error("Report storage is not configured (bucket_name)")
		return "", apperrors.NewConfigInternal("Failed to load config file. bucket_name parameter is invalid.")
	}

	baseURL := s.cfg.Storage.EndpointURL
	if baseURL == "" {
		s.log.Error("Report storage is not configured (endpoint_url)")
		return "", apperrors.NewConfigInternal("Failed to load config file. endpoint_url parameter is invalid.")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		s.log.WithError(err).Error("Invalid endpoint_url configuration")
		return "", apperrors.NewConfigInternal("Failed to load config file. endpoint_url parameter is invalid.")
	}

	if err := s.blobs.Put(ctx, filename, body); err != nil {
		s.log.WithError(err).Error("Failed to upload report file")
		return "", apperrors.NewStorage("Failed to upload a report file.")
	}

	report := &models.Report{
		ReportID: uuid.New().String(),
		Endpoint: strings.TrimRight(baseURL, "/") + reportAPIPath + "/" + filename,
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		s.log.WithError(err).Error("Failed to catalog report, deleting uploaded blob")
		if delErr := s.blobs.Delete(ctx, filename); delErr != nil {
			s.log.WithError(delErr).Error("Failed to delete orphaned blob")
		}
		return "", apperrors.NewPersistence("Database query execution failed.")
	}

	if s.metrics != nil {
		s.metrics.ReportUploadsTotal.Inc()
	}
	s.log.WithFields(logrus.Fields{
		"report_id": report.ReportID,
		"filename":  filename,
	}).Info("Report file cataloged")
	return report.ReportID, nil
}

// RetryUndelivered relays queued payloads; each entry gets one attempt per pass
func (s *service) RetryUndelivered(ctx context.Context) error {
	entries, err := s.repo.ListUndelivered(ctx, s.cfg.Worker.BatchSize)
	if err != nil {
		return errors.Wrap(err, "listing undelivered notifications")
	}

	for _, entry := range entries {
		var payload models.NotificationPayload
		if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
			s.log.WithError(err).WithField("outbox_id", entry.ID).Error("Corrupt outbox payload")
			if err := s.repo.RecordDeliveryFailure(ctx, entry.ID, "corrupt payload: "+err.Error()); err != nil {
				s.log.WithError(err).Error("Failed to record delivery failure")
			}
			continue
		}

		if s.metrics != nil {
			s.metrics.OutboxRetriesTotal.Inc()
		}
		if err := s.notifier.Relay(ctx, &payload); err != nil {
			s.log.WithError(err).WithField("outbox_id", entry.ID).Warn("Redelivery failed")
			if err := s.repo.RecordDeliveryFailure(ctx, entry.ID, err.Error()); err != nil {
				s.log.WithError(err).Error("Failed to record delivery failure")
			}
			continue
		}

		if err := s.repo.MarkDelivered(ctx, entry.ID); err != nil {
			s.log.WithError(err).WithField("outbox_id", entry.ID).Error("Failed to mark entry delivered")
		}
	}
	return nil
}

func (s *service) countIngestFailure(code string) {
	if s.metrics != nil {
		s.metrics.IngestFailuresTotal.WithLabelValues(code).Inc()
	}
}

// parseDatetime parses a datetime string in one of the accepted formats
func parseDatetime(value string) (time.Time, error) {
	var lastErr error
	for _, format := range datetimeFormats {
		t, err := time.Parse(format, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
