package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/apperrors"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/models"

	"github.com/sirupsen/logrus"
)

// Relay forwards local notifications to the configured local-data consumer
type Relay interface {
	Send(ctx context.Context, notification *models.LocalNotification) error
}

// Client posts notifications to the local-data consumer with the configured
// API key. One attempt per call, no retry.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewClient creates a local-data consumer client with a bounded timeout
func NewClient(url, apiKey string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Send serializes the notification and POSTs it to the local consumer
func (c *Client) Send(ctx context.Context, notification *models.LocalNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return apperrors.NewTransport("Failed to serialize notification.")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewTransport("Failed to build notification request.")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.log.WithError(err).Error("Local notification timed out")
			return apperrors.NewTimeout("Timeout occurred.")
		}
		c.log.WithError(err).Error("Local notification failed")
		return apperrors.NewTransport("Error occurred.")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		c.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(respBody),
		}).Error("Local notification rejected")
		return apperrors.NewRemote(resp.StatusCode, string(respBody))
	}

	c.log.WithField("status", resp.StatusCode).Debug("Notification delivered")
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
