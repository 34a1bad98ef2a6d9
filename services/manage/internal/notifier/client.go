package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/apperrors"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/models"

	"github.com/sirupsen/logrus"
)

const statusPath = "/api/v1/status"

// Notifier relays notification payloads to the notify service
type Notifier interface {
	Relay(ctx context.Context, payload *models.NotificationPayload) error
}

// Client is an HTTP client for the notify service. One attempt per call, no
// retry; delivery retries are the outbox worker's job.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewClient creates a notify service client with a bounded timeout
func NewClient(baseURL string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Relay serializes the payload and POSTs it to the notify service. Non-2xx
// responses become remote errors carrying the downstream status and body text.
func (c *Client) Relay(ctx context.Context, payload *models.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewTransport("Failed to serialize notification payload.")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+statusPath, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewTransport("Failed to build notify request.")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.log.WithError(err).Error("Notify request timed out")
			return apperrors.NewTimeout("Timeout occurred.")
		}
		c.log.WithError(err).Error("Notify request failed")
		return apperrors.NewTransport("Error occurred.")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		c.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(respBody),
		}).Error("Notify request rejected")
		return apperrors.NewRemote(resp.StatusCode, string(respBody))
	}

	c.log.WithField("status", resp.StatusCode).Debug("Notification relayed")
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
