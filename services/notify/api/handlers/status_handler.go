package handlers

import (
	"errors"
	"net/http"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/apperrors"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/models"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse defines the structure of an error response body
type ErrorResponse struct {
	Message string `json:"message"`
}

// StatusHandler handles forwarded status notifications
type StatusHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewStatusHandler creates a new StatusHandler instance
func NewStatusHandler(svc service.Service, log *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		service: svc,
		log:     log,
	}
}

// PostStatus receives a notification from the manage service and relays it
// to the local-data consumer
func (h *StatusHandler) PostStatus(c *gin.Context) {
	var notification models.StatusNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		h.log.WithError(err).Warn("Invalid notification format")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request format."})
		return
	}

	if err := h.service.NotifyLocalData(c.Request.Context(), &notification); err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			c.JSON(appErr.StatusCode, ErrorResponse{Message: appErr.Message})
			return
		}
		h.log.WithError(err).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

// HealthCheck handles health check requests
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Notify Service",
	})
}
