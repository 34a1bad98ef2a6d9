package handlers

import (
	"net/http"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/apperrors"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/models"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles entry status requests
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

// PostStatus handles entry status ingestion
func (h *StatusHandler) PostStatus(c *gin.Context) {
	var req models.StatusPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.WithError(err).Warn("Invalid status format")
		respondError(c, h.log, apperrors.NewValidation("Invalid request format."))
		return
	}

	if err := h.service.IngestStatus(c.Request.Context(), &req); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetStatus handles entry status queries with optional port and datetime filters
func (h *StatusHandler) GetStatus(c *gin.Context) {
	port := c.Query("port")
	datetime := c.Query("datetime")

	views, err := h.service.QueryStatuses(c.Request.Context(), port, datetime)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, views)
}
