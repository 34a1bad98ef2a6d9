package handlers

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/apperrors"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ReportHandler handles report file requests
type ReportHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewReportHandler creates a new ReportHandler instance
func NewReportHandler(svc service.Service, log *logrus.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		log:     log,
	}
}

// GetReport serves a stored report file by filename
func (h *ReportHandler) GetReport(c *gin.Context) {
	filename := c.Param("filename")

	data, err := h.service.GetReport(c.Request.Context(), filename)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

// PostReport accepts a report file upload and returns the generated report id
func (h *ReportHandler) PostReport(c *gin.Context) {
	fileHeader, err := c.FormFile("report")
	if err != nil {
		h.log.WithError(err).Warn("Missing report file in upload")
		respondError(c, h.log, apperrors.NewValidation("Report file is required."))
		return
	}

	filename := c.PostForm("filename")
	if filename == "" {
		filename = fileHeader.Filename
	}
	if filename == "" {
		respondError(c, h.log, apperrors.NewValidation("Filename is required."))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.WithError(err).Error("Failed to open uploaded file")
		respondError(c, h.log, apperrors.NewStorage("Failed to upload a report file."))
		return
	}
	defer file.Close()

	reportID, err := h.service.PutReport(c.Request.Context(), filename, file)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report_id": reportID})
}
