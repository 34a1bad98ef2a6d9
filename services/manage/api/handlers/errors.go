package handlers

import (
	"errors"
	"net/http"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse defines the structure of an error response body
type ErrorResponse struct {
	Message string `json:"message"`
}

// respondError writes an error response. Known errors carry their own HTTP
// status; anything else becomes a 500 with the raw error text.
func respondError(c *gin.Context, log *logrus.Logger, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, ErrorResponse{Message: appErr.Message})
		return
	}

	log.WithError(err).Error("Unhandled error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
}
