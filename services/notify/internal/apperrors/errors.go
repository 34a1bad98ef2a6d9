package apperrors

import (
	"net/http"
)

// Error represents a service error carried up to the HTTP layer
type Error struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Error codes used across the notify service
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeConfig     = "CONFIG_ERROR"
	CodeTimeout    = "TIMEOUT"
	CodeTransport  = "TRANSPORT_ERROR"
	CodeRemote     = "REMOTE_ERROR"
)

// NewValidation creates a validation error
func NewValidation(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusBadRequest, Code: CodeValidation}
}

// NewConfig creates a configuration error
func NewConfig(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusInternalServerError, Code: CodeConfig}
}

// NewTimeout creates a downstream timeout error
func NewTimeout(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusInternalServerError, Code: CodeTimeout}
}

// NewTransport creates a downstream connection failure error
func NewTransport(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusInternalServerError, Code: CodeTransport}
}

// NewRemote creates an error from a downstream non-2xx response. The remote
// status code and body text are propagated verbatim to the caller.
func NewRemote(statusCode int, body string) *Error {
	return &Error{Message: body, StatusCode: statusCode, Code: CodeRemote}
}
