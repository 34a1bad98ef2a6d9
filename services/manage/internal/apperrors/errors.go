package apperrors

import (
	"fmt"
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

// Error codes used across the manage service
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeConfig      = "CONFIG_ERROR"
	CodePersistence = "PERSISTENCE_ERROR"
	CodeStorage     = "STORAGE_ERROR"
	CodeTimeout     = "TIMEOUT"
	CodeTransport   = "TRANSPORT_ERROR"
	CodeRemote      = "REMOTE_ERROR"
)

// NewValidation creates a validation error (malformed input such as an unparseable datetime)
func NewValidation(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusBadRequest, Code: CodeValidation}
}

// NewNotFound creates a not-found error (unresolvable report reference, missing blob key)
func NewNotFound(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusNotFound, Code: CodeNotFound}
}

// NewConfig creates a configuration error
func NewConfig(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusBadRequest, Code: CodeConfig}
}

// NewConfigInternal creates a configuration error reported as a server-side failure
func NewConfigInternal(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusInternalServerError, Code: CodeConfig}
}

// NewPersistence creates a database failure error. The low-level cause is logged
// by the caller and deliberately kept out of the response body.
func NewPersistence(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusInternalServerError, Code: CodePersistence}
}

// NewStorage creates a blob storage failure error
func NewStorage(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusInternalServerError, Code: CodeStorage}
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
// status code and body text are propagated verbatim to the original caller.
func NewRemote(statusCode int, body string) *Error {
	return &Error{Message: body, StatusCode: statusCode, Code: CodeRemote}
}

// NewInternal wraps an unexpected error with a 500 status
func NewInternal(err error) *Error {
	return &Error{Message: fmt.Sprintf("%v", err), StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
}
