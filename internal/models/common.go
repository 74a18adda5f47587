package models

import (
	"errors"
	"net/http"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	}
}

// Common error codes
const (
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeUpstreamError   = "UPSTREAM_ERROR"
	ErrCodeInternalError   = "INTERNAL_ERROR"

	ErrCodeRequestNotFound    = "REQUEST_NOT_FOUND"
	ErrCodeOntologyNotFound   = "ONTOLOGY_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeTokenEmailMismatch = "TOKEN_EMAIL_MISMATCH"
	ErrCodeNotAuthorized      = "NOT_AUTHORIZED"
)

// ErrorKind classifies service errors for the HTTP boundary
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindUpstream     ErrorKind = "upstream"
	KindInternal     ErrorKind = "internal"
)

// ServiceError is returned by services and converted to JSON by handlers
type ServiceError struct {
	Kind       ErrorKind
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for the error
func (e *ServiceError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream:
		if e.StatusCode >= 400 && e.StatusCode <= 599 {
			return e.StatusCode
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a 400 error
func NewValidationError(message string) *ServiceError {
	return &ServiceError{Kind: KindValidation, Code: ErrCodeValidationError, Message: message}
}

// NewNotFoundError creates a 404 error
func NewNotFoundError(code, message string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Code: code, Message: message}
}

// NewInternalError creates a 500 error wrapping err
func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindInternal, Code: ErrCodeInternalError, Message: message, Err: err}
}

// NewUpstreamError creates an error carrying the upstream status code
func NewUpstreamError(statusCode int, message string, err error) *ServiceError {
	return &ServiceError{Kind: KindUpstream, Code: ErrCodeUpstreamError, Message: message, StatusCode: statusCode, Err: err}
}

// ErrNotFound is returned by stores when a document does not exist
var ErrNotFound = errors.New("document not found")

// HTTPStatusForError returns the appropriate HTTP status code for any error
func HTTPStatusForError(err error) int {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.HTTPStatus()
	}
	var statusErr interface{ HTTPStatus() int }
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatus()
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
