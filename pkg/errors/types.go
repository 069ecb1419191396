package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Request validation
	ErrCodeValidation       ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidOrigin    ErrorCode = "INVALID_ORIGIN"
	ErrCodePayloadTooLarge  ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeUnsupportedMedia ErrorCode = "UNSUPPORTED_MEDIA"
	ErrCodeMissingField     ErrorCode = "MISSING_FIELD"

	// Resources
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	ErrCodeConflict ErrorCode = "CONFLICT"

	// Upstream providers (speech-to-text, LLM, embeddings, object storage)
	ErrCodeUpstream  ErrorCode = "UPSTREAM_ERROR"
	ErrCodeTimeout   ErrorCode = "TIMEOUT"
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeConfig   ErrorCode = "CONFIG_INVALID"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Cause    error                  `json:"-"`
	HTTPCode int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// GetHTTPCode returns the appropriate HTTP status code
func (e *AppError) GetHTTPCode() int {
	if e.HTTPCode != 0 {
		return e.HTTPCode
	}
	return getDefaultHTTPCode(e.Code)
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		HTTPCode: getDefaultHTTPCode(code),
	}
}

// Newf creates a new AppError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError
func Wrap(cause error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Cause:    cause,
		HTTPCode: getDefaultHTTPCode(code),
	}
}

func getDefaultHTTPCode(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeValidation, ErrCodeInvalidOrigin, ErrCodeMissingField, ErrCodeUnsupportedMedia:
		return http.StatusBadRequest
	case ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors

// NotFound creates a not found error
func NotFound(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// ValidationError creates a validation error
func ValidationError(field string, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// MissingFieldError creates a missing field error
func MissingFieldError(field string) *AppError {
	return New(ErrCodeMissingField, fmt.Sprintf("required field '%s' is missing", field)).
		WithDetail("field", field)
}

// InvalidOrigin rejects an origin outside the configured set
func InvalidOrigin(origin string, allowed []string) *AppError {
	return New(ErrCodeInvalidOrigin, fmt.Sprintf("invalid origin '%s'", origin)).
		WithDetail("origin", origin).
		WithDetail("allowed", allowed)
}

// PayloadTooLarge rejects uploads above the configured limit
func PayloadTooLarge(size, limit int64) *AppError {
	return New(ErrCodePayloadTooLarge, fmt.Sprintf("payload of %d bytes exceeds limit of %d bytes", size, limit)).
		WithDetail("size", size).
		WithDetail("limit", limit)
}

// UnsupportedMedia rejects bytes that cannot be decoded as audio
func UnsupportedMedia(filename string, cause error) *AppError {
	return Wrap(cause, ErrCodeUnsupportedMedia, "audio could not be decoded").
		WithDetail("filename", filename)
}

// DatabaseError creates a database error
func DatabaseError(operation string, cause error) *AppError {
	return Wrap(cause, ErrCodeDatabase, fmt.Sprintf("database %s failed", operation)).
		WithDetail("operation", operation)
}

// UpstreamError creates an error for a failing provider
func UpstreamError(service string, cause error) *AppError {
	return Wrap(cause, ErrCodeUpstream, fmt.Sprintf("upstream service '%s' error", service)).
		WithDetail("service", service)
}

// ConfigError creates a configuration error
func ConfigError(key string, reason string) *AppError {
	return New(ErrCodeConfig, fmt.Sprintf("configuration error for '%s': %s", key, reason)).
		WithDetail("key", key).
		WithDetail("reason", reason)
}

// TimeoutError creates a timeout error
func TimeoutError(operation string, timeout string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("operation '%s' timed out after %s", operation, timeout)).
		WithDetail("operation", operation).
		WithDetail("timeout", timeout)
}

// RateLimitError creates a rate limit error
func RateLimitError(resource string, limit string) *AppError {
	return New(ErrCodeRateLimit, fmt.Sprintf("rate limit exceeded for '%s': %s", resource, limit)).
		WithDetail("resource", resource).
		WithDetail("limit", limit)
}

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is checks if an error is of a specific type
func Is(err error, code ErrorCode) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// GetHTTPCode extracts the HTTP status code from an error
func GetHTTPCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.GetHTTPCode()
	}
	return http.StatusInternalServerError
}
