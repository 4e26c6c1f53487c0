package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface.
// Message is shown to the caller verbatim.
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates the caller is not authenticated
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates the caller does not own the resource
	ForbiddenError struct {
		Message string
	}

	// RateLimitError indicates a usage cap was reached
	RateLimitError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }
func (e *RateLimitError) Error() string    { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }
func (e *RateLimitError) StatusCode() int    { return http.StatusTooManyRequests }

// Is lets typed errors match their sentinel with errors.Is()
func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }
func (e *RateLimitError) Is(target error) bool    { return target == ErrRateLimited }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (conversation, message, attachment)
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Unauthorized builds an UnauthorizedError with a caller-facing message
func Unauthorized(msg string) error { return &UnauthorizedError{Message: msg} }

// Forbidden builds a ForbiddenError with a caller-facing message
func Forbidden(msg string) error { return &ForbiddenError{Message: msg} }

// NotFound builds a NotFoundError with a caller-facing message
func NotFound(msg string) error { return &NotFoundError{Message: msg} }

// Invalid builds a ValidationError with a caller-facing message
func Invalid(msg string) error { return &ValidationError{Message: msg} }

// RateLimited builds a RateLimitError with a caller-facing message
func RateLimited(msg string) error { return &RateLimitError{Message: msg} }
