// Package errors provides the classified error type used across the gateway
// and its mapping onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Type classifies an error for transport-level mapping.
type Type string

// Error types used throughout the gateway.
const (
	ErrConfiguration  Type = "configuration"
	ErrDatabase       Type = "database"
	ErrValidation     Type = "validation"
	ErrAuthentication Type = "authentication"
	ErrNotFound       Type = "not_found"
	ErrRateLimited    Type = "rate_limited"
	ErrInternal       Type = "internal"
)

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Type    Type
	Message string
	Detail  string
	Cause   error
}

// Error implements the error interface, rendering "type: message: cause".
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type
}

// Category returns the public category name used in response envelopes.
func (e *Error) Category() string {
	switch e.Type {
	case ErrConfiguration:
		return "Configuration"
	case ErrDatabase:
		return "Database"
	case ErrValidation:
		return "Validation"
	case ErrAuthentication:
		return "Authentication"
	case ErrNotFound:
		return "NotFound"
	case ErrRateLimited:
		return "RateLimited"
	default:
		return "Internal"
	}
}

// HTTPStatus returns the HTTP status code for the error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrAuthentication:
		return http.StatusUnauthorized
	case ErrNotFound:
		return http.StatusNotFound
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// New creates an error of the given type.
func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates an error of the given type wrapping a cause.
func Wrap(t Type, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string, cause error) *Error {
	return &Error{Type: ErrConfiguration, Message: message, Cause: cause}
}

// NewDatabaseError creates a database error.
func NewDatabaseError(message string, cause error) *Error {
	return &Error{Type: ErrDatabase, Message: message, Cause: cause}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{Type: ErrValidation, Message: message}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *Error {
	return &Error{Type: ErrInternal, Message: message, Cause: cause}
}

// AsError converts err into an *Error, classifying unknown errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Type: ErrInternal, Message: err.Error(), Cause: err}
}
