// Package apperr defines the error taxonomy shared by the store, the resolver,
// the analytics aggregator and the HTTP surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, machine readable error class.
type Kind string

const (
	// NotFoundKind means an identifier did not resolve.
	NotFoundKind Kind = "NOT_FOUND"
	// ValidationKind means the caller sent malformed or out-of-range input.
	ValidationKind Kind = "VALIDATION_ERROR"
	// DataIntegrityKind means stored data violates an invariant (for example
	// zero or several latest profiles for one company).
	DataIntegrityKind Kind = "DATA_INTEGRITY_ERROR"
	// UpstreamKind means the store or another backend could not be reached.
	UpstreamKind Kind = "UPSTREAM_UNAVAILABLE"
	// InternalKind is everything else.
	InternalKind Kind = "INTERNAL_ERROR"
)

// Error carries a Kind, a caller-facing message and an optional cause.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an Error of the given kind.
func New(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func NotFound(format string, args ...any) *Error {
	return New(NotFoundKind, nil, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(ValidationKind, nil, format, args...)
}

func DataIntegrity(format string, args ...any) *Error {
	return New(DataIntegrityKind, nil, format, args...)
}

func Upstream(cause error, format string, args ...any) *Error {
	return New(UpstreamKind, cause, format, args...)
}

// KindOf reports the Kind of err, InternalKind for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalKind
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to the status code the API surface responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFoundKind:
		return http.StatusNotFound
	case ValidationKind:
		return http.StatusBadRequest
	case UpstreamKind:
		return http.StatusServiceUnavailable
	case DataIntegrityKind, InternalKind:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Public converts any error into the shape rendered to clients. Foreign
// errors are masked so driver details never leak.
func Public(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Message: e.Message}
	}
	return &Error{Kind: InternalKind, Message: "internal server error"}
}
