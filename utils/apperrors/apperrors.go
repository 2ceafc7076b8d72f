package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies caller-facing failures.
type Kind string

const (
	NotFound           Kind = "NOT_FOUND"
	FailedPrecondition Kind = "FAILED_PRECONDITION"
	ResourceExhausted  Kind = "RESOURCE_EXHAUSTED"
	PermissionDenied   Kind = "PERMISSION_DENIED"
	InvalidArgument    Kind = "INVALID_ARGUMENT"
	Unimplemented      Kind = "UNIMPLEMENTED"
	Internal           Kind = "INTERNAL"
)

// Error carries a kind, a user-actionable message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf extracts the user-facing message, defaulting to a generic one so
// internal details never leak to callers.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error kind to the HTTP status served by the API layer.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusConflict
	case ResourceExhausted:
		return http.StatusTooManyRequests
	case PermissionDenied:
		return http.StatusForbidden
	case InvalidArgument:
		return http.StatusBadRequest
	case Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
