package store

import (
	"fmt"
	"net/http"
)

// Error is a persistence error with an HTTP status code.
// Errors compare equal under errors.Is when their codes and messages match,
// so wrapped copies produced by WithCause still match the sentinels.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	// ErrConflict reports a foreign key or check constraint violation.
	ErrConflict = &Error{
		Code:    http.StatusConflict,
		Message: "constraint violation",
	}

	ErrInvalidCursor = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid pagination cursor",
	}

	// ErrTransient reports a lock timeout, deadlock or serialization failure.
	// The whole transaction may be retried.
	ErrTransient = &Error{
		Code:    http.StatusServiceUnavailable,
		Message: "transient storage conflict",
	}
)
