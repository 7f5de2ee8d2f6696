// Package errors provides the coded errors of the Shelfkeep rental engine.
//
// Every rule violation the engine detects carries a Code. The code selects
// the HTTP status and is what the API puts in the error envelope, so
// callers match on it rather than on messages:
//
//	if errors.Is(err, errors.ErrClientHasActiveRental) { ... }
//
// Storage failures that are not rule violations are wrapped with
// CodeInternal and never reach clients verbatim.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Is and As are re-exported so callers importing this package under its
// own name need no second errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound              Code = "NOT_FOUND"
	CodeAlreadyExists         Code = "ALREADY_EXISTS"
	CodeValidation            Code = "VALIDATION"
	CodeConflict              Code = "CONFLICT"
	CodeOutOfStock            Code = "OUT_OF_STOCK"
	CodeCopyAlreadyRented     Code = "COPY_ALREADY_RENTED"
	CodeClientHasActiveRental Code = "CLIENT_HAS_ACTIVE_RENTAL"
	CodeAlreadyClosed         Code = "ALREADY_CLOSED"
	CodeInvalidCondition      Code = "INVALID_CONDITION"
	CodeInvalidDate           Code = "INVALID_DATE"
	CodeReturnBeforeStart     Code = "RETURN_BEFORE_START"
	CodeConditionImproved     Code = "CONDITION_IMPROVED"
	CodeInvalidTransition     Code = "INVALID_TRANSITION"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeInternal              Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict, CodeOutOfStock, CodeCopyAlreadyRented,
		CodeClientHasActiveRental, CodeAlreadyClosed:
		return http.StatusConflict
	case CodeValidation, CodeInvalidCondition, CodeInvalidDate:
		return http.StatusBadRequest
	case CodeReturnBeforeStart, CodeConditionImproved, CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// IsBusiness reports whether err carries a rule-violation code, as opposed to
// an internal failure or an untyped error.
func IsBusiness(err error) bool {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code != CodeInternal
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound              = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists         = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation            = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict              = &Error{Code: CodeConflict, Message: "conflict"}
	ErrOutOfStock            = &Error{Code: CodeOutOfStock, Message: "out of stock"}
	ErrCopyAlreadyRented     = &Error{Code: CodeCopyAlreadyRented, Message: "copy already rented"}
	ErrClientHasActiveRental = &Error{Code: CodeClientHasActiveRental, Message: "client has an active rental"}
	ErrAlreadyClosed         = &Error{Code: CodeAlreadyClosed, Message: "rent already closed"}
	ErrInvalidCondition      = &Error{Code: CodeInvalidCondition, Message: "invalid condition"}
	ErrInvalidDate           = &Error{Code: CodeInvalidDate, Message: "invalid date"}
	ErrReturnBeforeStart     = &Error{Code: CodeReturnBeforeStart, Message: "return date is before start date"}
	ErrConditionImproved     = &Error{Code: CodeConditionImproved, Message: "condition cannot improve"}
	ErrInvalidTransition     = &Error{Code: CodeInvalidTransition, Message: "invalid condition transition"}
	ErrRateLimited           = &Error{Code: CodeRateLimited, Message: "too many requests"}
	ErrInternal              = &Error{Code: CodeInternal, Message: "internal error"}
)

// Newf creates an error with code and a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err under code. The cause stays reachable through errors.Is
// and errors.As but is not shown to clients.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// NotFound reports a missing book, copy, client, rent or catalog entry.
func NotFound(msg string) *Error { return &Error{Code: CodeNotFound, Message: msg} }

// Internal reports a failure that is not the caller's fault.
func Internal(msg string) *Error { return &Error{Code: CodeInternal, Message: msg} }

// Validation reports a malformed request.
func Validation(msg string) *Error { return &Error{Code: CodeValidation, Message: msg} }

// ValidationWithDetails reports a malformed request with per-field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Formatted constructors, one per code the services raise.

func NotFoundf(format string, args ...any) *Error      { return Newf(CodeNotFound, format, args...) }
func AlreadyExistsf(format string, args ...any) *Error { return Newf(CodeAlreadyExists, format, args...) }
func Validationf(format string, args ...any) *Error    { return Newf(CodeValidation, format, args...) }
func Conflictf(format string, args ...any) *Error      { return Newf(CodeConflict, format, args...) }
func OutOfStockf(format string, args ...any) *Error    { return Newf(CodeOutOfStock, format, args...) }
func AlreadyClosedf(format string, args ...any) *Error { return Newf(CodeAlreadyClosed, format, args...) }
func InvalidDatef(format string, args ...any) *Error   { return Newf(CodeInvalidDate, format, args...) }

func CopyAlreadyRentedf(format string, args ...any) *Error {
	return Newf(CodeCopyAlreadyRented, format, args...)
}

func ClientHasActiveRentalf(format string, args ...any) *Error {
	return Newf(CodeClientHasActiveRental, format, args...)
}

func InvalidConditionf(format string, args ...any) *Error {
	return Newf(CodeInvalidCondition, format, args...)
}

func ReturnBeforeStartf(format string, args ...any) *Error {
	return Newf(CodeReturnBeforeStart, format, args...)
}

func ConditionImprovedf(format string, args ...any) *Error {
	return Newf(CodeConditionImproved, format, args...)
}

func InvalidTransitionf(format string, args ...any) *Error {
	return Newf(CodeInvalidTransition, format, args...)
}
