// Package apperrors provides structured errors with machine-readable codes.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeNotFound indicates the entity is absent or not owned by the caller.
	// Absence and foreign ownership are deliberately indistinguishable.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict indicates a duplicate name, token, or unlock.
	CodeConflict Code = "CONFLICT"
	// CodeInvalidTransition indicates a disallowed pipeline stage change.
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	// CodeInvalidState indicates the entity's current state forbids the operation.
	CodeInvalidState Code = "INVALID_STATE"
	// CodeInsufficientCredits indicates the company balance cannot cover a debit.
	CodeInsufficientCredits Code = "INSUFFICIENT_CREDITS"
	// CodeInvalidToken indicates an unknown, expired, or already-used invitation token.
	CodeInvalidToken Code = "INVALID_TOKEN"
	// CodeInvalidInput indicates malformed input rejected before reaching the core.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeUnauthorized indicates a missing or unverifiable identity.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeUnavailable indicates a transient storage failure; the request may be retried.
	CodeUnavailable Code = "UNAVAILABLE"
	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "INTERNAL"
)

// Error is a structured application error.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a code and a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound creates a NOT_FOUND error for a resource.
func NotFound(resource, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// InvalidInput creates an INVALID_INPUT error for a field.
func InvalidInput(field, message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf("%s: %s", field, message)}
}

// Conflict creates a CONFLICT error.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// GetCode extracts the code from any error, defaulting to INTERNAL.
func GetCode(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// HTTPStatus maps an error to the HTTP status the handler layer should emit.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeInvalidTransition, CodeInvalidState:
		return http.StatusUnprocessableEntity
	case CodeInsufficientCredits:
		return http.StatusPaymentRequired
	case CodeInvalidToken:
		return http.StatusGone
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
