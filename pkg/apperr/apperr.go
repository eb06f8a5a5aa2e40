// Package apperr is the application-wide structured error taxonomy. Every
// error that should cross a service boundary (core/service, adapter/out,
// internal/engine/*) is constructed here so infra/middleware can map it onto
// an HTTP response without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes, one per kind.
const (
	CodeBadInput           = "BAD_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
	CodeInternal           = "INTERNAL"
	CodeRateLimited        = "RATE_LIMITED"
)

// AppError is the structured error carried across every boundary.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// HTTPStatus returns the status code infra/middleware should respond with.
func (e *AppError) HTTPStatus() int { return e.Status }

// New builds an AppError of an arbitrary code/status, for call sites that
// need a kind not covered by the named constructors below.
func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// BadInput covers malformed requests and invariant violations caught before
// any side effect: invalid recurrence rules, out-of-range booking bounds,
// unparseable timespans.
func BadInput(message string) *AppError {
	return &AppError{Code: CodeBadInput, Message: message, Status: http.StatusBadRequest}
}

// NotFound reports a missing entity by kind and id.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
		Status:  http.StatusNotFound,
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// Unauthorized reports a missing or invalid credential (no API key, no
// bearer token, signature verification failure).
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

// Forbidden reports a credential that is valid but does not own the
// resource it is trying to act on (cross-account/cross-user access).
func Forbidden(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return &AppError{Code: CodeForbidden, Message: message, Status: http.StatusForbidden}
}

// Conflict reports a write that collides with existing state: duplicate
// external_id within an account, a schedule rule referencing an unknown
// weekday, a service resource already booked past its availability.
func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Status: http.StatusConflict}
}

// RateLimited reports that the caller exceeded its request budget for the
// current window (spec.md §6).
func RateLimited(message string) *AppError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return &AppError{Code: CodeRateLimited, Message: message, Status: http.StatusTooManyRequests}
}

// StorageUnavailable reports that a store/gateway call failed for reasons
// outside the caller's input: a dropped connection, a Postgres/Redis/Mongo
// timeout, a broken provider circuit.
func StorageUnavailable(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeStorageUnavailable,
		Message: fmt.Sprintf("storage unavailable: %s", operation),
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// Timeout reports a deadline exceeded on an otherwise well-formed operation.
func Timeout(operation string) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("operation timed out: %s", operation),
		Status:  http.StatusGatewayTimeout,
	}
}

// Internal reports a bug or unexpected condition with no more specific kind.
func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError}
}

// InternalWithError wraps an unexpected error as Internal, preserving it via
// Unwrap for logging.
func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Common reusable instances, mirroring the teacher's package-level sentinels.
var (
	ErrNotFound     = NotFound("resource", "")
	ErrUnauthorized = Unauthorized("")
	ErrForbidden    = Forbidden("")
	ErrBadInput     = BadInput("bad input")
	ErrInternal     = Internal("")
	ErrConflict     = Conflict("resource conflict")
)

// IsAppError reports whether err (or something it wraps) is an *AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError unwraps err to an *AppError, or wraps it as Internal if it
// isn't already one.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

// HTTPStatus returns the response status for any error, defaulting to 500
// for errors that were never constructed through this package.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
