// Package errors defines AppError, the error type handlers turn into HTTP
// responses, along with sentinels for matching with errors.Is.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels wrapped by the constructors below
var (
	ErrNotFound      = errors.New("resource not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrBadRequest    = errors.New("bad request")
	ErrInternal      = errors.New("internal server error")
	ErrConflict      = errors.New("resource conflict")
	ErrValidation    = errors.New("validation error")
	ErrUnprocessable = errors.New("unprocessable entity")
	ErrTooLarge      = errors.New("payload too large")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("invalid token")
)

// AppError carries the code, message and status sent to the client. The
// wrapped Err stays server side.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetails attaches per-field details and returns e
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// New creates an AppError that wraps nothing
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// Wrap creates an AppError around err
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{Err: err, Code: code, Message: message, StatusCode: statusCode}
}

func NotFound(resource string) *AppError {
	return Wrap(ErrNotFound, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

func Unauthorized(message string) *AppError {
	return Wrap(ErrUnauthorized, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

func Forbidden(message string) *AppError {
	return Wrap(ErrForbidden, "FORBIDDEN", message, http.StatusForbidden)
}

func BadRequest(message string) *AppError {
	return Wrap(ErrBadRequest, "BAD_REQUEST", message, http.StatusBadRequest)
}

func Internal(message string) *AppError {
	return Wrap(ErrInternal, "INTERNAL_ERROR", message, http.StatusInternalServerError)
}

func Conflict(message string) *AppError {
	return Wrap(ErrConflict, "CONFLICT", message, http.StatusConflict)
}

// Validation reports one message per invalid field
func Validation(details map[string]string) *AppError {
	return Wrap(ErrValidation, "VALIDATION_ERROR", "validation failed", http.StatusBadRequest).WithDetails(details)
}

// Unprocessable reports input that is well-formed but holds no usable MRZ.
func Unprocessable(message string) *AppError {
	return Wrap(ErrUnprocessable, "UNPROCESSABLE", message, http.StatusUnprocessableEntity)
}

// TooLarge reports an upload over the configured limit
func TooLarge(limit int64) *AppError {
	return Wrap(ErrTooLarge, "PAYLOAD_TOO_LARGE", fmt.Sprintf("upload exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

func TokenExpired() *AppError {
	return Wrap(ErrTokenExpired, "TOKEN_EXPIRED", "token has expired", http.StatusUnauthorized)
}

func TokenInvalid() *AppError {
	return Wrap(ErrTokenInvalid, "TOKEN_INVALID", "invalid token", http.StatusUnauthorized)
}

// Is and As re-export the standard library so callers need one import.
func Is(err, target error) bool { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
