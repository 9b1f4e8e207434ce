package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the structured error shared by the domain layer, the dialog machine and the HTTP adapter.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches two AppErrors by code so copies produced by WithInternal still satisfy errors.Is.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Kind groups error codes into the handling categories used by the dialog machine.
type Kind int

const (
	KindStoreFailure Kind = iota
	KindValidation
	KindNotFound
	KindPermissionDenied
	KindInvalidArgument
	KindConflict
)

// KindOf classifies err by its HTTP status. Unknown errors are store failures.
func KindOf(err error) Kind {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		return KindStoreFailure
	}
	switch appErr.StatusCode {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnprocessableEntity:
		return KindInvalidArgument
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusForbidden:
		return KindPermissionDenied
	case http.StatusConflict:
		return KindConflict
	default:
		return KindStoreFailure
	}
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid dashboard password",
		StatusCode: http.StatusUnauthorized,
	}

	ErrPermissionDenied = &AppError{
		Code:       "PERMISSION_DENIED",
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidArgument = &AppError{
		Code:       "INVALID_ARGUMENT",
		Message:    "Invalid argument",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "Conflicting state",
		StatusCode: http.StatusConflict,
	}

	ErrTooManyRequests = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into a store failure while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "STORE_FAILURE",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}

// NewInvalidArgument reports a semantically invalid argument to a domain operation.
func NewInvalidArgument(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: ErrInvalidArgument.StatusCode,
	}
}
