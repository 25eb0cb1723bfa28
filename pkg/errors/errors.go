package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Details    []string `json:"details,omitempty"`
	StatusCode int      `json:"-"`
	Internal   error    `json:"-"`
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

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a different client-facing message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// WithDetails returns a copy of the AppError with per-field detail strings attached.
func (e *AppError) WithDetails(details ...string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Details = append([]string(nil), details...)
	return &cpy
}

// Common errors exposed to the rest of the application. The codes form the
// complete failure taxonomy of the HTTP surface.
var (
	ErrValidation = &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "Resource already exists",
		StatusCode: http.StatusConflict,
	}

	ErrPayloadTooLarge = &AppError{
		Code:       "PAYLOAD_TOO_LARGE",
		Message:    "Uploaded payload exceeds the configured size limit",
		StatusCode: http.StatusRequestEntityTooLarge,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrUpstream = &AppError{
		Code:       "UPSTREAM_ERROR",
		Message:    "Voice provider request failed",
		StatusCode: http.StatusBadGateway,
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

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       ErrInternalServer.Code,
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

// NewValidation wraps validation failures with a helpful message.
func NewValidation(message string, details ...string) *AppError {
	return &AppError{
		Code:       ErrValidation.Code,
		Message:    message,
		Details:    append([]string(nil), details...),
		StatusCode: ErrValidation.StatusCode,
	}
}

// NewConflict reports a uniqueness violation with a resource-specific message.
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       ErrConflict.Code,
		Message:    message,
		StatusCode: ErrConflict.StatusCode,
	}
}

// NewUpstream reports a provider failure without leaking the provider's raw response.
func NewUpstream(message string, internal error) *AppError {
	return &AppError{
		Code:       ErrUpstream.Code,
		Message:    message,
		StatusCode: ErrUpstream.StatusCode,
		Internal:   internal,
	}
}
