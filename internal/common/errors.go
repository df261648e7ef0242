package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy. Wrap these so callers can branch with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrStorage           = errors.New("storage error")
	ErrNotFound          = errors.New("resource not found")
	ErrParse             = errors.New("engine response is not a JSON array")
	ErrEmptyResult       = errors.New("extraction produced no data")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func ValidationError(message string) error {
	return NewAppError("VALIDATION_ERROR", message, ErrValidation)
}

func NotFoundError(message string) error {
	return NewAppError("NOT_FOUND", message, ErrNotFound)
}

// StorageError tags err as a Blob Store or Job Store failure. The original cause
// stays reachable through errors.Is/As.
func StorageError(message string, err error) error {
	if err == nil {
		return nil
	}
	return NewAppError("STORAGE_ERROR", message, fmt.Errorf("%w: %w", ErrStorage, err))
}

func ParseError(message string, err error) error {
	return NewAppError("PARSE_ERROR", message, fmt.Errorf("%w: %w", ErrParse, err))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps the taxonomy onto response codes. Anything unknown is a 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns text safe to show a client for err.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && !errors.Is(err, ErrStorage) {
		return appErr.Message
	}
	if errors.Is(err, ErrStorage) {
		return "storage unavailable, try again later"
	}
	return "internal error"
}
