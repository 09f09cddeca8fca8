// Package errors defines the sentinel errors shared across the platform and
// maps them to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrRecipeNotFound       = errors.New("recipe not found")
	ErrEngineUnavailable    = errors.New("search engine unavailable")
	ErrTimeout              = errors.New("operation timed out")
	ErrIndexNotFound        = errors.New("index not found")
	ErrIndexExists          = errors.New("index already exists")
	ErrRebuildInconsistency = errors.New("rebuild inconsistency")
	ErrRebuildInProgress    = errors.New("rebuild already in progress")
	ErrSyncDrift            = errors.New("counter sync drift")
	ErrInternal             = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Validationf builds a 400 AppError wrapping ErrValidation.
func Validationf(format string, args ...any) *AppError {
	return Newf(ErrValidation, http.StatusBadRequest, format, args...)
}

// IsEngineFailure reports whether err comes from talking to the search engine
// (network failure or timeout), as opposed to a request it rejected.
func IsEngineFailure(err error) bool {
	return errors.Is(err, ErrEngineUnavailable) || errors.Is(err, ErrTimeout)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrRecipeNotFound), errors.Is(err, ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRebuildInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrEngineUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
