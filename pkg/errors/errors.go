// Package errors defines the sentinel errors shared by the vocabulary, expert
// and ensemble packages, plus an AppError wrapper that carries an HTTP status
// for the rank API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingCorpus means a build was required but the corpus source could
	// not supply any documents.
	ErrMissingCorpus = errors.New("corpus unavailable")
	// ErrCorruptCache means cache files are partial or unreadable.
	ErrCorruptCache = errors.New("corrupt cache")
	// ErrIndexLoad means a cached model or index does not match the current
	// configuration (format version, kind or feature count).
	ErrIndexLoad = errors.New("index load mismatch")
	// ErrInvalidArgument is returned before any I/O for out-of-range requests.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotReady        = errors.New("ranker not ready")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
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

// Invalidf wraps ErrInvalidArgument with a formatted message and a 400 status.
func Invalidf(format string, args ...any) *AppError {
	return Newf(ErrInvalidArgument, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
