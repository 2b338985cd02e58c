// Package errors defines the sentinel errors shared by the indexer and the
// searcher, and maps them onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidQuery       = errors.New("invalid query")
	ErrMalformedProximity = errors.New("proximity distance must be an integer")
	ErrBudgetExceeded     = errors.New("search work budget exceeded")
	ErrIndexNotFound      = errors.New("index file not found")
	ErrCorruptIndex       = errors.New("corrupt index file")
	ErrInvalidDocument    = errors.New("invalid document")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
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

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrMalformedProximity),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, ErrBudgetExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIndexNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
