package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrItemNotFound     = errors.New("news item not found")
	ErrInvalidVertical  = errors.New("invalid vertical")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTierRequired     = errors.New("tier entitlement required")
	ErrDedupUnavailable = errors.New("duplicate gate store unavailable")
	ErrStoreUnavailable = errors.New("news store unavailable")
	ErrQuotaExceeded    = errors.New("analysis quota exceeded")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
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
	case errors.Is(err, ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidVertical), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTierRequired):
		return http.StatusForbidden
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrDedupUnavailable), errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
