package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingField       = errors.New("missing required field")
	ErrDuplicateDocument  = errors.New("duplicate document id")
	ErrBuilderFinalized   = errors.New("index builder already finalized")
	ErrNotFound           = errors.New("index artifact not found")
	ErrParse              = errors.New("malformed index artifact")
	ErrNoIndex            = errors.New("no index available")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
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
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingField), errors.Is(err, ErrDuplicateDocument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoIndex), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
