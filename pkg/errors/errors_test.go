package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("loading: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("limit: %w", ErrInvalidInput), http.StatusBadRequest},
		{ErrMissingField, http.StatusBadRequest},
		{fmt.Errorf("query: %w", ErrNoIndex), http.StatusServiceUnavailable},
		{ErrParse, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
		{New(ErrParse, http.StatusUnprocessableEntity, "bad artifact"), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		if got := HTTPStatusCode(tt.err); got != tt.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Newf(ErrNotFound, http.StatusNotFound, "prefix %s", "p"))
	if !errors.Is(err, ErrNotFound) {
		t.Error("AppError does not unwrap to its sentinel")
	}
	if got := err.Error(); got != "wrapped: index artifact not found: prefix p" {
		t.Errorf("Error() = %q", got)
	}
}
