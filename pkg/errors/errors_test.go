package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrCorruptCache, http.StatusConflict, "partial"), http.StatusConflict},
		{"invalid argument", fmt.Errorf("rank: %w", ErrInvalidArgument), http.StatusBadRequest},
		{"invalidf", Invalidf("n=%d exceeds %d", 20, 10), http.StatusBadRequest},
		{"timeout", fmt.Errorf("expert lda: %w", ErrTimeout), http.StatusServiceUnavailable},
		{"not ready", ErrNotReady, http.StatusServiceUnavailable},
		{"corrupt cache", fmt.Errorf("loading: %w", ErrCorruptCache), http.StatusInternalServerError},
		{"unrelated", context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := Invalidf("n=%d", 5)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, "invalid argument: n=5", err.Error())
}
