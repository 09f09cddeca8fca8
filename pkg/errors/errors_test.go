package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validationf("bad id %q", "x/y"), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("liking: %w", ErrRecipeNotFound), http.StatusNotFound},
		{"rebuild in progress", fmt.Errorf("rebuild: %w", ErrRebuildInProgress), http.StatusConflict},
		{"engine timeout", fmt.Errorf("search: %w", ErrTimeout), http.StatusServiceUnavailable},
		{"engine down", ErrEngineUnavailable, http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsEngineFailure(t *testing.T) {
	if !IsEngineFailure(fmt.Errorf("x: %w", ErrTimeout)) {
		t.Error("timeout should be an engine failure")
	}
	if IsEngineFailure(ErrIndexExists) {
		t.Error("index exists is a rejected request, not an engine failure")
	}
}
