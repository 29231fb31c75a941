package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pawpantry/larder/pkg/content"
	"pawpantry/larder/pkg/upstream"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "missing path")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON content type, got %q", w.Header().Get("Content-Type"))
	}
	if strings.TrimSpace(w.Body.String()) != `{"error":"missing path"}` {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestWriteRawJSON(t *testing.T) {
	w := httptest.NewRecorder()
	body := []byte(`{"items":[],"error":"fallback"}`)

	if err := WriteRawJSON(w, http.StatusOK, body); err != nil {
		t.Fatalf("WriteRawJSON() error = %v", err)
	}
	if w.Body.String() != string(body) {
		t.Errorf("expected body unchanged, got %s", w.Body.String())
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{upstream.ErrMissingPath, http.StatusBadRequest},
		{fmt.Errorf("recipe: %w", content.ErrNotFound), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, msg := HandleError(tt.err)
		if status != tt.wantStatus {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.wantStatus, status)
		}
		if status == http.StatusInternalServerError && msg != "internal server error" {
			t.Errorf("expected generic message, got %q", msg)
		}
	}
}
