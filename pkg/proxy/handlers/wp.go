package handlers

import (
	"context"
	"net/http"
	"strconv"

	"pawpantry/larder/pkg/proxy"
	"pawpantry/larder/pkg/upstream"
)

// Fetcher performs upstream requests. *upstream.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// WPHandler serves the proxy endpoint.
type WPHandler struct {
	fetcher Fetcher
}

// NewWPHandler creates a new proxy endpoint handler.
func NewWPHandler(f Fetcher) *WPHandler {
	return &WPHandler{fetcher: f}
}

// ServeHTTP implements http.Handler.
func (h *WPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		proxy.WriteError(w, http.StatusBadRequest, "missing path")
		return
	}

	resp, err := h.fetcher.Fetch(r.Context(), upstream.Request{
		Path:   path,
		Method: http.MethodGet,
	})
	if err != nil {
		status, msg := proxy.HandleError(err)
		proxy.WriteError(w, status, msg)
		return
	}

	if resp.StatusCode > 0 {
		w.Header().Set(upstream.HeaderUpstreamStatus, strconv.Itoa(resp.StatusCode))
	}
	if resp.Fallback {
		w.Header().Set(upstream.HeaderFallback, "1")
		w.Header().Set("Cache-Control", "no-store")
	}

	_ = proxy.WriteRawJSON(w, http.StatusOK, resp.Body)
}
