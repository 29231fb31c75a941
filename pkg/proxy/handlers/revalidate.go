package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/proxy"
)

// HeaderRevalidateSecret carries the shared revalidation secret.
const HeaderRevalidateSecret = "X-Revalidate-Secret"

// Invalidator drops cached entries by tag. cache.Store and *client.Client
// satisfy it.
type Invalidator interface {
	InvalidateTag(ctx context.Context, tag string) (int, error)
}

// RevalidateResponse reports how many entries each cache dropped.
type RevalidateResponse struct {
	Revalidated bool           `json:"revalidated"`
	Tag         string         `json:"tag"`
	Removed     map[string]int `json:"removed"`
	Now         int64          `json:"now"`
}

// RevalidateHandler invalidates cached content on demand, e.g. from a
// WordPress publish webhook.
type RevalidateHandler struct {
	secret  string
	targets map[string]Invalidator
	now     func() time.Time
}

// NewRevalidateHandler creates a handler invalidating every target. An
// empty secret disables the route.
func NewRevalidateHandler(secret string, targets map[string]Invalidator) *RevalidateHandler {
	return &RevalidateHandler{
		secret:  secret,
		targets: targets,
		now:     time.Now,
	}
}

// ServeHTTP implements http.Handler.
func (h *RevalidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		proxy.WriteError(w, http.StatusNotFound, "not found")
		return
	}

	got := r.Header.Get(HeaderRevalidateSecret)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		proxy.WriteError(w, http.StatusUnauthorized, "invalid secret")
		return
	}

	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	if tag == "" {
		tag = config.DefaultRevalidateTag
	}

	removed := make(map[string]int, len(h.targets))
	names := make([]string, 0, len(h.targets))
	for name := range h.targets {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		n, err := h.targets[name].InvalidateTag(r.Context(), tag)
		if err != nil {
			slog.ErrorContext(r.Context(), "revalidation failed", "cache", name, "tag", tag, "error", err)
			proxy.WriteError(w, http.StatusInternalServerError, "failed to revalidate")
			return
		}
		removed[name] = n
	}

	slog.InfoContext(r.Context(), "revalidated tag", "tag", tag, "removed", removed)

	_ = proxy.WriteJSON(w, http.StatusOK, RevalidateResponse{
		Revalidated: true,
		Tag:         tag,
		Removed:     removed,
		Now:         h.now().UnixMilli(),
	})
}
