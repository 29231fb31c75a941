package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"pawpantry/larder/pkg/content"
	"pawpantry/larder/pkg/proxy"
	"pawpantry/larder/pkg/upstream"
)

// Item wraps a single catalogue entry.
type Item[T any] struct {
	Item     *T   `json:"item"`
	Fallback bool `json:"fallback,omitempty"`
	Stale    bool `json:"stale,omitempty"`
}

// ContentHandler serves the catalogue routes.
type ContentHandler struct {
	svc *content.Service
}

// NewContentHandler creates a new catalogue handler.
func NewContentHandler(svc *content.Service) *ContentHandler {
	return &ContentHandler{svc: svc}
}

// Recipes handles GET /api/recipes?q=&category=&pet_type=.
func (h *ContentHandler) Recipes(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}

	list, err := h.svc.Recipes(r.Context(), f)
	writeList(w, r, list, err)
}

// Recipe handles GET /api/recipes/{slug}.
func (h *ContentHandler) Recipe(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	recipe, unavailable, err := h.svc.RecipeBySlug(r.Context(), slug)
	switch {
	case errors.Is(err, content.ErrNotFound):
		proxy.WriteError(w, http.StatusNotFound, "recipe not found")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to load recipe", "slug", slug, "error", err)
		unavailable = true
	}

	if unavailable {
		w.Header().Set(upstream.HeaderFallback, "1")
	}
	_ = proxy.WriteJSON(w, http.StatusOK, Item[content.Recipe]{Item: recipe, Fallback: unavailable})
}

// Articles handles GET /api/articles?q=&category=.
func (h *ContentHandler) Articles(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}

	list, err := h.svc.Articles(r.Context(), f)
	writeList(w, r, list, err)
}

// FAQs handles GET /api/faqs?q=.
func (h *ContentHandler) FAQs(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}

	list, err := h.svc.FAQs(r.Context(), f)
	writeList(w, r, list, err)
}

// writeList answers with the listing, degrading to an empty fallback
// listing when the service failed.
func writeList[T any](w http.ResponseWriter, r *http.Request, list content.List[T], err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load listing", "path", r.URL.Path, "error", err)
		list = content.List[T]{Items: []T{}, Fallback: true}
	}
	if list.Fallback {
		w.Header().Set(upstream.HeaderFallback, "1")
	}
	_ = proxy.WriteJSON(w, http.StatusOK, list)
}

// parseFilter reads q, category and pet_type. An invalid category is
// answered with 400 and ok is false.
func parseFilter(w http.ResponseWriter, r *http.Request) (f content.Filter, ok bool) {
	q := r.URL.Query()
	f.Search = strings.TrimSpace(q.Get("q"))
	f.PetType = strings.TrimSpace(q.Get("pet_type"))

	if raw := q.Get("category"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			proxy.WriteError(w, http.StatusBadRequest, "invalid category")
			return f, false
		}
		f.Category = id
	}
	return f, true
}
