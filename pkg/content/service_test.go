package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"pawpantry/larder/pkg/client"
	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/upstream"
)

const recipesJSON = `[
  {"id":1,"slug":"salmon-bites","date_gmt":"2026-09-01T08:30:00","link":"https://cms.example.com/recipe/salmon-bites",
   "title":{"rendered":"Salmon &amp; Sweet Potato Bites"},
   "excerpt":{"rendered":"<p>Crunchy treats for <em>dogs</em>.</p>"},
   "content":{"rendered":"<p>Bake for 20 minutes.</p>"},
   "categories":[3],"acf":{"pet_type":"dog","prep_minutes":"25"}},
  {"id":2,"slug":"tuna-pops","date_gmt":"2026-09-02T08:30:00",
   "title":{"rendered":"Tuna Pops"},
   "excerpt":{"rendered":"<p>Frozen summer snack.</p>"},
   "content":{"rendered":""},
   "categories":[4],"acf":{"pet_type":"cat","prep_minutes":10}},
  {"id":3,"slug":"plain-oats","date_gmt":"bad",
   "title":{"rendered":"Plain Oats"},
   "excerpt":{"rendered":""},
   "content":{"rendered":""},
   "categories":[],"acf":[]}
]`

const salmonJSON = `[{"id":1,"slug":"salmon-bites","title":{"rendered":"Salmon Bites"},"acf":{"pet_type":"dog"}}]`

const faqsJSON = `[
  {"id":10,"slug":"raw","title":{"rendered":"Can dogs eat raw salmon?"},
   "content":{"rendered":"<p>No. Always cook it.</p>"},"acf":[]}
]`

// pathLog records the logical paths the proxy received.
type pathLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *pathLog) add(p string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, p)
}

func (l *pathLog) first() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.paths) == 0 {
		return ""
	}
	return l.paths[0]
}

// wpProxy answers like the proxy endpoint in front of a WordPress site.
func wpProxy(t *testing.T, down bool) (*httptest.Server, *pathLog) {
	t.Helper()
	paths := &pathLog{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		paths.add(path)

		if down {
			w.Header().Set(upstream.HeaderFallback, "1")
			w.Write(upstream.FallbackBody())
			return
		}

		u, _ := url.Parse(path)
		switch {
		case u.Path == RecipesPath && u.Query().Get("slug") != "":
			if u.Query().Get("slug") == "salmon-bites" {
				w.Write([]byte(salmonJSON))
				return
			}
			w.Write([]byte(`[]`))
		case u.Path == RecipesPath:
			w.Write([]byte(recipesJSON))
		case u.Path == FAQsPath:
			w.Write([]byte(faqsJSON))
		case u.Path == ArticlesPath:
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, paths
}

func newService(t *testing.T, down bool) (*Service, *pathLog) {
	t.Helper()
	server, paths := wpProxy(t, down)

	c, err := client.New(config.ClientConfig{ProxyURL: server.URL})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return NewService(c, 0), paths
}

func TestService_Recipes(t *testing.T) {
	svc, paths := newService(t, false)

	list, err := svc.Recipes(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Recipes() error = %v", err)
	}

	if len(list.Items) != 3 {
		t.Fatalf("expected 3 recipes, got %d", len(list.Items))
	}
	if paths.first() != "/wp/v2/recipe?per_page=100" {
		t.Errorf("unexpected upstream path %q", paths.first())
	}

	r := list.Items[0]
	if r.Title != "Salmon & Sweet Potato Bites" {
		t.Errorf("expected decoded title, got %q", r.Title)
	}
	if r.Excerpt != "Crunchy treats for dogs." {
		t.Errorf("expected plain-text excerpt, got %q", r.Excerpt)
	}
	if r.PetType != "dog" || r.PrepMinutes != 25 {
		t.Errorf("expected acf fields, got %q %d", r.PetType, r.PrepMinutes)
	}
	if r.Published.Month() != 9 || r.Published.Day() != 1 {
		t.Errorf("expected publication date, got %v", r.Published)
	}

	if list.Items[1].PrepMinutes != 10 {
		t.Errorf("expected numeric prep minutes, got %d", list.Items[1].PrepMinutes)
	}
	if oats := list.Items[2]; oats.PetType != "" || !oats.Published.IsZero() || oats.Categories == nil {
		t.Errorf("expected empty acf and zero date, got %+v", oats)
	}
}

func TestService_RecipesFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"search title", Filter{Search: "tuna"}, []string{"tuna-pops"}},
		{"search excerpt", Filter{Search: "CRUNCHY"}, []string{"salmon-bites"}},
		{"pet type", Filter{PetType: "Cat"}, []string{"tuna-pops"}},
		{"category", Filter{Category: 3}, []string{"salmon-bites"}},
		{"combined miss", Filter{Category: 3, PetType: "cat"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, false)

			list, err := svc.Recipes(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("Recipes() error = %v", err)
			}

			var got []string
			for _, r := range list.Items {
				got = append(got, r.Slug)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if list.Items == nil {
				t.Error("expected non-nil items")
			}
		})
	}
}

func TestService_CategoryPushedDown(t *testing.T) {
	svc, paths := newService(t, false)

	_, _ = svc.Articles(context.Background(), Filter{Category: 7})

	if paths.first() != "/wp/v2/posts?categories=7&per_page=100" {
		t.Errorf("unexpected upstream path %q", paths.first())
	}
}

func TestService_RecipeBySlug(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	r, unavailable, err := svc.RecipeBySlug(ctx, "salmon-bites")
	if err != nil || unavailable {
		t.Fatalf("RecipeBySlug() = %v, %v", unavailable, err)
	}
	if r.ID != 1 {
		t.Errorf("expected recipe 1, got %d", r.ID)
	}

	if _, _, err := svc.RecipeBySlug(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := svc.RecipeBySlug(ctx, " "); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for blank slug, got %v", err)
	}
}

func TestService_FAQs(t *testing.T) {
	svc, _ := newService(t, false)

	list, err := svc.FAQs(context.Background(), Filter{Search: "salmon"})
	if err != nil {
		t.Fatalf("FAQs() error = %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 faq, got %d", len(list.Items))
	}
	if list.Items[0].Answer != "No. Always cook it." {
		t.Errorf("unexpected answer %q", list.Items[0].Answer)
	}
}

func TestService_Fallback(t *testing.T) {
	svc, _ := newService(t, true)
	ctx := context.Background()

	recipes, err := svc.Recipes(ctx, Filter{})
	if err != nil {
		t.Fatalf("Recipes() error = %v", err)
	}
	if !recipes.Fallback || recipes.Items == nil || len(recipes.Items) != 0 {
		t.Errorf("expected empty fallback listing, got %+v", recipes)
	}

	articles, err := svc.Articles(ctx, Filter{})
	if err != nil || !articles.Fallback {
		t.Errorf("expected fallback articles, got %+v, %v", articles, err)
	}

	r, unavailable, err := svc.RecipeBySlug(ctx, "salmon-bites")
	if err != nil || !unavailable || r != nil {
		t.Errorf("expected unavailable without error, got %v, %v, %v", r, unavailable, err)
	}
}

func TestListPath(t *testing.T) {
	tests := []struct {
		route    string
		perPage  int
		category int
		want     string
	}{
		{RecipesPath, 0, 0, "/wp/v2/recipe?per_page=100"},
		{ArticlesPath, 20, 7, "/wp/v2/posts?categories=7&per_page=20"},
		{FAQsPath, -1, -3, "/wp/v2/faq?per_page=100"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := ListPath(tt.route, tt.perPage, tt.category); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
