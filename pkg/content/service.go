package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"pawpantry/larder/pkg/client"
)

// WordPress REST routes read by the service.
const (
	RecipesPath  = "/wp/v2/recipe"
	ArticlesPath = "/wp/v2/posts"
	FAQsPath     = "/wp/v2/faq"
)

// DefaultPerPage is the WordPress page size requested for listings.
const DefaultPerPage = 100

// ErrNotFound is returned when a slug matches nothing.
var ErrNotFound = errors.New("content not found")

// Service reads the catalogue through the proxy client.
type Service struct {
	client  *client.Client
	perPage int
	logger  *slog.Logger
}

// NewService creates a Service. perPage <= 0 uses DefaultPerPage.
func NewService(c *client.Client, perPage int) *Service {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Service{
		client:  c,
		perPage: perPage,
		logger:  slog.Default().With("component", "content"),
	}
}

// Recipes lists recipes matching f.
func (s *Service) Recipes(ctx context.Context, f Filter) (List[Recipe], error) {
	posts, err := s.list(ctx, RecipesPath, f.Category)
	if err != nil {
		return List[Recipe]{Items: []Recipe{}}, err
	}

	items := make([]Recipe, 0, len(posts.Data))
	for i := range posts.Data {
		items = append(items, posts.Data[i].recipe())
	}
	return List[Recipe]{
		Items:    filter(items, f.MatchRecipe),
		Fallback: posts.Fallback,
		Stale:    posts.Stale,
	}, nil
}

// RecipeBySlug returns the recipe with slug. The bool result is true when
// the content API was unavailable, in which case the recipe is nil and
// the error is nil.
func (s *Service) RecipeBySlug(ctx context.Context, slug string) (*Recipe, bool, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, false, ErrNotFound
	}

	path := RecipesPath + "?slug=" + url.QueryEscape(slug)
	posts, err := client.FetchList[wpPost](ctx, s.client, path, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch recipe %q: %w", slug, err)
	}
	if posts.Fallback {
		return nil, true, nil
	}

	for i := range posts.Data {
		if posts.Data[i].Slug == slug {
			r := posts.Data[i].recipe()
			return &r, false, nil
		}
	}
	return nil, false, ErrNotFound
}

// Articles lists blog posts matching f.
func (s *Service) Articles(ctx context.Context, f Filter) (List[Article], error) {
	posts, err := s.list(ctx, ArticlesPath, f.Category)
	if err != nil {
		return List[Article]{Items: []Article{}}, err
	}

	items := make([]Article, 0, len(posts.Data))
	for i := range posts.Data {
		items = append(items, posts.Data[i].article())
	}
	return List[Article]{
		Items:    filter(items, f.MatchArticle),
		Fallback: posts.Fallback,
		Stale:    posts.Stale,
	}, nil
}

// FAQs lists questions matching f.
func (s *Service) FAQs(ctx context.Context, f Filter) (List[FAQ], error) {
	posts, err := s.list(ctx, FAQsPath, 0)
	if err != nil {
		return List[FAQ]{Items: []FAQ{}}, err
	}

	items := make([]FAQ, 0, len(posts.Data))
	for i := range posts.Data {
		items = append(items, posts.Data[i].faq())
	}
	return List[FAQ]{
		Items:    filter(items, f.MatchFAQ),
		Fallback: posts.Fallback,
		Stale:    posts.Stale,
	}, nil
}

// list fetches one page of a collection. The category is pushed down to
// WordPress as well as filtered locally; search is always local so cached
// pages serve every query.
func (s *Service) list(ctx context.Context, route string, category int) (client.Result[[]wpPost], error) {
	res, err := client.FetchList[wpPost](ctx, s.client, ListPath(route, s.perPage, category), nil)
	if err != nil {
		return res, fmt.Errorf("failed to fetch %s: %w", route, err)
	}
	if res.Fallback {
		s.logger.Warn("content unavailable, serving empty listing", "route", route)
	}
	return res, nil
}

// ListPath returns the API path a listing of route is requested with.
// perPage <= 0 uses DefaultPerPage; category <= 0 requests every category.
func ListPath(route string, perPage, category int) string {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	if category > 0 {
		q.Set("categories", strconv.Itoa(category))
	}
	return route + "?" + q.Encode()
}
