package content

import (
	"slices"
	"strings"
)

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	// Search matches title or excerpt, case-insensitively.
	Search string

	// Category is a WordPress category ID.
	Category int

	// PetType matches the recipe's pet type, case-insensitively.
	PetType string
}

// IsZero reports whether f matches everything.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

func (f Filter) matchText(title, excerpt string) bool {
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(title), needle) ||
		strings.Contains(strings.ToLower(excerpt), needle)
}

func (f Filter) matchCategory(categories []int) bool {
	return f.Category == 0 || slices.Contains(categories, f.Category)
}

// MatchRecipe reports whether r passes every filter field.
func (f Filter) MatchRecipe(r Recipe) bool {
	if f.PetType != "" && !strings.EqualFold(f.PetType, r.PetType) {
		return false
	}
	return f.matchCategory(r.Categories) && f.matchText(r.Title, r.Excerpt)
}

// MatchArticle reports whether a passes the search and category fields.
// PetType does not apply to articles.
func (f Filter) MatchArticle(a Article) bool {
	return f.matchCategory(a.Categories) && f.matchText(a.Title, a.Excerpt)
}

// MatchFAQ reports whether q passes the search field.
func (f Filter) MatchFAQ(q FAQ) bool {
	return f.matchText(q.Question, q.Answer)
}

func filter[T any](items []T, match func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out
}
