package content

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Recipe is a published recipe (WordPress custom post type "recipe").
type Recipe struct {
	ID          int       `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Content     string    `json:"content,omitempty"`
	Categories  []int     `json:"categories"`
	PetType     string    `json:"pet_type,omitempty"`
	PrepMinutes int       `json:"prep_minutes,omitempty"`
	Link        string    `json:"link,omitempty"`
	Published   time.Time `json:"published,omitzero"`
}

// Article is a blog post.
type Article struct {
	ID         int       `json:"id"`
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	Excerpt    string    `json:"excerpt"`
	Content    string    `json:"content,omitempty"`
	Categories []int     `json:"categories"`
	Link       string    `json:"link,omitempty"`
	Published  time.Time `json:"published,omitzero"`
}

// FAQ is a question and its plain-text answer.
type FAQ struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// List is a catalogue listing. Fallback is set when the content API was
// unavailable and Items is empty; Stale when Items come from an expired
// cache entry.
type List[T any] struct {
	Items    []T  `json:"items"`
	Fallback bool `json:"fallback,omitempty"`
	Stale    bool `json:"stale,omitempty"`
}

// rendered is a WordPress field carrying server-rendered HTML.
type rendered struct {
	Rendered string `json:"rendered"`
}

// wpPost is the subset of the WordPress post schema larder reads.
type wpPost struct {
	ID         int      `json:"id"`
	Slug       string   `json:"slug"`
	Link       string   `json:"link"`
	DateGMT    string   `json:"date_gmt"`
	Title      rendered `json:"title"`
	Excerpt    rendered `json:"excerpt"`
	Content    rendered `json:"content"`
	Categories []int    `json:"categories"`
	ACF        acf      `json:"acf"`
}

// acf holds Advanced Custom Fields values. WordPress sends an empty
// array instead of an object when a post has no fields.
type acf struct {
	PetType     string  `json:"pet_type"`
	PrepMinutes flexInt `json:"prep_minutes"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *acf) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		*a = acf{}
		return nil
	}
	type plain acf
	return json.Unmarshal(data, (*plain)(a))
}

// flexInt accepts a JSON number or a numeric string. Anything else
// decodes to zero.
type flexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (n *flexInt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, _ := strconv.Atoi(s)
		*n = flexInt(v)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*n = 0
		return nil
	}
	*n = flexInt(f)
	return nil
}

// published parses the GMT publication date, which WordPress sends
// without a zone.
func (p *wpPost) published() time.Time {
	t, err := time.Parse("2006-01-02T15:04:05", p.DateGMT)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func (p *wpPost) recipe() Recipe {
	return Recipe{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       Text(p.Title.Rendered),
		Excerpt:     Text(p.Excerpt.Rendered),
		Content:     p.Content.Rendered,
		Categories:  nonNil(p.Categories),
		PetType:     p.ACF.PetType,
		PrepMinutes: int(p.ACF.PrepMinutes),
		Link:        p.Link,
		Published:   p.published(),
	}
}

func (p *wpPost) article() Article {
	return Article{
		ID:         p.ID,
		Slug:       p.Slug,
		Title:      Text(p.Title.Rendered),
		Excerpt:    Text(p.Excerpt.Rendered),
		Content:    p.Content.Rendered,
		Categories: nonNil(p.Categories),
		Link:       p.Link,
		Published:  p.published(),
	}
}

func (p *wpPost) faq() FAQ {
	return FAQ{
		ID:       p.ID,
		Question: Text(p.Title.Rendered),
		Answer:   Text(p.Content.Rendered),
	}
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
