// Package content maps the WordPress REST resources served through the
// proxy into the site's catalogue: recipes, articles and FAQs.
//
// Rendered HTML fields are reduced to plain text for titles and excerpts.
// A fallback from the proxy yields empty listings, never an error, so the
// catalogue pages always render.
package content
