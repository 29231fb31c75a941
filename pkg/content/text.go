package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Text reduces rendered HTML to plain text: tags are dropped, entities
// decoded and whitespace collapsed.
func Text(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.Join(strings.Fields(html), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}

	// Block elements would otherwise run their words together.
	doc.Find("p, br, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return strings.Join(strings.Fields(doc.Text()), " ")
}
