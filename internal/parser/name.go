package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var brandedTitle = regexp.MustCompile(`^(.+?)\s*-\s*BBC Weather`)

// ResolveDisplayName extracts a place name from page metadata. It tries the
// document title, then the og:title meta tag, then the first element with a
// data-location-name attribute. It never fails; ok is false when nothing matched.
func ResolveDisplayName(markup string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", false
	}
	return displayName(doc)
}

func displayName(doc *goquery.Document) (string, bool) {
	if name, ok := matchBranded(doc.Find("title").First().Text()); ok {
		return name, true
	}
	if content, exists := doc.Find(`meta[property="og:title"]`).First().Attr("content"); exists {
		if name, ok := matchBranded(content); ok {
			return name, true
		}
	}
	if name, exists := doc.Find("[data-location-name]").First().Attr("data-location-name"); exists {
		return name, true
	}
	return "", false
}

func matchBranded(s string) (string, bool) {
	m := brandedTitle.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	return name, name != ""
}
