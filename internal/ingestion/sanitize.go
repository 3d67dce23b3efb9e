package ingestion

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	markupPattern     = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// sanitizeText strips markup that extraction sometimes carries over from
// scraped article bodies, then collapses whitespace.
func sanitizeText(s string) string {
	if markupPattern.MatchString(s) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
