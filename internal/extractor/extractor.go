// Package extractor turns fetched HTML into persisted items. Two variants
// exist: RecordExtractor for structured detail pages and GeneralExtractor for
// free-form pages. Markup assumptions live in the selector structs.
package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// Page is a fetched page handed to an extractor.
type Page struct {
	URL      string
	Category string
	Body     []byte
	Hint     domain.ListingHint
}

// Extractor converts a page into an item, or returns a *domain.ParseError.
type Extractor interface {
	Extract(page Page) (domain.Item, error)
}

var whitespace = regexp.MustCompile(`\s+`)

// cleanText collapses runs of whitespace and trims the ends.
func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// resolveURL makes ref absolute against base. Unparseable refs are returned
// as-is.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
