package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/changes"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// RecordExtractor parses a detail page into a Record: an attribute table,
// a description block and an ordered image list.
type RecordExtractor struct {
	sel       RecordSelectors
	reference *regexp.Regexp
}

// NewRecordExtractor compiles the selector set.
func NewRecordExtractor(sel RecordSelectors) (*RecordExtractor, error) {
	sel = sel.WithDefaults()
	re, err := regexp.Compile(sel.ReferencePattern)
	if err != nil {
		return nil, fmt.Errorf("compile reference pattern: %w", err)
	}
	return &RecordExtractor{sel: sel, reference: re}, nil
}

// Extract implements Extractor. A missing table row leaves that attribute
// absent; only a missing container or external reference rejects the page.
func (e *RecordExtractor) Extract(page Page) (domain.Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &domain.ParseError{Kind: domain.ParseMalformedTable, URL: page.URL, Field: "html"}
	}

	container := doc.Find(e.sel.Container).First()
	if container.Length() == 0 {
		return nil, &domain.ParseError{Kind: domain.ParseMalformedTable, URL: page.URL, Field: e.sel.Container}
	}

	attrs := e.extractAttributes(container)
	if name := cleanText(container.Find(e.sel.Name).First().Text()); name != "" {
		attrs[AttrName] = name
	}
	applyHint(attrs, page.Hint)

	ref := attrs[e.sel.ReferenceAttribute]
	if ref == "" {
		ref = e.ReferenceFromURL(page.URL)
	}
	if ref == "" {
		return nil, &domain.ParseError{Kind: domain.ParseMissingRequiredField, URL: page.URL, Field: "external_reference"}
	}
	attrs[e.sel.ReferenceAttribute] = ref

	description := e.extractDescription(container)
	images := e.extractImages(container, page.URL)
	if len(images) == 0 && page.Hint.Thumbnail != "" {
		images = []string{resolveURL(page.URL, page.Hint.Thumbnail)}
	}

	return &domain.Record{
		ExternalReference: ref,
		Category:          page.Category,
		Attributes:        attrs,
		Description:       description,
		Images:            images,
		SourceURL:         page.URL,
		ContentHash:       changes.RecordHash(attrs, description, images),
	}, nil
}

// ReferenceFromURL extracts the reference number embedded in a detail URL.
func (e *RecordExtractor) ReferenceFromURL(pageURL string) string {
	m := e.reference.FindStringSubmatch(pageURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func (e *RecordExtractor) extractAttributes(container *goquery.Selection) domain.Attributes {
	attrs := make(domain.Attributes)

	container.Find(e.sel.TableRow).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find(e.sel.TableCell)
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(cleanText(cells.Eq(0).Text()))
		label = strings.TrimSuffix(label, ":")
		key, ok := e.sel.Labels[strings.TrimSpace(label)]
		if !ok {
			return
		}
		value := cleanText(cells.Eq(1).Text())
		if value == "" {
			return
		}
		if slices.Contains(e.sel.BooleanAttributes, key) {
			value = normalizeBool(value)
		}
		attrs[key] = value
	})

	return attrs
}

// extractDescription returns the first body element following the heading
// whose text contains the description label.
func (e *RecordExtractor) extractDescription(container *goquery.Selection) string {
	label := strings.ToLower(e.sel.DescriptionLabel)
	var description string

	container.Find(e.sel.DescriptionHeading).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(h.Text()), label) {
			return true
		}
		description = cleanText(h.NextAllFiltered(e.sel.DescriptionBody).First().Text())
		return false
	})

	return description
}

// extractImages returns the main image followed by thumbnails, absolute and
// deduplicated in first-seen order.
func (e *RecordExtractor) extractImages(container *goquery.Selection, pageURL string) []string {
	images := container.Find(e.sel.ImagesContainer).First()
	if images.Length() == 0 {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}
		abs := resolveURL(pageURL, src)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}

	images.Find(e.sel.MainImage).First().Each(add)
	images.Find(e.sel.Thumbnails).Each(add)

	return out
}

// applyHint fills attributes the detail page did not provide from the
// listing card.
func applyHint(attrs domain.Attributes, hint domain.ListingHint) {
	fill := func(key, value string) {
		value = cleanText(value)
		if value != "" && attrs[key] == "" {
			attrs[key] = value
		}
	}
	fill(AttrName, hint.Name)
	fill(AttrSpecies, hint.Species)
	fill(AttrAgeCategory, hint.AgeCategory)
	fill(AttrSex, hint.Sex)
	fill(AttrSize, hint.Size)
}

func normalizeBool(v string) string {
	switch strings.ToLower(v) {
	case "yes", "oui", "true", "y":
		return "true"
	default:
		return "false"
	}
}
