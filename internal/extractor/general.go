package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/changes"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// blockSelector lists the elements rendered as separate markdown blocks.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, dt, dd"

// GeneralExtractor reduces a free-form page to markdown text that keeps the
// heading structure and drops site chrome.
type GeneralExtractor struct {
	sel GeneralSelectors
}

// NewGeneralExtractor creates a general extractor.
func NewGeneralExtractor(sel GeneralSelectors) *GeneralExtractor {
	return &GeneralExtractor{sel: sel.WithDefaults()}
}

// Extract implements Extractor. The same HTML always yields the same text.
func (e *GeneralExtractor) Extract(page Page) (domain.Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &domain.ParseError{Kind: domain.ParseMalformedTable, URL: page.URL, Field: "html"}
	}

	doc.Find(strings.Join(e.sel.Strip, ", ")).Remove()
	title := pageTitle(doc)

	root := e.mainContent(doc)
	content := renderMarkdown(root)
	if content == "" {
		return nil, &domain.ParseError{Kind: domain.ParseMissingRequiredField, URL: page.URL, Field: "content"}
	}
	if title == "" {
		title = page.URL
	}

	text := FormatDocument(title, page.URL, content)

	return &domain.ContentItem{
		SourceURL:      page.URL,
		Category:       page.Category,
		Title:          title,
		NormalizedText: text,
		ContentHash:    changes.ContentHash(text),
	}, nil
}

// FormatDocument renders the stored document layout for a content page.
func FormatDocument(title, sourceURL, content string) string {
	return fmt.Sprintf("# %s\n\nSource: %s\n\n---\n\n%s", title, sourceURL, content)
}

func (e *GeneralExtractor) mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range e.sel.Main {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return doc.Selection
}

// pageTitle prefers the first h1 left after stripping chrome, then <title>,
// then og:title.
func pageTitle(doc *goquery.Document) string {
	if h1 := cleanText(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if t := cleanText(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		return cleanText(og)
	}
	return ""
}

// renderMarkdown emits one block per outermost block element. Nested blocks
// are part of their ancestor's text and are not repeated.
func renderMarkdown(root *goquery.Selection) string {
	var blocks []string

	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		text := cleanText(s.Text())
		if text == "" {
			return
		}
		blocks = append(blocks, formatBlock(goquery.NodeName(s), text))
	})

	if len(blocks) == 0 {
		return cleanText(root.Text())
	}
	return strings.Join(blocks, "\n\n")
}

func formatBlock(tag, text string) string {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(tag[1] - '0')
		return strings.Repeat("#", level) + " " + text
	case "li", "dd":
		return "- " + text
	case "blockquote":
		return "> " + text
	default:
		return text
	}
}
