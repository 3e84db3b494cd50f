package discovery

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// SitemapSource is the Result.Failed key for sitemap failures.
const SitemapSource = "sitemap"

// xmlURLSet is the root element of a standard sitemap XML file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

// xmlURL is a single <url> entry inside a <urlset>.
type xmlURL struct {
	Loc string `xml:"loc"`
}

// xmlSitemapIndex is the root element of a sitemap index XML file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

// xmlSitemap is a single <sitemap> entry inside a <sitemapindex>.
type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// sitemapDoc is either an index (Children set) or a urlset (Locs set).
type sitemapDoc struct {
	Children []string
	Locs     []string
}

// parseSitemap detects the root element and decodes accordingly.
func parseSitemap(body []byte) (sitemapDoc, error) {
	root, err := rootElement(body)
	if err != nil {
		return sitemapDoc{}, err
	}

	switch root {
	case "sitemapindex":
		var index xmlSitemapIndex
		if err := xml.Unmarshal(body, &index); err != nil {
			return sitemapDoc{}, fmt.Errorf("parse sitemap index: %w", err)
		}
		doc := sitemapDoc{Children: make([]string, 0, len(index.Sitemaps))}
		for _, s := range index.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				doc.Children = append(doc.Children, loc)
			}
		}
		return doc, nil
	case "urlset":
		var urlset xmlURLSet
		if err := xml.Unmarshal(body, &urlset); err != nil {
			return sitemapDoc{}, fmt.Errorf("parse sitemap: %w", err)
		}
		doc := sitemapDoc{Locs: make([]string, 0, len(urlset.URLs))}
		for _, u := range urlset.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				doc.Locs = append(doc.Locs, loc)
			}
		}
		return doc, nil
	default:
		return sitemapDoc{}, fmt.Errorf("unexpected sitemap root element %q", root)
	}
}

func rootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", errors.New("empty sitemap document")
		}
		if err != nil {
			return "", fmt.Errorf("read sitemap: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// SitemapDiscoverer enumerates general pages from a sitemap. Record detail
// URLs are left to the listing discoverer, which also captures their hints.
type SitemapDiscoverer struct {
	fetcher     fetcher.Fetcher
	categorizer *Categorizer
	cfg         Config
	log         logger.Logger
}

// NewSitemapDiscoverer creates a sitemap discoverer.
func NewSitemapDiscoverer(f fetcher.Fetcher, c *Categorizer, cfg Config, log logger.Logger) *SitemapDiscoverer {
	return &SitemapDiscoverer{fetcher: f, categorizer: c, cfg: cfg.WithDefaults(), log: log}
}

// Discover walks the sitemap at sitemapURL and its children. When any
// sitemap fails no content category is complete. The error is non-nil only
// when ctx ends.
func (d *SitemapDiscoverer) Discover(ctx context.Context, sitemapURL string) (*Result, error) {
	if sitemapURL == "" {
		sitemapURL = d.cfg.SitemapURL
	}

	res := newResult()
	queue := []string{sitemapURL}
	visited := map[string]bool{sitemapURL: true}
	var failures []error

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		doc, err := d.fetchSitemap(ctx, current)
		if err != nil {
			failures = append(failures, err)
			d.log.Warn("Sitemap fetch failed", logger.URL(current), logger.Error(err))
			continue
		}

		for _, child := range doc.Children {
			if visited[child] {
				continue
			}
			if len(visited) >= d.cfg.MaxSitemaps {
				d.log.Warn("Sitemap limit reached, skipping child",
					logger.URL(child),
					logger.Int("max_sitemaps", d.cfg.MaxSitemaps),
				)
				failures = append(failures, fmt.Errorf("sitemap limit %d reached", d.cfg.MaxSitemaps))
				continue
			}
			visited[child] = true
			queue = append(queue, child)
		}

		for _, loc := range doc.Locs {
			cls := d.categorizer.Classify(loc)
			if cls.Kind != domain.URLKindContent {
				continue
			}
			res.add(Candidate{URL: loc, Category: cls.Category, Kind: domain.URLKindContent})
		}
	}

	if len(failures) > 0 {
		res.markFailed(SitemapSource, "", errors.Join(failures...))
		return res, nil
	}
	for _, category := range d.categorizer.ContentCategories() {
		res.markComplete(category)
	}

	d.log.Info("Sitemap discovery finished",
		logger.URL(sitemapURL),
		logger.Int("sitemaps", len(visited)),
		logger.Int("urls", len(res.Candidates)),
	)
	return res, nil
}

func (d *SitemapDiscoverer) fetchSitemap(ctx context.Context, u string) (sitemapDoc, error) {
	resp, err := d.fetcher.Fetch(ctx, u)
	if err != nil {
		return sitemapDoc{}, err
	}
	doc, err := parseSitemap(resp.Body)
	if err != nil {
		return sitemapDoc{}, fmt.Errorf("%s: %w", u, err)
	}
	return doc, nil
}
