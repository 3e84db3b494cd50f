package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// ListingDiscoverer pages through category listings and collects the
// detail link and card summary of every record.
type ListingDiscoverer struct {
	fetcher fetcher.Fetcher
	cfg     Config
	log     logger.Logger
}

// NewListingDiscoverer creates a listing discoverer.
func NewListingDiscoverer(f fetcher.Fetcher, cfg Config, log logger.Logger) *ListingDiscoverer {
	return &ListingDiscoverer{fetcher: f, cfg: cfg.WithDefaults(), log: log}
}

type categoryOutcome struct {
	candidates []Candidate
	err        error
}

// Discover enumerates every listing concurrently. A listing that cannot be
// fetched fails its category only, and a category is complete only when all
// of its listings were enumerated. The error is non-nil only when ctx ends.
func (d *ListingDiscoverer) Discover(ctx context.Context, listings []Listing) (*Result, error) {
	if listings == nil {
		listings = d.cfg.Listings
	}

	outcomes := make([]categoryOutcome, len(listings))

	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Concurrency)
	for i, l := range listings {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			candidates, err := d.discoverCategory(ctx, l)
			outcomes[i] = categoryOutcome{candidates: candidates, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in listing order so the result does not depend on scheduling.
	res := newResult()
	for i, l := range listings {
		o := outcomes[i]
		for _, c := range o.candidates {
			res.add(c)
		}
		if o.err != nil {
			res.markFailed(l.URL, l.Category, o.err)
			d.log.Warn("Listing discovery failed",
				logger.Category(l.Category),
				logger.URL(l.URL),
				logger.Error(o.err),
			)
			continue
		}
		res.markComplete(l.Category)
	}

	return res, nil
}

// discoverCategory walks pages until one has no cards, a later page is
// missing, or MaxPages is reached. Failing on a later page returns the
// cards found so far along with the error.
func (d *ListingDiscoverer) discoverCategory(ctx context.Context, l Listing) ([]Candidate, error) {
	var out []Candidate
	seen := make(map[string]bool)

	for page := 1; page <= d.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pageURL := PageURL(l.URL, page)
		resp, err := d.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if page > 1 && fetcher.IsNotFound(err) {
				break
			}
			return out, fmt.Errorf("fetch listing page %d: %w", page, err)
		}

		cards, err := d.parseCards(pageURL, l.Category, resp.Body)
		if err != nil {
			return out, err
		}

		added := 0
		for _, c := range cards {
			if seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			out = append(out, c)
			added++
		}

		d.log.Debug("Listing page parsed",
			logger.Category(l.Category),
			logger.URL(pageURL),
			logger.Int("cards", len(cards)),
		)

		// Sites that ignore the page segment serve page 1 again.
		if added == 0 {
			break
		}
	}

	return out, nil
}

// parseCards extracts one candidate per card that has a detail link.
func (d *ListingDiscoverer) parseCards(pageURL, category string, body []byte) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ParseError{Kind: domain.ParseMalformedTable, URL: pageURL, Field: "html"}
	}

	sel := d.cfg.Cards
	scope := doc.Find(sel.Container)
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	var cards []Candidate
	scope.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find(sel.Link).First().Attr("href")
		if !ok {
			href, ok = card.Find("a[href]").First().Attr("href")
		}
		link := resolve(pageURL, href)
		if !ok || link == "" {
			return
		}
		cards = append(cards, Candidate{
			URL:      link,
			Category: category,
			Kind:     domain.URLKindRecord,
			Hint:     d.parseHint(pageURL, card),
		})
	})

	return cards, nil
}

func (d *ListingDiscoverer) parseHint(pageURL string, card *goquery.Selection) domain.ListingHint {
	sel := d.cfg.Cards
	hint := domain.ListingHint{
		Name: collapse(card.Find(sel.Name).First().Text()),
	}

	info := collapse(card.Find(sel.Info).First().Text())
	if info != "" {
		parts := strings.Split(info, sel.InfoSeparator)
		fields := []*string{&hint.Species, &hint.AgeCategory, &hint.Sex, &hint.Size}
		for i, p := range parts {
			if i >= len(fields) {
				break
			}
			*fields[i] = strings.TrimSpace(p)
		}
	}

	img := card.Find(sel.Thumbnail).First()
	src, ok := img.Attr("data-src")
	if !ok || src == "" {
		src, _ = img.Attr("src")
	}
	hint.Thumbnail = resolve(pageURL, src)

	return hint
}

// PageURL returns the URL of page n of a listing. Page 1 is the listing
// itself; later pages use the /page/N/ convention.
func PageURL(listingURL string, n int) string {
	base := strings.TrimRight(listingURL, "/")
	if n <= 1 {
		return base + "/"
	}
	return fmt.Sprintf("%s/page/%d/", base, n)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base, ref string) string {
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
