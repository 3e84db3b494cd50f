package discovery_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/discovery"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher/mocks"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// pages serves fixed bodies by URL and 404s everything else.
type pages map[string]string

func (p pages) Fetch(_ context.Context, url string) (*fetcher.Response, error) {
	body, ok := p[url]
	if !ok {
		return nil, &domain.FetchError{Kind: domain.FetchHTTPError, URL: url, StatusCode: http.StatusNotFound}
	}
	return &fetcher.Response{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func card(slug, name, info, thumb string) string {
	return fmt.Sprintf(`<div class="single--card pet--card">
  <a class="card--link" href="/en/animal/%s/">
    <div class="card--image"><img src="%s"></div>
    <h5 class="card--title">%s</h5>
    <div class="pet--infos">%s</div>
  </a>
</div>`, slug, thumb, name, info)
}

func listingPage(cards ...string) string {
	return `<html><body><div class="pet--row">` + strings.Join(cards, "\n") + `</div></body></html>`
}

const (
	dogsURL = "https://www.spca.com/en/adoption/dogs-for-adoption/"
	catsURL = "https://www.spca.com/en/adoption/cats-for-adoption/"
)

func TestPageURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, dogsURL, discovery.PageURL(dogsURL, 1))
	assert.Equal(t, dogsURL+"page/2/", discovery.PageURL(dogsURL, 2))
	assert.Equal(t, dogsURL+"page/3/", discovery.PageURL(strings.TrimSuffix(dogsURL, "/"), 3))
}

func TestListingDiscoverer_PaginatesAndParsesCards(t *testing.T) {
	t.Parallel()

	f := pages{
		dogsURL: listingPage(
			card("rosie-2000064570", "Rosie", "Dog ● Young ● Female ● L", "/img/rosie.jpg"),
			card("max-2000064571", "Max", "Dog ● Adult", "/img/max.jpg"),
		),
		dogsURL + "page/2/": listingPage(card("buddy-2000064572", "Buddy", "Dog", "")),
		dogsURL + "page/3/": listingPage(),
	}

	d := discovery.NewListingDiscoverer(f, discovery.Config{}, logger.NewNop())
	res, err := d.Discover(context.Background(), []discovery.Listing{{URL: dogsURL, Category: "dogs"}})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 3)
	assert.True(t, res.Complete("dogs"))
	assert.Empty(t, res.Failed)

	first := res.Candidates[0]
	assert.Equal(t, "https://www.spca.com/en/animal/rosie-2000064570/", first.URL)
	assert.Equal(t, "dogs", first.Category)
	assert.Equal(t, domain.URLKindRecord, first.Kind)
	assert.Equal(t, domain.ListingHint{
		Name:        "Rosie",
		Species:     "Dog",
		AgeCategory: "Young",
		Sex:         "Female",
		Size:        "L",
		Thumbnail:   "https://www.spca.com/img/rosie.jpg",
	}, first.Hint)

	assert.Equal(t, "Adult", res.Candidates[1].Hint.AgeCategory)
	assert.Empty(t, res.Candidates[1].Hint.Sex)
	assert.Equal(t, "https://www.spca.com/en/animal/buddy-2000064572/", res.Candidates[2].URL)
}

func TestListingDiscoverer_StopsOnMissingPage(t *testing.T) {
	t.Parallel()

	f := pages{dogsURL: listingPage(card("rosie-2000064570", "Rosie", "Dog", ""))}

	d := discovery.NewListingDiscoverer(f, discovery.Config{}, logger.NewNop())
	res, err := d.Discover(context.Background(), []discovery.Listing{{URL: dogsURL, Category: "dogs"}})
	require.NoError(t, err)

	assert.Len(t, res.Candidates, 1)
	assert.True(t, res.Complete("dogs"))
}

func TestListingDiscoverer_StopsWhenPageRepeats(t *testing.T) {
	t.Parallel()

	body := listingPage(card("rosie-2000064570", "Rosie", "Dog", ""))
	f := pages{dogsURL: body, dogsURL + "page/2/": body}

	d := discovery.NewListingDiscoverer(f, discovery.Config{MaxPages: 10}, logger.NewNop())
	res, err := d.Discover(context.Background(), []discovery.Listing{{URL: dogsURL, Category: "dogs"}})
	require.NoError(t, err)

	assert.Len(t, res.Candidates, 1)
}

func TestListingDiscoverer_IsolatesCategoryFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)

	f.EXPECT().Fetch(gomock.Any(), catsURL).
		Return(nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: catsURL, Err: errors.New("connection refused")})
	f.EXPECT().Fetch(gomock.Any(), dogsURL).
		Return(&fetcher.Response{URL: dogsURL, StatusCode: http.StatusOK,
			Body: []byte(listingPage(card("rosie-2000064570", "Rosie", "Dog", "")))}, nil)
	f.EXPECT().Fetch(gomock.Any(), dogsURL+"page/2/").
		Return(&fetcher.Response{URL: dogsURL, StatusCode: http.StatusOK, Body: []byte(listingPage())}, nil)

	d := discovery.NewListingDiscoverer(f, discovery.Config{}, logger.NewNop())
	res, err := d.Discover(context.Background(), []discovery.Listing{
		{URL: catsURL, Category: "cats"},
		{URL: dogsURL, Category: "dogs"},
	})
	require.NoError(t, err)

	assert.Len(t, res.Candidates, 1)
	assert.True(t, res.Complete("dogs"))
	assert.False(t, res.Complete("cats"))
	require.Contains(t, res.Failed, catsURL)

	var fe *domain.FetchError
	require.ErrorAs(t, res.Failed[catsURL], &fe)
	assert.Equal(t, domain.FetchNetwork, fe.Kind)
	assert.False(t, res.AllFailed())
}

func TestListingDiscoverer_SharedCategoryFailsWithAnyListing(t *testing.T) {
	t.Parallel()

	const chiensURL = "https://www.spca.com/fr/adoption/chiens-a-adopter/"
	f := pages{dogsURL: listingPage(card("rosie-2000064570", "Rosie", "Dog", ""))}

	d := discovery.NewListingDiscoverer(f, discovery.Config{}, logger.NewNop())
	res, err := d.Discover(context.Background(), []discovery.Listing{
		{URL: dogsURL, Category: "dogs"},
		{URL: chiensURL, Category: "dogs"},
	})
	require.NoError(t, err)

	assert.Len(t, res.Candidates, 1)
	assert.False(t, res.Complete("dogs"))
	assert.Empty(t, res.CompleteCategories())
	assert.Contains(t, res.Failed, chiensURL)
	assert.NotContains(t, res.Failed, dogsURL)
	assert.False(t, res.AllFailed())
}

func TestListingDiscoverer_DeduplicatesAcrossCategories(t *testing.T) {
	t.Parallel()

	shared := card("rosie-2000064570", "Rosie", "Dog", "")
	f := pages{
		dogsURL: listingPage(shared),
		catsURL: listingPage(shared, card("tom-2000000001", "Tom", "Cat", "")),
	}

	d := discovery.NewListingDiscoverer(f, discovery.Config{}, logger.NewNop())
	res, err := d.Discover(context.Background(), []discovery.Listing{
		{URL: dogsURL, Category: "dogs"},
		{URL: catsURL, Category: "cats"},
	})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "dogs", res.Candidates[0].Category)
	assert.Equal(t, "cats", res.Candidates[1].Category)
}

func TestListingDiscoverer_Idempotent(t *testing.T) {
	t.Parallel()

	f := pages{dogsURL: listingPage(
		card("rosie-2000064570", "Rosie", "Dog", ""),
		card("max-2000064571", "Max", "Dog", ""),
	)}
	d := discovery.NewListingDiscoverer(f, discovery.Config{}, logger.NewNop())
	listings := []discovery.Listing{{URL: dogsURL, Category: "dogs"}}

	a, err := d.Discover(context.Background(), listings)
	require.NoError(t, err)
	b, err := d.Discover(context.Background(), listings)
	require.NoError(t, err)

	assert.Equal(t, a.Candidates, b.Candidates)
}

func TestListingDiscoverer_AllFailed(t *testing.T) {
	t.Parallel()

	d := discovery.NewListingDiscoverer(pages{}, discovery.Config{}, logger.NewNop())
	res, err := d.Discover(context.Background(), []discovery.Listing{{URL: dogsURL, Category: "dogs"}})
	require.NoError(t, err)

	assert.True(t, res.AllFailed())
	assert.Empty(t, res.Candidates)
}

const sitemapIndexURL = "https://www.spca.com/sitemap_index.xml"

const sitemapIndex = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://www.spca.com/page-sitemap.xml</loc></sitemap>
  <sitemap><loc>https://www.spca.com/animal-sitemap.xml</loc></sitemap>
</sitemapindex>`

const pageSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://www.spca.com/en/services/veterinary-clinic/</loc></url>
  <url><loc>https://www.spca.com/en/tips-and-advice/adopting-a-cat/</loc></url>
  <url><loc>https://www.spca.com/en/about-us/</loc></url>
  <url><loc>https://www.spca.com/en/adoption/dogs-for-adoption/</loc></url>
  <url><loc>https://www.spca.com/wp-content/uploads/report.pdf</loc></url>
  <url><loc>https://www.spca.com/en/about-us/</loc></url>
</urlset>`

const animalSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://www.spca.com/en/animal/rosie-2000064570/</loc></url>
</urlset>`

func newCategorizer(t *testing.T) *discovery.Categorizer {
	t.Helper()
	cfg := discovery.Config{}.WithDefaults()
	c, err := discovery.NewCategorizer(cfg.Rules, cfg.DefaultCategory)
	require.NoError(t, err)
	return c
}

func TestSitemapDiscoverer_FollowsIndex(t *testing.T) {
	t.Parallel()

	f := pages{
		sitemapIndexURL:                           sitemapIndex,
		"https://www.spca.com/page-sitemap.xml":   pageSitemap,
		"https://www.spca.com/animal-sitemap.xml": animalSitemap,
	}

	d := discovery.NewSitemapDiscoverer(f, newCategorizer(t), discovery.Config{}, logger.NewNop())
	res, err := d.Discover(context.Background(), sitemapIndexURL)
	require.NoError(t, err)

	got := make(map[string]string)
	for _, c := range res.Candidates {
		assert.Equal(t, domain.URLKindContent, c.Kind)
		got[c.URL] = c.Category
	}
	assert.Equal(t, map[string]string{
		"https://www.spca.com/en/services/veterinary-clinic/":     "service",
		"https://www.spca.com/en/tips-and-advice/adopting-a-cat/": "tips",
		"https://www.spca.com/en/about-us/":                       "general",
	}, got)

	assert.True(t, res.Complete("service"))
	assert.True(t, res.Complete("general"))
	assert.Empty(t, res.Failed)
}

func TestSitemapDiscoverer_ChildFailureLeavesCategoriesIncomplete(t *testing.T) {
	t.Parallel()

	f := pages{
		sitemapIndexURL:                         sitemapIndex,
		"https://www.spca.com/page-sitemap.xml": pageSitemap,
	}

	d := discovery.NewSitemapDiscoverer(f, newCategorizer(t), discovery.Config{}, logger.NewNop())
	res, err := d.Discover(context.Background(), sitemapIndexURL)
	require.NoError(t, err)

	assert.Len(t, res.Candidates, 3)
	assert.False(t, res.Complete("general"))
	assert.Contains(t, res.Failed, discovery.SitemapSource)
}

func TestSitemapDiscoverer_RejectsUnknownDocument(t *testing.T) {
	t.Parallel()

	f := pages{sitemapIndexURL: `<html><body>not a sitemap</body></html>`}

	d := discovery.NewSitemapDiscoverer(f, newCategorizer(t), discovery.Config{}, logger.NewNop())
	res, err := d.Discover(context.Background(), sitemapIndexURL)
	require.NoError(t, err)

	assert.True(t, res.AllFailed())
}

func TestCategorizer_Classify(t *testing.T) {
	t.Parallel()

	c := newCategorizer(t)
	tests := []struct {
		url      string
		category string
		skipped  bool
		kind     domain.URLKind
	}{
		{"https://www.spca.com/en/animal/rosie-2000064570/", "animal", false, domain.URLKindRecord},
		{"https://www.spca.com/fr/animal/moufflin-200034359", "animal", false, domain.URLKindRecord},
		{"https://www.spca.com/fr/adoption/chats-a-adopter/", "adoption_list", true, ""},
		{"https://www.spca.com/fr/services/clinique/", "service", false, domain.URLKindContent},
		{"https://www.spca.com/fr/conseils/chaleur/", "tips", false, domain.URLKindContent},
		{"https://www.spca.com/files/Report.PDF", "ignored", true, ""},
		{"https://www.spca.com/en/my-account/", "ignored", true, ""},
		{"https://www.spca.com/en/donate/", "general", false, domain.URLKindContent},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			got := c.Classify(tt.url)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.skipped, got.Skipped())
			assert.Equal(t, tt.kind, got.Kind)
		})
	}
}

func TestCategorizer_InvalidRule(t *testing.T) {
	t.Parallel()

	_, err := discovery.NewCategorizer([]discovery.CategoryRule{{Category: "x", Action: "content", Patterns: []string{"("}}}, "")
	require.Error(t, err)

	_, err = discovery.NewCategorizer([]discovery.CategoryRule{{Category: "x", Action: "explode"}}, "")
	require.Error(t, err)
}

func TestExtractReference(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2000064570", discovery.ExtractReference("https://www.spca.com/en/animal/rosie-2000064570/"))
	assert.Equal(t, "200034359", discovery.ExtractReference("https://www.spca.com/fr/animal/moufflin-200034359"))
	assert.Empty(t, discovery.ExtractReference("https://www.spca.com/en/about-us/"))
}
