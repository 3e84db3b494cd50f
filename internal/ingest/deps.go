package ingest

import (
	"context"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/discovery"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
)

// JobStore persists ingestion jobs.
type JobStore interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
	UpdateCounts(ctx context.Context, id string, counts domain.JobCounts) error
	Finish(ctx context.Context, job *domain.IngestionJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestionJob, error)
	List(ctx context.Context, jobType domain.JobType, limit int) ([]*domain.IngestionJob, error)
	FailOrphaned(ctx context.Context, reason string) (int, error)
}

// URLStore persists discovered URLs.
type URLStore interface {
	Upsert(ctx context.Context, urls []domain.DiscoveredURL) (database.UpsertStats, error)
	ClaimForRun(ctx context.Context, kind domain.URLKind) ([]*domain.DiscoveredURL, error)
	MarkFetched(ctx context.Context, url string, attempt int) error
	MarkFailed(ctx context.Context, url, reason string) error
}

// ItemStore applies change detection and tombstoning.
type ItemStore interface {
	ApplyItem(ctx context.Context, item domain.Item) (domain.ChangeAction, error)
	TombstoneMissing(ctx context.Context, kind domain.URLKind, categories, seen []string) ([]string, error)
}

// ListingSource enumerates record URLs from category listings.
type ListingSource interface {
	Discover(ctx context.Context, listings []discovery.Listing) (*discovery.Result, error)
}

// SitemapSource enumerates general pages from a sitemap.
type SitemapSource interface {
	Discover(ctx context.Context, sitemapURL string) (*discovery.Result, error)
}

// PageFetcher fetches a batch of URLs with a strategy and returns once every
// fetch has finished.
type PageFetcher interface {
	FetchAll(ctx context.Context, mode fetcher.Mode, urls []string) []fetcher.Result
}

var (
	_ JobStore      = (*database.JobRepository)(nil)
	_ URLStore      = (*database.URLRepository)(nil)
	_ ItemStore     = (*database.Store)(nil)
	_ ListingSource = (*discovery.ListingDiscoverer)(nil)
	_ SitemapSource = (*discovery.SitemapDiscoverer)(nil)
	_ PageFetcher   = (*fetcher.Set)(nil)
)
