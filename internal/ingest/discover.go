package ingest

import (
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/discovery"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/events"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// discover enumerates listings and the sitemap, records the candidates and
// tombstones what disappeared from fully enumerated categories.
func (r *run) discover() error {
	listings, err := r.o.deps.Listings.Discover(r.ctx, r.o.cfg.Listings)
	if err != nil {
		return r.interrupted(err)
	}

	var sitemap *discovery.Result
	if r.o.deps.Sitemap != nil && r.o.cfg.SitemapURL != "" {
		sitemap, err = r.o.deps.Sitemap.Discover(r.ctx, r.o.cfg.SitemapURL)
		if err != nil {
			return r.interrupted(err)
		}
	}

	// Completeness is per source: listings are authoritative for records,
	// the sitemap for content.
	recordCategories := listings.CompleteCategories()
	var contentCategories []string
	if sitemap != nil {
		contentCategories = sitemap.CompleteCategories()
	}

	all := listings
	all.Merge(sitemap)

	failures := make([]error, 0, len(all.Failed))
	for source, ferr := range all.Failed {
		r.job.Failed++
		failures = append(failures, ferr)
		r.log.Warn("Discovery source failed", logger.String("source", source), logger.Error(ferr))
	}
	if all.AllFailed() {
		return fmt.Errorf("%w: %w", errDiscoveryUnreachable, errors.Join(failures...))
	}

	urls := make([]domain.DiscoveredURL, 0, len(all.Candidates))
	seen := map[domain.URLKind][]string{}
	for _, c := range all.Candidates {
		urls = append(urls, domain.DiscoveredURL{
			URL:      c.URL,
			Category: c.Category,
			Kind:     c.Kind,
			Hint:     c.Hint,
		})
		seen[c.Kind] = append(seen[c.Kind], c.URL)
	}

	stats, err := r.o.deps.URLs.Upsert(r.store, urls)
	if err != nil {
		return fmt.Errorf("record discovered urls: %w", err)
	}
	r.job.Discovered += len(urls)
	// A full job counts item changes only; each page would otherwise be
	// counted once as a URL and again as an item.
	if r.job.JobType == domain.JobTypeURLDiscovery {
		r.job.Created += stats.Created
		r.job.Unchanged += stats.Unchanged
	}

	r.log.Info("Discovery complete",
		logger.Int("records", len(seen[domain.URLKindRecord])),
		logger.Int("content", len(seen[domain.URLKindContent])),
		logger.Int("new", stats.Created),
		logger.Strings("complete_categories", append(recordCategories, contentCategories...)),
	)

	if err := r.tombstone(domain.URLKindRecord, recordCategories, seen[domain.URLKindRecord]); err != nil {
		return err
	}
	if err := r.tombstone(domain.URLKindContent, contentCategories, seen[domain.URLKindContent]); err != nil {
		return err
	}

	r.flushCounts()
	return nil
}

func (r *run) tombstone(kind domain.URLKind, categories, seen []string) error {
	keys, err := r.o.deps.Items.TombstoneMissing(r.store, kind, categories, seen)
	if err != nil {
		return fmt.Errorf("tombstone missing %s items: %w", kind, err)
	}
	if len(keys) == 0 {
		return nil
	}

	itemType := itemTypeFor(kind)
	for _, key := range keys {
		r.o.events.Emit(r.store, events.New(events.ItemTombstoned, events.ItemPayload{
			JobID:     r.job.ID,
			ItemType:  itemType,
			Reference: key,
		}))
	}
	r.o.deps.Metrics.Tombstoned(string(kind), len(keys))
	r.log.Info("Tombstoned missing items", logger.ItemType(string(itemType)), logger.Int("count", len(keys)))
	return nil
}
