package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/events"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/extractor"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// scrape claims every active URL of the stage's kind, fetches them through
// the bounded pool and, once all fetches are done, extracts and persists
// them one at a time. Jobs scraping the same kind take turns.
func (r *run) scrape(stage scrapeStage) error {
	if r.cancelled() {
		return ErrCancelled
	}

	unlock, err := r.lockKind(stage.kind)
	if err != nil {
		return err
	}
	defer unlock()

	claimed, err := r.o.deps.URLs.ClaimForRun(r.store, stage.kind)
	if err != nil {
		return fmt.Errorf("claim %s urls: %w", stage.kind, err)
	}
	if len(claimed) == 0 {
		r.log.Info("No URLs to scrape", logger.String("kind", string(stage.kind)))
		return nil
	}

	urls := make([]string, len(claimed))
	for i, u := range claimed {
		urls[i] = u.URL
	}

	r.log.Info("Fetching pages",
		logger.String("kind", string(stage.kind)),
		logger.String("mode", string(stage.mode)),
		logger.Int("count", len(urls)),
	)
	results := r.o.deps.Fetcher.FetchAll(r.ctx, stage.mode, urls)

	defer r.flushCounts()
	for i, res := range results {
		if err := r.process(stage, claimed[i], res.Response, res.Err); err != nil {
			return err
		}
		r.tick()
		if r.cancelled() {
			return ErrCancelled
		}
	}

	return nil
}

// lockKind waits until no other job is scraping kind. The wait ends early
// with ErrCancelled when the job is cancelled.
func (r *run) lockKind(kind domain.URLKind) (func(), error) {
	sem := r.o.scraping[kind]
	unlock := func() { sem.Release(1) }

	if sem.TryAcquire(1) {
		return unlock, nil
	}

	r.log.Info("Waiting for another job scraping the same urls", logger.String("kind", string(kind)))
	if err := sem.Acquire(r.ctx, 1); err != nil {
		return nil, ErrCancelled
	}
	return unlock, nil
}

// process handles one fetched URL. Only errors that must abort the job are
// returned; per-URL failures are counted and recorded on the URL.
func (r *run) process(stage scrapeStage, u *domain.DiscoveredURL, resp *fetcher.Response, fetchErr error) error {
	log := r.log.With(logger.URL(u.URL), logger.Category(u.Category))

	if fetchErr != nil {
		if r.cancelled() && errors.Is(fetchErr, context.Canceled) {
			return ErrCancelled
		}
		r.o.deps.Metrics.Fetch(string(stage.mode), fetchOutcome(fetchErr))
		return r.itemFailed(u.URL, fetchErr, log, "Fetch failed")
	}
	r.o.deps.Metrics.Fetch(string(stage.mode), "ok")
	r.job.Fetched++

	if err := r.o.deps.URLs.MarkFetched(r.store, u.URL, u.AttemptCount); err != nil {
		if errors.Is(err, domain.ErrClaimLost) {
			log.Info("URL claimed by another run, skipping")
			return nil
		}
		if domain.IsConnectionLost(err) {
			return err
		}
		return r.itemFailed(u.URL, err, log, "Failed to mark url fetched")
	}

	item, err := stage.extractor.Extract(extractor.Page{
		URL:      u.URL,
		Category: u.Category,
		Body:     resp.Body,
		Hint:     u.Hint,
	})
	if err != nil {
		return r.itemFailed(u.URL, err, log, "Extraction failed")
	}

	action, err := r.o.deps.Items.ApplyItem(r.store, item)
	if err != nil {
		if domain.IsConnectionLost(err) {
			return err
		}
		return r.itemFailed(u.URL, err, log, "Failed to persist item")
	}

	r.job.Record(action)
	r.o.deps.Metrics.ItemChange(string(item.ItemType()), string(action))

	switch action {
	case domain.ChangeCreated:
		r.o.events.Emit(r.store, events.New(events.ItemCreated, r.itemPayload(item, u.Category)))
	case domain.ChangeUpdated:
		r.o.events.Emit(r.store, events.New(events.ItemUpdated, r.itemPayload(item, u.Category)))
	}

	log.Debug("Item processed", logger.ItemRef(item.NaturalKey()), logger.String("action", string(action)))
	return nil
}

// itemFailed counts a per-URL failure and records it on the URL.
func (r *run) itemFailed(url string, cause error, log logger.Logger, msg string) error {
	r.job.Failed++
	log.Warn(msg, logger.Error(cause))

	if err := r.o.deps.URLs.MarkFailed(r.store, url, cause.Error()); err != nil {
		if domain.IsConnectionLost(err) {
			return err
		}
		log.Error("Failed to mark url failed", logger.Error(err))
	}
	return nil
}

func (r *run) itemPayload(item domain.Item, category string) events.ItemPayload {
	return events.ItemPayload{
		JobID:     r.job.ID,
		ItemType:  item.ItemType(),
		Reference: item.NaturalKey(),
		Category:  category,
		SourceURL: item.PageURL(),
	}
}

func fetchOutcome(err error) string {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return "error"
}
