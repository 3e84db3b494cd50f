package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

const urlSelectColumns = `url, category, kind, status, discovered_at, last_attempt_at,
	attempt_count, content_hash, last_error, hint`

// UpsertStats counts the outcome of a discovery upsert.
type UpsertStats struct {
	Created   int
	Unchanged int
}

// URLRepository handles database operations for discovered URLs.
type URLRepository struct {
	db *sqlx.DB
}

// NewURLRepository creates a new URL repository.
func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Upsert stores discovered URLs. Known URLs keep their status and attempt
// history but take the latest category and hint; removed URLs that
// reappear go back to pending.
func (r *URLRepository) Upsert(ctx context.Context, urls []domain.DiscoveredURL) (UpsertStats, error) {
	query := `
		INSERT INTO discovered_urls (url, category, kind, status, hint)
		VALUES ($1, $2, $3, 'pending', $4)
		ON CONFLICT (url) DO UPDATE SET
			category = EXCLUDED.category,
			kind = EXCLUDED.kind,
			hint = EXCLUDED.hint,
			status = CASE WHEN discovered_urls.status = 'removed' THEN 'pending' ELSE discovered_urls.status END
		RETURNING (xmax = 0) AS inserted
	`

	var stats UpsertStats
	err := withTx(ctx, r.db, "upsert discovered urls", func(tx *sqlx.Tx) error {
		for i := range urls {
			u := &urls[i]
			var inserted bool
			if err := tx.QueryRowContext(ctx, query, u.URL, u.Category, u.Kind, u.Hint).Scan(&inserted); err != nil {
				return fmt.Errorf("failed to upsert url %s: %w", u.URL, err)
			}
			if inserted {
				stats.Created++
			} else {
				stats.Unchanged++
			}
		}
		return nil
	})
	if err != nil {
		return UpsertStats{}, err
	}

	return stats, nil
}

// ClaimForRun resets every active URL of kind to pending, bumps its attempt
// count and returns the claimed rows. Each run re-fetches parsed URLs too,
// so attempt_count counts runs and doubles as the claim token MarkFetched
// checks.
func (r *URLRepository) ClaimForRun(ctx context.Context, kind domain.URLKind) ([]*domain.DiscoveredURL, error) {
	query := `
		UPDATE discovered_urls
		SET status = 'pending', attempt_count = attempt_count + 1, last_attempt_at = NOW()
		WHERE kind = $1 AND status <> 'removed'
		RETURNING ` + urlSelectColumns

	var urls []*domain.DiscoveredURL
	if err := r.db.SelectContext(ctx, &urls, query, kind); err != nil {
		return nil, classify("claim urls", fmt.Errorf("failed to claim urls: %w", err))
	}

	if urls == nil {
		urls = []*domain.DiscoveredURL{}
	}

	return urls, nil
}

// MarkFetched records a successful fetch for the claim made at attempt. It
// returns domain.ErrClaimLost when another run claimed the URL since.
func (r *URLRepository) MarkFetched(ctx context.Context, url string, attempt int) error {
	query := `
		UPDATE discovered_urls
		SET status = 'fetched', last_error = NULL
		WHERE url = $1 AND attempt_count = $2 AND status IN (` + statusesInto(domain.URLStatusFetched) + `)
	`

	result, err := r.db.ExecContext(ctx, query, url, attempt)
	err = execRequireRows(result, err, fmt.Errorf("%w: %s", domain.ErrClaimLost, url))
	if errors.Is(err, domain.ErrClaimLost) {
		return err
	}
	if err != nil {
		return classify("mark url fetched", err)
	}
	return nil
}

// MarkFailed records a permanent failure for this run.
func (r *URLRepository) MarkFailed(ctx context.Context, url, reason string) error {
	query := `
		UPDATE discovered_urls
		SET status = 'failed', last_error = $2
		WHERE url = $1 AND status IN (` + statusesInto(domain.URLStatusFailed) + `)
	`

	if _, err := r.db.ExecContext(ctx, query, url, reason); err != nil {
		return classify("mark url failed", fmt.Errorf("failed to mark url failed: %w", err))
	}
	return nil
}

// GetByURL retrieves one discovered URL.
func (r *URLRepository) GetByURL(ctx context.Context, url string) (*domain.DiscoveredURL, error) {
	query := `SELECT ` + urlSelectColumns + ` FROM discovered_urls WHERE url = $1`

	var u domain.DiscoveredURL
	if err := r.db.GetContext(ctx, &u, query, url); err != nil {
		return nil, notFoundOr(err, domain.ErrItemNotFound, "get url")
	}
	return &u, nil
}

// List returns URLs of kind, optionally filtered by status, newest first.
func (r *URLRepository) List(ctx context.Context, kind domain.URLKind, status domain.URLStatus, limit int) ([]*domain.DiscoveredURL, error) {
	query := `
		SELECT ` + urlSelectColumns + `
		FROM discovered_urls
		WHERE kind = $1 AND ($2 = '' OR status = $2)
		ORDER BY discovered_at DESC, url
		LIMIT $3
	`

	var urls []*domain.DiscoveredURL
	if err := r.db.SelectContext(ctx, &urls, query, kind, string(status), limit); err != nil {
		return nil, classify("list urls", fmt.Errorf("failed to list urls: %w", err))
	}
	if urls == nil {
		urls = []*domain.DiscoveredURL{}
	}
	return urls, nil
}

// CountByStatus returns URL counts per kind and status.
func (r *URLRepository) CountByStatus(ctx context.Context) (map[domain.URLKind]map[domain.URLStatus]int, error) {
	query := `SELECT kind, status, COUNT(*) AS count FROM discovered_urls GROUP BY kind, status`

	var rows []struct {
		Kind   domain.URLKind   `db:"kind"`
		Status domain.URLStatus `db:"status"`
		Count  int              `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, classify("count urls", fmt.Errorf("failed to count urls: %w", err))
	}

	counts := make(map[domain.URLKind]map[domain.URLStatus]int)
	for _, row := range rows {
		if counts[row.Kind] == nil {
			counts[row.Kind] = make(map[domain.URLStatus]int)
		}
		counts[row.Kind][row.Status] = row.Count
	}
	return counts, nil
}

// markRemoved flags URLs of kind in categories that are not in seen and
// returns their URLs.
func markRemoved(ctx context.Context, tx *sqlx.Tx, kind domain.URLKind, categories, seen []string) ([]string, error) {
	query := `
		UPDATE discovered_urls
		SET status = 'removed'
		WHERE kind = $1
		  AND category = ANY($2)
		  AND status IN (` + statusesInto(domain.URLStatusRemoved) + `)
		  AND NOT (url = ANY($3))
		RETURNING url
	`

	var removed []string
	if err := tx.SelectContext(ctx, &removed, query, kind, pq.Array(categories), pq.Array(seen)); err != nil {
		return nil, fmt.Errorf("failed to mark urls removed: %w", err)
	}
	return removed, nil
}
