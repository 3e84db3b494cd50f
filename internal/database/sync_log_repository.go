package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

const syncLogSelectColumns = `id, item_reference, item_type, action, content_hash_at_sync,
	synced_at, result, external_index_id, error_message`

// IndexedRef is an item whose latest successful index call left it in the index.
type IndexedRef struct {
	ItemType        domain.ItemType `db:"item_type"`
	ItemReference   string          `db:"item_reference"`
	ExternalIndexID string          `db:"external_index_id"`
}

// SyncLogRepository handles the append-only sync log.
type SyncLogRepository struct {
	db *sqlx.DB
}

// NewSyncLogRepository creates a new sync log repository.
func NewSyncLogRepository(db *sqlx.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Append writes a log entry and fills its ID and timestamp.
func (r *SyncLogRepository) Append(ctx context.Context, entry *domain.SyncLogEntry) error {
	query := `
		INSERT INTO sync_log (item_reference, item_type, action, content_hash_at_sync, result,
		                      external_index_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, synced_at
	`

	err := r.db.QueryRowContext(ctx, query,
		entry.ItemReference, entry.ItemType, entry.Action, entry.ContentHashAtSync,
		entry.Result, entry.ExternalIndexID, entry.ErrorMessage,
	).Scan(&entry.ID, &entry.SyncedAt)
	if err != nil {
		return classify("append sync log", fmt.Errorf("failed to append sync log: %w", err))
	}
	return nil
}

// LatestSuccess returns the most recent successful entry for an item, or
// nil when the item was never synced.
func (r *SyncLogRepository) LatestSuccess(ctx context.Context, itemType domain.ItemType, ref string) (*domain.SyncLogEntry, error) {
	query := `
		SELECT ` + syncLogSelectColumns + `
		FROM sync_log
		WHERE item_type = $1 AND item_reference = $2 AND result = 'success'
		ORDER BY synced_at DESC, id DESC
		LIMIT 1
	`

	var entry domain.SyncLogEntry
	if err := r.db.GetContext(ctx, &entry, query, itemType, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil // absence is a valid answer
		}
		return nil, classify("latest sync", fmt.Errorf("failed to get latest sync: %w", err))
	}
	return &entry, nil
}

// ListForItem returns an item's log, newest first.
func (r *SyncLogRepository) ListForItem(ctx context.Context, itemType domain.ItemType, ref string, limit int) ([]*domain.SyncLogEntry, error) {
	query := `
		SELECT ` + syncLogSelectColumns + `
		FROM sync_log
		WHERE item_type = $1 AND item_reference = $2
		ORDER BY synced_at DESC, id DESC
		LIMIT $3
	`

	var entries []*domain.SyncLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, itemType, ref, limit); err != nil {
		return nil, classify("list sync log", fmt.Errorf("failed to list sync log: %w", err))
	}
	if entries == nil {
		entries = []*domain.SyncLogEntry{}
	}
	return entries, nil
}

// IndexedRefs returns every item whose latest successful entry is an upsert,
// i.e. what the external index should currently hold.
func (r *SyncLogRepository) IndexedRefs(ctx context.Context) ([]IndexedRef, error) {
	query := `
		SELECT item_type, item_reference, external_index_id
		FROM (
			SELECT DISTINCT ON (item_type, item_reference)
			       item_type, item_reference, action, external_index_id
			FROM sync_log
			WHERE result = 'success'
			ORDER BY item_type, item_reference, synced_at DESC, id DESC
		) latest
		WHERE action = 'upsert' AND external_index_id IS NOT NULL
		ORDER BY item_type, item_reference
	`

	var refs []IndexedRef
	if err := r.db.SelectContext(ctx, &refs, query); err != nil {
		return nil, classify("indexed refs", fmt.Errorf("failed to list indexed refs: %w", err))
	}
	return refs, nil
}

// LastSyncByType returns the time of the latest log entry per item type.
func (r *SyncLogRepository) LastSyncByType(ctx context.Context) (map[domain.ItemType]time.Time, error) {
	query := `SELECT item_type, MAX(synced_at) AS synced_at FROM sync_log GROUP BY item_type`

	var rows []struct {
		ItemType domain.ItemType `db:"item_type"`
		SyncedAt time.Time       `db:"synced_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, classify("last sync", fmt.Errorf("failed to get last sync: %w", err))
	}

	last := make(map[domain.ItemType]time.Time, len(rows))
	for _, row := range rows {
		last[row.ItemType] = row.SyncedAt
	}
	return last, nil
}
