package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

const contentSelectColumns = `source_url, category, title, normalized_text, content_hash,
	sync_status, tombstoned_at, created_at, updated_at`

// ContentRepository handles database operations for general content items.
type ContentRepository struct {
	db *sqlx.DB
	itemTable
}

// NewContentRepository creates a new content repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{
		db:        db,
		itemTable: itemTable{db: db, table: "content_items", keyCol: "source_url"},
	}
}

// GetByURL retrieves a content item by its source URL.
func (r *ContentRepository) GetByURL(ctx context.Context, sourceURL string) (*domain.ContentItem, error) {
	query := `SELECT ` + contentSelectColumns + ` FROM content_items WHERE source_url = $1`

	var item domain.ContentItem
	if err := r.db.GetContext(ctx, &item, query, sourceURL); err != nil {
		return nil, notFoundOr(err, domain.ErrItemNotFound, "get content item")
	}
	return &item, nil
}

// ListPendingSync returns live content items whose index copy may be out of date.
func (r *ContentRepository) ListPendingSync(ctx context.Context) ([]*domain.ContentItem, error) {
	query := `
		SELECT ` + contentSelectColumns + `
		FROM content_items
		WHERE sync_status = ANY($1) AND tombstoned_at IS NULL
		ORDER BY updated_at, source_url
	`

	var items []*domain.ContentItem
	if err := r.db.SelectContext(ctx, &items, query, pendingStatuses()); err != nil {
		return nil, classify("list pending content", fmt.Errorf("failed to list pending content: %w", err))
	}
	return items, nil
}

// ListTombstoned returns content items awaiting removal from the index.
func (r *ContentRepository) ListTombstoned(ctx context.Context) ([]*domain.ContentItem, error) {
	query := `
		SELECT ` + contentSelectColumns + `
		FROM content_items
		WHERE tombstoned_at IS NOT NULL
		ORDER BY tombstoned_at, source_url
	`

	var items []*domain.ContentItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, classify("list tombstoned content", fmt.Errorf("failed to list tombstoned content: %w", err))
	}
	return items, nil
}

// SetSyncStatus updates an item's sync status if its hash is unchanged.
func (r *ContentRepository) SetSyncStatus(ctx context.Context, sourceURL, hash string, status domain.SyncStatus) (bool, error) {
	return r.setSyncStatus(ctx, sourceURL, hash, status)
}

// DeleteTombstoned physically removes a tombstoned content item.
func (r *ContentRepository) DeleteTombstoned(ctx context.Context, sourceURL string) error {
	return r.deleteTombstoned(ctx, sourceURL)
}

// Stats counts content items by sync status.
func (r *ContentRepository) Stats(ctx context.Context) (domain.ItemStats, error) {
	return r.stats(ctx)
}
