package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

const recordSelectColumns = `external_reference, category, attributes, description, images,
	source_url, content_hash, sync_status, tombstoned_at, created_at, updated_at`

// RecordRepository handles database operations for records.
type RecordRepository struct {
	db *sqlx.DB
	itemTable
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{
		db:        db,
		itemTable: itemTable{db: db, table: "records", keyCol: "external_reference"},
	}
}

// GetByReference retrieves a record by its external reference.
func (r *RecordRepository) GetByReference(ctx context.Context, ref string) (*domain.Record, error) {
	query := `SELECT ` + recordSelectColumns + ` FROM records WHERE external_reference = $1`

	var rec domain.Record
	if err := r.db.GetContext(ctx, &rec, query, ref); err != nil {
		return nil, notFoundOr(err, domain.ErrItemNotFound, "get record")
	}
	return &rec, nil
}

// List returns records ordered by most recently updated.
func (r *RecordRepository) List(ctx context.Context, limit, offset int) ([]*domain.Record, error) {
	query := `
		SELECT ` + recordSelectColumns + `
		FROM records
		ORDER BY updated_at DESC, external_reference
		LIMIT $1 OFFSET $2
	`

	var recs []*domain.Record
	if err := r.db.SelectContext(ctx, &recs, query, limit, offset); err != nil {
		return nil, classify("list records", fmt.Errorf("failed to list records: %w", err))
	}
	if recs == nil {
		recs = []*domain.Record{}
	}
	return recs, nil
}

// ListPendingSync returns live records whose index copy may be out of date.
func (r *RecordRepository) ListPendingSync(ctx context.Context) ([]*domain.Record, error) {
	query := `
		SELECT ` + recordSelectColumns + `
		FROM records
		WHERE sync_status = ANY($1) AND tombstoned_at IS NULL
		ORDER BY updated_at, external_reference
	`

	var recs []*domain.Record
	if err := r.db.SelectContext(ctx, &recs, query, pendingStatuses()); err != nil {
		return nil, classify("list pending records", fmt.Errorf("failed to list pending records: %w", err))
	}
	return recs, nil
}

// ListTombstoned returns records awaiting removal from the index.
func (r *RecordRepository) ListTombstoned(ctx context.Context) ([]*domain.Record, error) {
	query := `
		SELECT ` + recordSelectColumns + `
		FROM records
		WHERE tombstoned_at IS NOT NULL
		ORDER BY tombstoned_at, external_reference
	`

	var recs []*domain.Record
	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, classify("list tombstoned records", fmt.Errorf("failed to list tombstoned records: %w", err))
	}
	return recs, nil
}

// SetSyncStatus updates a record's sync status if its hash is unchanged.
// It reports whether the row was updated.
func (r *RecordRepository) SetSyncStatus(ctx context.Context, ref, hash string, status domain.SyncStatus) (bool, error) {
	return r.setSyncStatus(ctx, ref, hash, status)
}

// DeleteTombstoned physically removes a tombstoned record.
func (r *RecordRepository) DeleteTombstoned(ctx context.Context, ref string) error {
	return r.deleteTombstoned(ctx, ref)
}

// Stats counts records by sync status.
func (r *RecordRepository) Stats(ctx context.Context) (domain.ItemStats, error) {
	return r.stats(ctx)
}
