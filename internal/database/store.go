package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/changes"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// Store groups the repositories and owns the per-item write transaction.
type Store struct {
	db       *sqlx.DB
	URLs     *URLRepository
	Records  *RecordRepository
	Content  *ContentRepository
	Jobs     *JobRepository
	SyncLogs *SyncLogRepository
}

// NewStore creates a store over db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		URLs:     NewURLRepository(db),
		Records:  NewRecordRepository(db),
		Content:  NewContentRepository(db),
		Jobs:     NewJobRepository(db),
		SyncLogs: NewSyncLogRepository(db),
	}
}

// DB returns the underlying connection.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// existingRow is the change-detection view of a stored item.
type existingRow struct {
	ContentHash  string     `db:"content_hash"`
	TombstonedAt *time.Time `db:"tombstoned_at"`
}

// ApplyItem runs change detection for one extracted item and persists the
// outcome in a single transaction together with the URL's parsed status.
// A crash leaves at most this item inconsistent.
func (s *Store) ApplyItem(ctx context.Context, item domain.Item) (domain.ChangeAction, error) {
	var action domain.ChangeAction

	err := withTx(ctx, s.db, "apply "+string(item.ItemType()), func(tx *sqlx.Tx) error {
		var err error
		switch it := item.(type) {
		case *domain.Record:
			action, err = applyRecord(ctx, tx, it)
		case *domain.ContentItem:
			action, err = applyContent(ctx, tx, it)
		default:
			return fmt.Errorf("unsupported item type %T", item)
		}
		if err != nil {
			return err
		}
		return markParsed(ctx, tx, item.PageURL(), item.Hash())
	})
	if err != nil {
		return "", err
	}

	return action, nil
}

// decide maps the stored row to an action. A tombstoned row that
// reappears counts as updated so it is revived and re-synced.
func decide(row *existingRow, newHash string) domain.ChangeAction {
	if row == nil {
		return changes.Decide(nil, newHash)
	}
	action := changes.Decide(&row.ContentHash, newHash)
	if action == domain.ChangeUnchanged && row.TombstonedAt != nil {
		return domain.ChangeUpdated
	}
	return action
}

func lockExisting(ctx context.Context, tx *sqlx.Tx, query, key string) (*existingRow, error) {
	var row existingRow
	if err := tx.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil // no row means create
		}
		return nil, fmt.Errorf("failed to lock existing row: %w", err)
	}
	return &row, nil
}

func applyRecord(ctx context.Context, tx *sqlx.Tx, rec *domain.Record) (domain.ChangeAction, error) {
	row, err := lockExisting(ctx, tx,
		`SELECT content_hash, tombstoned_at FROM records WHERE external_reference = $1 FOR UPDATE`,
		rec.ExternalReference)
	if err != nil {
		return "", err
	}

	action := decide(row, rec.ContentHash)
	switch action {
	case domain.ChangeCreated:
		query := `
			INSERT INTO records (external_reference, category, attributes, description, images,
			                     source_url, content_hash, sync_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'never_synced')
			RETURNING sync_status, created_at, updated_at
		`
		err = tx.QueryRowContext(ctx, query,
			rec.ExternalReference, rec.Category, rec.Attributes, rec.Description, rec.Images,
			rec.SourceURL, rec.ContentHash,
		).Scan(&rec.SyncStatus, &rec.CreatedAt, &rec.UpdatedAt)
	case domain.ChangeUpdated:
		query := `
			UPDATE records
			SET category = $2, attributes = $3, description = $4, images = $5, source_url = $6,
			    content_hash = $7, sync_status = 'stale', tombstoned_at = NULL, updated_at = NOW()
			WHERE external_reference = $1
			RETURNING sync_status, created_at, updated_at
		`
		err = tx.QueryRowContext(ctx, query,
			rec.ExternalReference, rec.Category, rec.Attributes, rec.Description, rec.Images,
			rec.SourceURL, rec.ContentHash,
		).Scan(&rec.SyncStatus, &rec.CreatedAt, &rec.UpdatedAt)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write record %s: %w", rec.ExternalReference, err)
	}

	return action, nil
}

func applyContent(ctx context.Context, tx *sqlx.Tx, item *domain.ContentItem) (domain.ChangeAction, error) {
	row, err := lockExisting(ctx, tx,
		`SELECT content_hash, tombstoned_at FROM content_items WHERE source_url = $1 FOR UPDATE`,
		item.SourceURL)
	if err != nil {
		return "", err
	}

	action := decide(row, item.ContentHash)
	switch action {
	case domain.ChangeCreated:
		query := `
			INSERT INTO content_items (source_url, category, title, normalized_text, content_hash, sync_status)
			VALUES ($1, $2, $3, $4, $5, 'never_synced')
			RETURNING sync_status, created_at, updated_at
		`
		err = tx.QueryRowContext(ctx, query,
			item.SourceURL, item.Category, item.Title, item.NormalizedText, item.ContentHash,
		).Scan(&item.SyncStatus, &item.CreatedAt, &item.UpdatedAt)
	case domain.ChangeUpdated:
		query := `
			UPDATE content_items
			SET category = $2, title = $3, normalized_text = $4, content_hash = $5,
			    sync_status = 'stale', tombstoned_at = NULL, updated_at = NOW()
			WHERE source_url = $1
			RETURNING sync_status, created_at, updated_at
		`
		err = tx.QueryRowContext(ctx, query,
			item.SourceURL, item.Category, item.Title, item.NormalizedText, item.ContentHash,
		).Scan(&item.SyncStatus, &item.CreatedAt, &item.UpdatedAt)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write content item %s: %w", item.SourceURL, err)
	}

	return action, nil
}

func markParsed(ctx context.Context, tx *sqlx.Tx, url, hash string) error {
	query := `
		UPDATE discovered_urls
		SET status = 'parsed', content_hash = $2, last_error = NULL
		WHERE url = $1 AND status IN (` + statusesInto(domain.URLStatusParsed) + `)
	`
	if _, err := tx.ExecContext(ctx, query, url, hash); err != nil {
		return fmt.Errorf("failed to mark url parsed: %w", err)
	}
	return nil
}

// TombstoneMissing marks URLs of kind in the fully enumerated categories that
// were not seen this pass as removed, and tombstones the items extracted
// from them. It returns the natural keys of newly tombstoned items.
func (s *Store) TombstoneMissing(ctx context.Context, kind domain.URLKind, categories, seen []string) ([]string, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	if seen == nil {
		seen = []string{}
	}

	table := s.Content.itemTable
	if kind == domain.URLKindRecord {
		table = s.Records.itemTable
	}

	var keys []string
	err := withTx(ctx, s.db, "tombstone missing", func(tx *sqlx.Tx) error {
		removed, err := markRemoved(ctx, tx, kind, categories, seen)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}
		keys, err = table.tombstoneBySource(ctx, tx, removed)
		return err
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// Stats assembles the operational snapshot.
func (s *Store) Stats(ctx context.Context) (*domain.Stats, error) {
	records, err := s.Records.Stats(ctx)
	if err != nil {
		return nil, err
	}
	content, err := s.Content.Stats(ctx)
	if err != nil {
		return nil, err
	}
	urls, err := s.URLs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	jobs, err := s.Jobs.LatestByType(ctx)
	if err != nil {
		return nil, err
	}
	lastSync, err := s.SyncLogs.LastSyncByType(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.Stats{
		Records:  records,
		Content:  content,
		URLs:     urls,
		LastJobs: jobs,
		LastSync: make(map[domain.SyncScope]*time.Time),
	}
	if t, ok := lastSync[domain.ItemTypeRecord]; ok {
		stats.LastSync[domain.SyncScopeRecords] = &t
	}
	if t, ok := lastSync[domain.ItemTypeContent]; ok {
		stats.LastSync[domain.SyncScopeGeneralContent] = &t
	}
	if r, c := stats.LastSync[domain.SyncScopeRecords], stats.LastSync[domain.SyncScopeGeneralContent]; r != nil || c != nil {
		latest := r
		if latest == nil || (c != nil && c.After(*latest)) {
			latest = c
		}
		stats.LastSync[domain.SyncScopeAll] = latest
	}

	return stats, nil
}
