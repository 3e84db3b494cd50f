package syncer

import (
	"context"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// RecordStore is the record persistence a sync pass needs.
type RecordStore interface {
	ListPendingSync(ctx context.Context) ([]*domain.Record, error)
	ListTombstoned(ctx context.Context) ([]*domain.Record, error)
	SetSyncStatus(ctx context.Context, ref, hash string, status domain.SyncStatus) (bool, error)
	DeleteTombstoned(ctx context.Context, ref string) error
}

// ContentStore is the content item persistence a sync pass needs.
type ContentStore interface {
	ListPendingSync(ctx context.Context) ([]*domain.ContentItem, error)
	ListTombstoned(ctx context.Context) ([]*domain.ContentItem, error)
	SetSyncStatus(ctx context.Context, sourceURL, hash string, status domain.SyncStatus) (bool, error)
	DeleteTombstoned(ctx context.Context, sourceURL string) error
}

// SyncLog is the append-only log of index calls.
type SyncLog interface {
	Append(ctx context.Context, entry *domain.SyncLogEntry) error
	LatestSuccess(ctx context.Context, itemType domain.ItemType, ref string) (*domain.SyncLogEntry, error)
	IndexedRefs(ctx context.Context) ([]database.IndexedRef, error)
}

var (
	_ RecordStore  = (*database.RecordRepository)(nil)
	_ ContentStore = (*database.ContentRepository)(nil)
	_ SyncLog      = (*database.SyncLogRepository)(nil)
)
