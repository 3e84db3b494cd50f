package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// itemTable holds the sync bookkeeping queries shared by records and
// content items. Both tables carry sync_status, content_hash and
// tombstoned_at keyed by a single natural-key column.
type itemTable struct {
	db     *sqlx.DB
	table  string
	keyCol string
}

// setSyncStatus updates the sync status only while the stored hash still
// equals hash, so a concurrent content change is not marked synced.
func (t itemTable) setSyncStatus(ctx context.Context, key, hash string, status domain.SyncStatus) (bool, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET sync_status = $3 WHERE %s = $1 AND content_hash = $2`,
		t.table, t.keyCol,
	)

	result, err := t.db.ExecContext(ctx, query, key, hash, status)
	if err != nil {
		return false, classify("set sync status", fmt.Errorf("failed to set sync status: %w", err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, classify("set sync status", err)
	}
	return n > 0, nil
}

// deleteTombstoned physically removes a row that is still tombstoned.
func (t itemTable) deleteTombstoned(ctx context.Context, key string) error {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE %s = $1 AND tombstoned_at IS NOT NULL`,
		t.table, t.keyCol,
	)

	result, err := t.db.ExecContext(ctx, query, key)
	if err = execRequireRows(result, err, domain.ErrItemNotFound); err != nil {
		return classify("delete item", err)
	}
	return nil
}

// tombstoneBySource flags live rows extracted from any of urls.
func (t itemTable) tombstoneBySource(ctx context.Context, tx *sqlx.Tx, urls []string) ([]string, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET tombstoned_at = NOW()
		 WHERE source_url = ANY($1) AND tombstoned_at IS NULL
		 RETURNING %s`,
		t.table, t.keyCol,
	)

	var keys []string
	if err := tx.SelectContext(ctx, &keys, query, pq.Array(urls)); err != nil {
		return nil, fmt.Errorf("failed to tombstone %s: %w", t.table, err)
	}
	return keys, nil
}

// stats counts rows by sync status.
func (t itemTable) stats(ctx context.Context) (domain.ItemStats, error) {
	query := fmt.Sprintf(
		`SELECT sync_status, COUNT(*) AS count,
		        COUNT(*) FILTER (WHERE tombstoned_at IS NOT NULL) AS tombstoned
		 FROM %s GROUP BY sync_status`,
		t.table,
	)

	var rows []struct {
		Status     domain.SyncStatus `db:"sync_status"`
		Count      int               `db:"count"`
		Tombstoned int               `db:"tombstoned"`
	}
	if err := t.db.SelectContext(ctx, &rows, query); err != nil {
		return domain.ItemStats{}, classify("count items", fmt.Errorf("failed to count %s: %w", t.table, err))
	}

	s := domain.ItemStats{BySyncStatus: make(map[domain.SyncStatus]int)}
	for _, row := range rows {
		s.BySyncStatus[row.Status] = row.Count
		s.Total += row.Count
		s.Tombstoned += row.Tombstoned
	}
	return s, nil
}

func pendingStatuses() any {
	statuses := make([]string, len(domain.PendingSyncStatuses))
	for i, s := range domain.PendingSyncStatuses {
		statuses[i] = string(s)
	}
	return pq.Array(statuses)
}
