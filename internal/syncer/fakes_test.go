package syncer_test

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/syncer"
)

var (
	_ syncer.RecordStore  = (*memRecords)(nil)
	_ syncer.ContentStore = (*memContent)(nil)
	_ syncer.SyncLog      = (*memLog)(nil)
)

type memRecords struct {
	mu   sync.Mutex
	rows map[string]*domain.Record
}

func newMemRecords(recs ...*domain.Record) *memRecords {
	m := &memRecords{rows: make(map[string]*domain.Record)}
	for _, r := range recs {
		m.rows[r.ExternalReference] = r
	}
	return m
}

func (m *memRecords) ListPendingSync(context.Context) ([]*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Record
	for _, r := range m.rows {
		if r.TombstonedAt == nil && slices.Contains(domain.PendingSyncStatuses, r.SyncStatus) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalReference < out[j].ExternalReference })
	return out, nil
}

func (m *memRecords) ListTombstoned(context.Context) ([]*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Record
	for _, r := range m.rows {
		if r.TombstonedAt != nil {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalReference < out[j].ExternalReference })
	return out, nil
}

func (m *memRecords) SetSyncStatus(_ context.Context, ref, hash string, status domain.SyncStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[ref]
	if !ok || r.ContentHash != hash {
		return false, nil
	}
	r.SyncStatus = status
	return true, nil
}

func (m *memRecords) DeleteTombstoned(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rows[ref]; ok && r.TombstonedAt != nil {
		delete(m.rows, ref)
	}
	return nil
}

func (m *memRecords) get(ref string) *domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[ref]
}

type memContent struct {
	mu   sync.Mutex
	rows map[string]*domain.ContentItem
}

func newMemContent(items ...*domain.ContentItem) *memContent {
	m := &memContent{rows: make(map[string]*domain.ContentItem)}
	for _, c := range items {
		m.rows[c.SourceURL] = c
	}
	return m
}

func (m *memContent) ListPendingSync(context.Context) ([]*domain.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.ContentItem
	for _, c := range m.rows {
		if c.TombstonedAt == nil && slices.Contains(domain.PendingSyncStatuses, c.SyncStatus) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceURL < out[j].SourceURL })
	return out, nil
}

func (m *memContent) ListTombstoned(context.Context) ([]*domain.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.ContentItem
	for _, c := range m.rows {
		if c.TombstonedAt != nil {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memContent) SetSyncStatus(_ context.Context, sourceURL, hash string, status domain.SyncStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.rows[sourceURL]
	if !ok || c.ContentHash != hash {
		return false, nil
	}
	c.SyncStatus = status
	return true, nil
}

func (m *memContent) DeleteTombstoned(_ context.Context, sourceURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.rows[sourceURL]; ok && c.TombstonedAt != nil {
		delete(m.rows, sourceURL)
	}
	return nil
}

type memLog struct {
	mu      sync.Mutex
	entries []*domain.SyncLogEntry
	nextID  int64
}

func (m *memLog) Append(_ context.Context, entry *domain.SyncLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	entry.ID = m.nextID
	entry.SyncedAt = time.Now()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memLog) LatestSuccess(_ context.Context, itemType domain.ItemType, ref string) (*domain.SyncLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.ItemType == itemType && e.ItemReference == ref && e.Result == domain.SyncResultSuccess {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil //nolint:nilnil // never synced
}

func (m *memLog) IndexedRefs(ctx context.Context) ([]database.IndexedRef, error) {
	m.mu.Lock()
	keys := make(map[[2]string]domain.ItemType)
	for _, e := range m.entries {
		keys[[2]string{string(e.ItemType), e.ItemReference}] = e.ItemType
	}
	m.mu.Unlock()

	var out []database.IndexedRef
	for key, itemType := range keys {
		latest, _ := m.LatestSuccess(ctx, itemType, key[1])
		if latest != nil && latest.Action == domain.SyncActionUpsert && latest.ExternalIndexID != nil {
			out = append(out, database.IndexedRef{
				ItemType:        itemType,
				ItemReference:   key[1],
				ExternalIndexID: *latest.ExternalIndexID,
			})
		}
	}
	return out, nil
}

// seed records a successful upsert as an earlier pass would have.
func (m *memLog) seed(itemType domain.ItemType, ref, hash, indexRef string) {
	_ = m.Append(context.Background(), &domain.SyncLogEntry{
		ItemReference:     ref,
		ItemType:          itemType,
		Action:            domain.SyncActionUpsert,
		ContentHashAtSync: hash,
		Result:            domain.SyncResultSuccess,
		ExternalIndexID:   &indexRef,
	})
}

func (m *memLog) all() []*domain.SyncLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

func record(ref, hash string, status domain.SyncStatus) *domain.Record {
	return &domain.Record{
		ExternalReference: ref,
		Category:          "dogs",
		Attributes:        domain.Attributes{"name": "Rex " + ref, "species": "Dog"},
		SourceURL:         "https://shelter.example/animal/" + ref,
		ContentHash:       hash,
		SyncStatus:        status,
	}
}

func tombstoned(r *domain.Record) *domain.Record {
	now := time.Now()
	r.TombstonedAt = &now
	return r
}
