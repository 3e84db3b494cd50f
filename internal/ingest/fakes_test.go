package ingest_test

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/events"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/ingest"
)

// site serves fixed bodies by URL and 404s everything else. When gate is
// set, every fetch waits for it to close.
type site struct {
	mu      sync.Mutex
	pages   map[string]string
	gate    chan struct{}
	calls   []string
	waiting atomic.Int32
}

func (s *site) Fetch(ctx context.Context, url string) (*fetcher.Response, error) {
	if s.gate != nil {
		s.waiting.Add(1)
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: url, Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, url)
	body, ok := s.pages[url]
	s.mu.Unlock()

	if !ok {
		return nil, &domain.FetchError{Kind: domain.FetchHTTPError, URL: url, StatusCode: http.StatusNotFound}
	}
	return &fetcher.Response{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (s *site) set(url, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = body
}

func card(slug, name string) string {
	return fmt.Sprintf(`<div class="single--card pet--card">
  <a class="card--link" href="/en/animal/%s/"><h5 class="card--title">%s</h5>
  <div class="pet--infos">Dog ● Adult ● Female ● M</div></a>
</div>`, slug, name)
}

func listingPage(cards ...string) string {
	return `<html><body><div class="pet--row">` + strings.Join(cards, "\n") + `</div></body></html>`
}

func detailPage(name, ref, description string) string {
	return fmt.Sprintf(`<html><body><div class="single-pet"><h2>%s</h2>
<table>
  <tr><td>Reference number:</td><td>%s</td></tr>
  <tr><td>Species</td><td>Dog</td></tr>
</table>
<h5>Description</h5><p>%s</p>
</div></body></html>`, name, ref, description)
}

// memJobs is an in-memory JobStore that enforces one running job per type.
type memJobs struct {
	mu       sync.Mutex
	jobs     map[string]*domain.IngestionJob
	orphaned int
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]*domain.IngestionJob)}
}

func (m *memJobs) Create(_ context.Context, job *domain.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.JobType == job.JobType && j.Status == domain.JobStatusRunning {
			return &domain.SchedulingError{Kind: domain.SchedulingJobAlreadyRunning, JobType: job.JobType}
		}
	}
	job.Status = domain.JobStatusRunning
	job.StartedAt = time.Now()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) UpdateCounts(_ context.Context, id string, counts domain.JobCounts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.JobCounts = counts
	}
	return nil
}

func (m *memJobs) Finish(_ context.Context, job *domain.IngestionJob) error {
	if err := domain.ValidateJobTransition(domain.JobStatusRunning, job.Status); err != nil {
		return err
	}
	now := time.Now()
	job.FinishedAt = &now

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id string) (*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) List(_ context.Context, jobType domain.JobType, _ int) ([]*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.IngestionJob
	for _, j := range m.jobs {
		if jobType == "" || j.JobType == jobType {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memJobs) FailOrphaned(context.Context, string) (int, error) {
	return m.orphaned, nil
}

func (m *memJobs) running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.Status == domain.JobStatusRunning {
			n++
		}
	}
	return n
}

type storedItem struct {
	kind       domain.URLKind
	hash       string
	pageURL    string
	tombstoned bool
	updatedAt  time.Time
}

// memStore is an in-memory URLStore and ItemStore.
type memStore struct {
	mu         sync.Mutex
	order      []string
	urls       map[string]*domain.DiscoveredURL
	items      map[string]*storedItem
	applyErr   error
	applyCalls int
}

var (
	_ ingest.JobStore  = (*memJobs)(nil)
	_ ingest.URLStore  = (*memStore)(nil)
	_ ingest.ItemStore = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		urls:  make(map[string]*domain.DiscoveredURL),
		items: make(map[string]*storedItem),
	}
}

func (m *memStore) Upsert(_ context.Context, urls []domain.DiscoveredURL) (database.UpsertStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats database.UpsertStats
	for _, u := range urls {
		if existing, ok := m.urls[u.URL]; ok {
			if existing.Status == domain.URLStatusRemoved {
				existing.Status = domain.URLStatusPending
			}
			existing.Category = u.Category
			existing.Hint = u.Hint
			stats.Unchanged++
			continue
		}
		cp := u
		cp.Status = domain.URLStatusPending
		m.urls[u.URL] = &cp
		m.order = append(m.order, u.URL)
		stats.Created++
	}
	return stats, nil
}

func (m *memStore) ClaimForRun(_ context.Context, kind domain.URLKind) ([]*domain.DiscoveredURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*domain.DiscoveredURL{}
	for _, url := range m.order {
		u := m.urls[url]
		if u.Kind != kind || u.Status == domain.URLStatusRemoved {
			continue
		}
		if u.Status != domain.URLStatusPending {
			if err := domain.ValidateURLTransition(u.Status, domain.URLStatusPending); err != nil {
				return nil, err
			}
		}
		u.Status = domain.URLStatusPending
		u.AttemptCount++
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) MarkFetched(_ context.Context, url string, attempt int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.urls[url]
	if !ok || u.AttemptCount != attempt || domain.ValidateURLTransition(u.Status, domain.URLStatusFetched) != nil {
		return fmt.Errorf("%w: %s", domain.ErrClaimLost, url)
	}
	u.Status = domain.URLStatusFetched
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, url, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.urls[url]
	if !ok || domain.ValidateURLTransition(u.Status, domain.URLStatusFailed) != nil {
		return nil
	}
	u.Status = domain.URLStatusFailed
	u.LastError = &reason
	return nil
}

func (m *memStore) ApplyItem(_ context.Context, item domain.Item) (domain.ChangeAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyCalls++
	if m.applyErr != nil {
		return "", m.applyErr
	}

	kind := domain.URLKindContent
	if item.ItemType() == domain.ItemTypeRecord {
		kind = domain.URLKindRecord
	}

	action := domain.ChangeCreated
	if existing, ok := m.items[item.NaturalKey()]; ok {
		if existing.hash == item.Hash() && !existing.tombstoned {
			action = domain.ChangeUnchanged
		} else {
			action = domain.ChangeUpdated
		}
	}

	if action != domain.ChangeUnchanged {
		m.items[item.NaturalKey()] = &storedItem{
			kind: kind, hash: item.Hash(), pageURL: item.PageURL(), updatedAt: time.Now(),
		}
	}
	if u, ok := m.urls[item.PageURL()]; ok && domain.ValidateURLTransition(u.Status, domain.URLStatusParsed) == nil {
		u.Status = domain.URLStatusParsed
		hash := item.Hash()
		u.ContentHash = &hash
	}
	return action, nil
}

func (m *memStore) TombstoneMissing(_ context.Context, kind domain.URLKind, categories, seen []string) ([]string, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := map[string]bool{}
	for _, u := range m.urls {
		if u.Kind == kind && domain.ValidateURLTransition(u.Status, domain.URLStatusRemoved) == nil &&
			slices.Contains(categories, u.Category) && !slices.Contains(seen, u.URL) {
			u.Status = domain.URLStatusRemoved
			removed[u.URL] = true
		}
	}

	var keys []string
	for key, it := range m.items {
		if it.kind == kind && !it.tombstoned && removed[it.pageURL] {
			it.tombstoned = true
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *memStore) item(key string) *storedItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil
	}
	cp := *it
	return &cp
}

func (m *memStore) status(url string) domain.URLStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.urls[url].Status
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) count(t events.Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// claimLostStore reports every fetched URL as claimed by another run.
type claimLostStore struct {
	*memStore
}

func (c claimLostStore) MarkFetched(_ context.Context, url string, _ int) error {
	return fmt.Errorf("%w: %s", domain.ErrClaimLost, url)
}
