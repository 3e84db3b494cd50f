package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/api"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/syncer"
)

type mockJobs struct {
	triggerErr error
	jobs       map[string]*domain.IngestionJob
	triggered  []domain.JobType
	cancelled  []string
	listType   domain.JobType
	listLimit  int
}

func (m *mockJobs) Trigger(_ context.Context, jobType domain.JobType, trigger domain.JobTrigger) (*domain.IngestionJob, error) {
	if m.triggerErr != nil {
		return nil, m.triggerErr
	}
	m.triggered = append(m.triggered, jobType)
	return &domain.IngestionJob{ID: uuid.NewString(), JobType: jobType, Status: domain.JobStatusRunning, Trigger: trigger}, nil
}

func (m *mockJobs) Get(_ context.Context, id string) (*domain.IngestionJob, error) {
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockJobs) List(_ context.Context, jobType domain.JobType, limit int) ([]*domain.IngestionJob, error) {
	m.listType = jobType
	m.listLimit = limit
	out := make([]*domain.IngestionJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (m *mockJobs) Cancel(id string) error {
	if _, ok := m.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	m.cancelled = append(m.cancelled, id)
	return nil
}

type mockSync struct {
	summary domain.SyncSummary
	err     error
	scope   domain.SyncScope
	report  *syncer.AuditReport
}

func (m *mockSync) Sync(_ context.Context, scope domain.SyncScope) (domain.SyncSummary, error) {
	m.scope = scope
	m.summary.Scope = scope
	return m.summary, m.err
}

func (m *mockSync) Audit(context.Context) (*syncer.AuditReport, error) {
	if m.report == nil {
		return nil, errors.New("index unreachable")
	}
	return m.report, nil
}

type mockStats struct{ err error }

func (m mockStats) Stats(context.Context) (*domain.Stats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Stats{
		Records: domain.ItemStats{Total: 3, BySyncStatus: map[domain.SyncStatus]int{domain.SyncStatusSynced: 3}},
	}, nil
}

type fixedSchedule map[domain.JobType]time.Time

func (f fixedSchedule) NextRuns() map[domain.JobType]time.Time { return f }

func newRouter(jobs *mockJobs, sync *mockSync, sched api.Schedule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api.RegisterRoutes(router, api.Handlers{
		Jobs:  api.NewJobsHandler(jobs),
		Sync:  api.NewSyncHandler(sync),
		Stats: api.NewStatsHandler(mockStats{}, sched),
	})
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTriggerJob(t *testing.T) {
	t.Parallel()

	jobs := &mockJobs{}
	router := newRouter(jobs, &mockSync{}, nil)

	w := do(t, router, http.MethodPost, "/api/v1/jobs", `{"job_type":"record_scrape"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var job domain.IngestionJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, domain.JobTypeRecordScrape, job.JobType)
	assert.Equal(t, domain.TriggerManual, job.Trigger)
	assert.Equal(t, []domain.JobType{domain.JobTypeRecordScrape}, jobs.triggered)
}

func TestTriggerJob_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		triggerErr error
		wantStatus int
	}{
		{"missing body", "", nil, http.StatusBadRequest},
		{"unknown type", `{"job_type":"everything"}`, nil, http.StatusBadRequest},
		{
			"already running",
			`{"job_type":"full"}`,
			&domain.SchedulingError{Kind: domain.SchedulingJobAlreadyRunning, JobType: domain.JobTypeFull},
			http.StatusConflict,
		},
		{"store failure", `{"job_type":"full"}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newRouter(&mockJobs{triggerErr: tt.triggerErr}, &mockSync{}, nil)
			w := do(t, router, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	id := uuid.NewString()
	jobs := &mockJobs{jobs: map[string]*domain.IngestionJob{
		id: {ID: id, JobType: domain.JobTypeFull, Status: domain.JobStatusCompleted},
	}}
	router := newRouter(jobs, &mockSync{}, nil)

	w := do(t, router, http.MethodGet, "/api/v1/jobs/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = do(t, router, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/jobs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	jobs := &mockJobs{jobs: map[string]*domain.IngestionJob{"a": {ID: "a"}}}
	router := newRouter(jobs, &mockSync{}, nil)

	w := do(t, router, http.MethodGet, "/api/v1/jobs?job_type=content_scrape&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.JobTypeContentScrape, jobs.listType)
	assert.Equal(t, 5, jobs.listLimit)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = do(t, router, http.MethodGet, "/api/v1/jobs?limit=100000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 200, jobs.listLimit)

	w = do(t, router, http.MethodGet, "/api/v1/jobs?job_type=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	jobs := &mockJobs{jobs: map[string]*domain.IngestionJob{"job-1": {ID: "job-1"}}}
	router := newRouter(jobs, &mockSync{}, nil)

	w := do(t, router, http.MethodPost, "/api/v1/jobs/job-1/cancel", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"job-1"}, jobs.cancelled)

	w = do(t, router, http.MethodPost, "/api/v1/jobs/job-2/cancel", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerSync(t *testing.T) {
	t.Parallel()

	sync := &mockSync{summary: domain.SyncSummary{Uploaded: 2, Deleted: 1, Failed: 1}}
	router := newRouter(&mockJobs{}, sync, nil)

	w := do(t, router, http.MethodPost, "/api/v1/sync", `{"scope":"records"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.SyncScopeRecords, sync.scope)

	var summary domain.SyncSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Uploaded)
	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, 1, summary.Failed)

	// No body syncs everything.
	w = do(t, router, http.MethodPost, "/api/v1/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.SyncScopeAll, sync.scope)
}

func TestTriggerSync_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"unknown scope", `{"scope":"pets"}`, nil, http.StatusBadRequest},
		{"in progress", `{"scope":"all"}`, domain.ErrSyncInProgress, http.StatusConflict},
		{
			"quota",
			`{"scope":"all"}`,
			&domain.IndexError{Kind: domain.IndexQuotaExceeded, Err: errors.New("429")},
			http.StatusTooManyRequests,
		},
		{"other", `{"scope":"all"}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newRouter(&mockJobs{}, &mockSync{err: tt.err}, nil)
			w := do(t, router, http.MethodPost, "/api/v1/sync", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()

	sync := &mockSync{report: &syncer.AuditReport{
		IndexedCount: 2, ExpectedCount: 1, Orphaned: []string{"record-x"}, Missing: []string{},
	}}
	router := newRouter(&mockJobs{}, sync, nil)

	w := do(t, router, http.MethodGet, "/api/v1/sync/audit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"in_sync":false`)
	assert.Contains(t, w.Body.String(), `"record-x"`)

	router = newRouter(&mockJobs{}, &mockSync{}, nil)
	w = do(t, router, http.MethodGet, "/api/v1/sync/audit", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStatsAndSchedule(t *testing.T) {
	t.Parallel()

	next := time.Date(2026, 10, 25, 1, 0, 0, 0, time.UTC)
	router := newRouter(&mockJobs{}, &mockSync{}, fixedSchedule{domain.JobTypeURLDiscovery: next})

	w := do(t, router, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":3`)

	w = do(t, router, http.MethodGet, "/api/v1/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"url_discovery":"2026-10-25T01:00:00Z"`)

	router = newRouter(&mockJobs{}, &mockSync{}, nil)
	w = do(t, router, http.MethodGet, "/api/v1/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":false`)
}
