// Package ingest runs ingestion jobs: URL discovery, record scraping and
// content scraping, alone or in sequence, with at most one running job per
// job type and at most one job scraping each URL kind.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/discovery"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/events"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/extractor"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/metrics"
)

const (
	orphanReason = "orphaned by restart"
	cancelReason = "cancelled"

	defaultCountsFlushEvery = 25
)

// ErrCancelled is the error a job finishes with after Cancel.
var ErrCancelled = errors.New(cancelReason)

// Deps holds the orchestrator's collaborators.
type Deps struct {
	Jobs      JobStore
	URLs      URLStore
	Items     ItemStore
	Listings  ListingSource
	Sitemap   SitemapSource
	Fetcher   PageFetcher
	Records   extractor.Extractor
	Content   extractor.Extractor
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Config holds orchestrator settings.
type Config struct {
	// Listings overrides the discovery config listings when set.
	Listings   []discovery.Listing
	SitemapURL string
	// CountsFlushEvery is how many items are processed between progress
	// writes of the job counters.
	CountsFlushEvery int
}

// FinishedFunc is called after a job reaches a terminal status.
type FinishedFunc func(job *domain.IngestionJob)

type execution struct {
	job    *domain.IngestionJob
	ctx    context.Context
	cancel context.CancelFunc
}

// Orchestrator starts and tracks ingestion jobs.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	log    logger.Logger
	events *events.Safe

	mu      sync.Mutex
	running map[domain.JobType]*execution
	wg      sync.WaitGroup

	// scraping holds one slot per URL kind so a full job and a scrape job
	// never claim the same URLs at once.
	scraping map[domain.URLKind]*semaphore.Weighted

	onFinished FinishedFunc
}

// New creates an orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.CountsFlushEvery <= 0 {
		cfg.CountsFlushEvery = defaultCountsFlushEvery
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		log:     log,
		events:  events.NewSafe(deps.Publisher, log),
		running: make(map[domain.JobType]*execution),
		scraping: map[domain.URLKind]*semaphore.Weighted{
			domain.URLKindRecord:  semaphore.NewWeighted(1),
			domain.URLKindContent: semaphore.NewWeighted(1),
		},
	}
}

// OnFinished registers fn to run after every job. It must be set before
// the first job starts.
func (o *Orchestrator) OnFinished(fn FinishedFunc) {
	o.onFinished = fn
}

// Trigger starts a job in the background and returns its initial snapshot.
// It returns a *domain.SchedulingError matching domain.ErrJobAlreadyRunning
// when a job of the same type is active.
func (o *Orchestrator) Trigger(ctx context.Context, jobType domain.JobType, trigger domain.JobTrigger) (*domain.IngestionJob, error) {
	exec, err := o.start(ctx, jobType, trigger)
	if err != nil {
		return nil, err
	}

	snapshot := *exec.job

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(exec)
	}()

	return &snapshot, nil
}

// Run executes a job synchronously and returns it in its terminal state.
func (o *Orchestrator) Run(ctx context.Context, jobType domain.JobType, trigger domain.JobTrigger) (*domain.IngestionJob, error) {
	exec, err := o.start(ctx, jobType, trigger)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, exec.cancel)
	defer stop()

	o.wg.Add(1)
	defer o.wg.Done()
	o.execute(exec)

	return exec.job, nil
}

// Cancel asks a running job to stop after its current item.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, exec := range o.running {
		if exec.job.ID == jobID {
			o.log.Info("Cancelling job", logger.JobID(jobID))
			exec.cancel()
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not running", domain.ErrJobNotFound, jobID)
}

// Get returns a job snapshot from the store.
func (o *Orchestrator) Get(ctx context.Context, jobID string) (*domain.IngestionJob, error) {
	return o.deps.Jobs.GetByID(ctx, jobID)
}

// List returns recent jobs, optionally filtered by type.
func (o *Orchestrator) List(ctx context.Context, jobType domain.JobType, limit int) ([]*domain.IngestionJob, error) {
	return o.deps.Jobs.List(ctx, jobType, limit)
}

// IsRunning reports whether a job of jobType is active.
func (o *Orchestrator) IsRunning(jobType domain.JobType) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[jobType]
	return ok
}

// RecoverOrphans fails jobs left running by a previous process.
func (o *Orchestrator) RecoverOrphans(ctx context.Context) error {
	n, err := o.deps.Jobs.FailOrphaned(ctx, orphanReason)
	if err != nil {
		return fmt.Errorf("recover orphaned jobs: %w", err)
	}
	if n > 0 {
		o.log.Warn("Marked orphaned jobs as failed", logger.Int("count", n))
	}
	return nil
}

// Shutdown cancels running jobs and waits for them to finish or ctx to end.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, exec := range o.running {
		exec.cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

// start claims the running flag for jobType and inserts the job row. The
// in-process flag is the first guard; the partial unique index on running
// jobs is the second.
func (o *Orchestrator) start(ctx context.Context, jobType domain.JobType, trigger domain.JobTrigger) (*execution, error) {
	o.mu.Lock()
	if _, busy := o.running[jobType]; busy {
		o.mu.Unlock()
		return nil, &domain.SchedulingError{Kind: domain.SchedulingJobAlreadyRunning, JobType: jobType}
	}
	jobCtx, cancel := context.WithCancel(context.Background())
	exec := &execution{
		job: &domain.IngestionJob{
			ID:      uuid.NewString(),
			JobType: jobType,
			Status:  domain.JobStatusRunning,
			Trigger: trigger,
		},
		ctx:    jobCtx,
		cancel: cancel,
	}
	o.running[jobType] = exec
	o.mu.Unlock()

	if err := o.deps.Jobs.Create(ctx, exec.job); err != nil {
		o.release(jobType)
		cancel()
		return nil, err
	}

	return exec, nil
}

func (o *Orchestrator) release(jobType domain.JobType) {
	o.mu.Lock()
	delete(o.running, jobType)
	o.mu.Unlock()
}
