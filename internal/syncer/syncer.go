// Package syncer propagates persisted item changes to the external index.
// Only items whose fingerprint differs from their last successful upload are
// sent, and tombstoned items are deleted from the index before their rows
// are removed.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/events"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/index"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/metrics"
)

// Config holds sync settings.
type Config struct {
	// AutoSync runs a pass after every ingestion job that did not fail.
	AutoSync bool `env:"SYNC_AUTO" yaml:"auto_sync"`
	// Organization is the shelter name used in rendered record documents.
	Organization string `env:"SYNC_ORGANIZATION" yaml:"organization"`
	// AutoSyncTimeout bounds an automatic pass.
	AutoSyncTimeout time.Duration `yaml:"auto_sync_timeout"`
}

const defaultAutoSyncTimeout = 30 * time.Minute

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.AutoSyncTimeout == 0 {
		c.AutoSyncTimeout = defaultAutoSyncTimeout
	}
}

// Deps holds the service's collaborators.
type Deps struct {
	Records   RecordStore
	Content   ContentStore
	Log       SyncLog
	Index     index.Index
	Renderer  *index.Renderer
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Service runs sync passes. Passes over different item types may overlap;
// a pass never overlaps another pass covering one of its item types.
type Service struct {
	cfg      Config
	records  RecordStore
	content  ContentStore
	log      SyncLog
	index    index.Index
	renderer *index.Renderer
	metrics  *metrics.Metrics
	logger   logger.Logger
	events   *events.Safe

	mu      sync.Mutex
	syncing map[domain.ItemType]bool
}

// New creates a sync service.
func New(deps Deps, cfg Config) *Service {
	cfg.SetDefaults()

	if deps.Renderer == nil {
		deps.Renderer = index.NewRenderer(cfg.Organization)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}

	return &Service{
		cfg:      cfg,
		records:  deps.Records,
		content:  deps.Content,
		log:      deps.Log,
		index:    deps.Index,
		renderer: deps.Renderer,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		events:   events.NewSafe(deps.Publisher, deps.Logger),
		syncing:  make(map[domain.ItemType]bool),
	}
}

// Sync runs one pass over the scope's item types. It returns
// domain.ErrSyncInProgress when another pass holds one of them. When the
// index refuses writes the pass stops early, returning the partial summary
// together with the quota error.
func (s *Service) Sync(ctx context.Context, scope domain.SyncScope) (domain.SyncSummary, error) {
	summary := domain.SyncSummary{Scope: scope}
	itemTypes := scope.ItemTypes()

	if !s.acquire(itemTypes) {
		return summary, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, scope)
	}
	defer s.release(itemTypes)

	start := time.Now()
	log := s.logger.With(logger.Scope(string(scope)))
	log.Info("Sync started")
	s.events.Emit(ctx, events.New(events.SyncStarted, events.SyncPayload{Scope: scope}))

	var err error
	for _, itemType := range itemTypes {
		p := &pass{s: s, ctx: ctx, store: context.WithoutCancel(ctx), itemType: itemType, log: log}
		err = p.run()
		summary.Add(p.summary)
		if err != nil {
			break
		}
	}

	s.metrics.SyncPass(string(scope), time.Since(start))

	if err != nil {
		log.Error("Sync failed",
			logger.Int("uploaded", summary.Uploaded),
			logger.Int("deleted", summary.Deleted),
			logger.Int("skipped", summary.Skipped),
			logger.Int("failed", summary.Failed),
			logger.Error(err),
		)
		s.events.Emit(ctx, events.New(events.SyncFailed, events.SyncPayload{
			Scope: scope, Summary: &summary, Error: err.Error(),
		}))
		return summary, err
	}

	log.Info("Sync completed",
		logger.Int("uploaded", summary.Uploaded),
		logger.Int("deleted", summary.Deleted),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", summary.Failed),
		logger.Duration("duration", time.Since(start)),
	)
	s.events.Emit(ctx, events.New(events.SyncCompleted, events.SyncPayload{Scope: scope, Summary: &summary}))
	return summary, nil
}

// AfterJob runs an automatic pass for a finished ingestion job. It is meant
// to be registered as the orchestrator's finished hook.
func (s *Service) AfterJob(job *domain.IngestionJob) {
	if !s.cfg.AutoSync || job.Status == domain.JobStatusFailed {
		return
	}

	scope := ScopeForJob(job.JobType)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AutoSyncTimeout)
	defer cancel()

	if _, err := s.Sync(ctx, scope); err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			s.logger.Info("Skipping auto-sync, pass already running",
				logger.JobID(job.ID),
				logger.Scope(string(scope)),
			)
			return
		}
		s.logger.Warn("Auto-sync failed",
			logger.JobID(job.ID),
			logger.Scope(string(scope)),
			logger.Error(err),
		)
	}
}

// ScopeForJob maps a job type to the sync scope covering what it changed.
func ScopeForJob(jobType domain.JobType) domain.SyncScope {
	switch jobType {
	case domain.JobTypeRecordScrape:
		return domain.SyncScopeRecords
	case domain.JobTypeContentScrape:
		return domain.SyncScopeGeneralContent
	default:
		return domain.SyncScopeAll
	}
}

// IsSyncing reports whether a pass currently holds itemType.
func (s *Service) IsSyncing(itemType domain.ItemType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing[itemType]
}

func (s *Service) acquire(itemTypes []domain.ItemType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range itemTypes {
		if s.syncing[t] {
			return false
		}
	}
	for _, t := range itemTypes {
		s.syncing[t] = true
	}
	return true
}

func (s *Service) release(itemTypes []domain.ItemType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range itemTypes {
		delete(s.syncing, t)
	}
}
