package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/discovery"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/extractor"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/index"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/ingest"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/metrics"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/scheduler"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/syncer"
)

// ServiceComponents holds the pipeline services.
type ServiceComponents struct {
	Fetchers     *fetcher.Set
	Orchestrator *ingest.Orchestrator
	Sync         *syncer.Service
}

// NewRegistry creates the Prometheus registry with the runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// SetupServices wires fetchers, discoverers, extractors, the orchestrator
// and the sync service. Finished jobs feed the auto-sync hook.
func SetupServices(
	deps *CommandDeps,
	db *DatabaseComponents,
	idx index.Index,
	ev *EventComponents,
	m *metrics.Metrics,
) (*ServiceComponents, error) {
	cfg := deps.Config

	fetchers, err := fetcher.NewSet(cfg.Fetch, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetchers: %w", err)
	}

	records, err := extractor.NewRecordExtractor(cfg.Extraction.Records)
	if err != nil {
		fetchers.Close()
		return nil, fmt.Errorf("failed to create record extractor: %w", err)
	}

	categorizer, err := discovery.NewCategorizer(cfg.Discovery.Rules, cfg.Discovery.DefaultCategory)
	if err != nil {
		fetchers.Close()
		return nil, fmt.Errorf("failed to create categorizer: %w", err)
	}

	discLog := deps.Logger.With(logger.String("component", "discovery"))
	orchestrator := ingest.New(ingest.Deps{
		Jobs:      db.Store.Jobs,
		URLs:      db.Store.URLs,
		Items:     db.Store,
		Listings:  discovery.NewListingDiscoverer(fetchers.For(fetcher.ModeBulk), cfg.Discovery, discLog),
		Sitemap:   discovery.NewSitemapDiscoverer(fetchers.For(fetcher.ModeBulk), categorizer, cfg.Discovery, discLog),
		Fetcher:   fetchers,
		Records:   records,
		Content:   extractor.NewGeneralExtractor(cfg.Extraction.General),
		Publisher: ev.Publisher,
		Metrics:   m,
		Logger:    deps.Logger.With(logger.String("component", "ingest")),
	}, ingest.Config{
		Listings:         cfg.Discovery.Listings,
		SitemapURL:       cfg.Discovery.SitemapURL,
		CountsFlushEvery: cfg.Ingest.CountsFlushEvery,
	})

	var syncSvc *syncer.Service
	if idx != nil {
		syncSvc = syncer.New(syncer.Deps{
			Records:   db.Store.Records,
			Content:   db.Store.Content,
			Log:       db.Store.SyncLogs,
			Index:     idx,
			Renderer:  index.NewRenderer(cfg.Sync.Organization),
			Publisher: ev.Publisher,
			Metrics:   m,
			Logger:    deps.Logger.With(logger.String("component", "sync")),
		}, cfg.Sync)
		orchestrator.OnFinished(syncSvc.AfterJob)
	}

	return &ServiceComponents{
		Fetchers:     fetchers,
		Orchestrator: orchestrator,
		Sync:         syncSvc,
	}, nil
}

// SetupScheduler creates the scheduler, or returns nil when scheduling is
// disabled.
func SetupScheduler(deps *CommandDeps, orchestrator *ingest.Orchestrator, m *metrics.Metrics) (*scheduler.Scheduler, error) {
	if !deps.Config.Schedule.Enabled {
		deps.Logger.Info("Scheduler disabled")
		return nil, nil
	}

	sched, err := scheduler.New(deps.Config.Schedule, orchestrator, m,
		deps.Logger.With(logger.String("component", "scheduler")))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return sched, nil
}

// Runtime is the set of components a command works with. Commands that only
// read the database skip the index and events.
type Runtime struct {
	Deps     *CommandDeps
	Database *DatabaseComponents
	Index    *IndexComponents
	Events   *EventComponents
	Services *ServiceComponents
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// NewRuntime runs the storage, database, events and services phases.
func NewRuntime(ctx context.Context, deps *CommandDeps) (rt *Runtime, err error) {
	rt = &Runtime{Deps: deps}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if rt.Database, err = SetupDatabase(deps); err != nil {
		return nil, err
	}
	if rt.Index, err = SetupIndex(ctx, deps); err != nil {
		return nil, err
	}
	if rt.Events, err = SetupEvents(ctx, deps); err != nil {
		return nil, err
	}

	if deps.Config.Metrics.Enabled {
		rt.Registry = NewRegistry()
		rt.Metrics = metrics.New(rt.Registry)
	} else {
		rt.Metrics = metrics.NewNop()
	}

	if rt.Services, err = SetupServices(deps, rt.Database, rt.Index.Index, rt.Events, rt.Metrics); err != nil {
		return nil, err
	}
	return rt, nil
}

// Close releases the fetch pools, the event publisher and the database
// connection. Errors are logged.
func (r *Runtime) Close() {
	log := r.Deps.Logger
	if r.Services != nil && r.Services.Fetchers != nil {
		r.Services.Fetchers.Close()
	}
	if err := r.Events.Close(); err != nil {
		log.Error("Failed to close event publisher", logger.Error(err))
	}
	if err := r.Database.Close(); err != nil {
		log.Error("Failed to close database", logger.Error(err))
	}
	_ = log.Sync()
}
