// Package bootstrap handles application initialization and lifecycle
// management for the shelter-sync service.
//
// The bootstrap process follows these phases:
//   - Phase 0: Profiling - Start pprof and Pyroscope (if enabled)
//   - Phase 1: Config & Logger - Load configuration and create logger
//   - Phase 2: Database - Connect to PostgreSQL and run migrations
//   - Phase 3: Storage - Connect to Elasticsearch and ensure the index
//   - Phase 4: Events - Connect the Redis publisher (if enabled)
//   - Phase 5: Services - Fetchers, orchestrator, sync and scheduler
//   - Phase 6: Server - Create and start the HTTP server
//   - Phase 7: Run - Wait for interrupt signal or error
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/profiling"
)

// Start runs the service and blocks until it is interrupted or fails.
func Start(ctx context.Context, opts Options) error {
	// Phase 1 runs first so profiling can log.
	deps, err := NewCommandDeps(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	log := deps.Logger

	// Phase 0: Profiling
	if pprofServer := profiling.StartPprof(deps.Config.Profiling, log); pprofServer != nil {
		defer pprofServer.Close()
	}
	profiler, err := profiling.StartPyroscope(deps.Config.Profiling, deps.Config.Service.Name, opts.Version, log)
	if err != nil {
		return fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	defer func() {
		if stopErr := profiler.Stop(); stopErr != nil {
			log.Warn("Failed to stop Pyroscope profiler", logger.Error(stopErr))
		}
	}()

	// Phases 2-5
	rt, err := NewRuntime(ctx, deps)
	if err != nil {
		return fmt.Errorf("failed to set up services: %w", err)
	}

	if recoverErr := rt.Services.Orchestrator.RecoverOrphans(ctx); recoverErr != nil {
		rt.Close()
		return fmt.Errorf("failed to recover orphaned jobs: %w", recoverErr)
	}

	sched, err := SetupScheduler(deps, rt.Services.Orchestrator, rt.Metrics)
	if err != nil {
		rt.Close()
		return err
	}
	if sched != nil {
		if startErr := sched.Start(ctx); startErr != nil {
			rt.Close()
			return fmt.Errorf("failed to start scheduler: %w", startErr)
		}
	}

	// Phase 6: Server
	srv := SetupHTTPServer(rt, sched)

	// Phase 7: Run
	return RunUntilInterrupt(ctx, rt, sched, srv)
}
