package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/scheduler"
)

const defaultShutdownTimeout = 30 * time.Second

// RunUntilInterrupt blocks until SIGINT, SIGTERM, ctx cancellation or a
// server error, then shuts everything down.
func RunUntilInterrupt(ctx context.Context, rt *Runtime, sched *scheduler.Scheduler, srv *ServerComponents) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case serverErr, ok := <-srv.ErrorChan:
		if ok && serverErr != nil {
			rt.Deps.Logger.Error("Server error", logger.Error(serverErr))
			runErr = fmt.Errorf("server error: %w", serverErr)
		}
	case <-sigCtx.Done():
		rt.Deps.Logger.Info("Shutdown signal received")
	}

	if shutdownErr := Shutdown(rt, sched, srv); shutdownErr != nil {
		return errors.Join(runErr, shutdownErr)
	}
	return runErr
}

// Shutdown stops triggers before the work they start: the scheduler, then
// the HTTP server, then running jobs, then the connections.
func Shutdown(rt *Runtime, sched *scheduler.Scheduler, srv *ServerComponents) error {
	log := rt.Deps.Logger
	timeout := rt.Deps.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error

	if sched != nil {
		log.Info("Stopping scheduler")
		if err := sched.Stop(ctx); err != nil {
			log.Error("Failed to stop scheduler", logger.Error(err))
			errs = append(errs, err)
		}
	}

	if srv != nil {
		if err := srv.Server.Shutdown(ctx); err != nil {
			log.Error("Failed to stop server", logger.Error(err))
			errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
		}
	}

	log.Info("Stopping running jobs")
	if err := rt.Services.Orchestrator.Shutdown(ctx); err != nil {
		log.Error("Failed to stop running jobs", logger.Error(err))
		errs = append(errs, err)
	}

	rt.Close()
	log.Info("Shutdown complete")
	return errors.Join(errs...)
}
