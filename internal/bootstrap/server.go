package bootstrap

import (
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/api"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/scheduler"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/server"
)

// ServerComponents holds the HTTP server and its error channel.
type ServerComponents struct {
	Server    *server.Server
	ErrorChan <-chan error
}

// SetupHTTPServer creates the admin API server and starts it in the
// background.
func SetupHTTPServer(rt *Runtime, sched *scheduler.Scheduler) *ServerComponents {
	cfg := rt.Deps.Config

	// A disabled scheduler must reach the handler as an untyped nil.
	var schedule api.Schedule
	if sched != nil {
		schedule = sched
	}

	handlers := api.Handlers{
		Jobs:  api.NewJobsHandler(rt.Services.Orchestrator),
		Sync:  api.NewSyncHandler(rt.Services.Sync),
		Stats: api.NewStatsHandler(rt.Database.Store, schedule),
	}

	checks := map[string]server.HealthCheck{
		"database":      rt.Database.Store.Ping,
		"elasticsearch": rt.Index.Ping,
	}
	if rt.Events.Redis != nil {
		checks["redis"] = rt.Events.Ping
	}

	srv := server.New(server.Config{
		Address:         cfg.Server.Address(),
		Debug:           cfg.Service.Debug,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ServiceName:     cfg.Service.Name,
		ServiceVersion:  rt.Deps.Version,
	}, rt.Deps.Logger, func(router *gin.Engine) {
		server.RegisterHealthRoutes(router, cfg.Service.Name, rt.Deps.Version, checks)
		if rt.Registry != nil {
			server.RegisterMetricsRoute(router, cfg.Metrics.Path, rt.Registry)
		}
		api.RegisterRoutes(router, handlers)
	})

	return &ServerComponents{Server: srv, ErrorChan: srv.StartAsync()}
}
