// Package api implements the admin HTTP API: job control, sync passes,
// index audits, stats and the schedule.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/syncer"
)

// JobService starts and inspects ingestion jobs.
type JobService interface {
	Trigger(ctx context.Context, jobType domain.JobType, trigger domain.JobTrigger) (*domain.IngestionJob, error)
	Get(ctx context.Context, jobID string) (*domain.IngestionJob, error)
	List(ctx context.Context, jobType domain.JobType, limit int) ([]*domain.IngestionJob, error)
	Cancel(jobID string) error
}

// SyncService runs sync passes and index audits.
type SyncService interface {
	Sync(ctx context.Context, scope domain.SyncScope) (domain.SyncSummary, error)
	Audit(ctx context.Context) (*syncer.AuditReport, error)
}

// StatsSource assembles the operational snapshot.
type StatsSource interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}

// Schedule reports the next fire time of each scheduled job type.
type Schedule interface {
	NextRuns() map[domain.JobType]time.Time
}

// Handlers groups the API handlers.
type Handlers struct {
	Jobs  *JobsHandler
	Sync  *SyncHandler
	Stats *StatsHandler
}

// RegisterRoutes mounts the API under /api/v1.
func RegisterRoutes(router *gin.Engine, h Handlers) {
	v1 := router.Group("/api/v1")

	jobs := v1.Group("/jobs")
	jobs.POST("", h.Jobs.TriggerJob)
	jobs.GET("", h.Jobs.ListJobs)
	jobs.GET("/:id", h.Jobs.GetJob)
	jobs.POST("/:id/cancel", h.Jobs.CancelJob)

	v1.POST("/sync", h.Sync.TriggerSync)
	v1.GET("/sync/audit", h.Sync.Audit)

	v1.GET("/stats", h.Stats.GetStats)
	v1.GET("/schedule", h.Stats.GetSchedule)
}
