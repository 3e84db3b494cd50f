package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsHandler serves the operational snapshot and the schedule.
type StatsHandler struct {
	stats    StatsSource
	schedule Schedule
}

// NewStatsHandler creates a new stats handler. schedule may be nil when the
// scheduler is disabled.
func NewStatsHandler(stats StatsSource, schedule Schedule) *StatsHandler {
	return &StatsHandler{stats: stats, schedule: schedule}
}

// GetStats handles GET /api/v1/stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		respondInternalError(c, "Failed to retrieve stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetSchedule handles GET /api/v1/schedule
func (h *StatsHandler) GetSchedule(c *gin.Context) {
	if h.schedule == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "next_runs": gin.H{}})
		return
	}

	next := make(map[string]time.Time)
	for jobType, at := range h.schedule.NextRuns() {
		next[string(jobType)] = at
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "next_runs": next})
}
