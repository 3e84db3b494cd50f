package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

const (
	defaultJobsLimit = 20
	maxJobsLimit     = 200
)

// TriggerJobRequest is the body of POST /api/v1/jobs.
type TriggerJobRequest struct {
	JobType string `binding:"required" json:"job_type"`
}

// JobsHandler handles job-related HTTP requests.
type JobsHandler struct {
	jobs JobService
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(jobs JobService) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// TriggerJob handles POST /api/v1/jobs
func (h *JobsHandler) TriggerJob(c *gin.Context) {
	var req TriggerJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	jobType, err := domain.ParseJobType(req.JobType)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.Trigger(c.Request.Context(), jobType, domain.TriggerManual)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "job already running",
				"code":  string(domain.SchedulingJobAlreadyRunning),
			})
			return
		}
		respondInternalError(c, "Failed to start job", err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobsHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respondBadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			respondNotFound(c, "Job")
			return
		}
		respondInternalError(c, "Failed to retrieve job", err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobsHandler) ListJobs(c *gin.Context) {
	var jobType domain.JobType
	if raw := c.Query("job_type"); raw != "" {
		parsed, err := domain.ParseJobType(raw)
		if err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		jobType = parsed
	}

	limit := parseLimit(c, defaultJobsLimit, maxJobsLimit)
	jobs, err := h.jobs.List(c.Request.Context(), jobType, limit)
	if err != nil {
		respondInternalError(c, "Failed to retrieve jobs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
func (h *JobsHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.jobs.Cancel(id); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			respondNotFound(c, "Running job")
			return
		}
		respondInternalError(c, "Failed to cancel job", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "cancelling"})
}
