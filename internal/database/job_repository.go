package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

const (
	jobSelectColumns = `id, job_type, status, triggered_by, started_at, finished_at, error_message,
		discovered, fetched, created, updated, unchanged, failed`

	oneRunningJobConstraint = "idx_ingestion_jobs_one_running"
)

// JobRepository handles database operations for ingestion jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a running job. A second running job of the same type is
// rejected by the partial unique index and reported as a SchedulingError.
func (r *JobRepository) Create(ctx context.Context, job *domain.IngestionJob) error {
	query := `
		INSERT INTO ingestion_jobs (id, job_type, status, triggered_by)
		VALUES ($1, $2, 'running', $3)
		RETURNING started_at
	`

	err := r.db.QueryRowContext(ctx, query, job.ID, job.JobType, job.Trigger).Scan(&job.StartedAt)
	if err != nil {
		if isUniqueViolation(err, oneRunningJobConstraint) {
			return &domain.SchedulingError{Kind: domain.SchedulingJobAlreadyRunning, JobType: job.JobType}
		}
		return classify("create job", fmt.Errorf("failed to create job: %w", err))
	}

	job.Status = domain.JobStatusRunning
	return nil
}

// UpdateCounts stores progress counters of a running job.
func (r *JobRepository) UpdateCounts(ctx context.Context, id string, counts domain.JobCounts) error {
	query := `
		UPDATE ingestion_jobs
		SET discovered = $2, fetched = $3, created = $4, updated = $5, unchanged = $6, failed = $7
		WHERE id = $1 AND status = 'running'
	`

	_, err := r.db.ExecContext(ctx, query, id,
		counts.Discovered, counts.Fetched, counts.Created, counts.Updated, counts.Unchanged, counts.Failed)
	if err != nil {
		return classify("update job counts", fmt.Errorf("failed to update job counts: %w", err))
	}
	return nil
}

// Finish moves a running job to its terminal status with final counts.
func (r *JobRepository) Finish(ctx context.Context, job *domain.IngestionJob) error {
	if err := domain.ValidateJobTransition(domain.JobStatusRunning, job.Status); err != nil {
		return err
	}

	query := `
		UPDATE ingestion_jobs
		SET status = $2, finished_at = NOW(), error_message = $3,
		    discovered = $4, fetched = $5, created = $6, updated = $7, unchanged = $8, failed = $9
		WHERE id = $1 AND status = 'running'
		RETURNING finished_at
	`

	err := r.db.QueryRowContext(ctx, query, job.ID, job.Status, job.ErrorMessage,
		job.Discovered, job.Fetched, job.Created, job.Updated, job.Unchanged, job.Failed,
	).Scan(&job.FinishedAt)
	if err != nil {
		return notFoundOr(err, fmt.Errorf("%w: %s", domain.ErrJobNotFound, job.ID), "finish job")
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.IngestionJob, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM ingestion_jobs WHERE id = $1`

	var job domain.IngestionJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, notFoundOr(err, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id), "get job")
	}
	return &job, nil
}

// List returns recent jobs, optionally filtered by type.
func (r *JobRepository) List(ctx context.Context, jobType domain.JobType, limit int) ([]*domain.IngestionJob, error) {
	query := `
		SELECT ` + jobSelectColumns + `
		FROM ingestion_jobs
		WHERE ($1 = '' OR job_type = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`

	var jobs []*domain.IngestionJob
	if err := r.db.SelectContext(ctx, &jobs, query, string(jobType), limit); err != nil {
		return nil, classify("list jobs", fmt.Errorf("failed to list jobs: %w", err))
	}
	if jobs == nil {
		jobs = []*domain.IngestionJob{}
	}
	return jobs, nil
}

// LatestByType returns the most recent job of each type.
func (r *JobRepository) LatestByType(ctx context.Context) (map[domain.JobType]*domain.IngestionJob, error) {
	query := `
		SELECT DISTINCT ON (job_type) ` + jobSelectColumns + `
		FROM ingestion_jobs
		ORDER BY job_type, started_at DESC
	`

	var jobs []*domain.IngestionJob
	if err := r.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, classify("latest jobs", fmt.Errorf("failed to get latest jobs: %w", err))
	}

	latest := make(map[domain.JobType]*domain.IngestionJob, len(jobs))
	for _, j := range jobs {
		latest[j.JobType] = j
	}
	return latest, nil
}

// FailOrphaned marks every running job failed. Called at startup, before
// this process starts any job, to release rows left by a crash.
func (r *JobRepository) FailOrphaned(ctx context.Context, reason string) (int, error) {
	query := `
		UPDATE ingestion_jobs
		SET status = 'failed', finished_at = NOW(), error_message = $1
		WHERE status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query, reason)
	if err != nil {
		return 0, classify("fail orphaned jobs", fmt.Errorf("failed to fail orphaned jobs: %w", err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, classify("fail orphaned jobs", err)
	}
	return int(n), nil
}
