package domain

import (
	"fmt"
	"time"
)

// JobType selects which stages an ingestion job runs.
type JobType string

const (
	JobTypeURLDiscovery  JobType = "url_discovery"
	JobTypeContentScrape JobType = "content_scrape"
	JobTypeRecordScrape  JobType = "record_scrape"
	JobTypeFull          JobType = "full"
)

// JobTypes lists every job type in stage order.
var JobTypes = []JobType{
	JobTypeURLDiscovery,
	JobTypeRecordScrape,
	JobTypeContentScrape,
	JobTypeFull,
}

// ParseJobType validates a job type string.
func ParseJobType(s string) (JobType, error) {
	for _, jt := range JobTypes {
		if string(jt) == s {
			return jt, nil
		}
	}
	return "", fmt.Errorf("unknown job type %q", s)
}

// JobStatus is the state of an ingestion job.
type JobStatus string

const (
	JobStatusRunning             JobStatus = "running"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
)

// IsTerminal reports whether the job has finished.
func (s JobStatus) IsTerminal() bool {
	return s != JobStatusRunning
}

// JobTrigger records what started a job.
type JobTrigger string

const (
	TriggerScheduled JobTrigger = "scheduled"
	TriggerManual    JobTrigger = "manual"
	TriggerStartup   JobTrigger = "startup"
)

// JobCounts are the per-job outcome counters.
type JobCounts struct {
	Discovered int `db:"discovered" json:"discovered"`
	Fetched    int `db:"fetched"    json:"fetched"`
	Created    int `db:"created"    json:"created"`
	Updated    int `db:"updated"    json:"updated"`
	Unchanged  int `db:"unchanged"  json:"unchanged"`
	Failed     int `db:"failed"     json:"failed"`
}

// Add accumulates other into c.
func (c *JobCounts) Add(other JobCounts) {
	c.Discovered += other.Discovered
	c.Fetched += other.Fetched
	c.Created += other.Created
	c.Updated += other.Updated
	c.Unchanged += other.Unchanged
	c.Failed += other.Failed
}

// Record counts one change-detection outcome.
func (c *JobCounts) Record(action ChangeAction) {
	switch action {
	case ChangeCreated:
		c.Created++
	case ChangeUpdated:
		c.Updated++
	case ChangeUnchanged:
		c.Unchanged++
	}
}

// IngestionJob is one ingestion pass.
type IngestionJob struct {
	ID           string     `db:"id"            json:"id"`
	JobType      JobType    `db:"job_type"      json:"job_type"`
	Status       JobStatus  `db:"status"        json:"status"`
	Trigger      JobTrigger `db:"triggered_by"  json:"trigger"`
	StartedAt    time.Time  `db:"started_at"    json:"started_at"`
	FinishedAt   *time.Time `db:"finished_at"   json:"finished_at,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	JobCounts    `json:"counts"`
}

// Duration returns how long the job ran, or has been running.
func (j *IngestionJob) Duration() time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.StartedAt)
	}
	return time.Since(j.StartedAt)
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusRunning: {JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed},
}

// ValidateJobTransition reports whether a job may move between statuses.
// Only running jobs change state; terminal states are final.
func ValidateJobTransition(from, to JobStatus) error {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: job %s -> %s", ErrInvalidTransition, from, to)
}

// FinalStatus derives a finished job's status from its counts.
func FinalStatus(counts JobCounts) JobStatus {
	if counts.Failed > 0 {
		return JobStatusCompletedWithErrors
	}
	return JobStatusCompleted
}
