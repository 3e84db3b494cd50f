// Package events publishes pipeline lifecycle events to a Redis stream so
// downstream consumers can react to new and changed items.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// Type names an event.
type Type string

const (
	JobStarted     Type = "job.started"
	JobCompleted   Type = "job.completed"
	JobFailed      Type = "job.failed"
	ItemCreated    Type = "item.created"
	ItemUpdated    Type = "item.updated"
	ItemTombstoned Type = "item.tombstoned"
	SyncStarted    Type = "sync.started"
	SyncCompleted  Type = "sync.completed"
	SyncFailed     Type = "sync.failed"
)

// Event is the envelope written to the stream.
type Event struct {
	ID        uuid.UUID `json:"event_id"`
	Type      Type      `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New creates an event with a fresh ID and timestamp.
func New(t Type, payload any) Event {
	return Event{ID: uuid.New(), Type: t, Timestamp: time.Now().UTC(), Payload: payload}
}

// JobPayload describes an ingestion job.
type JobPayload struct {
	JobID   string            `json:"job_id"`
	JobType domain.JobType    `json:"job_type"`
	Trigger domain.JobTrigger `json:"trigger"`
	Status  domain.JobStatus  `json:"status"`
	Counts  domain.JobCounts  `json:"counts"`
	Error   string            `json:"error,omitempty"`
}

// ItemPayload describes one persisted item change.
type ItemPayload struct {
	JobID     string          `json:"job_id,omitempty"`
	ItemType  domain.ItemType `json:"item_type"`
	Reference string          `json:"reference"`
	Category  string          `json:"category,omitempty"`
	SourceURL string          `json:"source_url,omitempty"`
}

// SyncPayload describes a sync pass.
type SyncPayload struct {
	Scope   domain.SyncScope    `json:"scope"`
	Summary *domain.SyncSummary `json:"summary,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Publisher sends events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards every event. It is used when Redis is disabled.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
