package domain

import (
	"fmt"
	"time"
)

// SyncScope selects which item types a sync pass covers.
type SyncScope string

const (
	SyncScopeRecords        SyncScope = "records"
	SyncScopeGeneralContent SyncScope = "general_content"
	SyncScopeAll            SyncScope = "all"
)

// ParseSyncScope validates a scope string. Empty means all.
func ParseSyncScope(s string) (SyncScope, error) {
	switch SyncScope(s) {
	case "", SyncScopeAll:
		return SyncScopeAll, nil
	case SyncScopeRecords, SyncScopeGeneralContent:
		return SyncScope(s), nil
	default:
		return "", fmt.Errorf("unknown sync scope %q", s)
	}
}

// ItemTypes returns the item types the scope covers.
func (s SyncScope) ItemTypes() []ItemType {
	switch s {
	case SyncScopeRecords:
		return []ItemType{ItemTypeRecord}
	case SyncScopeGeneralContent:
		return []ItemType{ItemTypeContent}
	default:
		return []ItemType{ItemTypeRecord, ItemTypeContent}
	}
}

// SyncAction is the kind of external index call a log entry records.
type SyncAction string

const (
	SyncActionUpsert SyncAction = "upsert"
	SyncActionDelete SyncAction = "delete"
)

// SyncResult is the outcome of one external index call.
type SyncResult string

const (
	SyncResultSuccess SyncResult = "success"
	SyncResultFailure SyncResult = "failure"
)

// SyncLogEntry is an append-only record of one external index call.
type SyncLogEntry struct {
	ID                int64      `db:"id"                   json:"id"`
	ItemReference     string     `db:"item_reference"       json:"item_reference"`
	ItemType          ItemType   `db:"item_type"            json:"item_type"`
	Action            SyncAction `db:"action"               json:"action"`
	ContentHashAtSync string     `db:"content_hash_at_sync" json:"content_hash_at_sync"`
	SyncedAt          time.Time  `db:"synced_at"            json:"synced_at"`
	Result            SyncResult `db:"result"               json:"result"`
	ExternalIndexID   *string    `db:"external_index_id"    json:"external_index_id,omitempty"`
	ErrorMessage      *string    `db:"error_message"        json:"error_message,omitempty"`
}

// SyncSummary reports the totals of one sync pass.
type SyncSummary struct {
	Scope    SyncScope `json:"scope"`
	Uploaded int       `json:"uploaded"`
	Deleted  int       `json:"deleted"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

// Add accumulates other into s.
func (s *SyncSummary) Add(other SyncSummary) {
	s.Uploaded += other.Uploaded
	s.Deleted += other.Deleted
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}
