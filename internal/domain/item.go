package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// SyncStatus tracks whether the external index holds an item's current content.
type SyncStatus string

const (
	SyncStatusNeverSynced SyncStatus = "never_synced"
	SyncStatusSynced      SyncStatus = "synced"
	SyncStatusStale       SyncStatus = "stale"
	SyncStatusFailed      SyncStatus = "sync_failed"
)

// PendingSyncStatuses are the statuses a sync pass picks up.
var PendingSyncStatuses = []SyncStatus{
	SyncStatusNeverSynced,
	SyncStatusStale,
	SyncStatusFailed,
}

// ItemType names the kind of persisted item a sync log entry refers to.
type ItemType string

const (
	ItemTypeRecord  ItemType = "record"
	ItemTypeContent ItemType = "content"
)

// Attributes is the fixed key/value attribute set of a record.
type Attributes map[string]string

// Value implements driver.Valuer.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(a))
}

// Scan implements sql.Scanner.
func (a *Attributes) Scan(src any) error {
	return scanJSON(src, a)
}

// ImageList is an ordered list of image URLs.
type ImageList []string

// Value implements driver.Valuer.
func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Scan implements sql.Scanner.
func (l *ImageList) Scan(src any) error {
	return scanJSON(src, l)
}

// Record is a structured item, such as an adoptable animal profile.
type Record struct {
	ExternalReference string     `db:"external_reference" json:"external_reference"`
	Category          string     `db:"category"           json:"category"`
	Attributes        Attributes `db:"attributes"         json:"attributes"`
	Description       string     `db:"description"        json:"description"`
	Images            ImageList  `db:"images"             json:"images"`
	SourceURL         string     `db:"source_url"         json:"source_url"`
	ContentHash       string     `db:"content_hash"       json:"content_hash"`
	SyncStatus        SyncStatus `db:"sync_status"        json:"sync_status"`
	TombstonedAt      *time.Time `db:"tombstoned_at"      json:"tombstoned_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at"         json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"         json:"updated_at"`
}

// ContentItem is a general page reduced to normalized text.
type ContentItem struct {
	SourceURL      string     `db:"source_url"      json:"source_url"`
	Category       string     `db:"category"        json:"category"`
	Title          string     `db:"title"           json:"title"`
	NormalizedText string     `db:"normalized_text" json:"normalized_text"`
	ContentHash    string     `db:"content_hash"    json:"content_hash"`
	SyncStatus     SyncStatus `db:"sync_status"     json:"sync_status"`
	TombstonedAt   *time.Time `db:"tombstoned_at"   json:"tombstoned_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// Item is a freshly extracted record or content item.
type Item interface {
	ItemType() ItemType
	// NaturalKey is the stable source-derived identifier used for upserts.
	NaturalKey() string
	// Hash is the content fingerprint.
	Hash() string
	// PageURL is the page the item was extracted from.
	PageURL() string
}

func (r *Record) ItemType() ItemType { return ItemTypeRecord }
func (r *Record) NaturalKey() string { return r.ExternalReference }
func (r *Record) Hash() string       { return r.ContentHash }
func (r *Record) PageURL() string    { return r.SourceURL }

func (c *ContentItem) ItemType() ItemType { return ItemTypeContent }
func (c *ContentItem) NaturalKey() string { return c.SourceURL }
func (c *ContentItem) Hash() string       { return c.ContentHash }
func (c *ContentItem) PageURL() string    { return c.SourceURL }

// ChangeAction is the outcome of change detection for one item.
type ChangeAction string

const (
	ChangeCreated   ChangeAction = "created"
	ChangeUpdated   ChangeAction = "updated"
	ChangeUnchanged ChangeAction = "unchanged"
)
