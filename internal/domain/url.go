// Package domain contains the persisted entities of the ingestion pipeline
// and the error taxonomy shared by every stage.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// URLKind tells which extraction strategy a discovered URL feeds.
type URLKind string

const (
	URLKindRecord  URLKind = "record"
	URLKindContent URLKind = "content"
)

// URLStatus is the lifecycle state of a discovered URL.
type URLStatus string

const (
	URLStatusPending URLStatus = "pending"
	URLStatusFetched URLStatus = "fetched"
	URLStatusParsed  URLStatus = "parsed"
	URLStatusFailed  URLStatus = "failed"
	// URLStatusRemoved marks a URL absent from a complete discovery pass.
	URLStatusRemoved URLStatus = "removed"
)

// DiscoveredURL is a candidate page found by discovery.
type DiscoveredURL struct {
	URL           string      `db:"url"             json:"url"`
	Category      string      `db:"category"        json:"category"`
	Kind          URLKind     `db:"kind"            json:"kind"`
	Status        URLStatus   `db:"status"          json:"status"`
	DiscoveredAt  time.Time   `db:"discovered_at"   json:"discovered_at"`
	LastAttemptAt *time.Time  `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	AttemptCount  int         `db:"attempt_count"   json:"attempt_count"`
	ContentHash   *string     `db:"content_hash"    json:"content_hash,omitempty"`
	LastError     *string     `db:"last_error"      json:"last_error,omitempty"`
	Hint          ListingHint `db:"hint"            json:"hint"`
}

// ListingHint holds the list-level fields read from a listing card.
// They fill record attributes the detail page does not provide.
type ListingHint struct {
	Name        string `json:"name,omitempty"`
	Species     string `json:"species,omitempty"`
	AgeCategory string `json:"age_category,omitempty"`
	Sex         string `json:"sex,omitempty"`
	Size        string `json:"size,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// Value implements driver.Valuer so hints are stored as JSONB.
func (h ListingHint) Value() (driver.Value, error) {
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *ListingHint) Scan(src any) error {
	return scanJSON(src, h)
}

var urlStatusOrder = []URLStatus{
	URLStatusPending, URLStatusFetched, URLStatusParsed, URLStatusFailed, URLStatusRemoved,
}

var urlTransitions = map[URLStatus][]URLStatus{
	URLStatusPending: {URLStatusFetched, URLStatusFailed, URLStatusRemoved},
	URLStatusFetched: {URLStatusParsed, URLStatusFailed, URLStatusPending, URLStatusRemoved},
	URLStatusParsed:  {URLStatusPending, URLStatusFailed, URLStatusRemoved},
	URLStatusFailed:  {URLStatusPending, URLStatusRemoved},
	URLStatusRemoved: {URLStatusPending},
}

// ValidateURLTransition reports whether a URL may move from one status to another.
// Progress is forward only (pending, fetched, parsed); failed can be reached from
// any active state and a new run resets finished URLs to pending.
func ValidateURLTransition(from, to URLStatus) error {
	for _, allowed := range urlTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: url %s -> %s", ErrInvalidTransition, from, to)
}

// URLStatusesInto returns the statuses ValidateURLTransition accepts as a
// source for to, in lifecycle order.
func URLStatusesInto(to URLStatus) []URLStatus {
	var out []URLStatus
	for _, from := range urlStatusOrder {
		if ValidateURLTransition(from, to) == nil {
			out = append(out, from)
		}
	}
	return out
}

// ErrClaimLost is returned when a URL was claimed again by another run after
// this run claimed it.
var ErrClaimLost = errors.New("url claimed by another run")

// ErrInvalidTransition is returned for a state change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid state transition")

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
