package logger

import (
	"time"

	"go.uber.org/zap"
)

// String creates a string field.
func String(key, val string) Field { return zap.String(key, val) }

// Int creates an int field.
func Int(key string, val int) Field { return zap.Int(key, val) }

// Int64 creates an int64 field.
func Int64(key string, val int64) Field { return zap.Int64(key, val) }

// Float64 creates a float64 field.
func Float64(key string, val float64) Field { return zap.Float64(key, val) }

// Bool creates a bool field.
func Bool(key string, val bool) Field { return zap.Bool(key, val) }

// Duration creates a duration field.
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

// Time creates a time field.
func Time(key string, val time.Time) Field { return zap.Time(key, val) }

// Error creates an error field with the key "error".
func Error(err error) Field { return zap.Error(err) }

// Any creates a field that can hold any value.
func Any(key string, val any) Field { return zap.Any(key, val) }

// Strings creates a string slice field.
func Strings(key string, val []string) Field { return zap.Strings(key, val) }

// Pipeline field keys. Kept stable so log queries keep working across releases.
const (
	KeyJobID    = "job_id"
	KeyJobType  = "job_type"
	KeyURL      = "url"
	KeyItemRef  = "item_ref"
	KeyItemType = "item_type"
	KeyCategory = "category"
	KeyScope    = "scope"
)

// JobID tags an entry with the ingestion job it belongs to.
func JobID(id string) Field { return zap.String(KeyJobID, id) }

// JobType tags an entry with a job type.
func JobType(jobType string) Field { return zap.String(KeyJobType, jobType) }

// URL tags an entry with the page URL being processed.
func URL(u string) Field { return zap.String(KeyURL, u) }

// ItemRef tags an entry with an item's natural key.
func ItemRef(ref string) Field { return zap.String(KeyItemRef, ref) }

// ItemType tags an entry with the kind of persisted item.
func ItemType(itemType string) Field { return zap.String(KeyItemType, itemType) }

// Category tags an entry with a discovery category.
func Category(category string) Field { return zap.String(KeyCategory, category) }

// Scope tags an entry with a sync scope.
func Scope(scope string) Field { return zap.String(KeyScope, scope) }
