package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	ErrJobAlreadyRunning = errors.New("job already running")
	ErrJobNotFound       = errors.New("job not found")
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrItemNotFound      = errors.New("item not found")
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

const (
	FetchTimeout   FetchErrorKind = "timeout"
	FetchNetwork   FetchErrorKind = "network"
	FetchHTTPError FetchErrorKind = "http_error"
	FetchBlocked   FetchErrorKind = "blocked"
)

// FetchError is returned by fetchers for any failed page fetch.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *FetchError) Retryable() bool {
	return e.Kind == FetchTimeout || e.Kind == FetchNetwork
}

// ParseErrorKind classifies extraction failures.
type ParseErrorKind string

const (
	ParseMissingRequiredField ParseErrorKind = "missing_required_field"
	ParseMalformedTable       ParseErrorKind = "malformed_table"
)

// ParseError is returned by extractors when a page cannot produce an item.
type ParseError struct {
	Kind  ParseErrorKind
	URL   string
	Field string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s: %s: %s", e.URL, e.Kind, e.Field)
	}
	return fmt.Sprintf("parse %s: %s", e.URL, e.Kind)
}

// PersistenceErrorKind classifies store failures.
type PersistenceErrorKind string

const (
	PersistenceConstraintViolation PersistenceErrorKind = "constraint_violation"
	PersistenceConnectionLost      PersistenceErrorKind = "connection_lost"
	PersistenceOther               PersistenceErrorKind = "other"
)

// PersistenceError wraps a store failure with its classification.
type PersistenceError struct {
	Kind PersistenceErrorKind
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsConnectionLost reports whether err is a persistence failure after which
// no further writes can be trusted.
func IsConnectionLost(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Kind == PersistenceConnectionLost
}

// IndexErrorKind classifies external index failures.
type IndexErrorKind string

const (
	IndexUploadFailed  IndexErrorKind = "upload_failed"
	IndexDeleteFailed  IndexErrorKind = "delete_failed"
	IndexQuotaExceeded IndexErrorKind = "quota_exceeded"
)

// IndexError is returned by the external index client.
type IndexError struct {
	Kind IndexErrorKind
	Ref  string
	Err  error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s %s: %v", e.Kind, e.Ref, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// IsQuotaExceeded reports whether err signals the index refused more writes.
func IsQuotaExceeded(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie) && ie.Kind == IndexQuotaExceeded
}

// SchedulingErrorKind classifies trigger refusals.
type SchedulingErrorKind string

const SchedulingJobAlreadyRunning SchedulingErrorKind = "job_already_running"

// SchedulingError is returned when a job cannot be started.
type SchedulingError struct {
	Kind    SchedulingErrorKind
	JobType JobType
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("%s: %s", e.JobType, e.Kind)
}

// Is lets errors.Is(err, ErrJobAlreadyRunning) match.
func (e *SchedulingError) Is(target error) bool {
	return target == ErrJobAlreadyRunning && e.Kind == SchedulingJobAlreadyRunning
}
