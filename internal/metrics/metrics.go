// Package metrics holds the Prometheus instruments for ingestion and sync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all pipeline metrics.
	Namespace = "shelter_sync"

	subsystemJobs  = "jobs"
	subsystemFetch = "fetch"
	subsystemItems = "items"
	subsystemSync  = "sync"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Job metrics
	JobsStarted     *prometheus.CounterVec
	JobsFinished    *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	JobsRunning     prometheus.Gauge
	ScheduleSkipped *prometheus.CounterVec

	// Fetch metrics
	FetchOutcomes *prometheus.CounterVec

	// Item metrics
	ItemChanges     *prometheus.CounterVec
	ItemsTombstoned *prometheus.CounterVec

	// Sync metrics
	SyncOutcomes *prometheus.CounterVec
	SyncDuration *prometheus.HistogramVec
}

// New creates and registers all metrics with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initJobMetrics(factory)
	m.initItemMetrics(factory)
	m.initSyncMetrics(factory)

	return m
}

// NewNop creates metrics registered on a private registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) initJobMetrics(factory promauto.Factory) {
	m.JobsStarted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemJobs,
			Name:      "started_total",
			Help:      "Total number of ingestion jobs started",
		},
		[]string{"job_type", "trigger"},
	)

	m.JobsFinished = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemJobs,
			Name:      "finished_total",
			Help:      "Total number of ingestion jobs finished",
		},
		[]string{"job_type", "status"},
	)

	m.JobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemJobs,
			Name:      "duration_seconds",
			Help:      "Duration of ingestion jobs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		},
		[]string{"job_type"},
	)

	m.JobsRunning = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemJobs,
			Name:      "running",
			Help:      "Number of ingestion jobs currently running",
		},
	)

	m.ScheduleSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemJobs,
			Name:      "schedule_skipped_total",
			Help:      "Scheduled ticks skipped because the job type was already running",
		},
		[]string{"job_type"},
	)
}

func (m *Metrics) initItemMetrics(factory promauto.Factory) {
	m.FetchOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemFetch,
			Name:      "outcomes_total",
			Help:      "Page fetches by fetch mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	m.ItemChanges = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemItems,
			Name:      "changes_total",
			Help:      "Persisted items by change detection outcome",
		},
		[]string{"item_type", "action"},
	)

	m.ItemsTombstoned = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemItems,
			Name:      "tombstoned_total",
			Help:      "Items tombstoned after disappearing from a complete discovery",
		},
		[]string{"kind"},
	)
}

func (m *Metrics) initSyncMetrics(factory promauto.Factory) {
	m.SyncOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemSync,
			Name:      "outcomes_total",
			Help:      "External index calls by item type, action and result",
		},
		[]string{"item_type", "action", "result"},
	)

	m.SyncDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemSync,
			Name:      "duration_seconds",
			Help:      "Duration of sync passes in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"scope"},
	)
}

// JobStarted records a job start.
func (m *Metrics) JobStarted(jobType, trigger string) {
	m.JobsStarted.WithLabelValues(jobType, trigger).Inc()
	m.JobsRunning.Inc()
}

// JobFinished records a job's terminal status and duration.
func (m *Metrics) JobFinished(jobType, status string, d time.Duration) {
	m.JobsFinished.WithLabelValues(jobType, status).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(d.Seconds())
	m.JobsRunning.Dec()
}

// Fetch records one fetch outcome: "ok" or a fetch error kind.
func (m *Metrics) Fetch(mode, outcome string) {
	m.FetchOutcomes.WithLabelValues(mode, outcome).Inc()
}

// ItemChange records one change detection outcome.
func (m *Metrics) ItemChange(itemType, action string) {
	m.ItemChanges.WithLabelValues(itemType, action).Inc()
}

// Tombstoned records n tombstoned items of kind.
func (m *Metrics) Tombstoned(kind string, n int) {
	m.ItemsTombstoned.WithLabelValues(kind).Add(float64(n))
}

// SyncCall records one external index call.
func (m *Metrics) SyncCall(itemType, action, result string) {
	m.SyncOutcomes.WithLabelValues(itemType, action, result).Inc()
}

// SyncPass records a sync pass duration.
func (m *Metrics) SyncPass(scope string, d time.Duration) {
	m.SyncDuration.WithLabelValues(scope).Observe(d.Seconds())
}

// Skipped records a scheduled tick skipped because the job was running.
func (m *Metrics) Skipped(jobType string) {
	m.ScheduleSkipped.WithLabelValues(jobType).Inc()
}
