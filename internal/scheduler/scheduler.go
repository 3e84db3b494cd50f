// Package scheduler fires ingestion jobs on their configured cadences. A
// tick whose job type is already running is skipped, never queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/metrics"
)

// Triggerer starts jobs. It is satisfied by the ingestion orchestrator.
type Triggerer interface {
	Trigger(ctx context.Context, jobType domain.JobType, trigger domain.JobTrigger) (*domain.IngestionJob, error)
}

// State is the scheduler lifecycle state.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Scheduler owns the cron instance and the next-fire time of every
// scheduled job type.
type Scheduler struct {
	cfg     Config
	trigger Triggerer
	metrics *metrics.Metrics
	log     logger.Logger

	parser    cron.Parser
	location  *time.Location
	specs     map[domain.JobType]string
	schedules map[domain.JobType]cron.Schedule

	mu      sync.Mutex
	state   State
	cron    *cron.Cron
	entries map[domain.JobType]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// New validates cfg and creates a stopped scheduler.
func New(cfg Config, trigger Triggerer, m *metrics.Metrics, log logger.Logger) (*Scheduler, error) {
	cfg.SetDefaults()

	specs, err := cfg.Specs()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.NewNop()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedules := make(map[domain.JobType]cron.Schedule, len(specs))
	for jobType, spec := range specs {
		sched, parseErr := parser.Parse(spec)
		if parseErr != nil {
			return nil, fmt.Errorf("parse %s schedule %q: %w", jobType, spec, parseErr)
		}
		schedules[jobType] = sched
	}

	return &Scheduler{
		cfg:       cfg,
		trigger:   trigger,
		metrics:   m,
		log:       log,
		parser:    parser,
		location:  loc,
		specs:     specs,
		schedules: schedules,
		state:     StateStopped,
		entries:   make(map[domain.JobType]cron.EntryID),
	}, nil
}

// Start registers every cadence and starts the timer loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return errors.New("scheduler already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.cron = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.location),
		cron.WithChain(cron.Recover(cronLogger{log: s.log})),
		cron.WithLogger(cronLogger{log: s.log}),
	)

	for _, jobType := range sortedTypes(s.specs) {
		spec := s.specs[jobType]
		entryID, err := s.cron.AddFunc(spec, func() { s.fire(jobType, domain.TriggerScheduled) })
		if err != nil {
			s.cancel()
			return fmt.Errorf("schedule %s: %w", jobType, err)
		}
		s.entries[jobType] = entryID
	}

	s.cron.Start()
	s.state = StateRunning

	for jobType, next := range s.nextRunsLocked() {
		s.log.Info("Job scheduled",
			logger.JobType(string(jobType)),
			logger.String("spec", s.specs[jobType]),
			logger.Time("next_run", next),
		)
	}

	if s.cfg.RunRecordsOnStartup {
		go s.fire(domain.JobTypeRecordScrape, domain.TriggerStartup)
	}

	return nil
}

// Stop removes every cadence and waits for running tick callbacks to
// return, or for ctx to end. Jobs already started keep running.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	stopped := s.cron.Stop()
	s.cancel()
	for jobType, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, jobType)
	}
	s.state = StateStopped
	s.mu.Unlock()

	select {
	case <-stopped.Done():
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduler: %w", ctx.Err())
	}
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextRuns returns the next fire time of every scheduled job type.
func (s *Scheduler) NextRuns() map[domain.JobType]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunsLocked()
}

func (s *Scheduler) nextRunsLocked() map[domain.JobType]time.Time {
	out := make(map[domain.JobType]time.Time, len(s.schedules))
	if s.state == StateRunning {
		for jobType, id := range s.entries {
			if next := s.cron.Entry(id).Next; !next.IsZero() {
				out[jobType] = next
				continue
			}
			out[jobType] = s.schedules[jobType].Next(time.Now().In(s.location))
		}
		return out
	}

	now := time.Now().In(s.location)
	for jobType, sched := range s.schedules {
		out[jobType] = sched.Next(now)
	}
	return out
}

// fire triggers one job. A job type that is already running skips the tick.
func (s *Scheduler) fire(jobType domain.JobType, trigger domain.JobTrigger) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	job, err := s.trigger.Trigger(ctx, jobType, trigger)
	switch {
	case errors.Is(err, domain.ErrJobAlreadyRunning):
		s.metrics.Skipped(string(jobType))
		s.log.Info("Skipping scheduled run, job already running",
			logger.JobType(string(jobType)),
			logger.String("trigger", string(trigger)),
		)
	case err != nil:
		s.log.Error("Failed to trigger scheduled job",
			logger.JobType(string(jobType)),
			logger.Error(err),
		)
	default:
		s.log.Info("Scheduled job triggered",
			logger.JobID(job.ID),
			logger.JobType(string(jobType)),
			logger.String("trigger", string(trigger)),
		)
	}
}

func sortedTypes(specs map[domain.JobType]string) []domain.JobType {
	out := make([]domain.JobType, 0, len(specs))
	for jobType := range specs {
		out = append(out, jobType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
