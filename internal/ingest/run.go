package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/events"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/extractor"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// errDiscoveryUnreachable fails a job when no discovery source could be
// enumerated.
var errDiscoveryUnreachable = errors.New("discovery unreachable for all sources")

// scrapeStage describes one extraction stage.
type scrapeStage struct {
	kind      domain.URLKind
	mode      fetcher.Mode
	extractor extractor.Extractor
}

// run is the state of one executing job. ctx is cancelled by Cancel; store
// is never cancelled so the item in flight and the final status persist.
type run struct {
	o         *Orchestrator
	job       *domain.IngestionJob
	ctx       context.Context
	store     context.Context
	log       logger.Logger
	processed int
}

func (o *Orchestrator) execute(exec *execution) {
	job := exec.job
	defer exec.cancel()

	r := &run{
		o:     o,
		job:   job,
		ctx:   exec.ctx,
		store: context.WithoutCancel(exec.ctx),
		log:   o.log.With(logger.JobID(job.ID), logger.JobType(string(job.JobType))),
	}

	o.deps.Metrics.JobStarted(string(job.JobType), string(job.Trigger))
	o.events.Emit(r.store, events.New(events.JobStarted, jobPayload(job)))
	r.log.Info("Job started", logger.String("trigger", string(job.Trigger)))

	err := r.stages()
	o.finish(r, err)
}

// finish moves the job to its terminal status, releases the running flag
// and runs the finished hook.
func (o *Orchestrator) finish(r *run, runErr error) {
	job := r.job

	if runErr != nil {
		job.Status = domain.JobStatusFailed
		msg := runErr.Error()
		job.ErrorMessage = &msg
	} else {
		job.Status = domain.FinalStatus(job.JobCounts)
	}

	if err := o.deps.Jobs.Finish(r.store, job); err != nil {
		r.log.Error("Failed to record job result", logger.Error(err))
	}

	o.deps.Metrics.JobFinished(string(job.JobType), string(job.Status), job.Duration())

	fields := []logger.Field{
		logger.String("status", string(job.Status)),
		logger.Int("discovered", job.Discovered),
		logger.Int("fetched", job.Fetched),
		logger.Int("created", job.Created),
		logger.Int("updated", job.Updated),
		logger.Int("unchanged", job.Unchanged),
		logger.Int("failed", job.Failed),
		logger.Duration("duration", job.Duration()),
	}
	if runErr != nil {
		o.events.Emit(r.store, events.New(events.JobFailed, jobPayload(job)))
		r.log.Error("Job failed", append(fields, logger.Error(runErr))...)
	} else {
		o.events.Emit(r.store, events.New(events.JobCompleted, jobPayload(job)))
		r.log.Info("Job finished", fields...)
	}

	o.release(job.JobType)

	if o.onFinished != nil {
		o.onFinished(job)
	}
}

func (r *run) stages() error {
	switch r.job.JobType {
	case domain.JobTypeURLDiscovery:
		return r.discover()
	case domain.JobTypeRecordScrape:
		return r.scrape(r.recordStage())
	case domain.JobTypeContentScrape:
		return r.scrape(r.contentStage())
	case domain.JobTypeFull:
		if err := r.discover(); err != nil {
			return err
		}
		if err := r.scrape(r.recordStage()); err != nil {
			return err
		}
		return r.scrape(r.contentStage())
	default:
		return fmt.Errorf("unknown job type %q", r.job.JobType)
	}
}

func (r *run) recordStage() scrapeStage {
	return scrapeStage{kind: domain.URLKindRecord, mode: fetcher.ModeStructured, extractor: r.o.deps.Records}
}

func (r *run) contentStage() scrapeStage {
	return scrapeStage{kind: domain.URLKindContent, mode: fetcher.ModeBulk, extractor: r.o.deps.Content}
}

// cancelled reports whether Cancel was called.
func (r *run) cancelled() bool {
	return r.ctx.Err() != nil
}

// interrupted maps a stage error caused by cancellation to ErrCancelled.
func (r *run) interrupted(err error) error {
	if r.cancelled() && errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return err
}

// tick counts one processed item and periodically persists the counters.
func (r *run) tick() {
	r.processed++
	if r.processed%r.o.cfg.CountsFlushEvery == 0 {
		r.flushCounts()
	}
}

func (r *run) flushCounts() {
	if err := r.o.deps.Jobs.UpdateCounts(r.store, r.job.ID, r.job.JobCounts); err != nil {
		r.log.Warn("Failed to update job counts", logger.Error(err))
	}
}

func jobPayload(job *domain.IngestionJob) events.JobPayload {
	p := events.JobPayload{
		JobID:   job.ID,
		JobType: job.JobType,
		Trigger: job.Trigger,
		Status:  job.Status,
		Counts:  job.JobCounts,
	}
	if job.ErrorMessage != nil {
		p.Error = *job.ErrorMessage
	}
	return p
}

func itemTypeFor(kind domain.URLKind) domain.ItemType {
	if kind == domain.URLKindRecord {
		return domain.ItemTypeRecord
	}
	return domain.ItemTypeContent
}
