// Package worker executes queued scrape jobs. It owns the job state
// machine on the asynchronous side: pending → processing → terminal,
// with the processing transition doubling as the single-writer gate so
// at most one worker ever executes a given job.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/toksmith/toksmith/engine/job"
	"github.com/toksmith/toksmith/engine/scrape"
	"github.com/toksmith/toksmith/pkg/metrics"
)

// DefaultTimeout bounds a single scraper invocation.
const DefaultTimeout = 60 * time.Second

const genericFailure = "internal error while processing job"

// Deps wires the processor's collaborators.
type Deps struct {
	Store    job.Store
	Scrapers *scrape.Registry
	// Timeout bounds each scrape; zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
	// Metrics is optional.
	Metrics *metrics.Registry
}

// Processor runs one job per queue message.
type Processor struct {
	store    job.Store
	scrapers *scrape.Registry
	timeout  time.Duration
	log      *slog.Logger

	mStarted   *metrics.Counter
	mCompleted *metrics.Counter
	mFailed    *metrics.Counter
	mDuration  *metrics.Histogram
}

// New creates a Processor.
func New(d Deps) *Processor {
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	p := &Processor{
		store:    d.Store,
		scrapers: d.Scrapers,
		timeout:  d.Timeout,
		log:      d.Logger,
	}
	if d.Metrics != nil {
		p.mStarted = d.Metrics.Counter("toksmith_worker_jobs_started_total", "Jobs that entered processing")
		p.mCompleted = d.Metrics.Counter("toksmith_worker_jobs_completed_total", "Jobs that completed")
		p.mFailed = d.Metrics.Counter("toksmith_worker_jobs_failed_total", "Jobs that failed")
		p.mDuration = d.Metrics.Histogram("toksmith_worker_job_duration_seconds", "Per-job processing time", nil)
	}
	return p
}

// Process handles one dequeued job id. It never returns an error to
// the queue layer: every scrape outcome resolves to a terminal job
// state, and faults that cannot be recorded are logged rather than
// turned into poison messages.
func (p *Processor) Process(ctx context.Context, jobID string) {
	j, err := p.store.Get(ctx, jobID)
	switch {
	case errors.Is(err, job.ErrNotFound):
		p.log.Warn("dequeued unknown job", "job_id", jobID)
		return
	case err != nil:
		p.log.Error("load job failed", "job_id", jobID, "error", err)
		return
	}
	if j.Status != job.StatusPending {
		p.log.Debug("job already picked up", "job_id", jobID, "status", j.Status)
		return
	}

	j, err = p.store.Transition(ctx, jobID, job.StatusPending, job.StatusProcessing, job.Update{})
	switch {
	case errors.Is(err, job.ErrStaleTransition):
		// Another worker won the gate; abort without executing.
		p.log.Debug("lost processing race", "job_id", jobID)
		return
	case err != nil:
		p.log.Error("processing transition failed", "job_id", jobID, "error", err)
		return
	}

	if p.mStarted != nil {
		p.mStarted.Inc()
	}
	start := time.Now()
	p.execute(ctx, j)
	if p.mDuration != nil {
		p.mDuration.Since(start)
	}
}

// execute runs the scraper and writes the terminal state. Panics from a
// scraper are recovered into a generic failure so one bad provider
// response cannot take down the pool.
func (p *Processor) execute(ctx context.Context, j *job.Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic while processing job", "job_id", j.ID, "panic", r)
			p.fail(ctx, j, genericFailure)
		}
	}()

	scraper, err := p.scrapers.Resolve(j.Source)
	if err != nil {
		// Unreachable for validated submissions; fail loudly instead of
		// silently dropping the job.
		p.log.Error("invariant violation: unresolvable scraper", "job_id", j.ID, "source", j.Source)
		p.fail(ctx, j, genericFailure)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	content, err := scraper.Fetch(fetchCtx, j.Input())
	if err != nil {
		msg := genericFailure
		var sErr *scrape.Error
		if errors.As(err, &sErr) {
			msg = sErr.Message()
		} else if errors.Is(err, context.DeadlineExceeded) {
			msg = "timed out fetching content"
		}
		p.log.Warn("scrape failed", "job_id", j.ID, "source", j.Source, "error", err)
		p.fail(ctx, j, msg)
		return
	}

	if _, err := p.store.Transition(ctx, j.ID, job.StatusProcessing, job.StatusCompleted, job.Update{Result: content}); err != nil {
		p.log.Error("completed transition failed", "job_id", j.ID, "error", err)
		return
	}
	if p.mCompleted != nil {
		p.mCompleted.Inc()
	}
	p.log.Info("job completed", "job_id", j.ID, "source", j.Source)
}

func (p *Processor) fail(ctx context.Context, j *job.Job, msg string) {
	if _, err := p.store.Transition(ctx, j.ID, job.StatusProcessing, job.StatusFailed, job.Update{ErrorMessage: msg}); err != nil {
		p.log.Error("failed transition failed", "job_id", j.ID, "error", err)
		return
	}
	if p.mFailed != nil {
		p.mFailed.Inc()
	}
}
