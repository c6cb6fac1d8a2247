// Package intake is the synchronous submission path: it classifies the
// input, validates it, records a pending job, and hands the job id to
// the queue. It never waits for a scrape; callers poll job status
// through the same service.
package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toksmith/toksmith/engine/job"
	"github.com/toksmith/toksmith/engine/source"
)

// SubjectScrape is the queue subject carrying job ids from the
// submission path to the worker pool.
const SubjectScrape = "jobs.scrape"

// JobMessage is the queue payload. It carries only the job id; the
// worker loads everything else from the store.
type JobMessage struct {
	JobID string `json:"job_id"`
}

// Publisher hands a job id to the queue.
type Publisher interface {
	Publish(ctx context.Context, subject string, msg JobMessage) error
}

// SubmitRequest is one submission. Exactly one of URL and Script must
// be set; Source is optional and inferred from URL when omitted.
type SubmitRequest struct {
	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
	Script string `json:"script,omitempty"`
}

// SubmitResult is the handle returned for an accepted submission.
type SubmitResult struct {
	JobID string `json:"job_id"`
}

// Service orchestrates submissions and status queries.
type Service struct {
	store job.Store
	pub   Publisher
	log   *slog.Logger
}

// New creates the orchestrator.
func New(store job.Store, pub Publisher, log *slog.Logger) *Service {
	return &Service{store: store, pub: pub, log: log}
}

// Submit validates the request, creates a pending job, and enqueues its
// id. Validation failures return *source.ValidationError and leave no
// trace: no job row, no queue message. A store failure also prevents
// the enqueue, so the queue never carries an id that failed to persist.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	tag, ref, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	if err := source.Validate(tag, ref); err != nil {
		return nil, err
	}

	var j *job.Job
	if tag == source.Script {
		j = job.New(tag, nil, &req.Script)
	} else {
		j = job.New(tag, &req.URL, nil)
	}
	if err := s.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.pub.Publish(ctx, SubjectScrape, JobMessage{JobID: j.ID}); err != nil {
		// The pending row remains; the caller sees the failure and may
		// resubmit.
		s.log.Error("enqueue failed", "job_id", j.ID, "error", err)
		return nil, fmt.Errorf("enqueue job %s: %w", j.ID, err)
	}

	s.log.Info("job submitted", "job_id", j.ID, "source", tag)
	return &SubmitResult{JobID: j.ID}, nil
}

// resolve determines the source tag and the reference to validate.
func (s *Service) resolve(req SubmitRequest) (source.Tag, string, error) {
	if (req.URL != "") == (req.Script != "") {
		return source.Unknown, "", source.NewValidationError("url", req.URL, source.ErrExactlyOneInput)
	}

	var tag source.Tag
	if req.Source != "" {
		tag = source.ParseTag(req.Source)
		if tag == source.Unknown {
			return source.Unknown, "", source.NewValidationError("source", req.Source, source.ErrUnsupportedSource)
		}
	} else if req.Script != "" {
		tag = source.Script
	} else {
		tag = source.Infer(req.URL)
	}

	if tag == source.Script {
		if req.Script == "" {
			return tag, "", source.NewValidationError("script", "", source.ErrMissingScript)
		}
		return tag, req.Script, nil
	}
	if req.URL == "" {
		return tag, "", source.NewValidationError("url", "", source.ErrMissingURL)
	}
	return tag, req.URL, nil
}

// Status loads the job behind a handle.
func (s *Service) Status(ctx context.Context, id string) (*job.Job, error) {
	return s.store.Get(ctx, id)
}

// Sources lists the supported source tags with their submission
// requirements.
func (s *Service) Sources() []source.Descriptor {
	return source.Descriptors()
}
