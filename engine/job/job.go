// Package job owns the durable job record and its lifecycle state
// machine. All status mutation flows through a store's Transition
// method, which enforces the forward-only transition table with
// compare-and-set semantics so concurrent workers cannot interleave.
package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/toksmith/toksmith/engine/scrape"
	"github.com/toksmith/toksmith/engine/source"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validNext is the forward-only transition table. No transition skips
// processing and terminal states have no successors.
var validNext = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from→to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is the unit of work: one submission tracked from pending to a
// terminal state. Exactly one of Reference and RawScript is non-nil.
type Job struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Source       source.Tag `gorm:"size:16;index" json:"source"`
	Reference    *string    `json:"reference,omitempty"`
	RawScript    *string    `json:"raw_script,omitempty"`
	Status       Status     `gorm:"size:16;index" json:"status"`
	Result       []byte     `gorm:"type:text" json:"-"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// New builds a pending job with a fresh id. Exactly one of reference
// and rawScript must be non-nil; the orchestrator validates this before
// calling.
func New(tag source.Tag, reference, rawScript *string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Source:    tag,
		Reference: reference,
		RawScript: rawScript,
		Status:    StatusPending,
	}
}

// Input returns the scraper reference: the URL for network-backed
// sources, the raw text for scripts.
func (j *Job) Input() string {
	if j.Reference != nil {
		return *j.Reference
	}
	if j.RawScript != nil {
		return *j.RawScript
	}
	return ""
}

// Content decodes the stored result. Only meaningful once the job is
// completed.
func (j *Job) Content() (*scrape.Content, error) {
	if len(j.Result) == 0 {
		return nil, fmt.Errorf("job %s has no result", j.ID)
	}
	var c scrape.Content
	if err := json.Unmarshal(j.Result, &c); err != nil {
		return nil, fmt.Errorf("decode result for job %s: %w", j.ID, err)
	}
	return &c, nil
}

// clone returns a deep-enough copy so store reads never alias the
// stored record.
func (j *Job) clone() *Job {
	cp := *j
	if j.Reference != nil {
		v := *j.Reference
		cp.Reference = &v
	}
	if j.RawScript != nil {
		v := *j.RawScript
		cp.RawScript = &v
	}
	if j.ErrorMessage != nil {
		v := *j.ErrorMessage
		cp.ErrorMessage = &v
	}
	if j.Result != nil {
		cp.Result = append([]byte(nil), j.Result...)
	}
	return &cp
}
