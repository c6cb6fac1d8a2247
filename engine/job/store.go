package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/toksmith/toksmith/engine/scrape"
)

// Store errors.
var (
	// ErrNotFound indicates the job id does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrStaleTransition indicates the job's status no longer matched
	// the expected from-state; another writer got there first.
	ErrStaleTransition = errors.New("job status changed concurrently")
	// ErrInvalidTransition indicates a transition the state machine
	// forbids, or a terminal payload that violates an invariant.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Update carries the payload written alongside a terminal transition.
type Update struct {
	Result       *scrape.Content
	ErrorMessage string
}

// Store is the durable record of jobs. Transition is the only mutation
// path after Create and must be atomic per job id: the from-status acts
// as a single-writer gate.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Transition(ctx context.Context, id string, from, to Status, up Update) (*Job, error)
}

// checkTransition validates the state-machine rules and the terminal
// payload invariants, and returns the serialized result when moving to
// completed.
func checkTransition(from, to Status, up Update) ([]byte, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	switch to {
	case StatusCompleted:
		if up.Result == nil {
			return nil, fmt.Errorf("%w: completed requires a result", ErrInvalidTransition)
		}
		data, err := json.Marshal(up.Result)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		return data, nil
	case StatusFailed:
		if up.ErrorMessage == "" {
			return nil, fmt.Errorf("%w: failed requires an error message", ErrInvalidTransition)
		}
	}
	return nil, nil
}
