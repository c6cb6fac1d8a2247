package job

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory Store with the same compare-and-set
// semantics as GormStore. Used in tests.
type MemStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{jobs: make(map[string]*Job)}
}

// Create inserts a new job.
func (s *MemStore) Create(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	now := time.Now().UTC()
	cp := j.clone()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.jobs[j.ID] = cp
	j.CreatedAt = now
	j.UpdatedAt = now
	return nil
}

// Get returns a copy of the job, so repeated reads are stable even if
// the record is mutated afterwards.
func (s *MemStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.clone(), nil
}

// Len reports the number of stored jobs.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Transition applies a compare-and-set status update under the store
// lock.
func (s *MemStore) Transition(_ context.Context, id string, from, to Status, up Update) (*Job, error) {
	result, err := checkTransition(from, to, up)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if j.Status != from {
		return nil, ErrStaleTransition
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	switch to {
	case StatusCompleted:
		j.Result = result
	case StatusFailed:
		msg := up.ErrorMessage
		j.ErrorMessage = &msg
	}
	return j.clone(), nil
}
