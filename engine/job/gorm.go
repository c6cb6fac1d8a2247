package job

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// GormStore persists jobs through GORM (sqlite or postgres).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the jobs table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Job{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Create inserts a new job row.
func (s *GormStore) Create(ctx context.Context, j *Job) error {
	return s.db.WithContext(ctx).Create(j).Error
}

// Get loads a job by id.
func (s *GormStore) Get(ctx context.Context, id string) (*Job, error) {
	var j Job
	err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Transition applies a compare-and-set status update: the row is only
// written if its status still equals from. A conditional UPDATE keeps
// the gate atomic without an explicit transaction.
func (s *GormStore) Transition(ctx context.Context, id string, from, to Status, up Update) (*Job, error) {
	result, err := checkTransition(from, to, up)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	switch to {
	case StatusCompleted:
		updates["result"] = result
	case StatusFailed:
		updates["error_message"] = up.ErrorMessage
	}

	tx := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		// Distinguish a missing row from a lost race.
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStaleTransition
	}
	return s.Get(ctx, id)
}
