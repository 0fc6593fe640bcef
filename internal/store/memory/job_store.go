package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tubesum/internal/models"
	"tubesum/internal/store"
)

// JobStore keeps jobs in a process-local map guarded by one RWMutex.
// Readers always receive clones, so a Get racing an Update sees either the
// old or the new record, never a half-written one.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	now  func() time.Time
}

var _ store.JobStore = (*JobStore)(nil)

// New returns an empty in-memory job store.
func New() *JobStore {
	return &JobStore{
		jobs: make(map[string]*models.Job),
		now:  time.Now,
	}
}

func (s *JobStore) Create(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id is required", models.ErrValidation)
	}
	if job.Status != models.JobStatusQueued {
		return fmt.Errorf("%w: new job %s must be %s, got %s", models.ErrValidation, job.ID, models.JobStatusQueued, job.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s: %w", job.ID, store.ErrDuplicate)
	}
	cp := job.Clone()
	cp.UpdatedAt = s.now()
	s.jobs[job.ID] = cp
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	return job.Clone(), nil
}

func (s *JobStore) Update(ctx context.Context, id string, fn store.UpdateFunc) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := store.CheckUpdate(current, next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	s.jobs[id] = next
	return next.Clone(), nil
}

func (s *JobStore) List(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	s.mu.RLock()
	all := make([]*models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		all = append(all, j.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, k int) bool {
		if all[i].CreatedAt.Equal(all[k].CreatedAt) {
			return all[i].ID > all[k].ID
		}
		return all[i].CreatedAt.After(all[k].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*models.Job{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Ping always succeeds for the in-memory store.
func (s *JobStore) Ping(ctx context.Context) error { return nil }

func (s *JobStore) Close() error { return nil }
