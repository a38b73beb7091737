package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tverdon/offload-api/internal/job"
)

// MemoryJobStore is an in-process JobStore for tests and
// single-process deployments. Records are copied on the way in and
// out so callers cannot mutate stored state directly.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*job.Job
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[uuid.UUID]*job.Job)}
}

func cloneJob(j *job.Job) *job.Job {
	c := *j
	if j.Args != nil {
		c.Args = append([]byte(nil), j.Args...)
	}
	if j.Result != nil {
		c.Result = append([]byte(nil), j.Result...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// SaveJob persists a newly submitted job.
func (s *MemoryJobStore) SaveJob(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[j.ID]; exists {
		return ErrJobExists
	}
	s.jobs[j.ID] = cloneJob(j)
	return nil
}

// GetJob retrieves a job by identifier.
func (s *MemoryJobStore) GetJob(_ context.Context, id uuid.UUID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(j), nil
}

// UpdateJob persists changes to an existing job's record.
func (s *MemoryJobStore) UpdateJob(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return ErrJobNotFound
	}
	c := cloneJob(j)
	c.UpdatedAt = time.Now().UTC()
	s.jobs[j.ID] = c
	return nil
}

// ListJobsByState returns all jobs currently in the given state.
func (s *MemoryJobStore) ListJobsByState(_ context.Context, state job.State) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*job.Job
	for _, j := range s.jobs {
		if j.State == state {
			out = append(out, cloneJob(j))
		}
	}
	return out, nil
}
