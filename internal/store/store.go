// Package store defines the result-store contract: persistence of job
// records keyed by job identifier. The store is shared by all workers
// and all status queries; each job's record is owned exclusively by
// whichever worker is currently processing it, so implementations
// need no cross-job locking.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tverdon/offload-api/internal/job"
)

// Common store errors used across all store implementations.
var (
	// ErrJobNotFound is returned when no record exists for the given
	// identifier. The status endpoint maps this to a PENDING view:
	// it cannot distinguish "submitted but not yet observed" from
	// "never submitted".
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when saving a job whose identifier is
	// already present.
	ErrJobExists = errors.New("job already exists")
)

// JobStore persists job state and output. Writes are scoped to a
// single job's key; records are never deleted by this layer (retention
// is the backend's concern).
type JobStore interface {
	// SaveJob persists a newly submitted job.
	SaveJob(ctx context.Context, j *job.Job) error

	// GetJob retrieves a job by identifier. Returns ErrJobNotFound
	// if no record exists.
	GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error)

	// UpdateJob persists changes to an existing job's record.
	UpdateJob(ctx context.Context, j *job.Job) error

	// ListJobsByState returns all jobs currently in the given state.
	ListJobsByState(ctx context.Context, state job.State) ([]*job.Job, error)
}
