// Package service contains the application services sitting between
// the HTTP API and the job infrastructure. JobService is the
// submission facade: it validates a request, persists the job record
// and publishes the first delivery, returning immediately with the
// job identifier while workers execute in the background.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tverdon/offload-api/internal/broker"
	"github.com/tverdon/offload-api/internal/config"
	"github.com/tverdon/offload-api/internal/job"
	"github.com/tverdon/offload-api/internal/store"
)

// Service-level errors the API layer maps onto HTTP status codes.
var (
	// ErrUnknownOperation indicates the requested operation has no
	// registered handler.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidArgs indicates the submitted arguments are not a JSON
	// array.
	ErrInvalidArgs = errors.New("args must be a JSON array")

	// ErrUnavailable indicates the store or broker rejected the
	// request; the submission can be retried by the caller.
	ErrUnavailable = errors.New("job infrastructure unavailable")
)

// JobService accepts job submissions and answers status queries.
type JobService struct {
	registry *job.Registry
	store    store.JobStore
	broker   broker.Broker
	routing  config.RoutingConfig
	retries  int
	logger   *slog.Logger
}

// NewJobService creates a JobService. maxRetries is applied to every
// submitted job.
func NewJobService(
	registry *job.Registry,
	jobStore store.JobStore,
	brk broker.Broker,
	routing config.RoutingConfig,
	maxRetries int,
	logger *slog.Logger,
) *JobService {
	return &JobService{
		registry: registry,
		store:    jobStore,
		broker:   brk,
		routing:  routing,
		retries:  maxRetries,
		logger:   logger,
	}
}

// Submit validates and enqueues a job for the named operation,
// returning the pending job record. The job executes asynchronously;
// Submit does not wait for it.
func (s *JobService) Submit(ctx context.Context, operation string, args json.RawMessage) (*job.Job, error) {
	if !s.registry.Contains(operation) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
	}

	if len(args) == 0 {
		args = json.RawMessage(`[]`)
	}
	if err := validateArgs(args); err != nil {
		return nil, err
	}

	queue := s.routing.QueueFor(operation)
	j := job.New(operation, queue, args, s.retries)

	if err := s.store.SaveJob(ctx, j); err != nil {
		s.logger.Error("failed to save job", "operation", operation, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	msg := broker.Message{JobID: j.ID.String(), Operation: operation, Attempt: 1}
	if err := s.broker.Publish(ctx, queue, msg); err != nil {
		s.logger.Error("failed to publish job", "job_id", j.ID, "queue", queue, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Debug("job submitted", "job_id", j.ID, "operation", operation, "queue", queue)
	return j, nil
}

// Status returns the stored record for the given job. A missing job
// surfaces as store.ErrJobNotFound; the API layer reports it as a
// still-pending job rather than an error, since a submitted id may
// reach the store after the message reaches the caller.
func (s *JobService) Status(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	j, err := s.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrJobNotFound) {
		return nil, err
	}
	if err != nil {
		s.logger.Error("failed to load job", "job_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return j, nil
}

// Operations lists the operation names accepted by Submit.
func (s *JobService) Operations() []string {
	return s.registry.Names()
}

func validateArgs(args json.RawMessage) error {
	var probe []json.RawMessage
	if err := json.Unmarshal(args, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}
