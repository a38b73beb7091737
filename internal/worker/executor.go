// Package worker provides the background executor: an Executor that
// drives one job attempt through its state machine, and a Pool of
// goroutines pulling messages from the broker queues.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tverdon/offload-api/internal/backoff"
	"github.com/tverdon/offload-api/internal/broker"
	"github.com/tverdon/offload-api/internal/events"
	"github.com/tverdon/offload-api/internal/job"
	"github.com/tverdon/offload-api/internal/store"
)

// Executor runs a single job attempt and applies the retry policy.
// State transitions it performs are monotonic: once a job reaches
// SUCCESS or FAILURE no further transitions happen, and a duplicate
// delivery of a finished job is dropped.
type Executor struct {
	registry *job.Registry
	store    store.JobStore
	broker   broker.Broker
	backoff  backoff.Strategy
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// NewExecutor creates an Executor with the given collaborators.
func NewExecutor(
	registry *job.Registry,
	jobStore store.JobStore,
	brk broker.Broker,
	bo backoff.Strategy,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		registry: registry,
		store:    jobStore,
		broker:   brk,
		backoff:  bo,
		emitter:  emitter,
		logger:   logger,
	}
}

// Execute processes one delivery. On success the job ends in SUCCESS
// with its result recorded; on a terminal fault it ends in FAILURE
// without consuming a retry; on a retryable fault it moves to RETRY
// and is re-published with a backoff delay, until retries run out.
func (e *Executor) Execute(ctx context.Context, msg broker.Message) error {
	id, err := uuid.Parse(msg.JobID)
	if err != nil {
		e.logger.Error("dropping message with malformed job id", "job_id", msg.JobID, "error", err)
		return nil
	}

	j, err := e.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrJobNotFound) {
		// The record may lag the message or the store lost it; either
		// way there is nothing to execute.
		e.logger.Warn("dropping message for unknown job", "job_id", msg.JobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %s: %w", msg.JobID, err)
	}

	if j.State.Terminal() {
		// Duplicate delivery after completion; the at-least-once
		// contract allows this, the monotonic state machine forbids
		// re-running it.
		e.logger.Debug("dropping duplicate delivery of finished job",
			"job_id", j.ID, "state", j.State)
		return nil
	}

	logger := e.logger.With(
		"job_id", j.ID,
		"operation", j.Operation,
	)

	now := time.Now().UTC()
	j.Attempts++
	j.State = job.StateStarted
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	if err := e.store.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("mark job %s started: %w", j.ID, err)
	}

	logger.Info("processing job", "attempt", j.Attempts, "max_retries", j.MaxRetries)

	handler, ok := e.registry.Get(j.Operation)
	var res job.Result
	if !ok {
		// Registered at submission but gone now: configuration drift
		// between submitter and worker. Not retryable.
		res = job.Terminal(fmt.Errorf("no handler registered for operation %q", j.Operation))
	} else {
		res = e.run(ctx, handler, j.Args)
	}

	switch res.Kind {
	case job.KindSuccess:
		return e.complete(ctx, j, res, logger)
	case job.KindTerminal:
		return e.fail(ctx, j, res.Reason, logger)
	default:
		return e.retryOrFail(ctx, j, res.Reason, logger)
	}
}

// run invokes the handler, converting a panic into a retryable fault:
// unclassified faults default to retryable up to the attempt ceiling.
func (e *Executor) run(ctx context.Context, handler job.HandlerFunc, args []byte) (res job.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = job.Retryable(fmt.Errorf("operation panicked: %v", r))
		}
	}()
	return handler(ctx, args)
}

func (e *Executor) complete(ctx context.Context, j *job.Job, res job.Result, logger *slog.Logger) error {
	now := time.Now().UTC()
	j.State = job.StateSuccess
	j.Result = res.Value
	j.Error = ""
	j.CompletedAt = &now

	if err := e.store.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("mark job %s succeeded: %w", j.ID, err)
	}

	logger.Info("job completed", "attempt", j.Attempts)
	e.emit(ctx, j)
	return nil
}

func (e *Executor) fail(ctx context.Context, j *job.Job, reason string, logger *slog.Logger) error {
	now := time.Now().UTC()
	j.State = job.StateFailure
	j.Error = reason
	j.CompletedAt = &now

	if err := e.store.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("mark job %s failed: %w", j.ID, err)
	}

	logger.Warn("job failed", "attempt", j.Attempts, "error", reason)
	e.emit(ctx, j)
	return nil
}

func (e *Executor) retryOrFail(ctx context.Context, j *job.Job, reason string, logger *slog.Logger) error {
	if !j.RetriesRemaining() {
		return e.fail(ctx, j, reason, logger)
	}

	j.State = job.StateRetry
	j.Error = reason
	if err := e.store.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("mark job %s retrying: %w", j.ID, err)
	}

	delay := e.backoff.Delay(j.Attempts)
	logger.Info("job scheduled for retry",
		"attempt", j.Attempts,
		"max_retries", j.MaxRetries,
		"delay", delay,
		"error", reason)

	msg := broker.Message{JobID: j.ID.String(), Operation: j.Operation, Attempt: j.Attempts + 1}
	if err := e.broker.PublishAfter(ctx, j.Queue, msg, delay); err != nil {
		// The re-queue failed; without a delivery the job would hang
		// in RETRY forever, so record the infrastructure fault as a
		// terminal failure.
		return e.fail(ctx, j, fmt.Sprintf("re-queue failed: %v (after: %s)", err, reason), logger)
	}
	return nil
}

// emit publishes a notification for a terminal transition. Listeners
// receive exactly one task_update per finished job; intermediate
// transitions are observable through the status endpoint instead.
func (e *Executor) emit(ctx context.Context, j *job.Job) {
	if !j.State.Terminal() {
		return
	}
	if err := e.emitter.EmitEvent(ctx, events.NewJobStateEvent(j)); err != nil {
		e.logger.Error("failed to emit job state event", "job_id", j.ID, "error", err)
	}
}
