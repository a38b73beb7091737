package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tverdon/offload-api/internal/job"
)

// JobStateEvent announces a job state transition. Delivery is
// fire-and-forget and at-most-once: only handlers registered at
// publish time see the event, and nothing is queued or replayed.
type JobStateEvent struct {
	// JobID identifies the job that changed state.
	JobID uuid.UUID `json:"job_id"`

	// Operation is the job's operation name.
	Operation string `json:"operation"`

	// State is the state the job transitioned into.
	State job.State `json:"state"`

	// Attempt is the attempt number the transition belongs to.
	Attempt int `json:"attempt"`

	// Result carries the output payload for SUCCESS transitions.
	Result json.RawMessage `json:"result,omitempty"`

	// Error carries the failure description for FAILURE and RETRY.
	Error string `json:"error,omitempty"`

	// OccurredAt is when the transition was recorded.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewJobStateEvent builds an event describing j's current state.
func NewJobStateEvent(j *job.Job) *JobStateEvent {
	return &JobStateEvent{
		JobID:      j.ID,
		Operation:  j.Operation,
		State:      j.State,
		Attempt:    j.Attempts,
		Result:     j.Result,
		Error:      j.Error,
		OccurredAt: time.Now().UTC(),
	}
}

// EventHandler is implemented by components that react to job state
// transitions, such as the notification bridge.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *JobStateEvent) error
}

// EventEmitter publishes job state transitions to registered handlers
// without the publisher knowing who is listening.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *JobStateEvent) error
}
