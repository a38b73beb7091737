package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State represents the current state of a job.
type State string

// Possible job states. The wire format is uppercase to match the
// status endpoint contract.
const (
	StatePending State = "PENDING"
	StateStarted State = "STARTED"
	StateRetry   State = "RETRY"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Valid reports whether s is one of the known job states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateStarted, StateRetry, StateSuccess, StateFailure:
		return true
	}
	return false
}

// Job represents a unit of deferred work submitted for asynchronous
// execution. A job's record is created at submission time and mutated
// only by the worker currently processing it; state transitions are
// monotonic along PENDING → STARTED → {SUCCESS, FAILURE}, with
// STARTED → RETRY → STARTED permitted while retries remain.
type Job struct {
	// ID is the opaque identifier returned to the submitter.
	ID uuid.UUID `json:"id"`

	// Operation is the registered operation name this job invokes.
	Operation string `json:"operation"`

	// Args holds the ordered input arguments as a JSON array.
	Args json.RawMessage `json:"args,omitempty"`

	// Queue is the broker queue this job was routed to.
	Queue string `json:"queue"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// Result holds the operation's output. Present only in SUCCESS.
	Result json.RawMessage `json:"result,omitempty"`

	// Error holds a human-readable failure description. Present only
	// in FAILURE (and transiently in RETRY).
	Error string `json:"error,omitempty"`

	// Attempts counts executions so far, including the one in flight.
	Attempts int `json:"attempts"`

	// MaxRetries is the number of re-executions permitted after the
	// initial attempt.
	MaxRetries int `json:"max_retries"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a PENDING job for the given operation with a freshly
// generated identifier. Submitting the same operation and args twice
// yields two distinct jobs; there is no deduplication.
func New(operation, queue string, args json.RawMessage, maxRetries int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.New(),
		Operation:  operation,
		Args:       args,
		Queue:      queue,
		State:      StatePending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RetriesRemaining reports whether the job may be re-queued after a
// retryable fault. Attempts counts the attempt that just failed.
func (j *Job) RetriesRemaining() bool {
	return j.Attempts-1 < j.MaxRetries
}
