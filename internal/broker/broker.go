// Package broker defines the transport that carries job messages from
// the submission facade to workers. Delivery is at-least-once: a
// message may be redelivered if a worker crashes after claiming it,
// so operations must tolerate duplicate execution.
package broker

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by broker implementations.
var (
	ErrClosed    = errors.New("broker is closed")
	ErrQueueFull = errors.New("broker queue is full")
)

// Message is the unit carried on a queue. Workers load the
// authoritative job record from the result store; the message itself
// only identifies the job.
type Message struct {
	JobID     string `json:"job_id" msgpack:"job_id"`
	Operation string `json:"operation" msgpack:"operation"`

	// Attempt is the attempt number this delivery corresponds to,
	// starting at 1. Retries are re-published with the next number.
	Attempt int `json:"attempt" msgpack:"attempt"`
}

// Broker carries job messages between the submission facade and
// workers. Implementations do not guarantee cross-job ordering.
type Broker interface {
	// Publish enqueues a message on the named queue. It returns
	// without waiting for any consumer.
	Publish(ctx context.Context, queue string, msg Message) error

	// PublishAfter enqueues a message that becomes visible to
	// consumers only after the given delay. Used for retry backoff.
	PublishAfter(ctx context.Context, queue string, msg Message, delay time.Duration) error

	// Consume polls the given queues in order and returns the next
	// visible message. The second return value is false when all
	// queues are empty.
	Consume(ctx context.Context, queues []string) (Message, bool, error)

	// Close releases broker resources. Publishing after Close
	// returns ErrClosed.
	Close() error
}
