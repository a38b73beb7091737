package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultQueueCapacity is the per-queue buffer size for the memory broker.
const DefaultQueueCapacity = 100

// Memory is an in-process Broker backed by a buffered channel per
// queue. It serves tests and single-process deployments; durability
// and cross-process delivery require the Redis broker.
type Memory struct {
	mu       sync.Mutex
	queues   map[string]chan Message
	capacity int
	closed   bool
	timers   map[*time.Timer]struct{}
	logger   *slog.Logger
}

// NewMemory creates a memory broker. A non-positive capacity falls
// back to DefaultQueueCapacity.
func NewMemory(capacity int, logger *slog.Logger) *Memory {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Memory{
		queues:   make(map[string]chan Message),
		capacity: capacity,
		timers:   make(map[*time.Timer]struct{}),
		logger:   logger,
	}
}

func (m *Memory) queue(name string) chan Message {
	q, ok := m.queues[name]
	if !ok {
		q = make(chan Message, m.capacity)
		m.queues[name] = q
	}
	return q
}

// Publish enqueues the message on the named queue.
func (m *Memory) Publish(_ context.Context, queue string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	select {
	case m.queue(queue) <- msg:
		m.logger.Debug("message enqueued",
			"queue", queue,
			"job_id", msg.JobID,
			"operation", msg.Operation,
			"attempt", msg.Attempt)
		return nil
	default:
		return fmt.Errorf("%w: queue %q capacity %d reached", ErrQueueFull, queue, m.capacity)
	}
}

// PublishAfter enqueues the message once the delay has elapsed. The
// publish is dropped if the broker is closed before the delay fires.
func (m *Memory) PublishAfter(ctx context.Context, queue string, msg Message, delay time.Duration) error {
	if delay <= 0 {
		return m.Publish(ctx, queue, msg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.timers, timer)
		m.mu.Unlock()

		if err := m.Publish(context.Background(), queue, msg); err != nil {
			m.logger.Error("delayed publish failed",
				"queue", queue,
				"job_id", msg.JobID,
				"error", err)
		}
	})
	m.timers[timer] = struct{}{}
	return nil
}

// Consume polls the given queues in order and returns the first
// available message.
func (m *Memory) Consume(_ context.Context, queues []string) (Message, bool, error) {
	m.mu.Lock()
	channels := make([]chan Message, 0, len(queues))
	for _, name := range queues {
		channels = append(channels, m.queue(name))
	}
	m.mu.Unlock()

	for _, q := range channels {
		select {
		case msg := <-q:
			return msg, true, nil
		default:
		}
	}
	return Message{}, false, nil
}

// Close stops pending delayed publishes and marks the broker closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for timer := range m.timers {
		timer.Stop()
	}
	m.timers = make(map[*time.Timer]struct{})
	return nil
}
