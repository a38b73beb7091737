package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tverdon/offload-api/internal/broker"
)

// PoolConfig holds configuration for the worker pool.
type PoolConfig struct {
	// Concurrency is the number of worker goroutines pulling jobs.
	Concurrency int

	// Queues are the broker queues the pool polls, in priority order.
	Queues []string

	// PollInterval is how long an idle worker waits before polling
	// the broker again.
	PollInterval time.Duration
}

// DefaultPoolConfig returns a PoolConfig with reasonable defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Concurrency:  2,
		Queues:       []string{"default"},
		PollInterval: 100 * time.Millisecond,
	}
}

// Pool runs worker goroutines that consume messages from the broker
// and hand them to the Executor. Within a single job, attempts are
// strictly sequential: a retry is only re-published after the current
// attempt finishes, so two workers never run the same job at once.
type Pool struct {
	broker   broker.Broker
	executor *Executor
	config   PoolConfig
	logger   *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewPool creates a worker pool.
func NewPool(brk broker.Broker, executor *Executor, config PoolConfig, logger *slog.Logger) *Pool {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		broker:     brk,
		executor:   executor,
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	for i := 0; i < p.config.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("worker pool started",
		"concurrency", p.config.Concurrency,
		"queues", p.config.Queues)
}

// Stop shuts the pool down gracefully: workers stop consuming new
// messages and in-flight jobs run to completion. There is no
// preemptive cancellation of a claimed job.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cancelFunc()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker is the consume loop of a single goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return
		default:
		}

		msg, ok, err := p.broker.Consume(p.ctx, p.config.Queues)
		if err != nil {
			p.logger.Error("failed to consume from broker", "worker_id", id, "error", err)
			p.sleep()
			continue
		}
		if !ok {
			p.sleep()
			continue
		}

		// Execution uses a background context so a shutting-down pool
		// still lets the claimed job finish.
		if err := p.executor.Execute(context.Background(), msg); err != nil {
			p.logger.Error("job execution errored",
				"worker_id", id,
				"job_id", msg.JobID,
				"error", err)
		}
	}
}

// sleep waits one poll interval or until shutdown.
func (p *Pool) sleep() {
	select {
	case <-p.ctx.Done():
	case <-time.After(p.config.PollInterval):
	}
}
