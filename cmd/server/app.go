package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tverdon/offload-api/internal/backoff"
	"github.com/tverdon/offload-api/internal/broker"
	"github.com/tverdon/offload-api/internal/codec"
	"github.com/tverdon/offload-api/internal/config"
	"github.com/tverdon/offload-api/internal/events"
	"github.com/tverdon/offload-api/internal/job"
	"github.com/tverdon/offload-api/internal/notify"
	"github.com/tverdon/offload-api/internal/ops"
	"github.com/tverdon/offload-api/internal/platform/logger"
	"github.com/tverdon/offload-api/internal/platform/postgres"
	platformredis "github.com/tverdon/offload-api/internal/platform/redis"
	"github.com/tverdon/offload-api/internal/service"
	"github.com/tverdon/offload-api/internal/store"
	"github.com/tverdon/offload-api/internal/worker"
)

// divideDelay is how long the arith.divide operation simulates
// working, making the asynchrony observable from the outside.
const divideDelay = 2 * time.Second

// application holds the wired dependencies of the running server.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	store   store.JobStore
	broker  broker.Broker
	hub     *notify.Hub
	pool    *worker.Pool
	service *service.JobService

	// closers run in reverse order during cleanup.
	closers []func()
}

// buildApplication loads configuration and wires every component:
// store and broker backends per config, operation registry, event
// emitter with the WebSocket hub attached, executor and worker pool,
// and the submission service.
func buildApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("set up logger: %w", err)
	}

	app := &application{config: cfg, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.setupStore(ctx); err != nil {
		app.cleanup()
		return nil, err
	}
	if err := app.setupBroker(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	registry := job.NewRegistry()
	if err := ops.RegisterAll(registry, divideDelay); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("register operations: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(log)
	app.hub = notify.NewHub(cfg.Notify, log)
	emitter.RegisterHandler(app.hub)
	app.closers = append(app.closers, func() { app.hub.Close() })

	executor := worker.NewExecutor(registry, app.store, app.broker, app.backoffStrategy(), emitter, log)
	app.pool = worker.NewPool(app.broker, executor, worker.PoolConfig{
		Concurrency:  cfg.Worker.Concurrency,
		Queues:       cfg.Routing.AllQueues(),
		PollInterval: time.Duration(cfg.Worker.PollIntervalMS) * time.Millisecond,
	}, log)

	app.service = service.NewJobService(
		registry, app.store, app.broker, cfg.Routing, cfg.Worker.MaxRetries, log)

	return app, nil
}

// setupStore opens the configured result store backend. The postgres
// backend also applies pending schema migrations.
func (app *application) setupStore(ctx context.Context) error {
	switch app.config.Store.Backend {
	case "redis":
		client, err := platformredis.NewClient(ctx, app.config.Store.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect store redis: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		app.store = platformredis.NewJobStore(client)

	case "postgres":
		db, err := openDatabase(ctx, app.config.Store.PostgresURL)
		if err != nil {
			return err
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		if err := runMigrations(db, app.logger); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		app.store = postgres.NewJobStore(db)

	case "memory":
		app.store = store.NewMemoryJobStore()

	default:
		return fmt.Errorf("unknown store backend %q", app.config.Store.Backend)
	}

	app.logger.Info("result store ready", "backend", app.config.Store.Backend)
	return nil
}

// setupBroker opens the configured job transport.
func (app *application) setupBroker(ctx context.Context) error {
	switch app.config.Broker.Backend {
	case "redis":
		client, err := platformredis.NewClient(ctx, app.config.Broker.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect broker redis: %w", err)
		}
		c, err := codec.New(app.config.Codec.Format)
		if err != nil {
			_ = client.Close()
			return err
		}
		brk := platformredis.NewBroker(client, c)
		app.closers = append(app.closers, func() { _ = brk.Close() })
		app.broker = brk

	case "memory":
		brk := broker.NewMemory(app.config.Broker.QueueCapacity, app.logger)
		app.closers = append(app.closers, func() { _ = brk.Close() })
		app.broker = brk

	default:
		return fmt.Errorf("unknown broker backend %q", app.config.Broker.Backend)
	}

	app.logger.Info("broker ready", "backend", app.config.Broker.Backend)
	return nil
}

// backoffStrategy builds the retry delay strategy from configuration.
func (app *application) backoffStrategy() backoff.Strategy {
	w := app.config.Worker
	if !w.BackoffEnabled {
		return backoff.None{}
	}
	return backoff.NewExponentialWithJitter(
		time.Duration(w.BackoffBaseMS)*time.Millisecond,
		time.Duration(w.BackoffMaxMS)*time.Millisecond,
	)
}

// cleanup releases resources in reverse acquisition order.
func (app *application) cleanup() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}

// openDatabase opens the postgres connection via the pgx stdlib
// driver and verifies connectivity.
func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
