// Package main implements the entry point for the offload-api
// server: an HTTP facade that accepts job submissions, executes them
// on background workers with retries, and pushes completion
// notifications over WebSocket.
package main

import (
	"fmt"
	"log"
	"log/slog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	app, err := buildApplication()
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer app.cleanup()

	slog.Info("configuration loaded",
		"port", app.config.Server.Port,
		"log_level", app.config.Server.LogLevel,
		"broker", app.config.Broker.Backend,
		"store", app.config.Store.Backend,
		"queues", app.config.Routing.AllQueues())

	return app.startHTTPServer()
}
