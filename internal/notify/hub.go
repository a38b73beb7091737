// Package notify implements the notification channel: a WebSocket hub
// that pushes task_update frames to connected listeners as job states
// change. Delivery is at-most-once to listeners connected at publish
// time; nothing is queued or replayed for listeners that connect later.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tverdon/offload-api/internal/config"
	"github.com/tverdon/offload-api/internal/events"
	"github.com/tverdon/offload-api/internal/job"
)

// EventName is the named event emitted on the channel for every job
// state transition.
const EventName = "task_update"

// TaskUpdate is the frame pushed to listeners.
type TaskUpdate struct {
	Event     string          `json:"event"`
	JobID     string          `json:"job_id"`
	Operation string          `json:"operation"`
	Status    job.State       `json:"status"`
	Attempt   int             `json:"attempt"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Hub tracks connected listeners and fans job state events out to
// them. It implements events.EventHandler so it can be registered
// directly with the event emitter.
type Hub struct {
	cfg    config.NotifyConfig
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool

	upgrader websocket.Upgrader
}

// NewHub creates a hub with the given notification settings.
func NewHub(cfg config.NotifyConfig, logger *slog.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger.With("component", "notify_hub"),
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The channel carries no sensitive data and the API has no
			// browser origin restrictions, matching the HTTP endpoints.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request to a WebSocket connection and attaches
// the listener to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		h.logger.Debug("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := newClient(h, conn)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("listener connected", "remote_addr", r.RemoteAddr, "listener_count", count)

	go client.writePump(time.Duration(h.cfg.WriteTimeoutMS)*time.Millisecond,
		time.Duration(h.cfg.PingIntervalMS)*time.Millisecond)
	go client.readPump()
}

// HandleEvent implements events.EventHandler: it encodes the state
// transition as a task_update frame and broadcasts it to everyone
// currently connected.
func (h *Hub) HandleEvent(_ context.Context, event *events.JobStateEvent) error {
	frame, err := json.Marshal(TaskUpdate{
		Event:     EventName,
		JobID:     event.JobID.String(),
		Operation: event.Operation,
		Status:    event.State,
		Attempt:   event.Attempt,
		Result:    event.Result,
		Error:     event.Error,
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- frame:
		default:
			// Listener is not keeping up; drop the event rather than
			// blocking the publisher.
			h.logger.Warn("dropping event for slow listener", "job_id", event.JobID)
		}
	}
	return nil
}

// ListenerCount returns how many listeners are currently connected.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all listeners and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// remove detaches a listener after its connection died.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if present {
		c.close()
		h.logger.Debug("listener disconnected")
	}
}
