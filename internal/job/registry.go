package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc executes one attempt of an operation. Args is the JSON
// array of ordered input arguments as submitted. Handlers classify
// their own faults by returning Retryable or Terminal results; they
// must tolerate duplicate execution under at-least-once delivery.
type HandlerFunc func(ctx context.Context, args []byte) Result

// Registry maps operation names to handlers. Operations are registered
// explicitly at startup; submission of an unregistered operation is
// rejected before anything is enqueued. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register adds a named operation. It returns an error for an empty
// name, a nil handler, or a duplicate registration so that wiring
// mistakes surface at startup rather than at execution time.
func (r *Registry) Register(name string, handler HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("operation name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("operation %q: handler must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("operation %q already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

// Get returns the handler for the given operation name.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Contains reports whether an operation is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
