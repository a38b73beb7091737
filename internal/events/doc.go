// Package events carries job state transitions from the executor to
// interested components (currently the WebSocket notification bridge)
// without coupling the two.
package events
