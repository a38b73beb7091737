// Package job defines the core data model for asynchronous work: the
// Job record with its monotonic state machine, the Result type that
// classifies execution outcomes, and the Registry mapping operation
// names to handlers.
package job
