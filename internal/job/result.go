package job

import (
	"encoding/json"
	"fmt"
)

// ResultKind classifies the outcome of a single execution attempt.
type ResultKind int

const (
	// KindSuccess indicates the operation completed and produced a value.
	KindSuccess ResultKind = iota

	// KindRetryable indicates a transient fault; the attempt may be
	// repeated while retries remain.
	KindRetryable

	// KindTerminal indicates a permanent fault; the job fails without
	// consuming a retry.
	KindTerminal
)

// Result is the explicit outcome of one execution attempt. Handlers
// return a Result instead of signalling retry decisions through error
// values or panics, so the executor's state machine can classify
// faults without string matching.
type Result struct {
	Kind   ResultKind
	Value  json.RawMessage
	Reason string
}

// Success builds a successful Result carrying the JSON encoding of v.
// An unencodable value is a programming error in the handler and is
// reported as a terminal fault.
func Success(v any) Result {
	data, err := json.Marshal(v)
	if err != nil {
		return Terminal(fmt.Errorf("encode result value: %w", err))
	}
	return Result{Kind: KindSuccess, Value: data}
}

// Retryable builds a Result describing a transient fault.
func Retryable(err error) Result {
	return Result{Kind: KindRetryable, Reason: err.Error()}
}

// Terminal builds a Result describing a permanent fault.
func Terminal(err error) Result {
	return Result{Kind: KindTerminal, Reason: err.Error()}
}
