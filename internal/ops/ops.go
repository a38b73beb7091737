// Package ops defines the built-in operations. Each operation is a
// job.HandlerFunc decoding its positional JSON arguments and
// classifying its faults: bad input is terminal, everything else is
// left to the retry policy. Handlers must tolerate at-least-once
// delivery, so they are pure functions of their arguments.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tverdon/offload-api/internal/job"
)

// Operation names as submitted through the API.
const (
	OpDivide  = "arith.divide"
	OpReverse = "text.reverse"
)

// RegisterAll installs the built-in operations into the registry.
// divideDelay is how long arith.divide simulates working before
// computing; pass 0 in tests.
func RegisterAll(registry *job.Registry, divideDelay time.Duration) error {
	if err := registry.Register(OpDivide, Divide(divideDelay)); err != nil {
		return err
	}
	return registry.Register(OpReverse, Reverse)
}

// Divide returns the arith.divide handler: args [x, y], result x/y.
// Division by zero is a terminal fault since no retry can fix the
// input.
func Divide(delay time.Duration) job.HandlerFunc {
	return func(ctx context.Context, args []byte) job.Result {
		var operands []float64
		if err := json.Unmarshal(args, &operands); err != nil {
			return job.Terminal(fmt.Errorf("arith.divide: decode args: %w", err))
		}
		if len(operands) != 2 {
			return job.Terminal(fmt.Errorf("arith.divide: want 2 operands, got %d", len(operands)))
		}

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return job.Retryable(ctx.Err())
			}
		}

		x, y := operands[0], operands[1]
		if y == 0 {
			return job.Terminal(fmt.Errorf("arith.divide: division by zero"))
		}
		return job.Success(x / y)
	}
}

// Reverse is the text.reverse handler: args [s], result the string
// reversed rune by rune.
func Reverse(_ context.Context, args []byte) job.Result {
	var operands []string
	if err := json.Unmarshal(args, &operands); err != nil {
		return job.Terminal(fmt.Errorf("text.reverse: decode args: %w", err))
	}
	if len(operands) != 1 {
		return job.Terminal(fmt.Errorf("text.reverse: want 1 operand, got %d", len(operands)))
	}

	runes := []rune(operands[0])
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return job.Success(string(runes))
}
