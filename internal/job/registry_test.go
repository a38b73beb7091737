package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, args []byte) Result {
	return Success(nil)
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	t.Run("successful registration", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		err := r.Register("arith.divide", noopHandler)
		require.NoError(t, err)

		h, ok := r.Get("arith.divide")
		assert.True(t, ok)
		assert.NotNil(t, h)
		assert.True(t, r.Contains("arith.divide"))
	})

	t.Run("empty name rejected", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		err := r.Register("", noopHandler)
		assert.Error(t, err)
	})

	t.Run("nil handler rejected", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		err := r.Register("arith.divide", nil)
		assert.Error(t, err)
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		require.NoError(t, r.Register("arith.divide", noopHandler))
		err := r.Register("arith.divide", noopHandler)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("unknown operation", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		_, ok := r.Get("no.such.op")
		assert.False(t, ok)
		assert.False(t, r.Contains("no.such.op"))
	})
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register("text.reverse", noopHandler))
	require.NoError(t, r.Register("arith.divide", noopHandler))

	assert.Equal(t, []string{"arith.divide", "text.reverse"}, r.Names())
}

func TestResultConstructors(t *testing.T) {
	t.Parallel()

	t.Run("success carries encoded value", func(t *testing.T) {
		t.Parallel()

		res := Success(2.5)
		assert.Equal(t, KindSuccess, res.Kind)
		assert.JSONEq(t, "2.5", string(res.Value))
		assert.Empty(t, res.Reason)
	})

	t.Run("unencodable value becomes terminal", func(t *testing.T) {
		t.Parallel()

		res := Success(func() {})
		assert.Equal(t, KindTerminal, res.Kind)
		assert.Contains(t, res.Reason, "encode result value")
	})

	t.Run("retryable carries reason", func(t *testing.T) {
		t.Parallel()

		res := Retryable(errors.New("connection reset"))
		assert.Equal(t, KindRetryable, res.Kind)
		assert.Equal(t, "connection reset", res.Reason)
	})

	t.Run("terminal carries reason", func(t *testing.T) {
		t.Parallel()

		res := Terminal(errors.New("division by zero"))
		assert.Equal(t, KindTerminal, res.Kind)
		assert.Equal(t, "division by zero", res.Reason)
	})
}

func TestJobStateMachineHelpers(t *testing.T) {
	t.Parallel()

	j := New("arith.divide", "default", []byte(`[6, 3]`), 2)

	assert.Equal(t, StatePending, j.State)
	assert.NotEqual(t, "", j.ID.String())
	assert.Equal(t, 0, j.Attempts)

	// Distinct submissions yield distinct identifiers.
	j2 := New("arith.divide", "default", []byte(`[6, 3]`), 2)
	assert.NotEqual(t, j.ID, j2.ID)

	assert.False(t, StateStarted.Terminal())
	assert.False(t, StateRetry.Terminal())
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateFailure.Terminal())

	assert.True(t, StateRetry.Valid())
	assert.False(t, State("bogus").Valid())

	// With MaxRetries=2: first and second failed attempts may retry,
	// the third may not.
	j.Attempts = 1
	assert.True(t, j.RetriesRemaining())
	j.Attempts = 2
	assert.True(t, j.RetriesRemaining())
	j.Attempts = 3
	assert.False(t, j.RetriesRemaining())
}
