package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tverdon/offload-api/internal/broker"
	"github.com/tverdon/offload-api/internal/config"
	"github.com/tverdon/offload-api/internal/job"
	"github.com/tverdon/offload-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRouting() config.RoutingConfig {
	return config.RoutingConfig{
		DefaultQueue: "default",
		Queues:       map[string]string{"media.transcode": "heavy"},
	}
}

func newService(t *testing.T) (*JobService, *store.MemoryJobStore, *broker.Memory) {
	t.Helper()

	registry := job.NewRegistry()
	require.NoError(t, registry.Register("arith.divide", func(ctx context.Context, args []byte) job.Result {
		return job.Success(nil)
	}))
	require.NoError(t, registry.Register("media.transcode", func(ctx context.Context, args []byte) job.Result {
		return job.Success(nil)
	}))

	st := store.NewMemoryJobStore()
	brk := broker.NewMemory(10, testLogger())
	t.Cleanup(func() { _ = brk.Close() })

	return NewJobService(registry, st, brk, testRouting(), 2, testLogger()), st, brk
}

func TestJobService_Submit(t *testing.T) {
	t.Parallel()

	svc, st, brk := newService(t)
	ctx := context.Background()

	j, err := svc.Submit(ctx, "arith.divide", json.RawMessage(`[10, 2]`))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, j.ID)
	assert.Equal(t, job.StatePending, j.State)
	assert.Equal(t, "default", j.Queue)
	assert.Equal(t, 2, j.MaxRetries)
	assert.Zero(t, j.Attempts, "execution has not started at submission time")

	// The record is persisted and the first delivery is queued.
	stored, err := st.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, stored.State)

	msg, ok, err := brk.Consume(ctx, []string{"default"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, j.ID.String(), msg.JobID)
	assert.Equal(t, "arith.divide", msg.Operation)
	assert.Equal(t, 1, msg.Attempt)
}

func TestJobService_SubmitRoutesByOperation(t *testing.T) {
	t.Parallel()

	svc, _, brk := newService(t)

	j, err := svc.Submit(context.Background(), "media.transcode", nil)
	require.NoError(t, err)
	assert.Equal(t, "heavy", j.Queue)

	_, ok, err := brk.Consume(context.Background(), []string{"heavy"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJobService_SubmitDefaultsEmptyArgs(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)

	j, err := svc.Submit(context.Background(), "arith.divide", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(j.Args))
}

func TestJobService_DuplicateSubmissionsAreIndependent(t *testing.T) {
	t.Parallel()

	svc, _, brk := newService(t)
	ctx := context.Background()

	// No deduplication: same operation and args, two jobs.
	first, err := svc.Submit(ctx, "arith.divide", json.RawMessage(`[10, 2]`))
	require.NoError(t, err)
	second, err := svc.Submit(ctx, "arith.divide", json.RawMessage(`[10, 2]`))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		msg, ok, err := brk.Consume(ctx, []string{"default"})
		require.NoError(t, err)
		require.True(t, ok)
		seen[msg.JobID] = true
	}
	assert.Len(t, seen, 2, "each submission gets its own delivery")
}

func TestJobService_SubmitRejectsUnknownOperation(t *testing.T) {
	t.Parallel()

	svc, st, _ := newService(t)

	_, err := svc.Submit(context.Background(), "no.such.op", json.RawMessage(`[]`))
	assert.ErrorIs(t, err, ErrUnknownOperation)

	// Nothing was persisted.
	jobs, err := st.ListJobsByState(context.Background(), job.StatePending)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestJobService_SubmitRejectsNonArrayArgs(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)

	for _, args := range []string{`{"x": 1}`, `"ten"`, `42`, `not json`} {
		_, err := svc.Submit(context.Background(), "arith.divide", json.RawMessage(args))
		assert.ErrorIs(t, err, ErrInvalidArgs, "args=%s", args)
	}
}

func TestJobService_SubmitReportsClosedBroker(t *testing.T) {
	t.Parallel()

	svc, _, brk := newService(t)
	require.NoError(t, brk.Close())

	_, err := svc.Submit(context.Background(), "arith.divide", json.RawMessage(`[]`))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestJobService_Status(t *testing.T) {
	t.Parallel()

	svc, st, _ := newService(t)
	ctx := context.Background()

	j, err := svc.Submit(ctx, "arith.divide", json.RawMessage(`[1, 2]`))
	require.NoError(t, err)

	got, err := svc.Status(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, job.StatePending, got.State)

	// Status reflects whatever the workers have written since.
	j.State = job.StateSuccess
	j.Result = json.RawMessage(`5`)
	require.NoError(t, st.UpdateJob(ctx, j))

	got, err = svc.Status(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateSuccess, got.State)
	assert.JSONEq(t, `5`, string(got.Result))
}

func TestJobService_StatusUnknownJob(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)

	_, err := svc.Status(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, store.ErrJobNotFound))
}

func TestJobService_Operations(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	assert.Equal(t, []string{"arith.divide", "media.transcode"}, svc.Operations())
}
