package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tverdon/offload-api/internal/config"
	"github.com/tverdon/offload-api/internal/events"
	"github.com/tverdon/offload-api/internal/job"
)

func testNotifyConfig() config.NotifyConfig {
	return config.NotifyConfig{
		WriteTimeoutMS: 1000,
		PingIntervalMS: 50,
		SendBuffer:     16,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(testNotifyConfig(), testLogger())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForListeners(t *testing.T, hub *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ListenerCount() == want
	}, time.Second, 5*time.Millisecond)
}

func TestHub_DeliversTaskUpdateToConnectedListener(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForListeners(t, hub, 1)

	j := job.New("arith.divide", "default", []byte(`[6, 3]`), 2)
	j.State = job.StateSuccess
	j.Result = []byte(`2`)
	j.Attempts = 1

	require.NoError(t, hub.HandleEvent(context.Background(), events.NewJobStateEvent(j)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var update TaskUpdate
	require.NoError(t, json.Unmarshal(frame, &update))
	assert.Equal(t, EventName, update.Event)
	assert.Equal(t, j.ID.String(), update.JobID)
	assert.Equal(t, "arith.divide", update.Operation)
	assert.Equal(t, job.StateSuccess, update.Status)
	assert.JSONEq(t, `2`, string(update.Result))
}

func TestHub_LateListenerSeesNothing(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t)

	// The job completes before anyone is connected.
	j := job.New("arith.divide", "default", nil, 0)
	j.State = job.StateSuccess
	require.NoError(t, hub.HandleEvent(context.Background(), events.NewJobStateEvent(j)))

	// A listener connecting afterwards receives no replay.
	conn := dial(t, srv)
	waitForListeners(t, hub, 1)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	for {
		msgType, _, err := conn.ReadMessage()
		if err != nil {
			break // deadline hit with no data frame: nothing was replayed
		}
		// Ping frames are handled inside ReadMessage; a text frame
		// here would be a replayed event.
		require.NotEqual(t, websocket.TextMessage, msgType)
	}
}

func TestHub_ExactlyOneUpdatePerTransition(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForListeners(t, hub, 1)

	j := job.New("text.reverse", "default", []byte(`["abc"]`), 0)
	j.State = job.StateSuccess
	j.Result = []byte(`"cba"`)
	require.NoError(t, hub.HandleEvent(context.Background(), events.NewJobStateEvent(j)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	// No second frame for a single transition.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_CleansUpDisconnectedListeners(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForListeners(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForListeners(t, hub, 0)

	// Publishing with no listeners is a no-op, not an error.
	j := job.New("arith.divide", "default", nil, 0)
	assert.NoError(t, hub.HandleEvent(context.Background(), events.NewJobStateEvent(j)))
}

func TestHub_MultipleListenersAllReceive(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t)
	conn1 := dial(t, srv)
	conn2 := dial(t, srv)
	waitForListeners(t, hub, 2)

	j := job.New("arith.divide", "default", nil, 0)
	j.State = job.StateStarted
	j.Attempts = 1
	require.NoError(t, hub.HandleEvent(context.Background(), events.NewJobStateEvent(j)))

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)

		var update TaskUpdate
		require.NoError(t, json.Unmarshal(frame, &update))
		assert.Equal(t, job.StateStarted, update.Status)
	}
}
