package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestApplication wires the application against the in-memory
// backends the default configuration selects.
func buildTestApplication(t *testing.T) *application {
	t.Helper()

	t.Setenv("OFFLOAD_WORKER_POLL_INTERVAL_MS", "5")
	t.Setenv("OFFLOAD_WORKER_BACKOFF_ENABLED", "false")
	t.Setenv("OFFLOAD_SERVER_LOG_LEVEL", "error")

	app, err := buildApplication()
	require.NoError(t, err)
	t.Cleanup(app.cleanup)

	app.pool.Start()
	t.Cleanup(app.pool.Stop)

	return app
}

func TestApplication_SubmitAndPollLifecycle(t *testing.T) {
	app := buildTestApplication(t)
	server := httptest.NewServer(app.setupRouter())
	defer server.Close()

	// Submit a job; the response arrives before the job runs.
	body := bytes.NewBufferString(`{"operation": "text.reverse", "args": ["offload"]}`)
	resp, err := http.Post(server.URL+"/api/jobs", "application/json", body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var submitResp struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitResp))
	require.NotEmpty(t, submitResp.JobID)

	// Poll until the workers finish it.
	var statusResp struct {
		State  string          `json:"state"`
		Result json.RawMessage `json:"result"`
	}
	require.Eventually(t, func() bool {
		r, err := http.Get(server.URL + "/api/jobs/" + submitResp.JobID)
		if err != nil {
			return false
		}
		defer func() { _ = r.Body.Close() }()
		if err := json.NewDecoder(r.Body).Decode(&statusResp); err != nil {
			return false
		}
		return statusResp.State == "SUCCESS"
	}, 5*time.Second, 20*time.Millisecond)

	assert.JSONEq(t, `"daolffo"`, string(statusResp.Result))
}

func TestApplication_SubmitReturnsBeforeExecution(t *testing.T) {
	app := buildTestApplication(t)
	server := httptest.NewServer(app.setupRouter())
	defer server.Close()

	// arith.divide sleeps before computing; the submission must come
	// back long before that.
	start := time.Now()
	body := bytes.NewBufferString(`{"operation": "arith.divide", "args": [10, 2]}`)
	resp, err := http.Post(server.URL+"/api/jobs", "application/json", body)
	elapsed := time.Since(start)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Less(t, elapsed, divideDelay, "submission must not wait for the operation")

	var submitResp struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitResp))

	r, err := http.Get(server.URL + "/api/jobs/" + submitResp.JobID)
	require.NoError(t, err)
	defer func() { _ = r.Body.Close() }()

	var statusResp struct {
		State string `json:"state"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&statusResp))
	assert.NotEqual(t, "SUCCESS", statusResp.State, "the operation is still sleeping")
}

func TestApplication_WebSocketNotification(t *testing.T) {
	app := buildTestApplication(t)
	server := httptest.NewServer(app.setupRouter())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if wsResp != nil {
		defer func() { _ = wsResp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	body := bytes.NewBufferString(`{"operation": "text.reverse", "args": ["ping"]}`)
	resp, err := http.Post(server.URL+"/api/jobs", "application/json", body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var submitResp struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitResp))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var update struct {
		Event  string          `json:"event"`
		JobID  string          `json:"job_id"`
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(frame, &update))
	assert.Equal(t, "task_update", update.Event)
	assert.Equal(t, submitResp.JobID, update.JobID)
	assert.Equal(t, "SUCCESS", update.Status)
	assert.JSONEq(t, `"gnip"`, string(update.Result))
}

func TestApplication_HealthEndpoint(t *testing.T) {
	app := buildTestApplication(t)
	server := httptest.NewServer(app.setupRouter())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
