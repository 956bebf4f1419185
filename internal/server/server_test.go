package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/devtrack-agent/internal/bot"
	"github.com/p-blackswan/devtrack-agent/internal/digest"
	"github.com/p-blackswan/devtrack-agent/internal/health"
	"github.com/p-blackswan/devtrack-agent/internal/issue"
	"github.com/p-blackswan/devtrack-agent/internal/metrics"
	"github.com/p-blackswan/devtrack-agent/internal/store"
	"github.com/p-blackswan/devtrack-agent/internal/task"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tasks := task.NewEngine(st, nil, zerolog.Nop())
	issues := issue.NewEngine(st, zerolog.Nop())
	dg := digest.NewGenerator(st, nil, "chan-1", zerolog.Nop())
	router := bot.NewRouter(tasks, issues, dg, nil, "", "chan-1", nil, zerolog.Nop())

	checker := health.NewChecker(zerolog.Nop())
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := st.Ping(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	return New(":0", router, tasks, dg, checker, metrics.New(), zerolog.Nop())
}

func postJSON(t *testing.T, srv *Server, path string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	return resp.StatusCode, decoded
}

func TestRootReturnsHelp(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, bot.HelpReply, body["output"])
}

func TestAgentEndpointRoutesCommand(t *testing.T) {
	srv := newTestServer(t)

	code, body := postJSON(t, srv, "/a2a/agent/devTrackerAgent", map[string]any{
		"input":    "add task ship the release",
		"metadata": map[string]string{"channelId": "c1", "userId": "u1"},
	})
	assert.Equal(t, 200, code)
	assert.Contains(t, body["output"], `Added task #`)
	assert.Contains(t, body["output"], `"ship the release"`)

	code, body = postJSON(t, srv, "/a2a/agent/devTrackerAgent", map[string]any{
		"input":    "show tasks",
		"metadata": map[string]string{"channelId": "c1"},
	})
	assert.Equal(t, 200, code)
	assert.Contains(t, body["output"], "ship the release [pending]")
}

func TestAgentEndpointUnmatchedFallsBackToHelp(t *testing.T) {
	srv := newTestServer(t)

	code, body := postJSON(t, srv, "/a2a/agent/devTrackerAgent", map[string]any{
		"input": "what is the weather like",
	})
	assert.Equal(t, 200, code)
	assert.Equal(t, bot.HelpReply, body["output"])
}

func TestAgentEndpointRejectsBadBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/a2a/agent/devTrackerAgent", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebhookAcceptsAlternateShapes(t *testing.T) {
	srv := newTestServer(t)

	code, body := postJSON(t, srv, "/webhook/telex", map[string]any{
		"text":      "add task review webhook payloads",
		"channelId": "c9",
		"userId":    "u9",
	})
	assert.Equal(t, 200, code)
	assert.Contains(t, body["output"], "Added task #")

	code, body = postJSON(t, srv, "/webhook/telex", map[string]any{
		"body": map[string]string{"text": "show tasks"},
		"from": map[string]string{"id": "c9"},
	})
	assert.Equal(t, 200, code)
	assert.Contains(t, body["output"], "review webhook payloads [pending]")
}

func TestWebhookPrefersExplicitMetadata(t *testing.T) {
	srv := newTestServer(t)

	_, _ = postJSON(t, srv, "/webhook/telex", map[string]any{
		"input":    "add task metadata wins",
		"metadata": map[string]string{"channelId": "meta-chan"},
	})

	code, body := postJSON(t, srv, "/a2a/agent/devTrackerAgent", map[string]any{
		"input":    "show tasks",
		"metadata": map[string]string{"channelId": "meta-chan"},
	})
	assert.Equal(t, 200, code)
	assert.Contains(t, body["output"], "metadata wins")
}

func TestProgressEndpoint(t *testing.T) {
	srv := newTestServer(t)

	_, _ = postJSON(t, srv, "/a2a/agent/devTrackerAgent", map[string]any{
		"input":    "add task chart me",
		"metadata": map[string]string{"channelId": "c1"},
	})

	req := httptest.NewRequest("GET", "/progress?channelId=c1", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	var chart map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chart))
	assert.Equal(t, 1, chart["pending"])
}

func TestAdminSummaryRunAndList(t *testing.T) {
	srv := newTestServer(t)

	code, body := postJSON(t, srv, "/admin/summary/run", nil)
	assert.Equal(t, 200, code)
	assert.Contains(t, body["output"], "Daily Developer Summary")

	req := httptest.NewRequest("GET", "/admin/summaries", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Daily Developer Summary")
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest("GET", path, nil)
		resp, err := srv.App().Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, 200, resp.StatusCode, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
}
