package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akhatua2/designx/internal/agent"
	"github.com/akhatua2/designx/internal/config"
	"github.com/akhatua2/designx/internal/storage"
	"github.com/akhatua2/designx/internal/store"
	"github.com/akhatua2/designx/pkg/extapi"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, script string) *Server {
	t.Helper()
	storageRoot := t.TempDir()
	cfg := config.Config{
		AgentBin:        script,
		AgentDir:        t.TempDir(),
		AgentModel:      "gpt-4.1",
		AgentConfigPath: "config/default.yaml",
		AgentCostLimit:  "1.00",
		StreamInterval:  25 * time.Millisecond,
		BaseURL:         "http://localhost:8000",
		StorageRoot:     storageRoot,
		AllowedOrigins:  []string{"chrome-extension://*", "http://localhost:*"},
	}
	agentSvc := agent.NewService(cfg, agent.NewRegistry())
	media, err := storage.NewLocalStore(storageRoot, cfg.BaseURL)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	return NewServer(cfg, agentSvc, store.NewMemoryStore(), media)
}

func mustReqJSON(t *testing.T, h http.Handler, method, path string, reqBody any, respBody any) {
	t.Helper()
	w := reqJSON(t, h, method, path, reqBody)
	if w.Code >= 300 {
		t.Fatalf("request %s %s failed: status=%d body=%s", method, path, w.Code, w.Body.String())
	}
	if respBody != nil {
		if err := json.NewDecoder(w.Body).Decode(respBody); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func reqJSON(t *testing.T, h http.Handler, method, path string, reqBody any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	switch v := reqBody.(type) {
	case nil:
		body = nil
	case []byte:
		body = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = b
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func waitForJobStatus(t *testing.T, h http.Handler, jobID, want string) extapi.JobStatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last extapi.JobStatusResponse
	for time.Now().Before(deadline) {
		mustReqJSON(t, h, http.MethodGet, "/api/agent/jobs/"+jobID, nil, &last)
		if last.Status == want {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job never reached %s, stuck at %s", want, last.Status)
	return last
}

func TestRootHealthAndFavicon(t *testing.T) {
	h := newTestServer(t, "/bin/true").Handler()

	var root map[string]string
	mustReqJSON(t, h, http.MethodGet, "/", nil, &root)
	if root["message"] != "DesignX Extension API is running" {
		t.Fatalf("unexpected banner %v", root)
	}

	var health map[string]string
	mustReqJSON(t, h, http.MethodGet, "/health", nil, &health)
	if health["status"] != "healthy" || health["service"] != "designx-api" {
		t.Fatalf("unexpected health payload %v", health)
	}

	w := reqJSON(t, h, http.MethodGet, "/favicon.ico", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("favicon: status=%d type=%s", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("favicon is not a png")
	}

	if w := reqJSON(t, h, http.MethodGet, "/no/such/path", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAgentRunLifecycle(t *testing.T) {
	script := writeScript(t, "echo working on it\nexit 0\n")
	h := newTestServer(t, script).Handler()

	var created extapi.RunAgentResponse
	mustReqJSON(t, h, http.MethodPost, "/api/agent/run", extapi.RunAgentRequest{
		RepoURL:     "https://github.com/o/r",
		IssueURL:    "https://github.com/o/r/issues/1",
		GithubToken: "tok",
	}, &created)
	if created.JobID == "" || created.Status != "pending" {
		t.Fatalf("unexpected accept response %+v", created)
	}

	done := waitForJobStatus(t, h, created.JobID, "completed")
	if done.Result == nil || !done.Result.Success {
		t.Fatalf("unexpected result %+v", done.Result)
	}
	if !strings.Contains(strings.Join(done.ProgressLogs, "\n"), "working on it") {
		t.Fatalf("logs missing agent output: %v", done.ProgressLogs)
	}

	var list extapi.JobListResponse
	mustReqJSON(t, h, http.MethodGet, "/api/agent/jobs", nil, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].JobID != created.JobID {
		t.Fatalf("unexpected job list %+v", list)
	}

	// Cancelling a finished job is an invalid-state error.
	if w := reqJSON(t, h, http.MethodDelete, "/api/agent/jobs/"+created.JobID, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 cancelling terminal job, got %d", w.Code)
	}
}

func TestAgentRunValidation(t *testing.T) {
	h := newTestServer(t, "/bin/true").Handler()
	w := reqJSON(t, h, http.MethodPost, "/api/agent/run", extapi.RunAgentRequest{RepoURL: "https://github.com/o/r"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAgentJobNotFound(t *testing.T) {
	h := newTestServer(t, "/bin/true").Handler()
	if w := reqJSON(t, h, http.MethodGet, "/api/agent/jobs/unknown", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := reqJSON(t, h, http.MethodDelete, "/api/agent/jobs/unknown", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAgentCancelRunningJob(t *testing.T) {
	script := writeScript(t, "echo long task\nsleep 30\n")
	h := newTestServer(t, script).Handler()

	var created extapi.RunAgentResponse
	mustReqJSON(t, h, http.MethodPost, "/api/agent/run", extapi.RunAgentRequest{
		RepoURL:     "https://github.com/o/r",
		IssueURL:    "https://github.com/o/r/issues/1",
		GithubToken: "tok",
	}, &created)
	waitForJobStatus(t, h, created.JobID, "running")

	var cancel extapi.CancelJobResponse
	mustReqJSON(t, h, http.MethodDelete, "/api/agent/jobs/"+created.JobID, nil, &cancel)
	failed := waitForJobStatus(t, h, created.JobID, "failed")
	if failed.ErrorMessage != "cancelled by user" {
		t.Fatalf("unexpected error message %q", failed.ErrorMessage)
	}
}

func TestStreamUnknownJobSendsErrorEvent(t *testing.T) {
	h := newTestServer(t, "/bin/true").Handler()
	w := reqJSON(t, h, http.MethodGet, "/api/agent/jobs/unknown/stream", nil)
	if !strings.Contains(w.Body.String(), "event: error") {
		t.Fatalf("expected error event, got %s", w.Body.String())
	}
}

func TestStreamDeliversSnapshotUpdatesAndDone(t *testing.T) {
	script := writeScript(t, "echo step one\nsleep 0.2\necho step two\nexit 0\n")
	srv := newTestServer(t, script)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/agent/run", "application/json",
		strings.NewReader(`{"repo_url":"https://github.com/o/r","issue_url":"https://github.com/o/r/issues/1","github_token":"tok"}`))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var created extapi.RunAgentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode run response: %v", err)
	}
	_ = resp.Body.Close()

	stream, err := http.Get(ts.URL + "/api/agent/jobs/" + created.JobID + "/stream")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer func() { _ = stream.Body.Close() }()
	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %s", ct)
	}

	events := make([]string, 0, 8)
	var current, lastData string
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			current = name
			events = append(events, name)
			continue
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			lastData = data
			if current == "job.done" {
				break
			}
		}
	}
	if len(events) == 0 || events[0] != "job.snapshot" {
		t.Fatalf("expected snapshot first, got %v", events)
	}
	if events[len(events)-1] != "job.done" {
		t.Fatalf("expected terminal event last, got %v", events)
	}
	sawUpdate := false
	for _, e := range events {
		if e == "job.update" {
			sawUpdate = true
		}
	}
	if !sawUpdate {
		t.Fatalf("expected at least one periodic update, got %v", events)
	}
	var final extapi.JobStreamEvent
	if err := json.Unmarshal([]byte(lastData), &final); err != nil {
		t.Fatalf("decode terminal event: %v", err)
	}
	if final.Status != "completed" || final.CompletedAt == nil {
		t.Fatalf("unexpected terminal event %+v", final)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	h := newTestServer(t, "/bin/true").Handler()

	var snap struct {
		Counters []any `json:"counters"`
		Gauges   []any `json:"gauges"`
	}
	mustReqJSON(t, h, http.MethodGet, "/v1/metrics", nil, &snap)

	w := reqJSON(t, h, http.MethodGet, "/v1/metrics/prometheus", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("prometheus endpoint: status=%d type=%s", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestCORSPreflightAndHeaders(t *testing.T) {
	h := newTestServer(t, "/bin/true").Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "chrome-extension://abcdef" {
		t.Fatalf("unexpected allow-origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("disallowed origin should get no CORS headers")
	}
}
