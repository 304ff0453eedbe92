// Package api is the HTTP surface of the extension backend: agent job
// control, OAuth token exchange, record CRUD and media uploads.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/akhatua2/designx/internal/agent"
	"github.com/akhatua2/designx/internal/config"
	"github.com/akhatua2/designx/internal/oauth"
	"github.com/akhatua2/designx/internal/observability"
	"github.com/akhatua2/designx/internal/storage"
	"github.com/akhatua2/designx/internal/store"
	"github.com/akhatua2/designx/pkg/extapi"
)

type Server struct {
	cfg    config.Config
	agent  *agent.Service
	store  store.Store
	media  storage.ObjectStore
	github *oauth.GitHub
	slack  *oauth.Slack
	jira   *oauth.Jira
	google *oauth.Google
}

func NewServer(cfg config.Config, agentSvc *agent.Service, st store.Store, media storage.ObjectStore) *Server {
	return &Server{
		cfg:   cfg,
		agent: agentSvc,
		store: st,
		media: media,
		github: &oauth.GitHub{
			ClientID:     cfg.GithubClientID,
			ClientSecret: cfg.GithubClientSecret,
		},
		slack: &oauth.Slack{
			ClientID:     cfg.SlackClientID,
			ClientSecret: cfg.SlackClientSecret,
			RedirectURI:  cfg.SlackRedirectURI,
		},
		jira: &oauth.Jira{
			ClientID:     cfg.JiraClientID,
			ClientSecret: cfg.JiraClientSecret,
			RedirectURI:  cfg.BaseURL + "/api/jira/callback",
		},
		google: &oauth.Google{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURI:  cfg.GoogleRedirectURI,
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/favicon.ico", s.handleFavicon)
	mux.HandleFunc("/v1/metrics", s.handleMetrics)
	mux.HandleFunc("/v1/metrics/prometheus", s.handleMetricsPrometheus)

	mux.HandleFunc("/api/agent/run", s.handleAgentRun)
	mux.HandleFunc("/api/agent/jobs", s.handleAgentJobs)
	mux.HandleFunc("/api/agent/jobs/", s.handleAgentJobByID)

	for _, p := range []string{"github", "slack", "jira", "google"} {
		provider := p
		mux.HandleFunc("/api/"+provider+"/exchange", func(w http.ResponseWriter, r *http.Request) {
			s.handleOAuthExchange(w, r, provider)
		})
		mux.HandleFunc("/api/"+provider+"/callback", func(w http.ResponseWriter, r *http.Request) {
			s.handleOAuthCallback(w, r, provider)
		})
		mux.HandleFunc("/auth/"+provider+"/success", func(w http.ResponseWriter, r *http.Request) {
			s.handleAuthSuccess(w, r, provider)
		})
	}
	mux.HandleFunc("/api/github/user", s.handleGithubUser)

	mux.HandleFunc("/api/users/", s.handleUserByID)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/", s.handleTaskByID)
	mux.HandleFunc("/api/screenshots", s.handleScreenshots)
	mux.HandleFunc("/api/recordings", s.handleRecordings)

	return withTracing(withLogging(s.withCORS(mux)))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/uploads/") {
		s.handleUploadedFile(w, r)
		return
	}
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "DesignX Extension API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "designx-api"})
}

func (s *Server) handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(faviconPNG)
}

// handleUploadedFile serves media stored by the local object store.
func (s *Server) handleUploadedFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.StorageRoot)))
	fs.ServeHTTP(w, r)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, observability.Default.Snapshot())
}

func (s *Server) handleMetricsPrometheus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(observability.Default.RenderPrometheus()))
}

func (s *Server) handleAgentRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req extapi.RunAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := s.agent.CreateJob(agent.RunRequest{
		RepoURL:     req.RepoURL,
		IssueURL:    req.IssueURL,
		GithubToken: req.GithubToken,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, extapi.RunAgentResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "agent job started",
	})
}

func (s *Server) handleAgentJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobs := s.agent.List()
	out := make([]extapi.JobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobSummary(j))
	}
	writeJSON(w, http.StatusOK, extapi.JobListResponse{Jobs: out})
}

func (s *Server) handleAgentJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/agent/jobs/")
	jobID, subresource, _ := strings.Cut(rest, "/")
	if jobID == "" {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if subresource == "stream" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.streamJobEvents(w, r, jobID)
		return
	}
	if subresource != "" {
		writeError(w, http.StatusNotFound, "job subresource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, err := s.agent.Status(jobID)
		if err != nil {
			writeAgentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, jobStatus(job))
	case http.MethodDelete:
		if err := s.agent.Cancel(jobID); err != nil {
			writeAgentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, extapi.CancelJobResponse{Message: "job cancelled"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// streamJobEvents pushes the job state over SSE: one full snapshot up
// front, then periodic updates carrying the status and the last few log
// lines. The stream ends with a terminal event once the job finishes.
func (s *Server) streamJobEvents(w http.ResponseWriter, r *http.Request, jobID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	job, err := s.agent.Status(jobID)
	if err != nil {
		_ = writeSSEEvent(w, "error", map[string]any{"message": "job not found"})
		flusher.Flush()
		return
	}

	_ = writeSSEEvent(w, "job.snapshot", streamEvent(job, job.Logs))
	flusher.Flush()

	if job.Terminal() {
		_ = writeSSEEvent(w, "job.done", streamEvent(job, nil))
		flusher.Flush()
		return
	}

	interval := s.cfg.StreamInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			job, err = s.agent.Status(jobID)
			if err != nil {
				_ = writeSSEEvent(w, "error", map[string]any{"message": "job not found"})
				flusher.Flush()
				return
			}
			_ = writeSSEEvent(w, "job.update", streamEvent(job, lastLines(job.Logs, 10)))
			flusher.Flush()
			if job.Terminal() {
				_ = writeSSEEvent(w, "job.done", streamEvent(job, nil))
				flusher.Flush()
				return
			}
		}
	}
}

func lastLines(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func streamEvent(job agent.Job, logs []string) extapi.JobStreamEvent {
	if logs == nil {
		logs = []string{}
	}
	return extapi.JobStreamEvent{
		JobID:       job.ID,
		Status:      job.Status,
		Logs:        logs,
		CompletedAt: job.CompletedAt,
	}
}

func jobStatus(job agent.Job) extapi.JobStatusResponse {
	resp := extapi.JobStatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ProgressLogs: job.Logs,
		ErrorMessage: job.ErrorMessage,
	}
	if resp.ProgressLogs == nil {
		resp.ProgressLogs = []string{}
	}
	if job.Result != nil {
		resp.Result = &extapi.AgentResult{Success: job.Result.Success, ExitCode: job.Result.ExitCode}
	}
	return resp
}

func jobSummary(job agent.Job) extapi.JobSummary {
	return extapi.JobSummary{
		JobID:       job.ID,
		RepoURL:     job.RepoURL,
		IssueURL:    job.IssueURL,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		PID:         job.PID,
	}
}

func writeAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, agent.ErrJobTerminal):
		writeError(w, http.StatusBadRequest, "job is not running")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeSSEEvent(w http.ResponseWriter, event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + event + "\n")); err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: " + string(b) + "\n\n")); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// withCORS answers extension preflights on /api and /auth routes. The
// extension origin is opaque (chrome-extension://…), so matching is by
// prefix pattern from config.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/auth/") {
			origin := r.Header.Get("Origin")
			if origin != "" && s.originAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, pattern := range s.cfg.AllowedOrigins {
		if pattern == "*" || pattern == origin {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := observability.StartSpan(r.Context(), "http.request",
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		)
		defer span.End()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		traceID := span.SpanContext().TraceID().String()
		if traceID != "" {
			sw.Header().Set("X-Trace-ID", traceID)
		}
		next.ServeHTTP(sw, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", sw.status))
	})
}
