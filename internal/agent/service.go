package agent

import (
	"errors"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/akhatua2/designx/internal/config"
	"github.com/akhatua2/designx/internal/observability"
)

var (
	ErrNotFound    = errors.New("job not found")
	ErrJobTerminal = errors.New("job is not running")
)

// RunRequest is a validated request to launch the agent. GithubToken is
// forwarded to the subprocess environment and must never be logged.
type RunRequest struct {
	RepoURL     string
	IssueURL    string
	GithubToken string
}

// Service owns the job registry and launches one runner goroutine per
// accepted job. Request handling never blocks on job execution.
type Service struct {
	cfg      config.Config
	registry *Registry
}

func NewService(cfg config.Config, registry *Registry) *Service {
	return &Service{cfg: cfg, registry: registry}
}

// CreateJob validates the request, persists a pending job and schedules
// the runner. It returns without waiting for the process to start.
func (s *Service) CreateJob(req RunRequest) (Job, error) {
	if strings.TrimSpace(req.RepoURL) == "" {
		return Job{}, errors.New("repo_url is required")
	}
	if strings.TrimSpace(req.IssueURL) == "" {
		return Job{}, errors.New("issue_url is required")
	}
	if strings.TrimSpace(req.GithubToken) == "" {
		return Job{}, errors.New("github_token is required")
	}

	job := Job{
		ID:        uuid.New().String(),
		RepoURL:   req.RepoURL,
		IssueURL:  req.IssueURL,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.registry.Create(job)
	observability.Default.IncCounter("agent_jobs_created_total", nil, 1)
	log.Printf("job_id=%s: created agent job for %s (token length=%d)", job.ID, req.RepoURL, len(req.GithubToken))

	go s.run(job.ID, req)
	return job, nil
}

// Status returns the full snapshot of one job.
func (s *Service) Status(jobID string) (Job, error) {
	job, ok := s.registry.Get(jobID)
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// List returns snapshots of all jobs, newest first.
func (s *Service) List() []Job {
	return s.registry.List()
}

// Cancel signals a live job's process and forces the job into the
// failed state. Cancelling an already-terminal job is an invalid-state
// error and leaves the record unchanged.
func (s *Service) Cancel(jobID string) error {
	job, ok := s.registry.Get(jobID)
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return ErrJobTerminal
	}
	if job.PID > 0 {
		// Best effort: the runner reaps the process, we only nudge it.
		if proc, err := os.FindProcess(job.PID); err == nil {
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				log.Printf("job_id=%s: signalling pid=%d failed: %v", jobID, job.PID, err)
			}
		}
	}
	s.registry.Append(jobID, "job cancelled by user")
	if s.registry.Finish(jobID, "cancelled by user", nil) {
		observability.Default.IncCounter("agent_jobs_finished_total", map[string]string{"status": StatusFailed}, 1)
		log.Printf("job_id=%s: cancelled", jobID)
	}
	return nil
}
