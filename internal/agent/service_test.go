package agent

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akhatua2/designx/internal/config"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func newTestService(t *testing.T, script string) *Service {
	t.Helper()
	cfg := config.Config{
		AgentBin:        script,
		AgentDir:        t.TempDir(),
		AgentModel:      "gpt-4.1",
		AgentConfigPath: "config/default.yaml",
		AgentCostLimit:  "1.00",
	}
	return NewService(cfg, NewRegistry())
}

func waitForStatus(t *testing.T, s *Service, jobID, want string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.Status(jobID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := s.Status(jobID)
	t.Fatalf("job never reached %s, stuck at %s (logs: %v)", want, job.Status, job.Logs)
	return Job{}
}

func TestCreateJobValidation(t *testing.T) {
	s := newTestService(t, "/bin/true")
	cases := []RunRequest{
		{IssueURL: "https://github.com/o/r/issues/1", GithubToken: "tok"},
		{RepoURL: "https://github.com/o/r", GithubToken: "tok"},
		{RepoURL: "https://github.com/o/r", IssueURL: "https://github.com/o/r/issues/1"},
	}
	for i, req := range cases {
		if _, err := s.CreateJob(req); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestJobCompletes(t *testing.T) {
	script := writeScript(t, "echo starting up\necho fixing issue\nexit 0\n")
	s := newTestService(t, script)

	job, err := s.CreateJob(RunRequest{
		RepoURL:     "https://github.com/o/r",
		IssueURL:    "https://github.com/o/r/issues/1",
		GithubToken: "tok",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != StatusPending {
		t.Fatalf("expected pending on accept, got %s", job.Status)
	}

	done := waitForStatus(t, s, job.ID, StatusCompleted)
	if done.Result == nil || !done.Result.Success || done.Result.ExitCode != 0 {
		t.Fatalf("unexpected result %+v", done.Result)
	}
	if done.CompletedAt == nil || done.StartedAt == nil {
		t.Fatalf("expected timestamps, got %+v", done)
	}
	if done.PID != 0 {
		t.Fatalf("pid should be cleared after exit, got %d", done.PID)
	}
	joined := strings.Join(done.Logs, "\n")
	for _, want := range []string{"starting up", "fixing issue", "agent completed successfully"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("logs missing %q: %v", want, done.Logs)
		}
	}
}

func TestJobFailsWithExitCode(t *testing.T) {
	script := writeScript(t, "echo something broke >&2\nexit 3\n")
	s := newTestService(t, script)

	job, err := s.CreateJob(RunRequest{
		RepoURL:     "https://github.com/o/r",
		IssueURL:    "https://github.com/o/r/issues/1",
		GithubToken: "tok",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	failed := waitForStatus(t, s, job.ID, StatusFailed)
	if failed.ErrorMessage != "process failed with exit code 3" {
		t.Fatalf("unexpected error message %q", failed.ErrorMessage)
	}
	// Stderr is merged into the log stream.
	if !strings.Contains(strings.Join(failed.Logs, "\n"), "something broke") {
		t.Fatalf("stderr line missing from logs: %v", failed.Logs)
	}
}

func TestJobFailsWhenAgentDirMissing(t *testing.T) {
	cfg := config.Config{
		AgentBin: "/bin/true",
		AgentDir: "/nonexistent/agent/dir",
	}
	s := NewService(cfg, NewRegistry())

	job, err := s.CreateJob(RunRequest{
		RepoURL:     "https://github.com/o/r",
		IssueURL:    "https://github.com/o/r/issues/1",
		GithubToken: "tok",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	failed := waitForStatus(t, s, job.ID, StatusFailed)
	if !strings.Contains(failed.ErrorMessage, "not found") {
		t.Fatalf("unexpected error %q", failed.ErrorMessage)
	}
}

func TestCancelRunningJob(t *testing.T) {
	script := writeScript(t, "echo long task\nsleep 30\n")
	s := newTestService(t, script)

	job, err := s.CreateJob(RunRequest{
		RepoURL:     "https://github.com/o/r",
		IssueURL:    "https://github.com/o/r/issues/1",
		GithubToken: "tok",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForStatus(t, s, job.ID, StatusRunning)

	if err := s.Cancel(job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	cancelled := waitForStatus(t, s, job.ID, StatusFailed)
	if cancelled.ErrorMessage != "cancelled by user" {
		t.Fatalf("unexpected error message %q", cancelled.ErrorMessage)
	}
	if cancelled.Result != nil {
		t.Fatalf("cancelled job must not carry a result: %+v", cancelled.Result)
	}
	if !strings.Contains(strings.Join(cancelled.Logs, "\n"), "job cancelled by user") {
		t.Fatalf("cancel note missing from logs: %v", cancelled.Logs)
	}

	if err := s.Cancel(job.ID); !errors.Is(err, ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal, got %v", err)
	}
}

func TestStatusAndCancelUnknownJob(t *testing.T) {
	s := newTestService(t, "/bin/true")
	if _, err := s.Status("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Cancel("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	s := newTestService(t, script)

	first, err := s.CreateJob(RunRequest{RepoURL: "r1", IssueURL: "i1", GithubToken: "t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := s.CreateJob(RunRequest{RepoURL: "r2", IssueURL: "i2", GithubToken: "t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	jobs := s.List()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Fatalf("expected newest first, got %s then %s", jobs[0].ID, jobs[1].ID)
	}
}
