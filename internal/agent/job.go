package agent

import "time"

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Result is the outcome payload of a completed job.
type Result struct {
	Success  bool
	ExitCode int
}

// Job tracks one agent execution end-to-end. Snapshots handed out by the
// registry are copies; all mutation goes through registry methods.
type Job struct {
	ID           string
	RepoURL      string
	IssueURL     string
	Status       string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	PID          int
	Logs         []string
	ErrorMessage string
	Result       *Result
}

func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
