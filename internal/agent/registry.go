package agent

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// maxLogLines bounds the per-job log buffer. Older lines are discarded,
// not archived; callers that need the full transcript should tail the
// stream endpoint instead.
const maxLogLines = 100

// Registry is the single source of truth for job lifecycle. It is an
// owned, injectable store so tests can construct isolated instances.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

func (r *Registry) Create(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	r.jobs[job.ID] = job
}

func (r *Registry) Get(jobID string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return cloneJob(job), true
}

// List returns snapshots of all jobs ordered by creation time, newest
// first.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, cloneJob(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Append adds log lines in order, dropping empties and trimming the
// buffer to the most recent maxLogLines entries.
func (r *Registry) Append(jobID string, lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		job.Logs = append(job.Logs, line)
	}
	if len(job.Logs) > maxLogLines {
		job.Logs = append([]string(nil), job.Logs[len(job.Logs)-maxLogLines:]...)
	}
	r.jobs[jobID] = job
}

// MarkRunning records the process handle and the running transition.
// It reports false when the job is already terminal (cancelled before
// the process came up), in which case the caller owns reaping the
// process it just started.
func (r *Registry) MarkRunning(jobID string, pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Terminal() {
		return false
	}
	now := time.Now().UTC()
	job.Status = StatusRunning
	job.StartedAt = &now
	job.PID = pid
	r.jobs[jobID] = job
	return true
}

// Finish moves a job to its terminal state. Exactly one of errMsg and
// result must be set. The write is a compare-and-swap: if another
// writer (runner vs. cancellation) already made the job terminal, this
// call is a no-op and reports false. First terminal writer wins.
func (r *Registry) Finish(jobID string, errMsg string, result *Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Terminal() {
		return false
	}
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.PID = 0
	if result != nil {
		job.Status = StatusCompleted
		job.Result = result
		job.ErrorMessage = ""
	} else {
		job.Status = StatusFailed
		job.ErrorMessage = errMsg
	}
	r.jobs[jobID] = job
	return true
}

// ClearPID drops the process handle once the process has been reaped.
// Status is untouched.
func (r *Registry) ClearPID(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return
	}
	job.PID = 0
	r.jobs[jobID] = job
}

// DeleteExpired removes terminal jobs completed before cutoff and
// returns how many were dropped. Live jobs are never evicted.
func (r *Registry) DeleteExpired(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, job := range r.jobs {
		if !job.Terminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

func cloneJob(job Job) Job {
	out := job
	out.Logs = append([]string(nil), job.Logs...)
	if job.StartedAt != nil {
		t := *job.StartedAt
		out.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		out.CompletedAt = &t
	}
	if job.Result != nil {
		res := *job.Result
		out.Result = &res
	}
	return out
}
