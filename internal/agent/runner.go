package agent

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/akhatua2/designx/internal/observability"
)

// run is the per-job background worker. Any error escaping the
// execution steps converts the job to failed with the error message;
// nothing is retried.
func (s *Service) run(jobID string, req RunRequest) {
	if err := s.execute(jobID, req); err != nil {
		s.registry.Append(jobID, "error: "+err.Error())
		if s.registry.Finish(jobID, err.Error(), nil) {
			observability.Default.IncCounter("agent_jobs_finished_total", map[string]string{"status": StatusFailed}, 1)
			log.Printf("job_id=%s: failed: %v", jobID, err)
		}
	}
}

func (s *Service) execute(jobID string, req RunRequest) error {
	dir, err := s.resolveAgentDir()
	if err != nil {
		return err
	}
	s.registry.Append(jobID, "using agent directory: "+dir)

	args := s.buildArgs(req)
	s.registry.Append(jobID, "command: "+s.cfg.AgentBin+" "+strings.Join(args, " "))

	cmd := exec.Command(s.cfg.AgentBin, args...)
	cmd.Dir = dir
	cmd.Env = s.buildEnv(jobID, req.GithubToken)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	pid := cmd.Process.Pid
	if !s.registry.MarkRunning(jobID, pid) {
		// Cancelled before the process came up; reap it and stop.
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil
	}
	s.registry.Append(jobID, fmt.Sprintf("process started with pid %d", pid))
	log.Printf("job_id=%s: agent running pid=%d", jobID, pid)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.registry.Append(jobID, line)
		log.Printf("job_id=%s: %s", jobID, line)
	}

	err = cmd.Wait()
	s.registry.ClearPID(jobID)
	if err == nil {
		s.registry.Append(jobID, "agent completed successfully")
		if s.registry.Finish(jobID, "", &Result{Success: true, ExitCode: 0}) {
			observability.Default.IncCounter("agent_jobs_finished_total", map[string]string{"status": StatusCompleted}, 1)
			log.Printf("job_id=%s: completed", jobID)
		}
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		s.registry.Append(jobID, fmt.Sprintf("agent failed (exit code: %d)", code))
		if s.registry.Finish(jobID, fmt.Sprintf("process failed with exit code %d", code), nil) {
			observability.Default.IncCounter("agent_jobs_finished_total", map[string]string{"status": StatusFailed}, 1)
			log.Printf("job_id=%s: failed with exit code %d", jobID, code)
		}
		return nil
	}
	return fmt.Errorf("wait for agent: %w", err)
}

// resolveAgentDir prefers the explicitly configured directory and falls
// back to probing the legacy candidate paths, first existing path wins.
func (s *Service) resolveAgentDir() (string, error) {
	if dir := strings.TrimSpace(s.cfg.AgentDir); dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir, nil
		}
		return "", fmt.Errorf("configured agent directory %s not found", dir)
	}
	for _, candidate := range s.cfg.AgentDirCandidates {
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("agent directory not found, tried: %s", strings.Join(s.cfg.AgentDirCandidates, ", "))
}

func (s *Service) buildArgs(req RunRequest) []string {
	return []string{
		"run",
		"--agent.model.name=" + s.cfg.AgentModel,
		"--config", s.cfg.AgentConfigPath,
		"--agent.model.per_instance_cost_limit=" + s.cfg.AgentCostLimit,
		"--env.repo.github_url=" + req.RepoURL,
		"--problem_statement.github_url=" + req.IssueURL,
		"--env.deployment.type=modal",
	}
}

// buildEnv overlays the caller credential and service API keys on the
// current process environment. Missing optional keys degrade to a
// warning log line instead of failing the job.
func (s *Service) buildEnv(jobID, githubToken string) []string {
	env := append(os.Environ(), "GITHUB_TOKEN="+githubToken)
	if s.cfg.OpenAIAPIKey != "" {
		env = append(env, "OPENAI_API_KEY="+s.cfg.OpenAIAPIKey)
		s.registry.Append(jobID, "openai api key configured")
	} else {
		s.registry.Append(jobID, "warning: no openai api key configured")
	}
	if s.cfg.ModalTokenID != "" {
		env = append(env, "MODAL_TOKEN_ID="+s.cfg.ModalTokenID)
		s.registry.Append(jobID, "modal credentials configured")
	} else {
		s.registry.Append(jobID, "warning: no modal credentials configured")
	}
	if s.cfg.ModalTokenSecret != "" {
		env = append(env, "MODAL_TOKEN_SECRET="+s.cfg.ModalTokenSecret)
	}
	return env
}
