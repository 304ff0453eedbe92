package extapi

import "time"

type RunAgentRequest struct {
	RepoURL     string `json:"repo_url"`
	IssueURL    string `json:"issue_url"`
	GithubToken string `json:"github_token"`
}

type RunAgentResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AgentResult struct {
	Success  bool `json:"success"`
	ExitCode int  `json:"exit_code"`
}

type JobStatusResponse struct {
	JobID        string       `json:"job_id"`
	Status       string       `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	ProgressLogs []string     `json:"progress_logs"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Result       *AgentResult `json:"result,omitempty"`
}

type JobSummary struct {
	JobID       string     `json:"job_id"`
	RepoURL     string     `json:"repo_url"`
	IssueURL    string     `json:"issue_url"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	PID         int        `json:"pid,omitempty"`
}

type JobListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

type CancelJobResponse struct {
	Message string `json:"message"`
}

// JobStreamEvent is the payload carried by the job stream endpoint, both
// for the initial full snapshot and the periodic incremental updates.
type JobStreamEvent struct {
	JobID       string     `json:"job_id"`
	Status      string     `json:"status"`
	Logs        []string   `json:"logs"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type TokenRequest struct {
	Code string `json:"code"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type SlackTokenResponse struct {
	AccessToken string         `json:"access_token"`
	Team        map[string]any `json:"team"`
	AuthedUser  map[string]any `json:"authed_user"`
}

type JiraTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

type GoogleTokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        map[string]any `json:"user"`
}

type TaskRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type CreateTaskRequest struct {
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type UploadResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Message  string `json:"message"`
}

type MediaRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	TaskID      string    `json:"task_id,omitempty"`
	Filename    string    `json:"filename"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	UploadURL   string    `json:"upload_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type MediaListResponse struct {
	Items []MediaRecord `json:"items"`
}
