package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string

	// Agent execution. AgentDir, when set, is used as the working
	// directory for the agent subprocess. AgentDirCandidates is the
	// legacy probing fallback used only when AgentDir is unset.
	AgentBin           string
	AgentDir           string
	AgentDirCandidates []string
	AgentModel         string
	AgentConfigPath    string
	AgentCostLimit     string
	OpenAIAPIKey       string
	ModalTokenID       string
	ModalTokenSecret   string

	// Job stream cadence and optional terminal-job retention.
	StreamInterval time.Duration
	JobTTL         time.Duration
	SweepSchedule  string

	// OAuth app credentials.
	GithubClientID     string
	GithubClientSecret string
	SlackClientID      string
	SlackClientSecret  string
	SlackRedirectURI   string
	JiraClientID       string
	JiraClientSecret   string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	BaseURL            string

	// Record store and object storage backends.
	StoreBackend   string
	PostgresDSN    string
	SQLitePath     string
	StorageBackend string
	StorageRoot    string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	AllowedOrigins []string
}

func FromEnv() Config {
	cfg := Config{
		Port:     getenv("PORT", "8000"),
		AgentBin: getenv("DESIGNX_AGENT_BIN", "sweagent"),
		AgentDir: getenv("DESIGNX_AGENT_DIR", ""),
		AgentDirCandidates: []string{
			"/app/SWE-agent",
			"SWE-agent",
			"backend/SWE-agent",
		},
		AgentModel:         getenv("DESIGNX_AGENT_MODEL", "gpt-4.1"),
		AgentConfigPath:    getenv("DESIGNX_AGENT_CONFIG", "config/default.yaml"),
		AgentCostLimit:     getenv("DESIGNX_AGENT_COST_LIMIT", "1.00"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		ModalTokenID:       os.Getenv("MODAL_TOKEN_ID"),
		ModalTokenSecret:   os.Getenv("MODAL_TOKEN_SECRET"),
		StreamInterval:     time.Duration(getenvInt("DESIGNX_STREAM_INTERVAL_MILLIS", 2000)) * time.Millisecond,
		JobTTL:             time.Duration(getenvInt("DESIGNX_JOB_TTL_MINUTES", 0)) * time.Minute,
		SweepSchedule:      getenv("DESIGNX_JOB_SWEEP_SCHEDULE", "@every 10m"),
		GithubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GithubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		SlackClientID:      os.Getenv("SLACK_CLIENT_ID"),
		SlackClientSecret:  os.Getenv("SLACK_CLIENT_SECRET"),
		SlackRedirectURI:   os.Getenv("SLACK_REDIRECT_URI"),
		JiraClientID:       os.Getenv("JIRA_CLIENT_ID"),
		JiraClientSecret:   os.Getenv("JIRA_CLIENT_SECRET"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
		BaseURL:            getenv("DESIGNX_BASE_URL", "http://localhost:8000"),
		StoreBackend:       getenv("DESIGNX_STORE", "memory"),
		PostgresDSN:        os.Getenv("DESIGNX_POSTGRES_DSN"),
		SQLitePath:         getenv("DESIGNX_SQLITE_PATH", "designx.db"),
		StorageBackend:     getenv("DESIGNX_STORAGE_BACKEND", "local"),
		StorageRoot:        getenv("DESIGNX_STORAGE_ROOT", "/tmp/designx-uploads"),
		MinIOEndpoint:      os.Getenv("DESIGNX_MINIO_ENDPOINT"),
		MinIOAccessKey:     os.Getenv("DESIGNX_MINIO_ACCESS_KEY"),
		MinIOSecretKey:     os.Getenv("DESIGNX_MINIO_SECRET_KEY"),
		MinIOBucket:        getenv("DESIGNX_MINIO_BUCKET", "designx-media"),
		MinIOUseSSL:        getenvBool("DESIGNX_MINIO_USE_SSL", false),
		AllowedOrigins: []string{
			"chrome-extension://*",
			"moz-extension://*",
			"http://localhost:*",
			"https://localhost:*",
		},
	}
	if path := strings.TrimSpace(os.Getenv("DESIGNX_CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			// A broken overlay file should not take the service down;
			// env values remain authoritative.
			fmt.Fprintf(os.Stderr, "config file %s ignored: %v\n", path, err)
		}
	}
	return cfg
}

// fileOverlay is the optional YAML config file. Only fields that make
// sense to version alongside a deployment are overridable here.
type fileOverlay struct {
	AgentBin           string   `yaml:"agent_bin"`
	AgentDir           string   `yaml:"agent_dir"`
	AgentDirCandidates []string `yaml:"agent_dir_candidates"`
	AgentModel         string   `yaml:"agent_model"`
	AgentConfigPath    string   `yaml:"agent_config"`
	AgentCostLimit     string   `yaml:"agent_cost_limit"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	BaseURL            string   `yaml:"base_url"`
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileOverlay
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if f.AgentBin != "" {
		c.AgentBin = f.AgentBin
	}
	if f.AgentDir != "" {
		c.AgentDir = f.AgentDir
	}
	if len(f.AgentDirCandidates) > 0 {
		c.AgentDirCandidates = f.AgentDirCandidates
	}
	if f.AgentModel != "" {
		c.AgentModel = f.AgentModel
	}
	if f.AgentConfigPath != "" {
		c.AgentConfigPath = f.AgentConfigPath
	}
	if f.AgentCostLimit != "" {
		c.AgentCostLimit = f.AgentCostLimit
	}
	if len(f.AllowedOrigins) > 0 {
		c.AllowedOrigins = f.AllowedOrigins
	}
	if f.BaseURL != "" {
		c.BaseURL = f.BaseURL
	}
	return nil
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
