// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ericfisherdev/formrelay/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubOwner    string
	GitHubRepo     string
	GitHubWorkflow string
	GitHubToken    string
	GitHubRef      string
	GitHubAPIURL   string

	StartTitle string
	EndTitle   string
	StartInput string
	EndInput   string

	DispatchTimeout time.Duration
	ListenAddr      string
	DBPath          string
	WebhookSecret   string
	Description     string
}

// Target returns the workflow the relay dispatches to.
func (c *Config) Target() model.DispatchTarget {
	return model.DispatchTarget{
		Owner:    c.GitHubOwner,
		Repo:     c.GitHubRepo,
		Workflow: c.GitHubWorkflow,
		Ref:      c.GitHubRef,
	}
}

// HasWebhookSecret returns true when inbound submissions must be signed.
func (c *Config) HasWebhookSecret() bool {
	return c.WebhookSecret != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// FORMRELAY_GITHUB_OWNER, FORMRELAY_GITHUB_REPO, FORMRELAY_GITHUB_WORKFLOW and
// FORMRELAY_GITHUB_TOKEN are required. Optional variables with defaults:
// FORMRELAY_GITHUB_REF (main), FORMRELAY_START_TITLE (Start), FORMRELAY_END_TITLE (End),
// FORMRELAY_START_INPUT (start), FORMRELAY_END_INPUT (end),
// FORMRELAY_DISPATCH_TIMEOUT (15s), FORMRELAY_LISTEN_ADDR (127.0.0.1:8080),
// FORMRELAY_DB_PATH (formrelay.db). FORMRELAY_GITHUB_API_URL, FORMRELAY_WEBHOOK_SECRET
// and FORMRELAY_DESCRIPTION are optional.
func Load() (*Config, error) {
	cfg := &Config{
		GitHubOwner:     os.Getenv("FORMRELAY_GITHUB_OWNER"),
		GitHubRepo:      os.Getenv("FORMRELAY_GITHUB_REPO"),
		GitHubWorkflow:  os.Getenv("FORMRELAY_GITHUB_WORKFLOW"),
		GitHubToken:     os.Getenv("FORMRELAY_GITHUB_TOKEN"),
		GitHubRef:       envOr("FORMRELAY_GITHUB_REF", "main"),
		GitHubAPIURL:    os.Getenv("FORMRELAY_GITHUB_API_URL"),
		StartTitle:      envOr("FORMRELAY_START_TITLE", "Start"),
		EndTitle:        envOr("FORMRELAY_END_TITLE", "End"),
		StartInput:      envOr("FORMRELAY_START_INPUT", "start"),
		EndInput:        envOr("FORMRELAY_END_INPUT", "end"),
		DispatchTimeout: 15 * time.Second,
		ListenAddr:      envOr("FORMRELAY_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:          envOr("FORMRELAY_DB_PATH", "formrelay.db"),
		WebhookSecret:   os.Getenv("FORMRELAY_WEBHOOK_SECRET"),
		Description:     os.Getenv("FORMRELAY_DESCRIPTION"),
	}

	var missing []string
	for key, val := range map[string]string{
		"FORMRELAY_GITHUB_OWNER":    cfg.GitHubOwner,
		"FORMRELAY_GITHUB_REPO":     cfg.GitHubRepo,
		"FORMRELAY_GITHUB_WORKFLOW": cfg.GitHubWorkflow,
		"FORMRELAY_GITHUB_TOKEN":    cfg.GitHubToken,
	} {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if v, ok := os.LookupEnv("FORMRELAY_DISPATCH_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("FORMRELAY_DISPATCH_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("FORMRELAY_DISPATCH_TIMEOUT must be positive, got %s", parsed)
		}
		cfg.DispatchTimeout = parsed
	}

	if cfg.StartInput == cfg.EndInput {
		return nil, fmt.Errorf("FORMRELAY_START_INPUT and FORMRELAY_END_INPUT must differ, both are %q", cfg.StartInput)
	}

	return cfg, nil
}

// envOr returns the value of key, or def when the variable is unset or empty.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
