package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every FORMRELAY_ env var that Load() reads.
var allConfigKeys = []string{
	"FORMRELAY_GITHUB_OWNER",
	"FORMRELAY_GITHUB_REPO",
	"FORMRELAY_GITHUB_WORKFLOW",
	"FORMRELAY_GITHUB_TOKEN",
	"FORMRELAY_GITHUB_REF",
	"FORMRELAY_GITHUB_API_URL",
	"FORMRELAY_START_TITLE",
	"FORMRELAY_END_TITLE",
	"FORMRELAY_START_INPUT",
	"FORMRELAY_END_INPUT",
	"FORMRELAY_DISPATCH_TIMEOUT",
	"FORMRELAY_LISTEN_ADDR",
	"FORMRELAY_DB_PATH",
	"FORMRELAY_WEBHOOK_SECRET",
	"FORMRELAY_DESCRIPTION",
}

// isolateConfigEnv saves and unsets all FORMRELAY_ env vars so tests don't
// inherit values from the host environment.
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FORMRELAY_GITHUB_OWNER", "acme")
	t.Setenv("FORMRELAY_GITHUB_REPO", "reports")
	t.Setenv("FORMRELAY_GITHUB_WORKFLOW", "report.yml")
	t.Setenv("FORMRELAY_GITHUB_TOKEN", "ghp_test123")
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("FORMRELAY_GITHUB_REF", "release")
	t.Setenv("FORMRELAY_START_TITLE", "From")
	t.Setenv("FORMRELAY_END_TITLE", "To")
	t.Setenv("FORMRELAY_START_INPUT", "from_date")
	t.Setenv("FORMRELAY_END_INPUT", "to_date")
	t.Setenv("FORMRELAY_DISPATCH_TIMEOUT", "30s")
	t.Setenv("FORMRELAY_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("FORMRELAY_DB_PATH", "/tmp/test.db")
	t.Setenv("FORMRELAY_WEBHOOK_SECRET", "s3cret")
	t.Setenv("FORMRELAY_GITHUB_API_URL", "https://ghe.example.com/api/v3/")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.GitHubOwner)
	assert.Equal(t, "reports", cfg.GitHubRepo)
	assert.Equal(t, "report.yml", cfg.GitHubWorkflow)
	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, "release", cfg.GitHubRef)
	assert.Equal(t, "From", cfg.StartTitle)
	assert.Equal(t, "To", cfg.EndTitle)
	assert.Equal(t, "from_date", cfg.StartInput)
	assert.Equal(t, "to_date", cfg.EndInput)
	assert.Equal(t, 30*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "https://ghe.example.com/api/v3/", cfg.GitHubAPIURL)
	assert.True(t, cfg.HasWebhookSecret())
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "main", cfg.GitHubRef)
	assert.Equal(t, "Start", cfg.StartTitle)
	assert.Equal(t, "End", cfg.EndTitle)
	assert.Equal(t, "start", cfg.StartInput)
	assert.Equal(t, "end", cfg.EndInput)
	assert.Equal(t, 15*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "formrelay.db", cfg.DBPath)
	assert.Empty(t, cfg.GitHubAPIURL)
	assert.False(t, cfg.HasWebhookSecret())
}

func TestLoad_MissingRequired(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FORMRELAY_GITHUB_OWNER", "acme")
	t.Setenv("FORMRELAY_GITHUB_WORKFLOW", "report.yml")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORMRELAY_GITHUB_REPO, FORMRELAY_GITHUB_TOKEN")
	assert.NotContains(t, err.Error(), "FORMRELAY_GITHUB_OWNER")
}

func TestLoad_WhitespaceTokenIsMissing(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("FORMRELAY_GITHUB_TOKEN", "   ")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORMRELAY_GITHUB_TOKEN")
}

func TestLoad_InvalidDispatchTimeout(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("FORMRELAY_DISPATCH_TIMEOUT", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORMRELAY_DISPATCH_TIMEOUT")
}

func TestLoad_NonPositiveDispatchTimeout(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("FORMRELAY_DISPATCH_TIMEOUT", "0s")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestLoad_SameInputNames(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("FORMRELAY_START_INPUT", "range")
	t.Setenv("FORMRELAY_END_INPUT", "range")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestConfig_Target(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	target := cfg.Target()
	assert.Equal(t, "acme", target.Owner)
	assert.Equal(t, "reports", target.Repo)
	assert.Equal(t, "report.yml", target.Workflow)
	assert.Equal(t, "main", target.Ref)
	assert.Equal(t, "acme/reports", target.FullName())
}
