package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3001", cfg.Addr())
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORSOrigins)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, int64(10_000_000), cfg.MaxRequestSize)
	assert.Equal(t, 300*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, "claude-code", cfg.Runner.Binary)
	assert.Equal(t, 5*time.Second, cfg.HealthCheckTimeout)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("MCP_PORT", "4100")
	t.Setenv("MCP_ENV", "development")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "60000")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "5")
	t.Setenv("MAX_REQUEST_SIZE", "1kb")
	t.Setenv("CLAUDE_CODE_TIMEOUT", "250")
	t.Setenv("HEALTH_CHECK_TIMEOUT", "2")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, int64(1000), cfg.MaxRequestSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Runner.Timeout)
	assert.Equal(t, 2*time.Second, cfg.HealthCheckTimeout)
	assert.False(t, cfg.MetricsEnabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"MCP_PORT", "abc"},
		{"MCP_PORT", "70000"},
		{"RATE_LIMIT_MAX_REQUESTS", "0"},
		{"CLAUDE_CODE_TIMEOUT", "-1"},
		{"MAX_REQUEST_SIZE", "lots"},
		{"METRICS_ENABLED", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFileAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ccgateway.yaml")
	require.NoError(t, os.WriteFile(file, []byte("mcp_port: 4200\nprojects_root: /srv/projects\n"), 0o644))

	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CLAUDE_CODE_BIN=/opt/claude/bin/claude-code\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CLAUDE_CODE_BIN") })

	t.Setenv("PROJECTS_ROOT", "/env/projects")

	cfg, err := Load(file, envFile)
	require.NoError(t, err)

	assert.Equal(t, 4200, cfg.Port)
	assert.Equal(t, "/env/projects", cfg.ProjectsRoot, "environment wins over file")
	assert.Equal(t, "/opt/claude/bin/claude-code", cfg.Runner.Binary)
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
