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
	for _, key := range []string{
		"RESEARCH_CONFIG_FILE", "BRAVE_API_KEY", "BRAVE_BASE_URL", "CORS_ALLOWED_ORIGINS",
		"RETRY_ATTEMPTS", "RESEARCH_MAX_ITERATIONS", "VALIDATION_DB_URL", "NOTES_DIR",
	} {
		unsetIfSet(t, key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.search.brave.com/res/v1", cfg.BraveBaseURL)
	assert.Empty(t, cfg.BraveAPIKey)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 25, cfg.ResearchMaxIterations)
	assert.Equal(t, 2, cfg.ResearchValidationEvery)
	assert.Equal(t, 15*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "file:validation.db", cfg.ValidationDBURL)
	assert.Equal(t, ":8080", cfg.ListenAddress())
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestLoadEnvOverrides(t *testing.T) {
	unsetIfSet(t, "RESEARCH_CONFIG_FILE")
	t.Setenv("BRAVE_API_KEY", "  brave-key  ")
	t.Setenv("RESEARCH_MAX_ITERATIONS", "7")
	t.Setenv("RETRY_BASE_DELAY_MS", "250")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "brave-key", cfg.BraveAPIKey)
	assert.Equal(t, 7, cfg.ResearchMaxIterations)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadRejectsInvalidRetryAttempts(t *testing.T) {
	unsetIfSet(t, "RESEARCH_CONFIG_FILE")
	t.Setenv("RETRY_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresTokenForLibsql(t *testing.T) {
	unsetIfSet(t, "RESEARCH_CONFIG_FILE")
	t.Setenv("VALIDATION_DB_URL", "libsql://example.turso.io")
	t.Setenv("VALIDATION_DB_AUTH_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte("research_max_iterations: 11\nnotes_dir: /tmp/research-notes\n"), 0o600))
	t.Setenv("RESEARCH_CONFIG_FILE", path)
	unsetIfSet(t, "RESEARCH_MAX_ITERATIONS")
	unsetIfSet(t, "NOTES_DIR")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.ResearchMaxIterations)
	assert.Equal(t, "/tmp/research-notes", cfg.NotesDir)
}

func unsetIfSet(t *testing.T, key string) {
	t.Helper()
	if value, ok := os.LookupEnv(key); ok {
		t.Cleanup(func() {
			_ = os.Setenv(key, value)
		})
		_ = os.Unsetenv(key)
	}
}
