package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Point at a missing config file so the host's real one is ignored.
	t.Setenv("SCRAPOUILLE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.HealthInterval)
	assert.Equal(t, "qwen2.5-coder:7b", cfg.DefaultModel)
	assert.Equal(t, "normal", cfg.DefaultRateLim)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.NotEmpty(t, cfg.HistoryPath)
	assert.NotEmpty(t, cfg.LogFile)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api_url: http://scraper.local:9000
request_timeout: 45s
health_interval: 10s
default_model: mistral:7b
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("SCRAPOUILLE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://scraper.local:9000", cfg.APIURL)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.HealthInterval)
	assert.Equal(t, "mistral:7b", cfg.DefaultModel)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	// Values absent from the file keep their defaults.
	assert.Equal(t, "normal", cfg.DefaultRateLim)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: [not, a, string"), 0o644))
	t.Setenv("SCRAPOUILLE_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("request_timeout: soon"), 0o644))
	t.Setenv("SCRAPOUILLE_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: http://from-file:8000"), 0o644))
	t.Setenv("SCRAPOUILLE_CONFIG", path)
	t.Setenv("SCRAPOUILLE_API_URL", "http://from-env:8000")
	t.Setenv("SCRAPOUILLE_MODEL", "llama3.1:8b")
	t.Setenv("SCRAPOUILLE_CLIENT_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8000", cfg.APIURL)
	assert.Equal(t, "llama3.1:8b", cfg.DefaultModel)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("bogus"))
}
