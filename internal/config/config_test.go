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
	t.Setenv("INFOBASE_ADDR", "")
	t.Setenv("PORT", "9090")
	t.Setenv("INFOBASE_RL_VOTE_PER_MIN", "7")
	t.Setenv("INFOBASE_TOKEN_TTL", "not-a-duration")
	t.Setenv("INFOBASE_DB", "")
	t.Setenv("INFOBASE_RL_QUESTION_PER_MIN", "")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "infobase.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 7, cfg.RateLimits.VotePerMinute)
	assert.Equal(t, 10, cfg.RateLimits.QuestionPerMinute)
}

func TestLoadClientProfileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	profile := "api_url: https://forum.example\ntimeout: 5s\nrps: 2.5\nburst: 0\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o600))
	t.Setenv("INFOBASE_API_URL", "")
	t.Setenv("INFOBASE_TIMEOUT", "")
	t.Setenv("INFOBASE_RPS", "")
	t.Setenv("INFOBASE_LOG_LEVEL", "")
	t.Setenv("INFOBASE_STATE", "/tmp/state.db")

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "https://forum.example", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 2.5, cfg.RPS)
	assert.Equal(t, 1, cfg.Burst)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/state.db", cfg.StatePath)

	t.Setenv("INFOBASE_API_URL", "http://127.0.0.1:1")
	cfg, err = LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:1", cfg.APIURL)
}

func TestLoadClientMissingProfile(t *testing.T) {
	t.Setenv("INFOBASE_API_URL", "")
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
}

func TestLoadClientBadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [1, 2"), 0o600))
	_, err := LoadClient(path)
	require.Error(t, err)
}
