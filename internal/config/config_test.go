package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Stockholm", cfg.Timezone)
	assert.Equal(t, "*/5 * * * *", cfg.RefreshCron)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("listen: \":9090\"\nsupabase:\n  url: https://demo.supabase.co/\n  timeout: 3s\nfeed:\n  proxy: \"\"\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "https://demo.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, 3*time.Second, cfg.Supabase.Timeout)
	assert.Equal(t, "https://polisen.se/api/events", cfg.Feed.URL)
	assert.Equal(t, "", cfg.Feed.Proxy)
	assert.Equal(t, "./var/saved.json", cfg.Saved.Path)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadProxyTemplate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feed.Proxy = "https://proxy.example/?u="
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RefreshCron = "every five minutes"
	assert.Error(t, cfg.Validate())
}

func TestApplyEnvOverridesSecrets(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://env.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("EVBOARD_ACCESS_TOKEN", "token")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "https://env.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "anon", cfg.Supabase.AnonKey)
	assert.Equal(t, "token", cfg.Supabase.AccessToken)
	assert.Equal(t, "localhost:6379", cfg.Saved.RedisAddr)
}

func TestSaveRoundTripKeepsSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.RefreshCron = "*/2 * * * *"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "*/2 * * * *", loaded.RefreshCron)
	assert.Equal(t, cfg.Feed.Timeout, loaded.Feed.Timeout)
}
