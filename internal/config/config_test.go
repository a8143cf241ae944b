package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(32768), cfg.ReadLimit)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, "./recordings", cfg.RecordingDir)
	assert.Equal(t, 50, cfg.MessagesPerSecond)
	assert.NotEmpty(t, cfg.StunURL)
	assert.NotEmpty(t, cfg.TurnURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STUN_URL", "stun:stun.example.org:3478")
	t.Setenv("TURN_URL", "turn:turn.example.org:3478")
	t.Setenv("TURN_USERNAME", "user")
	t.Setenv("TURN_PASSWORD", "pass")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	ice := cfg.ICE()
	assert.Equal(t, "stun:stun.example.org:3478", ice.StunURL)
	assert.Equal(t, "turn:turn.example.org:3478", ice.TurnURL)
	assert.Equal(t, "user", ice.TurnUsername)
	assert.Equal(t, "pass", ice.TurnPassword)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV", "dev")
	require.NoError(t, os.MkdirAll("config", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("config", "config.dev.yaml"), []byte("port: not-a-number\n"), 0o644))

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfigFile(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV", "dev")
	require.NoError(t, os.MkdirAll("config", 0o755))
	yaml := "mode: debug\nport: 3000\nrecording_dir: /tmp/talk-recordings\n"
	require.NoError(t, os.WriteFile(filepath.Join("config", "config.dev.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/tmp/talk-recordings", cfg.RecordingDir)
	// Untouched keys keep their defaults.
	assert.Equal(t, 50, cfg.MessagesPerSecond)
}
