package viper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "session:\n  max_sessions: 3\n  heartbeat_timeout: 90s\n")

	cfg := New()
	cfg.SetDefault("session.check_interval", "60s")
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, 3, cfg.GetInt("session.max_sessions"))
	assert.Equal(t, 90*time.Second, cfg.GetDuration("session.heartbeat_timeout"))
	assert.Equal(t, time.Minute, cfg.GetDuration("session.check_interval"))
}

func TestLoadFileJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"server":{"addr":"127.0.0.1:9000"}}`)

	cfg := New()
	require.NoError(t, cfg.LoadFile(path))

	var server struct {
		Addr string `mapstructure:"addr"`
	}
	require.NoError(t, cfg.UnmarshalKey("server", &server))
	assert.Equal(t, "127.0.0.1:9000", server.Addr)
}

func TestLoadFileMissing(t *testing.T) {
	cfg := New()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestBindEnv(t *testing.T) {
	t.Setenv("GAMEPADTEST_SESSION_MAX_SESSIONS", "7")

	cfg := New()
	cfg.SetDefault("session.max_sessions", 15)
	cfg.BindEnv("GAMEPADTEST")

	assert.Equal(t, 7, cfg.GetInt("session.max_sessions"))

	cfg.Set("session.max_sessions", 2)
	assert.Equal(t, 2, cfg.GetInt("session.max_sessions"))
}
