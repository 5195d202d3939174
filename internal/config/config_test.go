package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/glitch/internal/permission"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10*time.Second, cfg.Scan.Duration)
	assert.True(t, cfg.Scan.AllowDuplicates)
	assert.Equal(t, 2*time.Second, cfg.Scan.PowerPollInterval)
	assert.Equal(t, "auto", cfg.Scan.Permissions)
	assert.Equal(t, "GLITCH", cfg.Glitch.Target)
	assert.Equal(t, 50*time.Millisecond, cfg.Glitch.Interval)
	assert.Empty(t, cfg.Database.URL)
	assert.NoError(t, cfg.Validate(), "defaults MUST be valid")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	path := writeConfig(t, `
log_level: debug
scan:
  duration: 30s
  allow_duplicates: false
  permissions: granted
database:
  url: postgres://localhost/glitch
glitch:
  target: HELLO
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Scan.Duration)
	assert.False(t, cfg.Scan.AllowDuplicates)
	assert.Equal(t, 2*time.Second, cfg.Scan.PowerPollInterval, "unset fields MUST keep defaults")
	assert.Equal(t, permission.ModeGranted, cfg.PermissionMode())
	assert.Equal(t, "postgres://localhost/glitch", cfg.Database.URL)
	assert.Equal(t, "HELLO", cfg.Glitch.Target)
	assert.Equal(t, 50*time.Millisecond, cfg.Glitch.Interval)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://env/glitch")
	path := writeConfig(t, "database:\n  url: postgres://file/glitch\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/glitch", cfg.Database.URL)
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeConfig(t, "scan: [unterminated"))
	assert.ErrorContains(t, err, "parsing config file")

	_, err = Load(writeConfig(t, "scan:\n  permissions: sometimes\n"))
	assert.ErrorContains(t, err, "scan.permissions")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"
	cfg.Scan.Duration = -time.Second
	cfg.Scan.PowerPollInterval = 0
	cfg.Glitch.Target = " "
	cfg.Glitch.Interval = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"log_level", "scan.duration", "scan.power_poll_interval", "glitch.target", "glitch.interval"} {
		assert.ErrorContains(t, err, field)
	}
}
