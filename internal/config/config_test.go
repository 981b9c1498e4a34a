package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
install:
  timeout: 90s
  pause_on_error: false
  app_dir: /tmp/Apps
  priority_formulae: [git, python@3.12]
history:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Install.Timeout)
	assert.False(t, cfg.Install.PauseOnError)
	assert.Equal(t, "/tmp/Apps", cfg.Install.AppDir)
	assert.Equal(t, []string{"git", "python@3.12"}, cfg.Install.PriorityFormulae)
	assert.False(t, cfg.History.Enabled)
	// untouched keys keep their defaults
	assert.Equal(t, Defaults().Install.ProgressFile, cfg.Install.ProgressFile)
	assert.Equal(t, Defaults().Log.File, cfg.Log.File)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "install:\n  timeout: 90s\n")
	t.Setenv("MACSNAP_INSTALL_TIMEOUT", "10m")
	t.Setenv("MACSNAP_INSTALL_PAUSE_ON_ERROR", "false")
	t.Setenv("MACSNAP_INSTALL_PRIORITY_FORMULAE", "git,jq")
	t.Setenv("MACSNAP_HISTORY_DB", "/tmp/h.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Install.Timeout)
	assert.False(t, cfg.Install.PauseOnError)
	assert.Equal(t, []string{"git", "jq"}, cfg.Install.PriorityFormulae)
	assert.Equal(t, "/tmp/h.db", cfg.History.DB)
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "install: [unclosed\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	path := writeConfig(t, "install:\n  brew_prefix: ~/homebrew\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "homebrew"), cfg.Install.BrewPrefix)
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, 5*time.Minute, d.Install.Timeout)
	assert.True(t, d.Install.PauseOnError)
	assert.True(t, d.History.Enabled)
	assert.Equal(t, []string{"git", "curl", "wget", "openssl"}, d.Install.PriorityFormulae)
	assert.Equal(t, "progress.json", filepath.Base(d.Install.ProgressFile))
	assert.Equal(t, AppName, filepath.Base(Dir()))
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Install, cfg.Install)
	assert.Equal(t, Defaults().History, cfg.History)

	err = WriteDefault(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, WriteDefault(path, true))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "install.pause_on_error", envKey("MACSNAP_INSTALL_PAUSE_ON_ERROR"))
	assert.Equal(t, "log.file", envKey("MACSNAP_LOG_FILE"))
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "rel", ExpandHome("rel"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
