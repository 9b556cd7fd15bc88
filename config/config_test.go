package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clicast.config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3456, cfg.Port)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Empty(t, cfg.AllowedDirs)
	require.Len(t, cfg.AICommands, 1)
	assert.Equal(t, "claude", cfg.AICommands[0].Cmd)
	assert.True(t, cfg.AICommands[0].Enabled)

	// File was persisted.
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Port, reloaded.Port)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clicast.config.json")

	cfg := &Config{path: path, Auth: Auth{TokenHash: "deadbeef"}}
	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3456, reloaded.Port)
	assert.NotEmpty(t, reloaded.AICommands)
	assert.Equal(t, "deadbeef", reloaded.Auth.TokenHash)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "clicast.config.json")

	cfg := defaultConfig()
	cfg.path = path
	cfg.AllowedDirs = []string{"/srv/a", "/srv/b"}
	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/a", "/srv/b"}, reloaded.AllowedDirs)
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := defaultConfig()
	cfg.AllowedDirs = []string{"/a"}
	clone := cfg.Clone()
	clone.AllowedDirs[0] = "/b"
	assert.Equal(t, "/a", cfg.AllowedDirs[0])
}
