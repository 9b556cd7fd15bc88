package token

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clicast/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "clicast.config.json"))
	require.NoError(t, err)
	return cfg
}

func TestInitThenVerify(t *testing.T) {
	cfg := newTestConfig(t)
	s := New(cfg)

	assert.False(t, s.Status())
	require.NoError(t, s.Init("correcthorse"))
	assert.True(t, s.Status())

	assert.True(t, s.Verify("correcthorse"))
	assert.False(t, s.Verify("wrong-token"))
	assert.False(t, s.Verify("correcthors"))
}

func TestInitRejectsWeakToken(t *testing.T) {
	cfg := newTestConfig(t)
	s := New(cfg)
	assert.ErrorIs(t, s.Init("short"), ErrWeakToken)
}

func TestInitRejectsDoubleInit(t *testing.T) {
	cfg := newTestConfig(t)
	s := New(cfg)
	require.NoError(t, s.Init("correcthorse"))
	assert.ErrorIs(t, s.Init("anothertoken"), ErrAlreadyExists)
}

func TestRotate(t *testing.T) {
	cfg := newTestConfig(t)
	s := New(cfg)
	require.NoError(t, s.Init("correcthorse"))

	require.NoError(t, s.Rotate("correcthorse", "newtokenvalue"))
	assert.True(t, s.Verify("newtokenvalue"))
	assert.False(t, s.Verify("correcthorse"))
}

func TestRotateRejectsWrongCurrent(t *testing.T) {
	cfg := newTestConfig(t)
	s := New(cfg)
	require.NoError(t, s.Init("correcthorse"))
	assert.ErrorIs(t, s.Rotate("wrong", "newtokenvalue"), ErrUnauthorized)
}

func TestRotateRejectsWeakNext(t *testing.T) {
	cfg := newTestConfig(t)
	s := New(cfg)
	require.NoError(t, s.Init("correcthorse"))
	assert.ErrorIs(t, s.Rotate("correcthorse", "short"), ErrWeakToken)
}

func TestClear(t *testing.T) {
	cfg := newTestConfig(t)
	s := New(cfg)
	require.NoError(t, s.Init("correcthorse"))
	require.NoError(t, s.Clear())
	assert.False(t, s.Status())
}

func TestLegacyMigration(t *testing.T) {
	cfg := newTestConfig(t)
	legacyPath := filepath.Join(filepath.Dir(cfg.Path()), legacyFileName)
	digest := hashOf("correcthorse")
	require.NoError(t, os.WriteFile(legacyPath, []byte(digest+"\n"), 0o600))

	s := New(cfg)
	assert.True(t, s.Status())
	assert.True(t, s.Verify("correcthorse"))
}

func TestLegacyMigrationOnlyWhenConfigHasNoAuth(t *testing.T) {
	cfg := newTestConfig(t)
	s := New(cfg)
	require.NoError(t, s.Init("jsontoken"))

	legacyPath := filepath.Join(filepath.Dir(cfg.Path()), legacyFileName)
	require.NoError(t, os.WriteFile(legacyPath, []byte(hashOf("legacytoken")), 0o600))

	assert.True(t, s.Verify("jsontoken"))
	assert.False(t, s.Verify("legacytoken"))
}
