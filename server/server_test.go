package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clicast/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "clicast.config.json"))
	require.NoError(t, err)
	cfg.Port = 0 // let the OS pick a free port
	return cfg
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := newTestConfig(t)
	t.Setenv("CLICAST_AUDIT_DB", filepath.Join(t.TempDir(), "audit.db"))
	srv := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestShutdownIsIdempotentWithNoLiveSessions(t *testing.T) {
	cfg := newTestConfig(t)
	t.Setenv("CLICAST_AUDIT_DB", filepath.Join(t.TempDir(), "audit.db"))
	srv := New(cfg, nil)

	require.NoError(t, srv.Shutdown())
	require.NoError(t, srv.Shutdown())
}
