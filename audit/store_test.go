package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesAndMigratesDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()
}

func TestRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(KindSessionCreated, "sess-1", nil))
	require.NoError(t, store.Record(KindSessionExited, "sess-1", nil))

	events, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, KindSessionExited, events[0].Kind)
	require.Equal(t, KindSessionCreated, events[1].Kind)
}

func TestRecentClampsOutOfRangeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(KindAuthInit, "", nil))

	events, err := store.Recent(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
}
