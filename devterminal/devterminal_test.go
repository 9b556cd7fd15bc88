package devterminal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clicast/ptyadapter"
)

type fakePty struct {
	mu     sync.Mutex
	onData func([]byte)
	onExit func(ptyadapter.ExitInfo)
	writes [][]byte
	killed bool
}

func (f *fakePty) OnData(cb func([]byte))             { f.mu.Lock(); f.onData = cb; f.mu.Unlock() }
func (f *fakePty) OnExit(cb func(ptyadapter.ExitInfo)) { f.mu.Lock(); f.onExit = cb; f.mu.Unlock() }
func (f *fakePty) Write(b []byte)                      { f.mu.Lock(); f.writes = append(f.writes, b); f.mu.Unlock() }
func (f *fakePty) Resize(cols, rows int) error         { return nil }
func (f *fakePty) Kill()                               { f.mu.Lock(); f.killed = true; f.mu.Unlock() }

func (f *fakePty) emit(chunk []byte) {
	f.mu.Lock()
	cb := f.onData
	f.mu.Unlock()
	if cb != nil {
		cb(chunk)
	}
}

func (f *fakePty) exit(info ptyadapter.ExitInfo) {
	f.mu.Lock()
	cb := f.onExit
	f.mu.Unlock()
	if cb != nil {
		cb(info)
	}
}

func newTestTerminal() (*Terminal, *fakePty) {
	term := New()
	pty := &fakePty{}
	calls := 0
	term.spawn = func(p ptyadapter.Params) (PtyHandle, error) {
		calls++
		return pty, nil
	}
	return term, pty
}

func TestFirstEnsureStartedSpawns(t *testing.T) {
	term, _ := newTestTerminal()
	isNew, err := term.EnsureStarted(80, 24, Callbacks{})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, StatusRunning, term.Status())
}

func TestSecondEnsureStartedJoinsRunningPty(t *testing.T) {
	term, _ := newTestTerminal()
	spawnCount := 0
	pty := &fakePty{}
	term.spawn = func(p ptyadapter.Params) (PtyHandle, error) {
		spawnCount++
		return pty, nil
	}

	isNew1, err := term.EnsureStarted(80, 24, Callbacks{})
	require.NoError(t, err)
	assert.True(t, isNew1)

	isNew2, err := term.EnsureStarted(80, 24, Callbacks{})
	require.NoError(t, err)
	assert.False(t, isNew2)
	assert.Equal(t, 1, spawnCount)
}

func TestOutputReachesRegisteredCallbackAndRing(t *testing.T) {
	term, pty := newTestTerminal()
	var received [][]byte
	_, err := term.EnsureStarted(80, 24, Callbacks{OnOutput: func(c []byte) { received = append(received, c) }})
	require.NoError(t, err)

	pty.emit([]byte("hi"))

	assert.Equal(t, [][]byte{[]byte("hi")}, received)
	assert.Equal(t, "\x1b[0mhi", string(term.History()))
}

func TestSecondCallersCallbacksAreNotRegistered(t *testing.T) {
	term, pty := newTestTerminal()
	var first, second [][]byte
	_, err := term.EnsureStarted(80, 24, Callbacks{OnOutput: func(c []byte) { first = append(first, c) }})
	require.NoError(t, err)
	_, err = term.EnsureStarted(80, 24, Callbacks{OnOutput: func(c []byte) { second = append(second, c) }})
	require.NoError(t, err)

	pty.emit([]byte("hi"))

	assert.Equal(t, [][]byte{[]byte("hi")}, first)
	assert.Empty(t, second)
}

func TestKillBeforeStartReturnsError(t *testing.T) {
	term, _ := newTestTerminal()
	err := term.Kill()
	assert.Error(t, err)
}

func TestKillTerminatesPty(t *testing.T) {
	term, pty := newTestTerminal()
	_, err := term.EnsureStarted(80, 24, Callbacks{})
	require.NoError(t, err)

	require.NoError(t, term.Kill())
	assert.True(t, pty.killed)
	assert.Equal(t, StatusTerminated, term.Status())
}

func TestExitAfterKillDoesNotDowngradeStatus(t *testing.T) {
	term, pty := newTestTerminal()
	_, err := term.EnsureStarted(80, 24, Callbacks{})
	require.NoError(t, err)

	require.NoError(t, term.Kill())
	pty.exit(ptyadapter.ExitInfo{ExitCode: 0})

	assert.Equal(t, StatusTerminated, term.Status())
}

func TestExitTransitionsToExitedAndBroadcasts(t *testing.T) {
	term, pty := newTestTerminal()
	var gotStatus Status
	var gotExit *ptyadapter.ExitInfo
	_, err := term.EnsureStarted(80, 24, Callbacks{
		OnStatus: func(s Status) { gotStatus = s },
		OnExit:   func(info ptyadapter.ExitInfo) { gotExit = &info },
	})
	require.NoError(t, err)

	pty.exit(ptyadapter.ExitInfo{ExitCode: 2})

	assert.Equal(t, StatusExited, term.Status())
	assert.Equal(t, StatusExited, gotStatus)
	require.NotNil(t, gotExit)
	assert.Equal(t, 2, gotExit.ExitCode)
}

func TestWriteBeforeStartIsNoOp(t *testing.T) {
	term, pty := newTestTerminal()
	term.Write([]byte("x"))
	assert.Empty(t, pty.writes)
}

func TestSpawnFailureIsReportedAsNew(t *testing.T) {
	term := New()
	term.spawn = func(p ptyadapter.Params) (PtyHandle, error) {
		return nil, assertErr
	}
	isNew, err := term.EnsureStarted(80, 24, Callbacks{})
	assert.True(t, isNew)
	assert.Error(t, err)
	assert.NotEqual(t, StatusRunning, term.Status())
}

var assertErr = &spawnErr{}

type spawnErr struct{}

func (e *spawnErr) Error() string { return "spawn failed" }
