// Package devterminal implements the process-wide shared developer shell
// from spec.md §4.5: a singleton PTY bound to the user's login shell, using
// the same lifecycle and ring-buffer machinery as a regular session but
// keyed only by the process rather than by session id.
package devterminal

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"clicast/outring"
	"clicast/ptyadapter"
)

// MaxHistoryBytes matches the regular session ring's bound (spec.md §3).
const MaxHistoryBytes = 100 * 1024

// Status mirrors session.Status but the dev terminal never reaches
// "created": it springs directly into existence already running.
type Status string

const (
	StatusRunning    Status = "running"
	StatusExited     Status = "exited"
	StatusTerminated Status = "terminated"
)

// PtyHandle is the subset of *ptyadapter.Adapter the singleton needs,
// narrowed to an interface so tests can substitute a fake PTY.
type PtyHandle interface {
	OnData(func([]byte))
	OnExit(func(ptyadapter.ExitInfo))
	Write([]byte)
	Resize(cols, rows int) error
	Kill()
}

// Spawner constructs a PtyHandle from spawn parameters. Exported so
// out-of-package tests (e.g. the hub package's) can supply a fake via
// NewWithSpawner.
type Spawner func(p ptyadapter.Params) (PtyHandle, error)

// Callbacks mirrors session.Callbacks for the singleton PTY.
type Callbacks struct {
	OnOutput func(chunk []byte)
	OnStatus func(status Status)
	OnExit   func(info ptyadapter.ExitInfo)
}

// Terminal is the process-wide shared shell. The zero value is not usable;
// construct with New. Unlike session.Record, which is one-to-one with a
// hub broadcast group, Terminal has exactly one subscriber: the hub's own
// dev-terminal broadcaster, registered once on first start.
type Terminal struct {
	mu        sync.Mutex
	pty       PtyHandle
	status    Status
	ring      *outring.Ring
	callbacks Callbacks

	spawn Spawner
}

// New builds an unstarted singleton. The PTY itself is spawned lazily by
// the first EnsureStarted call, per spec.md §5's "converge on the same PTY".
func New() *Terminal {
	return NewWithSpawner(func(p ptyadapter.Params) (PtyHandle, error) {
		return ptyadapter.Spawn(p)
	})
}

// NewWithSpawner builds a singleton that uses spawn in place of a real PTY
// fork, for callers (tests) that need a deterministic fake.
func NewWithSpawner(spawn Spawner) *Terminal {
	return &Terminal{
		ring:  outring.New(MaxHistoryBytes),
		spawn: spawn,
	}
}

// EnsureStarted spawns the shared PTY on the first call; subsequent callers
// observe it already running. cbs is only retained on the call that performs
// the spawn — callers share a single broadcaster (the hub's dev-terminal
// client set), so later callers' cbs would be redundant. isNew reports
// whether this call performed the spawn.
func (t *Terminal) EnsureStarted(cols, rows int, cbs Callbacks) (isNew bool, err error) {
	t.mu.Lock()
	if t.pty != nil {
		t.mu.Unlock()
		return false, nil
	}

	shell := resolveShell()
	dir := resolveHome()
	env := ptyadapter.BuildEnv(os.Environ())

	// t.mu stays held across the spawn so concurrent callers wait and then
	// join this PTY instead of spawning a second one.
	pty, spawnErr := t.spawn(ptyadapter.Params{
		Shell: shell,
		Dir:   dir,
		Env:   env,
		Cols:  cols,
		Rows:  rows,
	})

	if spawnErr != nil {
		t.mu.Unlock()
		return true, spawnErr
	}
	t.pty = pty
	t.status = StatusRunning
	t.callbacks = cbs
	t.mu.Unlock()

	pty.OnData(t.handleOutput)
	pty.OnExit(t.handleExit)
	return true, nil
}

func (t *Terminal) handleOutput(chunk []byte) {
	t.mu.Lock()
	t.ring.Append(chunk)
	cb := t.callbacks.OnOutput
	t.mu.Unlock()
	if cb != nil {
		cb(chunk)
	}
}

func (t *Terminal) handleExit(info ptyadapter.ExitInfo) {
	t.mu.Lock()
	if t.status == StatusTerminated {
		t.mu.Unlock()
		return
	}
	t.status = StatusExited
	t.pty = nil
	cb := t.callbacks
	t.mu.Unlock()

	if cb.OnStatus != nil {
		cb.OnStatus(StatusExited)
	}
	if cb.OnExit != nil {
		cb.OnExit(info)
	}
}

// Write forwards to the shared PTY, if running.
func (t *Terminal) Write(data []byte) {
	t.mu.Lock()
	pty := t.pty
	t.mu.Unlock()
	if pty != nil {
		pty.Write(data)
	}
}

// Resize forwards to the shared PTY, if running.
func (t *Terminal) Resize(cols, rows int) {
	t.mu.Lock()
	pty := t.pty
	t.mu.Unlock()
	if pty != nil {
		_ = pty.Resize(cols, rows)
	}
}

// History returns a snapshot of the shared ring.
func (t *Terminal) History() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ring.Snapshot()
}

var errNotRunning = errors.New("devterminal: not running")

// Kill terminates the shared PTY (spec.md §4.5's {type:"kill"}). Returns
// errNotRunning if the terminal was never started or already exited.
func (t *Terminal) Kill() error {
	t.mu.Lock()
	pty := t.pty
	if pty == nil {
		t.mu.Unlock()
		return errNotRunning
	}
	t.pty = nil
	t.status = StatusTerminated
	t.mu.Unlock()

	pty.Kill()
	return nil
}

// Status reports the current lifecycle state.
func (t *Terminal) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// resolveShell probes $SHELL, then /bin/zsh, /bin/bash, /bin/sh in order
// and returns the first that exists, per spec.md §4.5.
func resolveShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		if _, err := os.Stat(sh); err == nil {
			return sh
		}
	}
	for _, candidate := range []string{"/bin/zsh", "/bin/bash", "/bin/sh"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if runtime.GOOS == "windows" {
		if p, err := exec.LookPath("powershell.exe"); err == nil {
			return p
		}
	}
	return "/bin/sh"
}

// resolveHome probes $HOME, the process's current directory, then "/", per
// spec.md §4.5.
func resolveHome() string {
	if home := os.Getenv("HOME"); home != "" {
		if info, err := os.Stat(home); err == nil && info.IsDir() {
			return home
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "/"
}
