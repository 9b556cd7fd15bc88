// Package ptyadapter wraps github.com/aymanbagabas/go-pty into the narrow
// interface spec.md §4.3 asks for: write/resize/kill plus onData/onExit
// event streams, with no framing imposed on the byte stream. Grounded on
// the teacher's services/terminal.go, which drives the same library.
package ptyadapter

import (
	"errors"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	gopty "github.com/aymanbagabas/go-pty"
)

const readBufferSize = 4096

// killGrace is how long Kill waits for SIGTERM to be honored before
// escalating to SIGKILL (spec.md §4.3's "graceful SIGTERM-equivalent").
const killGrace = 3 * time.Second

// ExitInfo is delivered exactly once to the OnExit callback.
type ExitInfo struct {
	ExitCode int
	Signal   *int
}

// SpawnFailedError wraps a spawn-time failure, surfaced through Spawn's
// error return rather than a successful OnExit (spec.md §4.3).
type SpawnFailedError struct {
	Message string
	Err     error
}

func (e *SpawnFailedError) Error() string { return "pty: spawn failed: " + e.Message }
func (e *SpawnFailedError) Unwrap() error { return e.Err }

// Params configures a spawn.
type Params struct {
	Shell string
	Args  []string
	Dir   string
	Env   []string
	Cols  int
	Rows  int
}

// Adapter owns one PTY-backed child process.
type Adapter struct {
	pty gopty.Pty
	cmd *gopty.Cmd

	writeMu sync.Mutex
	closed  atomic.Bool
	exited  chan struct{}

	onData func([]byte)
	onExit func(ExitInfo)
	mu     sync.Mutex // guards onData/onExit registration
}

// Spawn starts shell with args attached to a new pseudo-terminal sized
// cols x rows, in dir, with env as the complete child environment.
func Spawn(p Params) (*Adapter, error) {
	pty, err := gopty.New()
	if err != nil {
		return nil, &SpawnFailedError{Message: err.Error(), Err: err}
	}

	cmd := pty.Command(p.Shell, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = p.Env

	if err := pty.Resize(clamp(p.Cols), clamp(p.Rows)); err != nil {
		pty.Close()
		return nil, &SpawnFailedError{Message: err.Error(), Err: err}
	}

	if err := cmd.Start(); err != nil {
		pty.Close()
		return nil, &SpawnFailedError{Message: err.Error(), Err: err}
	}

	a := &Adapter{pty: pty, cmd: cmd, exited: make(chan struct{})}
	go a.readLoop()
	go a.waitLoop()
	return a, nil
}

// OnData registers the callback invoked for each output chunk, in
// delivery order. Must be called before output can be observed; a chunk
// produced before a callback is registered is dropped (callers register
// immediately after Spawn returns).
func (a *Adapter) OnData(cb func([]byte)) {
	a.mu.Lock()
	a.onData = cb
	a.mu.Unlock()
}

// OnExit registers the callback invoked exactly once when the child exits.
func (a *Adapter) OnExit(cb func(ExitInfo)) {
	a.mu.Lock()
	a.onExit = cb
	a.mu.Unlock()
}

func (a *Adapter) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := a.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			a.mu.Lock()
			cb := a.onData
			a.mu.Unlock()
			if cb != nil {
				cb(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

func (a *Adapter) waitLoop() {
	err := a.cmd.Wait()
	close(a.exited)
	a.pty.Close()

	info := ExitInfo{}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		info.ExitCode = exitErr.ExitCode()
		if sig, ok := exitSignal(exitErr); ok {
			info.Signal = &sig
		}
	}

	a.mu.Lock()
	cb := a.onExit
	a.mu.Unlock()
	if cb != nil {
		cb(info)
	}
}

// Write enqueues bytes for the PTY. Non-blocking best-effort: writes after
// Kill are silently dropped rather than erroring, matching spec.md §4.3's
// "drops-on-closed, no partial writes".
func (a *Adapter) Write(data []byte) {
	if a.closed.Load() {
		return
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if a.closed.Load() {
		return
	}
	_, _ = a.pty.Write(data)
}

// Resize is idempotent and clamps cols/rows to [1, 1000].
func (a *Adapter) Resize(cols, rows int) error {
	if a.closed.Load() {
		return nil
	}
	return a.pty.Resize(clamp(cols), clamp(rows))
}

// Kill sends SIGTERM and escalates to SIGKILL after killGrace if the child
// hasn't exited by then. OnExit fires once the process actually exits
// (observed via waitLoop), and closes the PTY master side.
func (a *Adapter) Kill() {
	if !a.closed.CompareAndSwap(false, true) {
		return
	}
	if a.cmd.Process == nil {
		return
	}
	if err := a.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = a.cmd.Process.Kill()
		return
	}
	go func() {
		select {
		case <-a.exited:
		case <-time.After(killGrace):
			_ = a.cmd.Process.Kill()
		}
	}()
}

func clamp(v int) int {
	if v < 1 {
		return 1
	}
	if v > 1000 {
		return 1000
	}
	return v
}

// interpretCommand applies spec.md §4.3's command-string rules: the
// configured aiCommand is always launched via `bash -c "cd <cwd> && <cmd>"`.
// A `--workdir <dir>` token inside the command replaces cwd and is
// stripped; an empty command after stripping falls back to "claude".
func interpretCommand(aiCommand, cwd string) (shellArgs []string, resolvedCwd string) {
	resolvedCwd = cwd
	cmd := aiCommand

	if idx := strings.Index(cmd, "--workdir "); idx >= 0 {
		rest := cmd[idx+len("--workdir "):]
		dir, remainder := splitFirstToken(rest)
		if dir != "" {
			resolvedCwd = dir
		}
		cmd = strings.TrimSpace(cmd[:idx]) + " " + strings.TrimSpace(remainder)
		cmd = strings.TrimSpace(cmd)
	}

	if cmd == "" {
		cmd = "claude"
	}

	script := "cd " + shellQuote(resolvedCwd) + " && " + cmd
	return []string{"-c", script}, resolvedCwd
}

func splitFirstToken(s string) (token, rest string) {
	s = strings.TrimLeft(s, " ")
	idx := strings.IndexByte(s, ' ')
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx+1:]
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// BuildEnv returns a copy of base with TERM/COLORTERM overridden, matching
// spec.md §4.3's injected environment.
func BuildEnv(base []string) []string {
	env := make([]string, 0, len(base)+2)
	for _, e := range base {
		if strings.HasPrefix(e, "TERM=") || strings.HasPrefix(e, "COLORTERM=") {
			continue
		}
		env = append(env, e)
	}
	env = append(env, "TERM=xterm-color", "COLORTERM=truecolor")
	return env
}

// InterpretAICommand is the exported entry point combining interpretCommand
// with the fixed "bash -c" launcher spec.md mandates.
func InterpretAICommand(aiCommand, cwd string) (shell string, args []string, resolvedCwd string) {
	shellArgs, rc := interpretCommand(aiCommand, cwd)
	return "bash", shellArgs, rc
}
