package session

import (
	"log"
	"os"
	"sync"
	"time"

	"clicast/audit"
	"clicast/ptyadapter"
)

// Registry owns the id→Record mapping plus the idle reaper
// (spec.md §4.4).
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record

	reaperOnce sync.Once
	reaperStop chan struct{}

	// spawn is overridable in tests to avoid touching a real PTY.
	spawn Spawner

	// audit is optional; nil makes recordAudit a no-op (same "continue
	// without it" stance as audit.Open's own failure path).
	audit *audit.Store
}

// PtyHandle is the subset of *ptyadapter.Adapter the registry needs,
// narrowed to an interface so tests — in this package or callers wiring up
// a Registry with NewRegistryWithSpawner — can substitute a fake PTY.
type PtyHandle interface {
	OnData(func([]byte))
	OnExit(func(ptyadapter.ExitInfo))
	Write([]byte)
	Resize(cols, rows int) error
	Kill()
}

// Spawner constructs a PtyHandle from spawn parameters. Exported so
// out-of-package tests (e.g. the hub package's) can supply a fake via
// NewRegistryWithSpawner.
type Spawner func(p ptyadapter.Params) (PtyHandle, error)

// ReapInterval and IdleTimeout implement spec.md §4.4's "single ticker,
// period 30s / 30 minute idle window".
const (
	ReapInterval = 30 * time.Second
	IdleTimeout  = 30 * time.Minute
)

// NewRegistry builds an empty registry. The idle reaper starts lazily on
// the first Create and stops once the registry is emptied.
func NewRegistry() *Registry {
	return NewRegistryWithSpawner(func(p ptyadapter.Params) (PtyHandle, error) {
		return ptyadapter.Spawn(p)
	})
}

// NewRegistryWithSpawner builds a registry that uses spawn in place of a
// real PTY fork, for callers (tests) that need a deterministic fake.
func NewRegistryWithSpawner(spawn Spawner) *Registry {
	return &Registry{
		records: make(map[string]*Record),
		spawn:   spawn,
	}
}

// SetAudit wires a, recording for this registry's running/exited
// transitions (SPEC_FULL.md §4). Must be called before sessions start if
// those transitions are to be captured; a nil a disables recording.
func (r *Registry) SetAudit(a *audit.Store) {
	r.audit = a
}

func (r *Registry) recordAudit(kind, sessionID string) {
	if r.audit == nil {
		return
	}
	_ = r.audit.Record(kind, sessionID, nil)
}

// Create allocates a new session record in status "created" without
// starting its PTY.
func (r *Registry) Create(workingDir, aiCommand string) *Record {
	rec := newRecord(workingDir, aiCommand)

	r.mu.Lock()
	r.records[rec.ID] = rec
	r.mu.Unlock()

	r.ensureReaper()
	return rec
}

// Exists reports whether id names a live registry entry.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return ok
}

// Get returns the record for id, if present.
func (r *Registry) Get(id string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// List returns a snapshot projection of every record.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.snapshot())
	}
	return out
}

// Snapshot returns the projection for a single id, if present.
func (r *Registry) Snapshot(id string) (Snapshot, bool) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return rec.snapshot(), true
}

// Start spawns the PTY for id if one isn't already running, registers
// cbs, and transitions to running. A second call on an already-started
// session is a no-op success (spec.md §4.4).
func (r *Registry) Start(id string, cols, rows int, cbs Callbacks) bool {
	rec, ok := r.Get(id)
	if !ok {
		return false
	}

	rec.mu.Lock()
	if rec.pty != nil {
		// Already running: still re-arm the caller's callbacks. A prior
		// Unwatch (every client of this session disconnected) cleared
		// them, so a reattaching client needs them restored to receive
		// broadcasts again.
		rec.callbacks = cbs
		rec.mu.Unlock()
		return true
	}
	rec.callbacks = cbs
	shell, args, resolvedCwd := ptyadapter.InterpretAICommand(rec.AICommand, rec.WorkingDir)
	env := ptyadapter.BuildEnv(os.Environ())

	// rec.mu stays held across the spawn so a concurrent Start on the same
	// id waits and then sees the PTY instead of spawning a second one.
	pty, err := r.spawn(ptyadapter.Params{
		Shell: shell,
		Args:  args,
		Dir:   resolvedCwd,
		Env:   env,
		Cols:  cols,
		Rows:  rows,
	})

	if err != nil {
		rec.status = StatusExited
		onErr := rec.callbacks.OnError
		onStatus := rec.callbacks.OnStatus
		rec.mu.Unlock()
		if onErr != nil {
			onErr(err)
		}
		if onStatus != nil {
			onStatus(StatusExited)
		}
		return false
	}

	rec.pty = pty
	rec.status = StatusRunning
	rec.touchLocked()
	onStatus := rec.callbacks.OnStatus
	rec.mu.Unlock()

	pty.OnData(func(chunk []byte) {
		r.handleOutput(rec, chunk)
	})
	pty.OnExit(func(info ptyadapter.ExitInfo) {
		r.handleExit(rec, info)
	})

	r.recordAudit(audit.KindSessionStarted, rec.ID)

	if onStatus != nil {
		onStatus(StatusRunning)
	}
	return true
}

func (r *Registry) handleOutput(rec *Record, chunk []byte) {
	rec.mu.Lock()
	rec.ring.Append(chunk)
	rec.touchLocked()
	cb := rec.callbacks.OnOutput
	rec.mu.Unlock()
	if cb != nil {
		cb(chunk)
	}
}

func (r *Registry) handleExit(rec *Record, info ptyadapter.ExitInfo) {
	rec.mu.Lock()
	if rec.status == StatusTerminated {
		// terminate() already transitioned us; don't downgrade to exited.
		rec.mu.Unlock()
		return
	}
	rec.status = StatusExited
	rec.pty = nil
	cbExit := rec.callbacks.OnExit
	cbStatus := rec.callbacks.OnStatus
	rec.mu.Unlock()

	r.recordAudit(audit.KindSessionExited, rec.ID)

	// Status first, exit last: the exit frame is the final session-scoped
	// message clients see before the hub's grace close.
	if cbStatus != nil {
		cbStatus(StatusExited)
	}
	if cbExit != nil {
		cbExit(info)
	}
}

// Unwatch clears id's registered callbacks once nobody is left to receive
// its broadcast (spec.md §4.5: the hub "unregisters its callbacks from the
// registry" when a session's client set empties). The PTY, if still
// running, and its output ring are untouched — Start re-arms fresh
// callbacks the next time a client attaches.
func (r *Registry) Unwatch(id string) {
	rec, ok := r.Get(id)
	if !ok {
		return
	}
	rec.mu.Lock()
	rec.callbacks = Callbacks{}
	rec.mu.Unlock()
}

// Write forwards bytes to id's PTY if running; otherwise it's a logged no-op.
func (r *Registry) Write(id string, data []byte) {
	rec, ok := r.Get(id)
	if !ok {
		log.Printf("[registry] write to unknown session %s", id)
		return
	}
	rec.mu.Lock()
	pty := rec.pty
	if pty != nil {
		rec.touchLocked()
	}
	rec.mu.Unlock()
	if pty == nil {
		return
	}
	pty.Write(data)
}

// Resize forwards to id's PTY if running; otherwise a no-op.
func (r *Registry) Resize(id string, cols, rows int) {
	rec, ok := r.Get(id)
	if !ok {
		return
	}
	rec.mu.Lock()
	pty := rec.pty
	if pty != nil {
		rec.touchLocked()
	}
	rec.mu.Unlock()
	if pty == nil {
		return
	}
	_ = pty.Resize(cols, rows)
}

// Terminate kills id's PTY (if any) and transitions status to reason,
// which must be StatusTerminated or StatusExited. Idempotent.
func (r *Registry) Terminate(id string, reason Status) {
	rec, ok := r.Get(id)
	if !ok {
		return
	}
	r.terminateRecord(rec, reason)
}

func (r *Registry) terminateRecord(rec *Record, reason Status) {
	rec.mu.Lock()
	if rec.status == StatusTerminated || rec.status == StatusExited {
		rec.mu.Unlock()
		return
	}
	pty := rec.pty
	rec.pty = nil
	rec.status = reason
	onStatus := rec.callbacks.OnStatus
	rec.mu.Unlock()

	if pty != nil {
		pty.Kill()
	}
	if onStatus != nil {
		onStatus(reason)
	}
}

// Delete terminates (as "terminated") and removes the record entirely.
func (r *Registry) Delete(id string) bool {
	rec, ok := r.Get(id)
	if !ok {
		return false
	}
	r.terminateRecord(rec, StatusTerminated)

	r.mu.Lock()
	delete(r.records, id)
	empty := len(r.records) == 0
	r.mu.Unlock()

	if empty {
		r.stopReaper()
	}
	return true
}

// History returns a snapshot of id's output ring, or nil if id is unknown.
func (r *Registry) History(id string) []byte {
	rec, ok := r.Get(id)
	if !ok {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.ring.Snapshot()
}

// Shutdown terminates every live session and stops the reaper, regardless
// of whether the registry empties as a result — part of the graceful
// shutdown sequence in spec.md §4.7.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	recs := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	for _, rec := range recs {
		r.terminateRecord(rec, StatusTerminated)
	}

	r.mu.Lock()
	stop := r.reaperStop
	r.mu.Unlock()
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
}

func (r *Registry) ensureReaper() {
	r.reaperOnce.Do(func() {
		r.reaperStop = make(chan struct{})
		go r.reapLoop(r.reaperStop)
	})
}

func (r *Registry) stopReaper() {
	r.mu.Lock()
	empty := len(r.records) == 0
	stop := r.reaperStop
	r.mu.Unlock()
	if !empty || stop == nil {
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	r.reaperOnce = sync.Once{}
}

func (r *Registry) reapLoop(stop chan struct{}) {
	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.reapOnce()
		case <-stop:
			return
		}
	}
}

func (r *Registry) reapOnce() {
	r.mu.RLock()
	ids := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		ids = append(ids, rec)
	}
	r.mu.RUnlock()

	for _, rec := range ids {
		rec.mu.Lock()
		idle := rec.status == StatusRunning && rec.idleSinceLocked() >= IdleTimeout
		rec.mu.Unlock()
		if idle {
			log.Printf("[reaper] terminating idle session %s", rec.ID)
			r.terminateRecord(rec, StatusTerminated)
		}
	}
}
