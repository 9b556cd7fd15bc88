// Package session implements the PTY-backed session registry from
// spec.md §4.4: an in-memory id→record map, an idle reaper, and a
// size-bounded output ring per session for late-joining clients.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"clicast/outring"
	"clicast/ptyadapter"
)

// Status is one of the four lifecycle states from spec.md §3.
type Status string

const (
	StatusCreated    Status = "created"
	StatusRunning    Status = "running"
	StatusExited     Status = "exited"
	StatusTerminated Status = "terminated"
)

// MaxHistoryBytes bounds the output ring (spec.md §3 invariant 2).
const MaxHistoryBytes = 100 * 1024

// Callbacks is the set of hooks the hub registers on Start (spec.md §4.4).
type Callbacks struct {
	OnOutput func(chunk []byte)
	OnStatus func(status Status)
	OnExit   func(info ptyadapter.ExitInfo)
	OnError  func(err error)
}

// Record is one session's full state (spec.md §3). Exported fields are
// read under the owning Registry's per-record lock; External callers
// should go through Registry methods rather than touching a Record
// directly, except via the read-only Snapshot projection.
type Record struct {
	ID         string
	WorkingDir string
	AICommand  string
	CreatedAt  time.Time

	mu           sync.Mutex
	status       Status
	lastActivity time.Time
	pty          PtyHandle
	callbacks    Callbacks
	ring         *outring.Ring
}

func newRecord(workingDir, aiCommand string) *Record {
	now := time.Now()
	return &Record{
		ID:           uuid.New().String(),
		WorkingDir:   workingDir,
		AICommand:    aiCommand,
		CreatedAt:    now,
		status:       StatusCreated,
		lastActivity: now,
		ring:         outring.New(MaxHistoryBytes),
	}
}

// Snapshot is the list/get projection: everything except the pty handle
// and client set (spec.md §4.4 list()).
type Snapshot struct {
	ID           string    `json:"id"`
	WorkingDir   string    `json:"workingDir"`
	AICommand    string    `json:"aiCommand"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

func (r *Record) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:           r.ID,
		WorkingDir:   r.WorkingDir,
		AICommand:    r.AICommand,
		Status:       r.status,
		CreatedAt:    r.CreatedAt,
		LastActivity: r.lastActivity,
	}
}

func (r *Record) touchLocked() {
	r.lastActivity = time.Now()
}

func (r *Record) idleSinceLocked() time.Duration {
	return time.Since(r.lastActivity)
}
