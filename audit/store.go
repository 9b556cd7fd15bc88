// Package audit implements the append-only lifecycle event log from
// SPEC_FULL.md §5.11: a small gorm-backed table recorded alongside the
// in-memory session registry so an operator can answer "why did my session
// die" without scraping logs. Grounded on the teacher's
// database/migrations.go AutoMigrate pattern.
package audit

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"
)

// Event is one immutable row. Payload carries kind-specific detail (e.g.
// exit code, idle duration) as a JSON blob rather than a sparse column set.
type Event struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Kind      string         `gorm:"index" json:"kind"`
	SessionID string         `gorm:"index" json:"sessionId,omitempty"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
}

// Lifecycle event kinds.
const (
	KindSessionCreated    = "session.created"
	KindSessionStarted    = "session.started"
	KindSessionExited     = "session.exited"
	KindSessionTerminated = "session.terminated"
	KindAuthInit          = "auth.init"
	KindAuthVerifyFailed  = "auth.verify_failed"
	KindAuthRotated       = "auth.rotated"
)

// Store wraps a gorm DB handle scoped to the Event table.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the sqlite file at path and migrates the schema.
// glebarez/sqlite is a pure-Go driver, avoiding a cgo dependency for a
// single-binary local tool.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Record appends an event. Failures are the caller's to log; audit writes
// must never block or fail session lifecycle operations.
func (s *Store) Record(kind, sessionID string, payload datatypes.JSON) error {
	return s.db.Create(&Event{Kind: kind, SessionID: sessionID, Payload: payload}).Error
}

// Recent returns the most recent events, newest first, bounded by limit.
func (s *Store) Recent(limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []Event
	err := s.db.Order("id desc").Limit(limit).Find(&events).Error
	return events, err
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
