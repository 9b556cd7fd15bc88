// Package token implements the bearer-token credential store described in
// spec.md §4.1: a single plain (unsalted) SHA-256 digest persisted inside
// the JSON config file, plus one-shot migration of a legacy bare-digest
// ".clicast-token" file.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"clicast/config"
)

const minTokenLength = 8

var (
	// ErrAlreadyExists is returned by Init when a token hash is already present.
	ErrAlreadyExists = errors.New("token: already initialized")
	// ErrWeakToken is returned when a candidate token is shorter than minTokenLength.
	ErrWeakToken = errors.New("token: too short")
	// ErrUnauthorized is returned by Rotate when the current token doesn't verify.
	ErrUnauthorized = errors.New("token: unauthorized")
)

const legacyFileName = ".clicast-token"

// Store persists and verifies the single shared bearer secret against the
// config file on disk. All methods are safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	cfg *config.Config

	// legacyChecked is set once the legacy file has been looked at, so the
	// migration runs at most once per Store.
	legacyChecked bool
}

// New wraps cfg. Legacy migration (see Status) runs lazily on first access.
func New(cfg *config.Config) *Store {
	return &Store{cfg: cfg}
}

// Status reports whether a token hash is present. The first access to the
// Store (Status, Init or Verify) migrates a legacy ".clicast-token" file
// into the JSON config if the config's tokenHash is empty — see spec.md §9
// Open Questions: the JSON config is authoritative, legacy migration
// happens only once.
func (s *Store) Status() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrateLegacyLocked()
	return s.cfg.Auth.TokenHash != ""
}

func (s *Store) migrateLegacyLocked() {
	if s.legacyChecked {
		return
	}
	s.legacyChecked = true
	if s.cfg.Auth.TokenHash != "" {
		return
	}
	legacyPath := filepath.Join(filepath.Dir(s.cfg.Path()), legacyFileName)
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		return
	}
	digest := sanitizeHex(string(data))
	if digest == "" {
		return
	}
	s.cfg.Auth.TokenHash = digest
	_ = s.cfg.Save()
}

// Init sets the token hash for the first time. Fails with ErrAlreadyExists
// if a hash is already present, ErrWeakToken if plain is too short.
func (s *Store) Init(plain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrateLegacyLocked()

	if s.cfg.Auth.TokenHash != "" {
		return ErrAlreadyExists
	}
	if len(plain) < minTokenLength {
		return ErrWeakToken
	}
	s.cfg.Auth.TokenHash = hashOf(plain)
	return s.cfg.Save()
}

// Verify performs a constant-time comparison of SHA-256(plain) against the
// stored hash.
func (s *Store) Verify(plain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrateLegacyLocked()

	stored := s.cfg.Auth.TokenHash
	if stored == "" {
		return false
	}
	candidate := hashOf(plain)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// Rotate replaces the stored hash after verifying current. Fails with
// ErrUnauthorized on mismatch, ErrWeakToken if next is too short.
func (s *Store) Rotate(current, next string) error {
	if !s.Verify(current) {
		return ErrUnauthorized
	}
	if len(next) < minTokenLength {
		return ErrWeakToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Auth.TokenHash = hashOf(next)
	return s.cfg.Save()
}

// Clear removes the stored token hash entirely.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Auth = config.Auth{}
	return s.cfg.Save()
}

func hashOf(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// sanitizeHex trims whitespace and rejects anything that isn't a plausible
// hex digest, so a stray/corrupt legacy file can't poison the config.
func sanitizeHex(s string) string {
	trimmed := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			trimmed = append(trimmed, c)
		case c == ' ', c == '\n', c == '\r', c == '\t':
			continue
		default:
			return ""
		}
	}
	if len(trimmed) != sha256.Size*2 {
		return ""
	}
	return string(trimmed)
}
