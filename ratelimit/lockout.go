// Package ratelimit implements the tiered login-lockout backoff from
// SPEC_FULL.md §5.10, generalized from the teacher's per-username scheme to
// per-client-IP since clicast authenticates against a single shared bearer
// secret rather than per-user accounts. Grounded on the teacher's
// services/loginlockout.go, including its tier math.
package ratelimit

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix         = "clicast:lockout:"
	entryTTL          = 25 * time.Hour
	failThreshold     = 3
	maxLockoutMinutes = 24 * 60
)

// lockoutDuration mirrors the teacher's tiering: every failThreshold
// failures doubles the lockout window, starting at 15 minutes and capped
// at 24 hours.
func lockoutDuration(failCount int) time.Duration {
	tier := failCount / failThreshold
	if tier <= 0 {
		return 0
	}
	minutes := 15 * (1 << (tier - 1))
	if minutes > maxLockoutMinutes {
		minutes = maxLockoutMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Lockout tracks failed-auth tiers per client key (typically remote IP).
// The Redis-backed implementation is used when REDIS_URL is configured;
// otherwise an in-memory map with identical tier math takes over so the
// feature works without standing up Redis for a single local developer.
type Lockout interface {
	// IsLocked reports whether key is presently locked and, if so, the
	// remaining seconds until it unlocks.
	IsLocked(ctx context.Context, key string) (locked bool, remainingSeconds int)
	RecordFailure(ctx context.Context, key string)
	RecordSuccess(ctx context.Context, key string)
}

// NewRedis builds a Lockout backed by rdb, exactly the teacher's
// hash-per-key scheme.
func NewRedis(rdb *redis.Client) Lockout {
	return &redisLockout{rdb: rdb}
}

type redisLockout struct {
	rdb *redis.Client
}

func (l *redisLockout) IsLocked(ctx context.Context, key string) (bool, int) {
	k := keyPrefix + key
	lockedUntil, err := l.rdb.HGet(ctx, k, "locked_until").Result()
	if err != nil {
		return false, 0
	}
	ts, err := strconv.ParseInt(lockedUntil, 10, 64)
	if err != nil {
		return false, 0
	}
	until := time.Unix(ts, 0)
	if time.Now().After(until) {
		return false, 0
	}
	return true, int(time.Until(until).Seconds())
}

func (l *redisLockout) RecordFailure(ctx context.Context, key string) {
	k := keyPrefix + key
	newCount, err := l.rdb.HIncrBy(ctx, k, "fail_count", 1).Result()
	if err != nil {
		log.Printf("[ratelimit] redis HIncrBy failed for %s: %v", key, err)
		return
	}
	if err := l.rdb.Expire(ctx, k, entryTTL).Err(); err != nil {
		log.Printf("[ratelimit] redis Expire failed for %s: %v", key, err)
	}
	if newCount >= failThreshold && newCount%failThreshold == 0 {
		lockedUntil := time.Now().Add(lockoutDuration(int(newCount))).Unix()
		if err := l.rdb.HSet(ctx, k, "locked_until", strconv.FormatInt(lockedUntil, 10)).Err(); err != nil {
			log.Printf("[ratelimit] redis HSet locked_until failed for %s: %v", key, err)
		}
	}
}

func (l *redisLockout) RecordSuccess(ctx context.Context, key string) {
	if err := l.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		log.Printf("[ratelimit] redis Del failed for %s: %v", key, err)
	}
}

// NewMemory builds a Lockout with no external dependency, used when
// REDIS_URL is unset.
func NewMemory() Lockout {
	return &memoryLockout{entries: make(map[string]*memoryEntry)}
}

type memoryEntry struct {
	failCount   int
	lockedUntil time.Time
	expiresAt   time.Time
}

type memoryLockout struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func (l *memoryLockout) IsLocked(_ context.Context, key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(l.entries, key)
		return false, 0
	}
	if time.Now().After(e.lockedUntil) {
		return false, 0
	}
	return true, int(time.Until(e.lockedUntil).Seconds())
}

func (l *memoryLockout) RecordFailure(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		e = &memoryEntry{}
		l.entries[key] = e
	}
	e.failCount++
	e.expiresAt = time.Now().Add(entryTTL)
	if e.failCount >= failThreshold && e.failCount%failThreshold == 0 {
		e.lockedUntil = time.Now().Add(lockoutDuration(e.failCount))
	}
}

func (l *memoryLockout) RecordSuccess(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}
