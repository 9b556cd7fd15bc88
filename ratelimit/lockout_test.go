package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockoutDurationTiers(t *testing.T) {
	assert.Equal(t, time.Duration(0), lockoutDuration(0))
	assert.Equal(t, time.Duration(0), lockoutDuration(2))
	assert.Equal(t, 15*time.Minute, lockoutDuration(3))
	assert.Equal(t, 30*time.Minute, lockoutDuration(6))
	assert.Equal(t, 60*time.Minute, lockoutDuration(9))
	assert.Equal(t, 120*time.Minute, lockoutDuration(12))
}

func TestLockoutDurationCapsAt24Hours(t *testing.T) {
	d := lockoutDuration(3 * 20)
	assert.Equal(t, 24*time.Hour, d)
}

func TestMemoryLockoutNotLockedBelowThreshold(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	l.RecordFailure(ctx, "1.2.3.4")
	l.RecordFailure(ctx, "1.2.3.4")
	locked, _ := l.IsLocked(ctx, "1.2.3.4")
	assert.False(t, locked)
}

func TestMemoryLockoutLocksAtThreshold(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		l.RecordFailure(ctx, "1.2.3.4")
	}
	locked, remaining := l.IsLocked(ctx, "1.2.3.4")
	assert.True(t, locked)
	assert.Greater(t, remaining, 0)
}

func TestMemoryLockoutRecordSuccessClears(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		l.RecordFailure(ctx, "1.2.3.4")
	}
	l.RecordSuccess(ctx, "1.2.3.4")
	locked, _ := l.IsLocked(ctx, "1.2.3.4")
	assert.False(t, locked)
}

func TestMemoryLockoutIsolatesKeys(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		l.RecordFailure(ctx, "1.2.3.4")
	}
	locked, _ := l.IsLocked(ctx, "5.6.7.8")
	assert.False(t, locked)
}
