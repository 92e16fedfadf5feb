package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowWithinWindow(t *testing.T) {
	l := New(3, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, l.Allow("tenant-1", 3, now))
	l.Record("tenant-1", 3, now)

	assert.False(t, l.Allow("tenant-1", 1, now.Add(10*time.Second)))
}

func TestLimiter_PrunesExpiredEvents(t *testing.T) {
	l := New(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	l.Record("tenant-1", 2, now)
	assert.False(t, l.Allow("tenant-1", 1, now.Add(30*time.Second)))

	assert.True(t, l.Allow("tenant-1", 1, now.Add(90*time.Second)))
}

func TestLimiter_TenantsAreIsolated(t *testing.T) {
	l := New(1, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	l.Record("tenant-1", 1, now)
	assert.False(t, l.Allow("tenant-1", 1, now))
	assert.True(t, l.Allow("tenant-2", 1, now))
}
