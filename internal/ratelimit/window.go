// Package ratelimit implements the per-tenant sliding-window quota the event
// store enforces on ingestion. Spec's concurrency model calls for a
// mutex-protected, in-process sliding window rather than a token bucket, so
// this is hand-rolled instead of reaching for golang.org/x/time/rate — a
// token bucket smooths bursts instead of hard-capping a window, which would
// change the exact "duplicates re-counted, fresh events capped" behaviour
// the ingestion contract (spec §4.1/§8 scenario 5) depends on.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces a fixed quota of events per tenant within a sliding window.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
}

// New creates a Limiter allowing `limit` events per `window` per tenant.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow reports whether tenantID may ingest n more events right now, given
// events already recorded in the current window. It does not itself record
// the attempt; call Record after the events are durably written.
func (l *Limiter) Allow(tenantID string, n int, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	times := l.prune(tenantID, now)
	return len(times)+n <= l.limit
}

// Record marks n events as consumed for tenantID at time now.
func (l *Limiter) Record(tenantID string, n int, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	times := l.prune(tenantID, now)
	for i := 0; i < n; i++ {
		times = append(times, now)
	}
	l.events[tenantID] = times
}

// prune must be called with the lock held; it drops timestamps that have
// fallen out of the window and returns the remaining slice.
func (l *Limiter) prune(tenantID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	existing := l.events[tenantID]
	kept := existing[:0:0]
	for _, t := range existing {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.events[tenantID] = kept
	return kept
}
