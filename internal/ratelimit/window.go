// Package ratelimit provides an in-process sliding-window rate limiter
// backed by a bounded recency cache. It is a cheap first line of defense
// local to a single instance; it is NOT cross-instance consistent and is
// always layered on top of the durable, database-backed limiter enforced
// at reservation time.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultMaxKeys bounds the recency cache. When the cache is full, the
// key with the stalest activity is evicted.
const DefaultMaxKeys = 10000

// Window is a sliding-window limiter over arbitrary string keys
// (user IDs, client IPs). Construct one per process and inject it; it is
// safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	maxKeys int
	entries map[string][]time.Time
	now     func() time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithMaxKeys overrides the recency cache capacity.
func WithMaxKeys(n int) Option {
	return func(w *Window) { w.maxKeys = n }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// NewWindow creates a limiter allowing limit events per key within the
// given rolling window.
func NewWindow(limit int, window time.Duration, opts ...Option) *Window {
	w := &Window{
		limit:   limit,
		window:  window,
		maxKeys: DefaultMaxKeys,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Allow records an event for key if the key is under its limit and
// reports the decision. When denied, retryAfter is how long until the
// oldest in-window event expires.
func (w *Window) Allow(key string) (allowed bool, retryAfter time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	recent := pruneBefore(w.entries[key], cutoff)

	if len(recent) >= w.limit {
		w.entries[key] = recent
		return false, recent[0].Add(w.window).Sub(now)
	}

	if _, exists := w.entries[key]; !exists && len(w.entries) >= w.maxKeys {
		w.evictStalest(cutoff)
	}

	w.entries[key] = append(recent, now)
	return true, 0
}

// pruneBefore drops timestamps older than cutoff. Timestamps are stored
// in append order, so the survivors form a suffix.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && stamps[idx].Before(cutoff) {
		idx++
	}
	return stamps[idx:]
}

// evictStalest removes fully-expired keys, and failing that, the key with
// the oldest most-recent event. Called with the lock held.
func (w *Window) evictStalest(cutoff time.Time) {
	var stalestKey string
	var stalestLast time.Time

	for key, stamps := range w.entries {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(w.entries, key)
			continue
		}
		last := stamps[len(stamps)-1]
		if stalestKey == "" || last.Before(stalestLast) {
			stalestKey = key
			stalestLast = last
		}
	}

	if len(w.entries) >= w.maxKeys && stalestKey != "" {
		delete(w.entries, stalestKey)
	}
}

// Len reports how many keys the cache currently tracks. Used by tests and
// diagnostics.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
