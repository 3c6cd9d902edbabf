package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a fixed-window request counter keyed by client address.
// Counters live for exactly one window and are dropped afterwards.
// Precision under concurrent bursts is best-effort; this is a
// defense-in-depth throttle, not a correctness boundary.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	count     int
	expiresAt time.Time
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		entries: map[string]*entry{},
		now:     time.Now,
	}
}

// Allow increments the counter for addr and reports whether the
// request is within the window's limit.
func (l *Limiter) Allow(addr string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.entries[addr]
	if !ok || now.After(item.expiresAt) {
		l.entries[addr] = &entry{count: 1, expiresAt: now.Add(l.window)}
		l.evictExpired(now)
		return true
	}

	item.count++
	return item.count <= l.limit
}

func (l *Limiter) evictExpired(now time.Time) {
	for addr, item := range l.entries {
		if now.After(item.expiresAt) {
			delete(l.entries, addr)
		}
	}
}
