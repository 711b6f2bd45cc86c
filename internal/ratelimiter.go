package internal

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window counter keyed by an arbitrary string,
// used to throttle connection admissions per client address.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for the key and reports whether it stays within the
// window's budget. Expired hits are pruned as a side effect.
func (r *RateLimiter) Allow(key string) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	windowStart := now.Add(-r.window)
	recent := r.hits[key][:0]
	for _, ts := range r.hits[key] {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= r.limit {
		r.hits[key] = recent
		return false
	}
	r.hits[key] = append(recent, now)
	return true
}
