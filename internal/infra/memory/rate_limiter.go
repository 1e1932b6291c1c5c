package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"telegram-field-extractor/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a token bucket per key: limit events refill over window.
// Idle buckets are evicted after a few windows.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: map[string]*bucket{}, now: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		r.buckets[key] = b
	}
	b.lastSeen = now
	r.evict(now, 4*window)
	return b.lim.AllowN(now, 1), nil
}

func (r *RateLimiter) evict(now time.Time, idle time.Duration) {
	for k, b := range r.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(r.buckets, k)
		}
	}
}
