package rate

import (
	"context"
	"sync"
	"time"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

var _ model.RateLimiter = (*MemoryLimiter)(nil)

// MemoryLimiter is the process-local fallback used when no Redis address
// is configured. It is best-effort: counters live in one process, so it
// is only safe for single-instance deployments.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	resetAt time.Time
	count   int64
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

const evictThreshold = 4096

func (l *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (model.RateVerdict, error) {
	now := l.now()
	_, resetAt := windowOf(now, window)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: resetAt}
		l.buckets[key] = b
	}
	b.count++

	if len(l.buckets) > evictThreshold {
		l.evictLocked(now)
	}

	return model.RateVerdict{
		Allowed: b.count <= int64(limit),
		ResetAt: b.resetAt,
	}, nil
}

// evictLocked drops buckets whose window has lapsed.
func (l *MemoryLimiter) evictLocked(now time.Time) {
	for key, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}
