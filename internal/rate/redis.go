// Package rate implements fixed-window rate limiting. Windows are
// aligned to n*window boundaries, so a key's counter resets exactly when
// the clock crosses into a new window.
package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

var _ model.RateLimiter = (*RedisLimiter)(nil)

// RedisLimiter counts in a shared Redis store and is safe across
// multiple gateway instances. INCR is atomic, so two concurrent requests
// can never both observe a pre-boundary count.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(redisClient redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (model.RateVerdict, error) {
	idx, resetAt := windowOf(l.now(), window)

	storeKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, idx)
	count, err := l.redis.Incr(ctx, storeKey).Result()
	if err != nil {
		return model.RateVerdict{}, fmt.Errorf("%w: rate store incr: %v", model.ErrExternalService, err)
	}

	// The window index in the key does the real expiry; the TTL only
	// keeps lapsed keys from accumulating.
	if count == 1 {
		if err := l.redis.Expire(ctx, storeKey, window+time.Minute).Err(); err != nil {
			return model.RateVerdict{}, fmt.Errorf("%w: rate store expire: %v", model.ErrExternalService, err)
		}
	}

	return model.RateVerdict{
		Allowed: count <= int64(limit),
		ResetAt: resetAt,
	}, nil
}

// windowOf returns the aligned window index of now and the instant the
// next window starts.
func windowOf(now time.Time, window time.Duration) (int64, time.Time) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	idx := now.UnixMilli() / ms
	return idx, time.UnixMilli((idx + 1) * ms)
}
