package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWindowLimiter counts hits per key in Redis so every replica of the
// service shares one window. INCR plus a first-hit EXPIRE; the key's TTL is
// the window reset.
type redisWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisWindowLimiter(client redis.UniversalClient, prefix string) Limiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &redisWindowLimiter{client: client, prefix: prefix}
}

func (l *redisWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := incr.Val()
	expiry := ttl.Val()
	if expiry < 0 {
		// First hit in the window, or a key that lost its TTL.
		expiry = window
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return Decision{}, err
		}
	}
	resetAt := time.Now().Add(expiry)

	if count > int64(limit) {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: expiry,
			ResetAt:    resetAt,
		}, nil
	}
	return Decision{
		Allowed:   true,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}, nil
}
