// Package ratelimit implements a redis-backed fixed-window rate limiter used
// to protect the password-reset endpoints. It is deliberately fail-open: an
// unreachable redis must not take account recovery down with it.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/baminashop/backend/internal/logger"
	"github.com/redis/go-redis/v9"
)

type Limiter struct {
	client *redis.Client
	log    *logger.Logger
}

func New(addr string) (*Limiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Limiter{
		client: client,
		log:    logger.Default().WithComponent("ratelimit"),
	}, nil
}

func (l *Limiter) Close() error {
	return l.client.Close()
}

// Client exposes the underlying redis client for health checks.
func (l *Limiter) Client() *redis.Client {
	return l.client
}

// Allow reports whether another request under key fits into the current
// fixed window. The first request of a window creates the counter with the
// window as its TTL.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart(time.Now(), window))

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn(ctx, "rate limiter unavailable, allowing request", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return true
	}

	return incr.Val() <= int64(limit)
}

// windowStart buckets a point in time into its fixed window.
func windowStart(now time.Time, window time.Duration) int64 {
	return now.Unix() / int64(window.Seconds())
}
