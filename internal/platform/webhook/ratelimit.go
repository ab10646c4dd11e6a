package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter bounds inbound throughput across all server instances. Allow is
// consulted before the body is parsed.
type Limiter interface {
	Allow(ctx context.Context) (bool, error)
	Limit() int
	Window() time.Duration
}

// EventCounter counts audited events received at or after since.
type EventCounter interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// AuditLogLimiter derives its state from the audit log: a request is allowed
// while fewer than limit rows were received in the trailing window.
type AuditLogLimiter struct {
	counter EventCounter
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewAuditLogLimiter(counter EventCounter, limit int, window time.Duration) *AuditLogLimiter {
	return &AuditLogLimiter{counter: counter, limit: limit, window: window, now: time.Now}
}

func (l *AuditLogLimiter) Allow(ctx context.Context) (bool, error) {
	n, err := l.counter.CountSince(ctx, l.now().Add(-l.window))
	if err != nil {
		return false, err
	}
	return n < l.limit, nil
}

func (l *AuditLogLimiter) Limit() int            { return l.limit }
func (l *AuditLogLimiter) Window() time.Duration { return l.window }

// RedisWindowLimiter is a fixed-window counter kept in Redis. Each window has
// its own key that expires with the window. Unlike AuditLogLimiter it counts
// every signed attempt, including ones later rejected by envelope validation.
type RedisWindowLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisWindowLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *RedisWindowLimiter {
	if prefix == "" {
		prefix = "webhook:ratelimit"
	}
	return &RedisWindowLimiter{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}
}

func (l *RedisWindowLimiter) key() string {
	bucket := l.now().UnixNano() / int64(l.window)
	return fmt.Sprintf("%s:%d", l.prefix, bucket)
}

func (l *RedisWindowLimiter) Allow(ctx context.Context) (bool, error) {
	key := l.key()

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}

func (l *RedisWindowLimiter) Limit() int            { return l.limit }
func (l *RedisWindowLimiter) Window() time.Duration { return l.window }
