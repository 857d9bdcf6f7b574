package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config describes one limited feature. FailClosed flips the failure policy
// for security-sensitive paths: when the store is unreachable those paths
// deny instead of allowing.
type Config struct {
	MaxRequests int
	Window      time.Duration
	FailClosed  bool
}

type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter is a sliding-window counter over a shared Redis store. The store's
// atomic INCR is the sole correctness mechanism; request handlers across
// independent processes race on the same key without client-side locking.
type Limiter struct {
	client *redis.Client
	prefix string
}

func NewLimiter(client *redis.Client, prefix string) *Limiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Limiter{client: client, prefix: prefix}
}

// Check counts one request against key and reports whether it is allowed.
// On store failure the limiter fails open unless cfg.FailClosed is set; the
// error is returned alongside the policy result so callers can log it.
func (l *Limiter) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	k := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.Pipeline()
	incrCmd := pipe.Incr(ctx, k)
	ttlCmd := pipe.TTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.failPolicy(cfg), fmt.Errorf("rate limit store unavailable: %w", err)
	}

	count := incrCmd.Val()
	ttl := ttlCmd.Val()

	// First increment in the window (or a key left without expiry by a
	// crashed writer): start the window now.
	if ttl <= 0 {
		if err := l.client.Expire(ctx, k, cfg.Window).Err(); err != nil {
			log.Printf("ratelimit: failed to set expiry on %s: %v", k, err)
		}
		ttl = cfg.Window
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(cfg.MaxRequests),
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

func (l *Limiter) failPolicy(cfg Config) Result {
	if cfg.FailClosed {
		return Result{Allowed: false, Remaining: 0, ResetIn: cfg.Window}
	}
	return Result{Allowed: true, Remaining: cfg.MaxRequests - 1, ResetIn: cfg.Window}
}
