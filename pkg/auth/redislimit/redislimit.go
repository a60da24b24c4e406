// Package redislimit provides a fixed-window rate limiter shared between
// server replicas through Redis. It implements auth.RateLimiter with the
// same semantics as auth.InProcessLimiter.
package redislimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/auth"
)

// Config for a Redis-backed limiter.
type Config struct {
	// Addr like "localhost:6379".
	Addr     string
	Password string
	DB       int

	// KeyPrefix for all counter keys. Default: "apiaccounts:ratelimit:".
	KeyPrefix string

	// Levels holds the per-level budgets; levels not listed use DefaultRPM.
	Levels     map[account.Level]auth.LevelConfig
	DefaultRPM int

	// Now overrides the clock (useful for testing).
	Now func() time.Time
}

// Limiter counts requests per subject, level, and minute in Redis.
type Limiter struct {
	client *redis.Client
	cfg    Config
}

var _ auth.RateLimiter = (*Limiter)(nil)

// New connects to Redis and returns a Limiter.
func New(ctx context.Context, cfg Config) (*Limiter, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB})
	if err := cl.Ping(ctx).Err(); err != nil {
		cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(cl, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "apiaccounts:ratelimit:"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{client: client, cfg: cfg}
}

// Allow implements auth.RateLimiter. Redis errors let the request through.
func (l *Limiter) Allow(ctx context.Context, identity *auth.Identity) error {
	rpm := l.cfg.DefaultRPM
	if lc, ok := l.cfg.Levels[identity.Level]; ok {
		rpm = lc.RequestsPerMinute
	}
	if rpm <= 0 {
		return nil
	}

	window := l.cfg.Now().Unix() / 60
	key := l.cfg.KeyPrefix + identity.Subject + ":" + string(identity.Level) + ":" + strconv.FormatInt(window, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("rate limit check failed, allowing request", "subject", identity.Subject, "error", err)
		return nil
	}

	if incr.Val() > int64(rpm) {
		return auth.ErrTooManyRequests
	}
	return nil
}

// Close closes the Redis client.
func (l *Limiter) Close() error { return l.client.Close() }
