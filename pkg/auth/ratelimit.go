package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/apiaccounts/pkg/account"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's account level.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// LevelConfig holds rate limit settings for one account level.
type LevelConfig struct {
	RequestsPerMinute int
}

// InProcessLimiter is a fixed-window rate limiter that tracks request counts
// per subject and level in memory.
type InProcessLimiter struct {
	levels     map[account.Level]LevelConfig
	defaultRPM int
	mu         sync.Mutex
	counters   map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a rate limiter with per-level configuration.
// Levels without an entry use defaultRPM; zero or negative means unlimited.
func NewInProcessLimiter(levels map[account.Level]LevelConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		levels:     levels,
		defaultRPM: defaultRPM,
		counters:   make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	rpm := l.defaultRPM
	if lc, ok := l.levels[identity.Level]; ok {
		rpm = lc.RequestsPerMinute
	}

	if rpm <= 0 {
		return nil // no limit
	}

	key := identity.Subject + ":" + string(identity.Level)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		// New window.
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > rpm {
		return ErrTooManyRequests
	}

	return nil
}
