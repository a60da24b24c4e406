package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/auth"
	"github.com/rhuss/apiaccounts/pkg/auth/redislimit"
	"github.com/rhuss/apiaccounts/pkg/config"
	"github.com/rhuss/apiaccounts/pkg/debug"
)

// newLimiter builds the configured rate limiter, or nil when no level has a
// budget.
func newLimiter(ctx context.Context, cfg config.RateLimitConfig) (auth.RateLimiter, func(), error) {
	if !cfg.Enabled() {
		return nil, func() {}, nil
	}

	levels := map[account.Level]auth.LevelConfig{
		account.LevelFull:     {RequestsPerMinute: cfg.Full},
		account.LevelReadOnly: {RequestsPerMinute: cfg.ReadOnly},
	}

	if cfg.Backend == config.RateLimitRedis {
		l, err := redislimit.New(ctx, redislimit.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Levels:   levels,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting rate limit backend: %w", err)
		}
		slog.Info("rate limiting enabled", "backend", "redis", "addr", cfg.Redis.Addr,
			"password", debug.Redact(cfg.Redis.Password), "full", cfg.Full, "readonly", cfg.ReadOnly)
		return l, func() { l.Close() }, nil
	}

	slog.Info("rate limiting enabled", "backend", "memory", "full", cfg.Full, "readonly", cfg.ReadOnly)
	return auth.NewInProcessLimiter(levels, 0), func() {}, nil
}
