package config

import (
	"errors"
	"fmt"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/auth/session"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure. Account list
// defects are included as account.ValidationErrors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Accounts.Source {
	case SourceConfig:
		if verrs := account.Validate(AccountsKey, c.Accounts.List); len(verrs) > 0 {
			errs = append(errs, verrs)
		}
	case SourcePostgres:
		if c.Postgres.DSN == "" && c.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("postgres.dsn or postgres.dsn_file is required when accounts.source is \"postgres\""))
		}
		if len(c.Accounts.List) > 0 {
			errs = append(errs, fmt.Errorf("accounts.list must be empty when accounts.source is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("accounts.source must be \"config\" or \"postgres\", got %q", c.Accounts.Source))
	}

	if c.Session.Enabled {
		if len(c.Session.SigningKey) < session.MinKeyLength {
			errs = append(errs, fmt.Errorf("session.signing_key must be at least %d bytes when sessions are enabled", session.MinKeyLength))
		}
		if c.Session.TTL <= 0 {
			errs = append(errs, fmt.Errorf("session.ttl must be > 0, got %v", c.Session.TTL))
		}
	}

	if c.RateLimit.Full < 0 || c.RateLimit.ReadOnly < 0 {
		errs = append(errs, fmt.Errorf("rate_limit values must be >= 0"))
	}
	switch c.RateLimit.Backend {
	case RateLimitMemory:
	case RateLimitRedis:
		if c.RateLimit.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("rate_limit.redis.addr is required when rate_limit.backend is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("rate_limit.backend must be \"memory\" or \"redis\", got %q", c.RateLimit.Backend))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
