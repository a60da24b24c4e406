// Package config provides unified configuration for the apiaccounts server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (APIACCOUNTS_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/apiaccounts/pkg/account"
)

// Account sources.
const (
	SourceConfig   = "config"
	SourcePostgres = "postgres"
)

// AccountsKey is the configuration key quoted in account validation messages.
const AccountsKey = "accounts.list"

// Config holds all configuration for the apiaccounts server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Accounts      AccountsConfig      `yaml:"accounts"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Session       SessionConfig       `yaml:"session"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`

	// Path is the file the configuration was read from, empty when none.
	Path string `yaml:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 10s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
}

// AccountsConfig holds the account list and where it comes from.
type AccountsConfig struct {
	// List holds description strings and records, exactly as written by the operator.
	List []account.Spec `yaml:"list"`

	// BaseDir anchors relative password_file paths. Relative values are
	// taken relative to the config file; empty means the config file's
	// directory, or the working directory without a config file.
	BaseDir string `yaml:"base_dir"`

	// Source is "config" or "postgres", default: "config".
	Source string `yaml:"source"`

	// Watch reloads accounts when the config file or a password file changes.
	Watch bool `yaml:"watch"`
}

// PostgresConfig holds settings of the PostgreSQL account source.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 4
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
	Table          string `yaml:"table"`            // default: "api_accounts"
}

// SessionConfig holds session token settings.
type SessionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	SigningKey     string        `yaml:"signing_key"`
	SigningKeyFile string        `yaml:"signing_key_file"` // _file variant for signing_key
	TTL            time.Duration `yaml:"ttl"`              // default: 15m
	Issuer         string        `yaml:"issuer"`           // default: "apiaccounts"
}

// Rate limit backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// RateLimitConfig holds per-level request budgets in requests per minute.
// Zero disables the limit for that level.
type RateLimitConfig struct {
	Full     int `yaml:"full"`
	ReadOnly int `yaml:"readonly"`

	// Backend is "memory" (per process) or "redis" (shared), default: "memory".
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// Enabled reports whether any level has a budget.
func (r RateLimitConfig) Enabled() bool {
	return r.Full > 0 || r.ReadOnly > 0
}

// RedisConfig holds Redis connection settings for the shared rate limiter.
type RedisConfig struct {
	Addr         string `yaml:"addr"` // default: "localhost:6379"
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"` // _file variant for password
	DB           int    `yaml:"db"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LogConfig holds logging settings. APIACCOUNTS_LOG_LEVEL and
// APIACCOUNTS_DEBUG take precedence.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Debug  string `yaml:"debug"`  // comma separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Accounts: AccountsConfig{
			Source: SourceConfig,
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
			Table:    "api_accounts",
		},
		Session: SessionConfig{
			TTL:    15 * time.Minute,
			Issuer: "apiaccounts",
		},
		RateLimit: RateLimitConfig{
			Backend: RateLimitMemory,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// WatchPaths returns the files whose changes should trigger a reload: the
// config file and every password file referenced by the account list.
func (c *Config) WatchPaths() []string {
	var paths []string
	if c.Path != "" {
		paths = append(paths, c.Path)
	}
	if c.Accounts.Source != SourceConfig {
		return paths
	}
	canonical, err := account.Normalizer{BaseDir: c.Accounts.BaseDir}.NormalizeAll(c.Accounts.List)
	if err != nil {
		return paths
	}
	for _, a := range canonical {
		if a.PasswordFile != nil {
			paths = append(paths, *a.PasswordFile)
		}
	}
	return paths
}
