package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/apiaccounts/pkg/account"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, APIACCOUNTS_CONFIG env, ./config.yaml, /etc/apiaccounts/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Base directory resolution for password files
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		if abs, err := filepath.Abs(filePath); err == nil {
			filePath = abs
		}
		cfg.Path = filePath
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	resolveBaseDir(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. APIACCOUNTS_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/apiaccounts/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("APIACCOUNTS_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/apiaccounts/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps APIACCOUNTS_* environment variables to config fields.
// Malformed numbers and booleans are ignored; a malformed account list is an
// error.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("APIACCOUNTS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("APIACCOUNTS_ACCOUNTS_SOURCE"); v != "" {
		cfg.Accounts.Source = v
	}
	if v := os.Getenv("APIACCOUNTS_ACCOUNTS_BASE_DIR"); v != "" {
		cfg.Accounts.BaseDir = v
	}
	if v := os.Getenv("APIACCOUNTS_ACCOUNTS_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Accounts.Watch = b
		}
	}
	if v := os.Getenv("APIACCOUNTS_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("APIACCOUNTS_SESSION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.Enabled = b
		}
	}
	if v := os.Getenv("APIACCOUNTS_SESSION_SIGNING_KEY"); v != "" {
		cfg.Session.SigningKey = v
	}
	if v := os.Getenv("APIACCOUNTS_RATE_LIMIT_BACKEND"); v != "" {
		cfg.RateLimit.Backend = v
	}
	if v := os.Getenv("APIACCOUNTS_REDIS_ADDR"); v != "" {
		cfg.RateLimit.Redis.Addr = v
	}
	if v := os.Getenv("APIACCOUNTS_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// APIACCOUNTS_ACCOUNTS: JSON array, or comma separated descriptions.
	if v := os.Getenv("APIACCOUNTS_ACCOUNTS"); v != "" {
		specs, err := parseAccountsEnv(v)
		if err != nil {
			return fmt.Errorf("APIACCOUNTS_ACCOUNTS: %w", err)
		}
		cfg.Accounts.List = specs
	}

	return nil
}

// parseAccountsEnv parses an account list given as a JSON array, or as
// comma separated description strings.
func parseAccountsEnv(v string) ([]account.Spec, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") {
		var specs []account.Spec
		if err := json.Unmarshal([]byte(v), &specs); err != nil {
			return nil, fmt.Errorf("parsing accounts JSON: %w", err)
		}
		return specs, nil
	}

	var specs []account.Spec
	for _, desc := range strings.Split(v, ",") {
		if desc = strings.TrimSpace(desc); desc != "" {
			specs = append(specs, account.DescriptionSpec(desc))
		}
	}
	return specs, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// postgres.dsn_file -> postgres.dsn
	if cfg.Postgres.DSNFile != "" && cfg.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("postgres.dsn_file: %w", err)
		}
		cfg.Postgres.DSN = val
	}

	// session.signing_key_file -> session.signing_key
	if cfg.Session.SigningKeyFile != "" && cfg.Session.SigningKey == "" {
		val, err := readSecretFile(cfg.Session.SigningKeyFile)
		if err != nil {
			return fmt.Errorf("session.signing_key_file: %w", err)
		}
		cfg.Session.SigningKey = val
	}

	// rate_limit.redis.password_file -> rate_limit.redis.password
	if cfg.RateLimit.Redis.PasswordFile != "" && cfg.RateLimit.Redis.Password == "" {
		val, err := readSecretFile(cfg.RateLimit.Redis.PasswordFile)
		if err != nil {
			return fmt.Errorf("rate_limit.redis.password_file: %w", err)
		}
		cfg.RateLimit.Redis.Password = val
	}

	return nil
}

// resolveBaseDir anchors accounts.base_dir to the config file's directory.
func resolveBaseDir(cfg *Config) {
	if cfg.Path == "" {
		return
	}
	dir := filepath.Dir(cfg.Path)
	switch {
	case cfg.Accounts.BaseDir == "":
		cfg.Accounts.BaseDir = dir
	case !filepath.IsAbs(cfg.Accounts.BaseDir):
		cfg.Accounts.BaseDir = filepath.Join(dir, cfg.Accounts.BaseDir)
	}
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
