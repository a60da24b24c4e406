package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/config"
	"github.com/rhuss/apiaccounts/pkg/debug"
	"github.com/rhuss/apiaccounts/pkg/reload"
	"github.com/rhuss/apiaccounts/pkg/source/postgres"
	transporthttp "github.com/rhuss/apiaccounts/pkg/transport/http"
)

// newLoader returns the loader for the configured account source, a health
// check for external sources (nil otherwise) and a function releasing its
// resources.
func newLoader(ctx context.Context, cfg *config.Config, configPath string) (reload.Loader, transporthttp.HealthChecker, func(), error) {
	switch cfg.Accounts.Source {
	case config.SourcePostgres:
		src, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
			Table:          cfg.Postgres.Table,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting account source: %w", err)
		}
		slog.Info("using postgres account source", "dsn", debug.Redact(cfg.Postgres.DSN), "table", cfg.Postgres.Table)
		baseDir := cfg.Accounts.BaseDir
		load := func(ctx context.Context) (*account.Database, error) {
			specs, err := src.Specs(ctx)
			if err != nil {
				return nil, err
			}
			return account.Compile(cfg.Postgres.Table, specs, account.WithBaseDir(baseDir))
		}
		return load, src, func() { src.Close() }, nil

	default:
		// Re-read the config file so edits to accounts.list take effect.
		load := func(context.Context) (*account.Database, error) {
			fresh, err := config.Load(configPath)
			if err != nil {
				return nil, err
			}
			return account.Compile(config.AccountsKey, fresh.Accounts.List, account.WithBaseDir(fresh.Accounts.BaseDir))
		}
		return load, nil, func() {}, nil
	}
}

// watchPaths re-reads the config file so that password files added by a
// reload are watched as well.
func watchPaths(configPath string) reload.PathsFunc {
	return func() ([]string, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return cfg.WatchPaths(), nil
	}
}
