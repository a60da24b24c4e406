// Package postgres reads API account specifications from a PostgreSQL table.
// Rows become record specs that flow through the same validation and
// normalization pipeline as accounts from the configuration file.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/debug"
)

// Source is a PostgreSQL-backed account source.
type Source struct {
	pool  *pgxpool.Pool
	table string
}

// New creates a new PostgreSQL source with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Source, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Source{
		pool:  pool,
		table: pgx.Identifier{cfg.Table}.Sanitize(),
	}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Specs returns one record spec per row, ordered by position. NULL columns
// are left out of the record so the validator sees exactly what the
// operator stored.
func (s *Source) Specs(ctx context.Context) ([]account.Spec, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT username, password, password_file, level
		FROM `+s.table+`
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var specs []account.Spec
	for rows.Next() {
		var (
			username              string
			password, file, level *string
		)
		if err := rows.Scan(&username, &password, &file, &level); err != nil {
			return nil, fmt.Errorf("scanning account row: %w", err)
		}

		record := map[string]any{"username": username}
		if password != nil {
			record["password"] = *password
		}
		if file != nil {
			record["password_file"] = *file
		}
		if level != nil {
			record["level"] = *level
		}
		specs = append(specs, account.RecordSpec(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating account rows: %w", err)
	}

	debug.Log("source", "loaded account rows", "table", s.table, "count", len(specs))
	return specs, nil
}

// Replace atomically replaces the table contents with the given accounts,
// numbering positions in slice order.
func (s *Source) Replace(ctx context.Context, accounts []account.Canonical) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+s.table); err != nil {
		return fmt.Errorf("clearing accounts: %w", err)
	}

	batch := &pgx.Batch{}
	for i, a := range accounts {
		batch.Queue(
			"INSERT INTO "+s.table+" (position, username, password, password_file, level) VALUES ($1, $2, $3, $4, $5)",
			i, a.Username, a.Password, a.PasswordFile, nullLevel(a.Level),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting accounts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing accounts: %w", err)
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Source) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

// nullLevel converts an empty level to nil for the nullable column.
func nullLevel(l account.Level) *string {
	if l == "" {
		return nil
	}
	v := string(l)
	return &v
}
