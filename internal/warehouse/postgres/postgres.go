// Package postgres executes compiled queries against PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	loglib "github.com/roach88/dqc/internal/log"
	"github.com/roach88/dqc/internal/results"
)

// RetryConfig bounds connection attempts. The zero value tries once.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint
}

// Config holds the pool settings. MaxConns of zero keeps the pgxpool default.
type Config struct {
	URL      string
	MaxConns int32
	Retry    RetryConfig
	Logger   loglib.Logger
}

// Warehouse runs queries on a PostgreSQL pool.
type Warehouse struct {
	pool *pgxpool.Pool
}

// Open connects to cfg.URL, retrying failed pings with exponential backoff.
// A malformed URL is never retried.
func Open(ctx context.Context, cfg Config) (*Warehouse, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing postgres connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create a postgres connection pool: %w", err)
	}

	logger := loglib.NewLogger(cfg.Logger).WithFields(loglib.Fields{loglib.ModuleField: "warehouse_postgres"})
	notify := func(err error, d time.Duration) {
		logger.Warn(err, "postgres not reachable, retrying", loglib.Fields{"backoff": d.String()})
	}
	if err := backoff.RetryNotify(func() error { return pool.Ping(ctx) }, newBackoff(ctx, cfg.Retry), notify); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Warehouse{pool: pool}, nil
}

func newBackoff(ctx context.Context, cfg RetryConfig) backoff.BackOff {
	if cfg.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	exp := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		exp.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		exp.MaxInterval = cfg.MaxInterval
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(cfg.MaxRetries)), ctx)
}

// Close releases the pool. It always returns nil.
func (w *Warehouse) Close() error {
	w.pool.Close()
	return nil
}

// Query runs a compiled query and reads the whole result into memory.
// Errors from the database are returned unmodified.
func (w *Warehouse) Query(ctx context.Context, query string) (*results.Table, error) {
	rows, err := w.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	t := &results.Table{Columns: make([]string, len(fields))}
	for i, f := range fields {
		t.Columns[i] = f.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i := range vals {
			vals[i] = results.Normalize(vals[i])
		}
		t.Rows = append(t.Rows, vals)
	}
	return t, rows.Err()
}
