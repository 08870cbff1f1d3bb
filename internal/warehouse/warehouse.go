// Package warehouse selects the executor a compiled query runs on.
//
// Execution is deliberately thin: the executor runs one query and returns
// the whole result. Retries, timeouts and credentials belong to the driver
// configuration, not to the compiler or interpreter.
package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	loglib "github.com/roach88/dqc/internal/log"
	"github.com/roach88/dqc/internal/results"
	"github.com/roach88/dqc/internal/sqlgen"
	"github.com/roach88/dqc/internal/warehouse/postgres"
	"github.com/roach88/dqc/internal/warehouse/sqlite"
)

// Executor runs a compiled query.
type Executor interface {
	Query(ctx context.Context, query string) (*results.Table, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and configures an executor. Retries apply to postgres only.
type Config struct {
	Driver string
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN         string
	MaxRetries  uint
	RetryPeriod time.Duration
	Logger      loglib.Logger
}

// Open returns the executor for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Executor, error) {
	switch normalizeDriver(cfg.Driver) {
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = sqlite.MemoryPath
		}
		w, err := sqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		return w, nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("warehouse: postgres needs a dsn")
		}
		w, err := postgres.Open(ctx, postgres.Config{
			URL:    cfg.DSN,
			Logger: cfg.Logger,
			Retry:  postgres.RetryConfig{InitialInterval: cfg.RetryPeriod, MaxRetries: cfg.MaxRetries},
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("warehouse: unknown driver %q: must be one of sqlite, postgres", cfg.Driver)
	}
}

// Dialect returns the SQL dialect queries for driver must be compiled with.
func Dialect(driver string) (sqlgen.Dialect, error) {
	switch normalizeDriver(driver) {
	case DriverSQLite:
		return sqlgen.SQLite{}, nil
	case DriverPostgres:
		return sqlgen.Postgres{}, nil
	default:
		return nil, fmt.Errorf("warehouse: unknown driver %q: must be one of sqlite, postgres", driver)
	}
}

func normalizeDriver(name string) string {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pgx":
		return DriverPostgres
	default:
		return name
	}
}
