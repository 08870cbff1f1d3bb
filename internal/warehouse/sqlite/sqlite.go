package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/dqc/internal/results"
)

// DriverName is the database/sql driver registered by this package.
const DriverName = "sqlite3_dqc"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", regexpMatch, true)
		},
	})
}

var patterns sync.Map // string -> *regexp.Regexp

// regexpMatch backs the REGEXP operator: "x REGEXP p" calls regexp(p, x).
func regexpMatch(pattern string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	re, ok := patterns.Load(pattern)
	if !ok {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regexp %q: %w", pattern, err)
		}
		re, _ = patterns.LoadOrStore(pattern, compiled)
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	if re.(*regexp.Regexp).MatchString(s) {
		return int64(1), nil
	}
	return int64(0), nil
}

// Warehouse is a SQLite database holding the relations suites validate.
type Warehouse struct {
	db *sql.DB
}

// Open creates or opens the database at path. Use MemoryPath for a
// throwaway database.
func Open(path string) (*Warehouse, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	// An idle in-memory connection must never be recycled.
	db.SetConnMaxLifetime(0)

	if path != MemoryPath {
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}
	return &Warehouse{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (w *Warehouse) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}

// DB returns the underlying sql.DB.
func (w *Warehouse) DB() *sql.DB {
	return w.db
}

// Query runs a compiled query and reads the whole result into memory.
// Errors from the database are returned unmodified.
func (w *Warehouse) Query(ctx context.Context, query string) (*results.Table, error) {
	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanTable(rows)
}

// ScanTable reads rows into a results.Table.
func ScanTable(rows *sql.Rows) (*results.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &results.Table{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range vals {
			vals[i] = results.Normalize(vals[i])
		}
		t.Rows = append(t.Rows, vals)
	}
	return t, rows.Err()
}

// LoadTable creates relation with untyped columns and inserts rows. An
// existing relation with the same name is replaced.
func (w *Warehouse) LoadTable(ctx context.Context, relation string, columns []string, rows [][]any) error {
	if len(columns) == 0 {
		return fmt.Errorf("load %s: no columns", relation)
	}
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("load %s: %w", relation, err)
	}
	defer tx.Rollback()

	stmts := []string{
		"DROP TABLE IF EXISTS " + relation,
		fmt.Sprintf("CREATE TABLE %s (%s)", relation, strings.Join(quoted, ", ")),
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("load %s: %w", relation, err)
		}
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		relation, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("load %s: %w", relation, err)
	}
	defer insert.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("load %s: row %d has %d values, want %d", relation, i, len(row), len(columns))
		}
		if _, err := insert.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("load %s: row %d: %w", relation, i, err)
		}
	}
	return tx.Commit()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
