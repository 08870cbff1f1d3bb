package sqlgen

import (
	"fmt"
	"strings"
)

// Dialect renders the engine-specific fragments of a compiled query.
type Dialect interface {
	// Name returns "snowflake", "postgres" or "sqlite".
	Name() string

	// QuoteIdent quotes a column name so its case is preserved.
	QuoteIdent(name string) string

	// Regex returns a boolean expression that is true when expr fully matches
	// pattern. NULL input yields NULL.
	Regex(expr, pattern string) string

	// Length returns the character length of expr.
	Length(expr string) string

	// RelativeDate returns today's date shifted by amount units.
	RelativeDate(unit string, amount int) (string, error)
}

// DialectByName returns the dialect registered under name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "snowflake":
		return Snowflake{}, nil
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q: must be one of snowflake, postgres, sqlite", name)
	}
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// anchored wraps pattern so engines with search semantics behave like a full match.
func anchored(pattern string) string {
	return "^(?:" + pattern + ")$"
}

func unitName(unit string) (string, error) {
	u := strings.TrimSuffix(strings.ToLower(unit), "s")
	switch u {
	case "day", "week", "month", "quarter", "year":
		return u, nil
	default:
		return "", fmt.Errorf("unsupported date unit %q", unit)
	}
}

// Snowflake is the default dialect of the reporting warehouse.
type Snowflake struct{}

// Name implements Dialect.
func (Snowflake) Name() string                  { return "snowflake" }
func (Snowflake) QuoteIdent(name string) string { return quoteIdent(name) }
func (Snowflake) Length(expr string) string     { return "LENGTH(" + expr + ")" }

// Regex uses RLIKE, which is implicitly anchored at both ends.
func (Snowflake) Regex(expr, pattern string) string {
	return "RLIKE(" + expr + ", " + QuoteString(pattern) + ")"
}

// RelativeDate shifts CURRENT_DATE() with DATEADD.
func (Snowflake) RelativeDate(unit string, amount int) (string, error) {
	u, err := unitName(unit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DATEADD(%s, %d, CURRENT_DATE())", u, amount), nil
}

// Postgres targets PostgreSQL and is exercised through warehouse/postgres.
type Postgres struct{}

func (Postgres) Name() string                  { return "postgres" }
func (Postgres) QuoteIdent(name string) string { return quoteIdent(name) }
func (Postgres) Length(expr string) string     { return "LENGTH(" + expr + ")" }

// Regex uses the POSIX ~ operator with an anchored pattern.
func (Postgres) Regex(expr, pattern string) string {
	return expr + " ~ " + QuoteString(anchored(pattern))
}

// RelativeDate adds an interval; quarters become months.
func (Postgres) RelativeDate(unit string, amount int) (string, error) {
	u, err := unitName(unit)
	if err != nil {
		return "", err
	}
	if u == "quarter" {
		u, amount = "month", amount*3
	}
	return fmt.Sprintf("(CURRENT_DATE + INTERVAL '%d %ss')", amount, u), nil
}

// SQLite relies on a regexp() function registered by the connection; see
// warehouse/sqlite.
type SQLite struct{}

func (SQLite) Name() string                  { return "sqlite" }
func (SQLite) QuoteIdent(name string) string { return quoteIdent(name) }
func (SQLite) Length(expr string) string     { return "LENGTH(" + expr + ")" }

// Regex calls the registered regexp() through the REGEXP operator.
func (SQLite) Regex(expr, pattern string) string {
	return expr + " REGEXP " + QuoteString(anchored(pattern))
}

// RelativeDate uses date() modifiers, which have no week or quarter unit.
func (SQLite) RelativeDate(unit string, amount int) (string, error) {
	u, err := unitName(unit)
	if err != nil {
		return "", err
	}
	switch u {
	case "week":
		u, amount = "day", amount*7
	case "quarter":
		u, amount = "month", amount*3
	}
	return fmt.Sprintf("date('now', '%+d %ss')", amount, u), nil
}
