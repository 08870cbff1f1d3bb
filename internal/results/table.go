package results

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/dqc/internal/sqlgen"
)

// Table is a query result held in memory: one row per source record.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// columnIndex maps case-folded column names to positions. Warehouses differ
// in how they case unquoted aliases, so every lookup goes through it.
type columnIndex map[string]int

func newColumnIndex(cols []string) columnIndex {
	fold := cases.Fold()
	idx := make(columnIndex, len(cols))
	for i, c := range cols {
		k := fold.String(strings.TrimSpace(c))
		if _, dup := idx[k]; !dup {
			idx[k] = i
		}
	}
	return idx
}

func (ci columnIndex) find(name string) (int, bool) {
	i, ok := ci[cases.Fold().String(name)]
	return i, ok
}

// Normalize converts driver cell values to plain Go values.
func Normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	default:
		return v
	}
}

func isFail(v any) bool {
	switch x := Normalize(v).(type) {
	case string:
		return strings.EqualFold(strings.TrimSpace(x), sqlgen.Fail)
	default:
		return false
	}
}

func keyString(v any) (string, bool) {
	v = Normalize(v)
	if v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// FailedRecords returns the rows whose status column holds FAIL. The column is
// matched case-insensitively; an unknown column yields an error.
func FailedRecords(t *Table, column string) (*Table, error) {
	i, ok := newColumnIndex(t.Columns).find(column)
	if !ok {
		return nil, fmt.Errorf("status column %q not in result", column)
	}
	out := &Table{Columns: t.Columns}
	for _, row := range t.Rows {
		if i < len(row) && isFail(row[i]) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}
