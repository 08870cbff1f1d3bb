package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/dqc/internal/compiler"
	"github.com/roach88/dqc/internal/config"
	"github.com/roach88/dqc/internal/results"
	"github.com/roach88/dqc/internal/rules"
	"github.com/roach88/dqc/internal/sqlgen"
	"github.com/roach88/dqc/internal/warehouse/sqlite"
)

// Result is the outcome of one scenario.
type Result struct {
	// Pass is true when every expectation and assertion holds.
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	Suite          *rules.Suite            `json:"-"`
	Query          *compiler.Query         `json:"-"`
	Table          *results.Table          `json:"-"`
	Interpretation *results.Interpretation `json:"-"`
}

func newResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError records a failed check.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Warnings returns compiler warnings followed by interpreter warnings.
func (r *Result) Warnings() []string {
	var out []string
	if r.Query != nil {
		out = append(out, r.Query.Warnings...)
	}
	if r.Interpretation != nil {
		out = append(out, r.Interpretation.Warnings...)
	}
	return out
}

// Run executes scenario in a fresh in-memory database.
//
// Errors are returned for problems with the scenario itself (unreadable
// suite, data that cannot be loaded, a query the database rejects). Failed
// expectations are reported in the result instead.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	suite, err := config.Load(scenario.Suite)
	if err != nil {
		return nil, fmt.Errorf("load suite: %w", err)
	}

	q, err := compiler.Compile(suite, compiler.Options{Dialect: sqlgen.SQLite{}})
	if err != nil {
		return nil, err
	}

	w, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory warehouse: %w", err)
	}
	defer w.Close()

	relation := scenario.Data.Relation
	if relation == "" {
		relation = suite.Source.Relation
	}
	if err := w.LoadTable(ctx, relation, scenario.Data.Columns, scenario.Data.Rows); err != nil {
		return nil, err
	}

	table, err := w.Query(ctx, q.SQL)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}

	key := suite.IndexColumn
	if key == "" {
		key = rules.DefaultIndexColumn
	}
	sortByKey(table, key)

	result := newResult()
	result.Suite = suite
	result.Query = q
	result.Table = table
	result.Interpretation = results.Interpret(table, suite, results.Options{Detail: true})

	for _, msg := range checkExpectations(table, key, scenario.Expect) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// sortByKey orders rows by the string form of the key column; rows without
// the key keep their relative order at the end.
func sortByKey(t *results.Table, key string) {
	idx := -1
	for i, c := range t.Columns {
		if c == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i][idx], t.Rows[j][idx]
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return fmt.Sprint(a) < fmt.Sprint(b)
	})
}
