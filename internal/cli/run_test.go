package cli

import (
	"context"
	"path/filepath"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dqc/internal/results"
	"github.com/roach88/dqc/internal/warehouse/sqlite"
)

const nestedSuite = "testdata/suites/nested.yaml"

var productColumns = []string{"MATERIAL_NUMBER", "A", "B", "C", "D"}

// seedWarehouse writes a sqlite warehouse file holding PRODUCTS.
func seedWarehouse(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse.db")
	w, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, w.LoadTable(context.Background(), "PRODUCTS", productColumns, rows))
	require.NoError(t, w.Close())
	return path
}

func failingProducts(t *testing.T) string {
	return seedWarehouse(t, [][]any{
		{"M1", nil, "b", "x", "x"},
		{"M2", "a", "b", "x", "x"},
		{"M3", "a", "b", "x", "y"},
	})
}

func passingProducts(t *testing.T) string {
	return seedWarehouse(t, [][]any{
		{"M1", "a", "b", "x", "x"},
		{"M2", "a", "b", "y", "y"},
	})
}

func TestRun_JSONReport(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	dsn := failingProducts(t)

	out, _, err := executeWithClock(t, clock, "run", productsSuite, "--dsn", dsn, "--format", "json", "--detail")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var report RunReport
	resp := decode(t, out, &report)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDataFailures, resp.Error.Code)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}$`), report.RunID)
	assert.Equal(t, "sqlite", report.Warehouse)
	assert.Equal(t, "sqlite", report.Dialect)
	assert.True(t, clock.Now().Equal(report.StartedAt), "started at %v", report.StartedAt)
	assert.True(t, clock.Now().Equal(report.FinishedAt), "finished at %v", report.FinishedAt)
	assert.Zero(t, report.DurationMS)

	require.Len(t, report.Suites, 1)
	s := report.Suites[0]
	assert.Equal(t, "products", s.Suite)
	assert.Equal(t, 3, s.Records)
	assert.Equal(t, 2, s.FailedRecords)

	statuses := make(map[string]string)
	for _, row := range s.Summary {
		statuses[row.ID] = row.Status
	}
	assert.Equal(t, map[string]string{
		"exp_e88b66_d3ab":        results.StatusFail,
		"exp_e88b66_fc95":        results.StatusPass,
		"exp_7ff82d_1d98":        results.StatusFail,
		"derived_missing_basics": results.StatusFail,
	}, statuses)

	require.Len(t, s.Lists, 1)
	assert.Equal(t, []string{"M2", "M3"}, s.Lists[0].RecordKeys)

	// One null A on M1 and one row per compared column on M3.
	require.Len(t, s.Failures, 3)
	assert.Equal(t, "exp_e88b66_d3ab", s.Failures[0].ExpectationID)
	assert.Equal(t, "M1", s.Failures[0].RecordKey)
	assert.Nil(t, s.Failures[0].UnexpectedValue)
}

func TestRun_TextPassing(t *testing.T) {
	dsn := passingProducts(t)

	out, _, err := execute(t, "run", productsSuite, "--dsn", dsn)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ products: 2 record(s), 0 failed, pass rate 100.00%")
	assert.Regexp(t, `exp_e88b66_d3ab\s+expect_column_values_to_not_be_null\s+A\s+PASS\s+0/2 \(0\.00%\)`, out)
	assert.Contains(t, out, "list clean: 2 record(s)")
	assert.Contains(t, out, "✓ All suites passed")
}

func TestRun_TextFailing(t *testing.T) {
	dsn := failingProducts(t)

	out, _, err := execute(t, "run", productsSuite, "--dsn", dsn, "--detail", "--verbose")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ products: 3 record(s), 2 failed, pass rate 33.33%")
	assert.Regexp(t, `derived_missing_basics\s+derived\s+exp_e88b66_d3ab, exp_e88b66_fc95\s+FAIL\s+1/3 \(33\.33%\)`, out)
	assert.Contains(t, out, "    M2, M3")
	assert.Contains(t, out, "failures:")
	assert.Regexp(t, `exp_7ff82d_1d98\s+D\s+M3\s+"y"`, out)
	assert.Contains(t, out, "✗ 1 of 1 suite(s) have failing records")
}

func TestRun_ParallelSuites(t *testing.T) {
	dsn := passingProducts(t)

	out, _, err := execute(t, "run", productsSuite, productsSuite, productsSuite,
		"--dsn", dsn, "--parallel", "2", "--format", "json")
	require.NoError(t, err)

	var report RunReport
	decode(t, out, &report)
	require.Len(t, report.Suites, 3)
	for _, s := range report.Suites {
		assert.Equal(t, "products", s.Suite)
		assert.Equal(t, 2, s.Records)
		assert.InDelta(t, 100.0, s.Metrics.OverallPassRate, 1e-9)
	}
}

func TestRun_EnvironmentSelectsWarehouse(t *testing.T) {
	t.Setenv("DQC_WAREHOUSE_DSN", passingProducts(t))

	_, _, err := execute(t, "run", productsSuite)
	require.NoError(t, err)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		exit int
		code string
	}{
		{"invalid suite", []string{invalidSuite}, ExitFailure, ErrCodeInvalidSuite},
		{"missing suite", []string{"testdata/suites/nope.yaml"}, ExitCommandError, ErrCodeNotFound},
		{"unknown driver", []string{productsSuite, "--driver", "oracle"}, ExitCommandError, ErrCodeWarehouse},
		{"postgres without dsn", []string{productsSuite, "--driver", "postgres"}, ExitCommandError, ErrCodeWarehouse},
		{"bad parallel", []string{productsSuite, "--parallel", "0"}, ExitCommandError, ErrCodeGeneric},
		{"negative limit", []string{productsSuite, "--limit", "-1"}, ExitCommandError, ErrCodeGeneric},
		{"unknown failed column", []string{productsSuite, "--failed", "exp_000000_0000"}, ExitCommandError, ErrCodeUnknownID},
		// The in-memory default warehouse has no PRODUCTS relation.
		{"query fails", []string{productsSuite}, ExitCommandError, ErrCodeWarehouse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--format", "json"}, tt.args...)
			out, _, err := execute(t, args...)
			assert.Equal(t, tt.exit, GetExitCode(err))

			resp := decode(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestRun_CompileErrorStopsBeforeWarehouse(t *testing.T) {
	// The postgres DSN is unreachable: reaching it would exit 2 with E009.
	out, _, err := execute(t, "run", productsSuite, nestedSuite,
		"--driver", "postgres", "--dsn", "postgres://dqc@127.0.0.1:1/none", "--format", "json")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompile, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, nestedSuite)
	assert.Contains(t, resp.Error.Message, "conditionally scoped target")
}

func TestRun_FailedRows(t *testing.T) {
	dsn := failingProducts(t)

	out, _, err := execute(t, "run", productsSuite, "--dsn", dsn, "--failed", "DERIVED_MISSING_BASICS", "--detail", "--format", "json")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var report RunReport
	decode(t, out, &report)
	require.Len(t, report.Suites, 1)
	s := report.Suites[0]
	assert.Equal(t, []string{"M1", "M3"}, s.FailingKeys)
	require.NotNil(t, s.FailedRows)
	require.Len(t, s.FailedRows.Rows, 1)
	key := slices.Index(s.FailedRows.Columns, "MATERIAL_NUMBER")
	require.GreaterOrEqual(t, key, 0)
	assert.Equal(t, "M1", s.FailedRows.Rows[0][key])
}

func TestRun_FailedRowsText(t *testing.T) {
	dsn := failingProducts(t)

	out, _, err := execute(t, "run", productsSuite, "--dsn", dsn, "--failed", "exp_7ff82d_1d98")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "failed rows: 1")
	assert.Regexp(t, `"a"\s+"b"\s+"x"\s+"y"\s+"M3"\s+"PASS"`, out)
}
