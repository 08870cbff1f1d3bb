package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dqc/internal/catalog"
)

func TestLookup_Target(t *testing.T) {
	out, _, err := execute(t, "lookup", productsSuite, "exp_7ff82d_1d98")
	require.NoError(t, err)

	assert.Regexp(t, `id:\s+exp_7ff82d_1d98`, out)
	assert.Regexp(t, `kind:\s+target`, out)
	assert.Regexp(t, `rule:\s+exp_7ff82d\n`, out)
	assert.Regexp(t, `type:\s+expect_column_pair_values_to_be_equal`, out)
	assert.Regexp(t, `columns:\s+C, D`, out)
}

func TestLookup_JSON(t *testing.T) {
	tests := []struct {
		id   string
		want catalog.Entry
	}{
		{
			id: "exp_e88b66",
			want: catalog.Entry{
				Suite:     "products",
				ID:        "exp_e88b66",
				Kind:      catalog.EntryRule,
				RuleID:    "exp_e88b66",
				RuleKind:  "expect_column_values_to_not_be_null",
				Columns:   []string{"A", "B"},
				TargetIDs: []string{"exp_e88b66_d3ab", "exp_e88b66_fc95"},
				Column:    "exp_e88b66",
			},
		},
		{
			id: "Missing Basics",
			want: catalog.Entry{
				Suite:     "products",
				ID:        "exp_derived_missing_basics",
				Kind:      catalog.EntryDerived,
				Columns:   []string{"A", "B"},
				TargetIDs: []string{"exp_e88b66_d3ab", "exp_e88b66_fc95"},
				Column:    "derived_missing_basics",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			out, _, err := execute(t, "lookup", productsSuite, tt.id, "--format", "json")
			require.NoError(t, err)

			var got catalog.Entry
			decode(t, out, &got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	out, _, err := execute(t, "lookup", productsSuite, "exp_000000_0000")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeUnknownID+"]: exp_000000_0000 is not produced by suite products")
	assert.NotContains(t, out, "now produces")
}

func TestLookup_StaleTargetNamesRuleTargets(t *testing.T) {
	out, _, err := execute(t, "lookup", productsSuite, "exp_e88b66_0000")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "exp_e88b66_0000 is not produced by suite products; rule exp_e88b66 now produces exp_e88b66_d3ab, exp_e88b66_fc95")
}

func TestCatalog(t *testing.T) {
	out, _, err := execute(t, "catalog", productsSuite)
	require.NoError(t, err)

	assert.Regexp(t, `^COLUMN\s+KIND\s+TYPE\s+COLUMNS\n`, out)
	assert.Regexp(t, `exp_e88b66_d3ab\s+target\s+expect_column_values_to_not_be_null\s+A\n`, out)
	assert.Regexp(t, `exp_7ff82d_1d98\s+target\s+expect_column_pair_values_to_be_equal\s+C, D\n`, out)
	assert.Regexp(t, `derived_missing_basics\s+derived\s+A, B\n`, out)
}

func TestCatalog_JSON(t *testing.T) {
	out, _, err := execute(t, "catalog", productsSuite, "--format", "json")
	require.NoError(t, err)

	var entries []catalog.Entry
	decode(t, out, &entries)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Column
	}
	assert.Equal(t, []string{"exp_e88b66_d3ab", "exp_e88b66_fc95", "exp_7ff82d_1d98", "derived_missing_basics"}, ids)
}
