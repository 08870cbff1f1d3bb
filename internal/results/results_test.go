package results

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dqc/internal/ids"
	"github.com/roach88/dqc/internal/rules"
)

const (
	notNullA  = "exp_e88b66_d3ab"
	notNullB  = "exp_e88b66_fc95"
	pairCD    = "exp_7ff82d_1d98"
	derivedMB = "derived_missing_basics"
)

func productsSuite() *rules.Suite {
	return &rules.Suite{
		Name:        "products",
		IndexColumn: "MATERIAL_NUMBER",
		Source:      rules.Source{Relation: "PRODUCTS"},
		Rules: []rules.Rule{
			rules.NotNull{Common: rules.Common{Index: 0}, Columns: []string{"A", "B"}},
			rules.PairEqual{Common: rules.Common{Index: 1}, ColumnA: "C", ColumnB: "D"},
		},
		DerivedGroups: []rules.DerivedGroup{
			{Label: "Missing Basics", ID: "exp_derived_missing_basics", Columns: []string{"A", "B", "C"}},
		},
		DerivedLists: []rules.DerivedList{
			{Name: "clean", Description: "records passing basics", ExcludeStatuses: []string{"Missing Basics"}},
		},
	}
}

// productsTable has M3 twice, as a join fan-out would produce.
func productsTable() *Table {
	return &Table{
		Columns: []string{"MATERIAL_NUMBER", "A", "B", "C", "D", notNullA, notNullB, pairCD, derivedMB},
		Rows: [][]any{
			{"M1", nil, nil, "x", "y", "FAIL", "FAIL", "FAIL", "FAIL"},
			{"M2", "a", "b", "x", "x", "PASS", "PASS", "PASS", "PASS"},
			{"M3", "a", nil, "x", "x", "PASS", "FAIL", "PASS", "FAIL"},
			{"M3", "a", nil, "x", "x", "PASS", "FAIL", "PASS", "FAIL"},
		},
	}
}

func targetByID(t *testing.T, in *Interpretation, id string) TargetOutcome {
	t.Helper()
	for _, o := range in.Targets {
		if o.TargetID == id {
			return o
		}
	}
	t.Fatalf("no outcome for target %s", id)
	return TargetOutcome{}
}

func TestInterpret_TargetCounts(t *testing.T) {
	in := Interpret(productsTable(), productsSuite(), Options{})

	require.Len(t, in.Targets, 3)
	assert.Equal(t, 3, in.AggregateCount)
	assert.Equal(t, []string{"M1", "M2", "M3"}, in.RecordKeys)
	assert.Equal(t, 2, in.FailedRecordCount)
	assert.Empty(t, in.Warnings)

	b := targetByID(t, in, notNullB)
	assert.Equal(t, 4, b.ElementCount)
	assert.Equal(t, 3, b.UnexpectedCount)
	assert.InDelta(t, 75.0, b.UnexpectedPercent, 1e-9)
	assert.False(t, b.Success)
	assert.Equal(t, []string{"M1", "M3"}, b.FailingKeys)
	assert.Equal(t, []string{"MATERIAL_NUMBER"}, b.UniqueBy)
	assert.Nil(t, b.Failures, "failures are only kept in detail mode")

	pair := targetByID(t, in, pairCD)
	assert.Equal(t, "exp_7ff82d", pair.RuleID)
	assert.Equal(t, rules.KindPairEqual, pair.Kind)
	assert.Equal(t, 1, pair.UnexpectedCount)
}

func TestInterpret_DerivedCountsUniqueRecords(t *testing.T) {
	in := Interpret(productsTable(), productsSuite(), Options{Detail: true})

	require.Len(t, in.Derived, 1)
	d := in.Derived[0]
	assert.Equal(t, derivedMB, d.Column)
	assert.Equal(t, []string{notNullA, notNullB, pairCD}, d.Constituents)
	assert.Equal(t, 3, d.ElementCount)
	assert.Equal(t, 2, d.UnexpectedCount, "M1 fails three constituents but counts once")
	assert.InDelta(t, 200.0/3, d.UnexpectedPercent, 1e-9)
	assert.False(t, d.Missing)

	want := map[string]RecordFailure{
		"M1": {
			FailedTargets: []string{notNullA, notNullB, pairCD},
			FailedColumns: []string{"A", "B", "C", "D"},
			FailureCount:  3,
		},
		"M3": {
			FailedTargets: []string{notNullB},
			FailedColumns: []string{"B"},
			FailureCount:  1,
		},
	}
	if diff := cmp.Diff(want, d.Records); diff != "" {
		t.Errorf("derived records mismatch (-want +got):\n%s", diff)
	}
}

func TestInterpret_DetailFailures(t *testing.T) {
	in := Interpret(productsTable(), productsSuite(), Options{Detail: true})

	a := targetByID(t, in, notNullA)
	want := []Failure{{
		RecordKey: "M1",
		Values:    map[string]any{"A": nil},
		Context:   map[string]any{"MATERIAL_NUMBER": "M1"},
	}}
	if diff := cmp.Diff(want, a.Failures); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
}

func TestInterpret_RecomputesMissingDerivedColumn(t *testing.T) {
	table := productsTable()
	table.Columns = table.Columns[:8]
	for i := range table.Rows {
		table.Rows[i] = table.Rows[i][:8]
	}

	in := Interpret(table, productsSuite(), Options{})

	d := in.Derived[0]
	assert.True(t, d.Missing)
	assert.Equal(t, 2, d.UnexpectedCount)
	assert.Equal(t, []string{"M1", "M3"}, d.FailingKeys)
	require.Len(t, in.Warnings, 1)
	assert.Contains(t, in.Warnings[0], derivedMB)
}

func TestInterpret_MissingTargetColumn(t *testing.T) {
	table := &Table{
		Columns: []string{"MATERIAL_NUMBER", notNullA, pairCD, derivedMB},
		Rows: [][]any{
			{"M1", "PASS", "PASS", "PASS"},
		},
	}

	in := Interpret(table, productsSuite(), Options{})

	b := targetByID(t, in, notNullB)
	assert.True(t, b.Missing)
	assert.False(t, b.Success)
	assert.Zero(t, b.UnexpectedCount)
	require.NotEmpty(t, in.Warnings)
	assert.Contains(t, in.Warnings[0], notNullB)

	assert.True(t, targetByID(t, in, notNullA).Success)

	m := ComputeMetrics(in)
	require.Len(t, m.Targets, 3)
	assert.Equal(t, Metric{ID: notNullA, Total: 1, Passes: 1, PassRate: 100}, m.Targets[0])
	assert.Equal(t, Metric{ID: notNullB, Total: 1, Missing: true}, m.Targets[1])
}

func TestInterpret_CaseInsensitiveColumns(t *testing.T) {
	table := &Table{
		Columns: []string{"material_number", "EXP_E88B66_D3AB", "Exp_E88b66_Fc95", "EXP_7FF82D_1D98", "DERIVED_MISSING_BASICS"},
		Rows: [][]any{
			{[]byte("M1"), []byte("fail"), "PASS", "PASS", "FAIL"},
		},
	}

	in := Interpret(table, productsSuite(), Options{})

	assert.Empty(t, in.Warnings)
	assert.Equal(t, 1, targetByID(t, in, notNullA).UnexpectedCount)
	assert.Equal(t, []string{"M1"}, in.Derived[0].FailingKeys)
}

func TestInterpret_UniqueByFollowsPresentGrainKeys(t *testing.T) {
	suite := &rules.Suite{
		Name:        "plants",
		IndexColumn: "MATERIAL_NUMBER",
		Source:      rules.Source{Relation: "PLANTS"},
		Rules:       []rules.Rule{rules.NotNull{Columns: []string{"MRP_TYPE"}}},
	}
	id := ids.TargetID(ids.RuleID("plants", string(rules.KindNotNull)), "MRP_TYPE")

	tests := []struct {
		name    string
		columns []string
		want    []string
	}{
		{"full grain", []string{"MATERIAL_NUMBER", "PLANT", "MRP_TYPE", id}, []string{"MATERIAL_NUMBER", "PLANT"}},
		{"plant pruned", []string{"MATERIAL_NUMBER", "MRP_TYPE", id}, []string{"MATERIAL_NUMBER"}},
		{"no record key", []string{"PLANT", "MRP_TYPE", id}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Interpret(&Table{Columns: tt.columns}, suite, Options{})
			assert.Equal(t, tt.want, targetByID(t, in, id).UniqueBy)
		})
	}
}

func TestInterpret_RowFallbackWithoutKeyColumn(t *testing.T) {
	table := &Table{
		Columns: []string{notNullA, notNullB, pairCD, derivedMB},
		Rows: [][]any{
			{"FAIL", "PASS", "PASS", "FAIL"},
			{"FAIL", "PASS", "PASS", "FAIL"},
			{"PASS", "PASS", "PASS", "PASS"},
		},
	}

	in := Interpret(table, productsSuite(), Options{})

	assert.Equal(t, 3, in.AggregateCount)
	assert.Empty(t, in.RecordKeys)
	assert.Equal(t, 2, in.Derived[0].UnexpectedCount)
	assert.Empty(t, targetByID(t, in, notNullA).UniqueBy)
	require.NotEmpty(t, in.Warnings)
	assert.Contains(t, in.Warnings[0], "record key column")
}

func TestInterpret_EmbeddedConditions(t *testing.T) {
	suite := productsSuite()
	suite.DerivedGroups = []rules.DerivedGroup{{
		Label:    "Blocked",
		ID:       "exp_derived_blocked",
		Embedded: []rules.ColumnValues{{Column: "STATUS", Values: []rules.Value{"ACTIVE", "HOLD"}}},
	}}
	suite.DerivedLists = nil
	table := &Table{
		Columns: []string{"MATERIAL_NUMBER", "STATUS"},
		Rows: [][]any{
			{"M1", "ACTIVE"},
			{"M2", "OBSOLETE"},
			{"M3", nil},
		},
	}

	in := Interpret(table, suite, Options{Detail: true})

	d := in.Derived[0]
	assert.True(t, d.Missing)
	assert.Equal(t, []string{"M2"}, d.FailingKeys, "NULL is never outside the set")
	assert.Equal(t, RecordFailure{FailedColumns: []string{"STATUS"}, FailureCount: 1}, d.Records["M2"])
}

func TestInterpret_Lists(t *testing.T) {
	in := Interpret(productsTable(), productsSuite(), Options{})

	require.Len(t, in.Lists, 1)
	assert.Equal(t, ListOutcome{
		Name:        "clean",
		Description: "records passing basics",
		RecordKeys:  []string{"M2"},
		Count:       1,
	}, in.Lists[0])
}

func TestInterpret_EmptyTable(t *testing.T) {
	in := Interpret(&Table{Columns: productsTable().Columns}, productsSuite(), Options{})

	assert.Zero(t, in.AggregateCount)
	for _, o := range in.Targets {
		assert.True(t, o.Success)
		assert.Zero(t, o.UnexpectedPercent)
	}
	assert.Equal(t, 100.0, ComputeMetrics(in).OverallPassRate)
	assert.Equal(t, []string{}, in.Lists[0].RecordKeys)
}

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics(Interpret(productsTable(), productsSuite(), Options{}))

	assert.InDelta(t, 100.0/3, m.OverallPassRate, 1e-9)
	want := []Metric{
		{ID: notNullA, Total: 3, Failures: 1, Passes: 2, PassRate: 200.0 / 3},
		{ID: notNullB, Total: 3, Failures: 2, Passes: 1, PassRate: 100.0 / 3},
		{ID: pairCD, Total: 3, Failures: 1, Passes: 2, PassRate: 200.0 / 3},
	}
	approx := cmp.Comparer(func(a, b float64) bool {
		d := a - b
		return d < 1e-9 && d > -1e-9
	})
	if diff := cmp.Diff(want, m.Targets, approx); diff != "" {
		t.Errorf("target metrics mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, m.Derived, 1)
	assert.Equal(t, derivedMB, m.Derived[0].ID)
	assert.Equal(t, 2, m.Derived[0].Failures)
}

func TestReportAndSummary(t *testing.T) {
	in := Interpret(productsTable(), productsSuite(), Options{Detail: true})

	rows := Report(in)
	// A:M1, B:M1, B:M3 twice, C and D for the pair on M1.
	require.Len(t, rows, 6)
	assert.Equal(t, ReportRow{
		ExpectationID:   notNullA,
		RuleID:          "exp_e88b66",
		ExpectationType: rules.KindNotNull,
		Column:          "A",
		RecordKey:       "M1",
		UnexpectedValue: nil,
		Context:         map[string]any{"MATERIAL_NUMBER": "M1"},
	}, rows[0])
	assert.Equal(t, "y", rows[5].UnexpectedValue)

	summary := Summary(in)
	require.Len(t, summary, 4)
	assert.Equal(t, StatusFail, summary[0].Status)
	assert.Equal(t, "C, D", summary[2].Columns)
	assert.Equal(t, "derived", summary[3].Type)
	assert.Equal(t, derivedMB, summary[3].ID)

	assert.Equal(t, []string{"M1", "M3"}, FailingRecordKeys(in))
}

func TestSummary_MissingStatus(t *testing.T) {
	in := Interpret(&Table{Columns: []string{"MATERIAL_NUMBER"}}, productsSuite(), Options{})
	for _, row := range Summary(in)[:3] {
		assert.Equal(t, StatusMissing, row.Status, row.ID)
	}
}

func TestFailedRecords(t *testing.T) {
	got, err := FailedRecords(productsTable(), "EXP_E88B66_FC95")
	require.NoError(t, err)
	assert.Len(t, got.Rows, 3)

	_, err = FailedRecords(productsTable(), "nope")
	assert.Error(t, err)
}
