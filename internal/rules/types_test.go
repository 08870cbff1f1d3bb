package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Missing Weight", "missing_weight"},
		{"  Bad -- Data!! ", "bad_data"},
		{"ALREADY_SAFE_1", "already_safe_1"},
		{"***", ""},
		{"Größe", "gr_e"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeLabel(tt.in))
		})
	}
}

func TestDerivedNames(t *testing.T) {
	assert.Equal(t, "derived_missing_weight", DerivedColumn("Missing Weight"))
	assert.Equal(t, "exp_derived_missing_weight", DefaultGroupID("Missing Weight"))
	assert.Equal(t, "derived_incomplete", DerivedGroup{Label: "Incomplete"}.Column())
}

func TestColumns_PerKind(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want []string
	}{
		{"not null", NotNull{Columns: []string{"A", "B"}}, []string{"A", "B"}},
		{"in set", ValueInSet{Sets: []ColumnValues{{Column: "X"}, {Column: "Y"}}}, []string{"X", "Y"}},
		{"not in set", ValueNotInSet{Column: "Z"}, []string{"Z"}},
		{"pair", PairGreaterThan{ColumnA: "A", ColumnB: "B"}, []string{"A", "B"}},
		{"conditional required", ConditionalRequired{ConditionColumn: "TYPE", RequiredColumn: "WEIGHT"}, []string{"TYPE", "WEIGHT"}},
		{"conditional in set", ConditionalValueInSet{ConditionColumn: "TYPE", TargetColumn: "UOM"}, []string{"TYPE", "UOM"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Columns(tt.rule))
		})
	}
}

func TestKinds_AllKnown(t *testing.T) {
	assert.Len(t, Kinds, 14)
	for _, k := range Kinds {
		assert.True(t, k.IsKnown(), k)
	}
	assert.False(t, Kind("expect_something_else").IsKnown())
}

func TestSuite_ColumnsFirstSeenOrder(t *testing.T) {
	s := &Suite{
		Rules: []Rule{
			NotNull{Columns: []string{"B", "A"}},
			PairEqual{ColumnA: "A", ColumnB: "C"},
		},
		DerivedGroups: []DerivedGroup{
			{Label: "g", Embedded: []ColumnValues{{Column: "D"}, {Column: "B"}}},
		},
	}
	assert.Equal(t, []string{"B", "A", "C", "D"}, s.Columns())
}

func TestSuite_FindGroup(t *testing.T) {
	s := &Suite{DerivedGroups: []DerivedGroup{
		{Label: "Missing Data", ID: "exp_derived_missing_data"},
		{Label: "exp_derived_missing_data", ID: "other"},
	}}

	g, ok := s.FindGroup("exp_derived_missing_data")
	assert.True(t, ok)
	assert.Equal(t, "Missing Data", g.Label, "id match wins over label match")

	g, ok = s.FindGroup("Missing Data")
	assert.True(t, ok)
	assert.Equal(t, "exp_derived_missing_data", g.ID)

	_, ok = s.FindGroup("nope")
	assert.False(t, ok)
}
