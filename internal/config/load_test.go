package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dqc/internal/rules"
)

const fullSuite = `
metadata:
  suite_name: products
  data_source: DB.SCHEMA.PRODUCTS
  index_column: MATERIAL_NUMBER
data_source:
  table: DB.SCHEMA."PRODUCTS_VIEW"
  distinct: true
  filters:
    SALES_ORG: "1000"
    PLANT: [P1, P2]
    NAME: "LIKE 'A%'"
    CREATED_ON: "> -3 years"
    QTY: {operator: ">=", value: 5}
validations:
  - type: expect_column_values_to_not_be_null
    columns: [A, B]
  - type: expect_column_values_to_be_in_set
    rules:
      STATUS: [ACTIVE, HOLD]
      KIND: [1, 2]
  - type: expect_column_values_to_match_regex
    column: CODE
    regex: "^[0-9]{6}$"
    conditional_on:
      derived_group: Missing Basics
      membership: include
  - type: expect_column_pair_values_a_to_be_greater_than_b
    column_a: HI
    column_b: LO
    or_equal: true
  - type: expect_column_values_to_be_between
    columns: [WEIGHT]
    min_value: 0
    max_value: 10.5
    strict_min: true
  - type: expect_compound_columns_to_be_unique
    column_list: [PLANT, MATERIAL_NUMBER]
  - type: custom:conditional_value_in_set
    condition_column: TYPE
    condition_values: [FERT]
    target_column: UNIT
    allowed_values: [EA, PC]
derived_statuses:
  - status: Missing Basics
    columns: [A, B]
    expectation_type: expect_column_values_to_not_be_null
  - status: Legacy Basics
    expectation_ids: [exp_e88b66]
  - status: Unexpected Status
    expectation_id: exp_derived_missing_basics
    rules:
      STATUS: [ACTIVE, HOLD]
derived_lists:
  - name: clean
    description: records with no basics issue
    exclude_statuses: [Missing Basics]
`

func TestParse_FullSuite(t *testing.T) {
	s, err := Parse([]byte(fullSuite), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "products", s.Name)
	assert.Equal(t, "MATERIAL_NUMBER", s.IndexColumn)
	assert.Equal(t, `DB.SCHEMA."PRODUCTS_VIEW"`, s.Source.Relation)
	assert.True(t, s.Source.Distinct)

	wantFilters := []rules.Filter{
		{Column: "SALES_ORG", Cond: rules.Equals{Value: "1000"}},
		{Column: "PLANT", Cond: rules.InList{Values: []rules.Value{"P1", "P2"}}},
		{Column: "NAME", Cond: rules.RawCondition{SQL: "LIKE 'A%'"}},
		{Column: "CREATED_ON", Cond: rules.RelativeDate{Operator: ">", Amount: -3, Unit: rules.DateUnit("year")}},
		{Column: "QTY", Cond: rules.OperatorValue{Operator: ">=", Value: 5}},
	}
	if diff := cmp.Diff(wantFilters, s.Source.Filters); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, s.Rules, 7)
	assert.Equal(t, rules.NotNull{Common: rules.Common{Index: 0}, Columns: []string{"A", "B"}}, s.Rules[0])
	assert.Equal(t, rules.ValueInSet{
		Common: rules.Common{Index: 1},
		Sets: []rules.ColumnValues{
			{Column: "STATUS", Values: []rules.Value{"ACTIVE", "HOLD"}},
			{Column: "KIND", Values: []rules.Value{int64(1), int64(2)}},
		},
	}, s.Rules[1])

	regex := s.Rules[2].(rules.RegexMatch)
	assert.Equal(t, []string{"CODE"}, regex.Columns)
	assert.Equal(t, &rules.Conditional{DerivedGroup: "Missing Basics", Membership: rules.Include}, regex.Conditional)

	assert.True(t, s.Rules[3].(rules.PairGreaterThan).OrEqual)

	nb := s.Rules[4].(rules.NumericBetween)
	assert.Equal(t, 0.0, nb.Min)
	assert.Equal(t, 10.5, nb.Max)
	assert.True(t, nb.StrictMin)
	assert.False(t, nb.StrictMax)

	require.Len(t, s.DerivedGroups, 3)
	// The explicit id claims exp_derived_missing_basics, so the auto id moves.
	assert.Equal(t, "exp_derived_missing_basics_2", s.DerivedGroups[0].ID)
	assert.Equal(t, "exp_derived_legacy_basics", s.DerivedGroups[1].ID)
	assert.Equal(t, "exp_derived_missing_basics", s.DerivedGroups[2].ID)
	assert.Equal(t, rules.KindNotNull, s.DerivedGroups[0].Kind)
	assert.Equal(t, []string{"exp_e88b66"}, s.DerivedGroups[1].ExpectationIDs)
	assert.Equal(t, []rules.ColumnValues{{Column: "STATUS", Values: []rules.Value{"ACTIVE", "HOLD"}}}, s.DerivedGroups[2].Embedded)

	require.Len(t, s.DerivedLists, 1)
	assert.Equal(t, rules.DerivedList{Name: "clean", Description: "records with no basics issue", ExcludeStatuses: []string{"Missing Basics"}}, s.DerivedLists[0])
}

func TestParse_RelationFallsBackToMetadata(t *testing.T) {
	doc := `
metadata:
  suite_name: s
  data_source: PRODUCTS
validations:
  - type: expect_column_values_to_be_unique
    column: ID
`
	s, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "PRODUCTS", s.Source.Relation)
	assert.Equal(t, rules.DefaultIndexColumn, s.IndexColumn)
	assert.Equal(t, rules.Unique{Common: rules.Common{Index: 0}, Columns: []string{"ID"}}, s.Rules[0])
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	doc := `
metadata:
  data_source: PRODUCTS
validations:
  - type: expect_column_values_to_not_be_null
    columns: [A]
  - type: expect_everything_to_be_fine
    columns: [B]
`
	errs := Validate([]byte(doc), FormatYAML)
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.Equal(t, []string{ErrSuiteName, ErrUnknownType}, codes)
	assert.Equal(t, "validations[1].type", errs[1].Field)
	assert.Equal(t, 7, errs[1].Line)

	_, err := Parse([]byte(doc), FormatYAML)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"E102", "E113"}, se.Codes())
	assert.Contains(t, se.Error(), "configuration has 2 error(s)")
}

func TestValidate_RuleFieldErrors(t *testing.T) {
	tests := []struct {
		name string
		rule string
		want []string
	}{
		{
			name: "missing type",
			rule: "columns: [A]",
			want: []string{ErrMissingType},
		},
		{
			name: "rule not a mapping",
			rule: "",
			want: []string{ErrRuleShape},
		},
		{
			name: "pair missing both columns",
			rule: "type: expect_column_pair_values_to_be_equal",
			want: []string{ErrMissingField, ErrMissingField},
		},
		{
			name: "length bounds inverted",
			rule: "type: expect_column_value_lengths_to_be_between\n    columns: [A]\n    min_value: 5\n    max_value: 2",
			want: []string{ErrBounds},
		},
		{
			name: "length not an integer",
			rule: "type: expect_column_value_lengths_to_equal\n    columns: [A]\n    value: ten",
			want: []string{ErrBounds},
		},
		{
			name: "numeric bounds inverted",
			rule: "type: expect_column_values_to_be_between\n    columns: [A]\n    min_value: 9\n    max_value: 1",
			want: []string{ErrBounds},
		},
		{
			name: "columns not a list",
			rule: "type: expect_column_values_to_not_be_null\n    columns: A",
			want: []string{ErrFieldType},
		},
		{
			name: "compound needs two columns",
			rule: "type: expect_compound_columns_to_be_unique\n    column_list: [A]",
			want: []string{ErrMissingField},
		},
		{
			name: "bad membership",
			rule: "type: expect_column_values_to_not_be_null\n    columns: [A]\n    conditional_on: {derived_group: G, membership: sometimes}",
			want: []string{ErrMembership},
		},
		{
			name: "unknown scope",
			rule: "type: expect_column_values_to_not_be_null\n    columns: [A]\n    conditional_on: {derived_group: Nowhere}",
			want: []string{ErrUnknownScope},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "metadata:\n  suite_name: s\n  data_source: T\nvalidations:\n  - " + tt.rule + "\n"
			if tt.rule == "" {
				doc = "metadata:\n  suite_name: s\n  data_source: T\nvalidations:\n  - just a string\n"
			}
			errs := Validate([]byte(doc), FormatYAML)
			var codes []string
			for _, e := range errs {
				codes = append(codes, e.Code)
			}
			assert.Equal(t, tt.want, codes, "%v", errs)
		})
	}
}

func TestValidate_DuplicateTargets(t *testing.T) {
	doc := `
metadata:
  suite_name: s
  data_source: T
validations:
  - type: expect_column_values_to_not_be_null
    columns: [A, B]
  - type: expect_column_values_to_not_be_null
    columns: [B]
`
	errs := Validate([]byte(doc), FormatYAML)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateTarget, errs[0].Code)
	assert.Equal(t, "validations[1]", errs[0].Field)
}

func TestValidate_DerivedErrors(t *testing.T) {
	base := "metadata:\n  suite_name: s\n  data_source: T\nvalidations:\n  - type: expect_column_values_to_not_be_null\n    columns: [A]\n"
	tests := []struct {
		name string
		tail string
		want []string
	}{
		{"both modes", "derived_statuses:\n  - status: G\n    columns: [A]\n    expectation_ids: [exp_000000]\n", []string{ErrDerivedStatus}},
		{"no mode", "derived_statuses:\n  - status: G\n", []string{ErrDerivedStatus}},
		{"missing label", "derived_statuses:\n  - columns: [A]\n", []string{ErrDerivedStatus}},
		{"same column", "derived_statuses:\n  - status: G x\n    columns: [A]\n  - status: g-x\n    columns: [A]\n", []string{ErrDuplicateStatus}},
		{"list unknown status", "derived_statuses:\n  - status: G\n    columns: [A]\nderived_lists:\n  - name: L\n    exclude_statuses: [H]\n", []string{ErrDerivedList}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate([]byte(base+tt.tail), FormatYAML)
			var codes []string
			for _, e := range errs {
				codes = append(codes, e.Code)
			}
			assert.Equal(t, tt.want, codes, "%v", errs)
		})
	}
}

func TestValidate_DocumentShape(t *testing.T) {
	for _, doc := range []string{"", "- a\n- b\n", "metadata: [\n"} {
		errs := Validate([]byte(doc), FormatYAML)
		require.NotEmpty(t, errs, "%q", doc)
		assert.Equal(t, ErrDocumentShape, errs[0].Code)
	}
}

func TestParse_CUE(t *testing.T) {
	doc := `
metadata: {
	suite_name:  "products"
	data_source: "PRODUCTS"
}
#required: {
	type: "expect_column_values_to_not_be_null"
	columns: [...string]
}
validations: [
	#required & {columns: ["A", "B"]},
	{
		type:     "expect_column_pair_values_to_be_equal"
		column_a: "C"
		column_b: "D"
	},
]
`
	s, err := Parse([]byte(doc), FormatCUE)
	require.NoError(t, err)
	assert.Equal(t, "products", s.Name)
	require.Len(t, s.Rules, 2)
	assert.Equal(t, []string{"A", "B"}, s.Rules[0].(rules.NotNull).Columns)
	assert.Equal(t, "D", s.Rules[1].(rules.PairEqual).ColumnB)
}

func TestParse_CUEErrors(t *testing.T) {
	errs := Validate([]byte(`metadata: { suite_name: string }`), FormatCUE)
	require.NotEmpty(t, errs)
	assert.Equal(t, ErrDocumentShape, errs[0].Code)

	// Schema errors on CUE input carry no YAML line numbers.
	errs = Validate([]byte(`metadata: { data_source: "T" }
validations: [{type: "expect_column_values_to_be_unique", columns: ["A"]}]`), FormatCUE)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrSuiteName, errs[0].Code)
	assert.Zero(t, errs[0].Line)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yml")
	require.NoError(t, os.WriteFile(good, []byte(fullSuite), 0o644))
	s, err := Load(good)
	require.NoError(t, err)
	assert.Equal(t, "products", s.Name)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("metadata: {}\n"), 0o644))
	_, err = Load(bad)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, bad, se.Path)

	_, err = Load(filepath.Join(dir, "suite.json"))
	assert.ErrorContains(t, err, "unsupported suite file extension")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read suite")
}

func TestFormatForPath(t *testing.T) {
	f, err := FormatForPath("a/b/suite.CUE")
	require.NoError(t, err)
	assert.Equal(t, FormatCUE, f)
	assert.Equal(t, "cue", f.String())
}
