// Package rules holds the immutable model of a rule suite: the source relation
// it reads, the typed validation rules, and the derived groups and lists built
// on top of them.
//
// A Suite is built once per compile/interpret cycle by the config loader and is
// never mutated afterwards. Compiler, interpreter and catalog are pure
// functions over it.
package rules

import (
	"regexp"
	"strings"
)

// DefaultIndexColumn is the record key used when metadata.index_column is not set.
const DefaultIndexColumn = "MATERIAL_NUMBER"

// Suite is one rule suite.
type Suite struct {
	Name          string
	IndexColumn   string
	Source        Source
	Rules         []Rule
	DerivedGroups []DerivedGroup
	DerivedLists  []DerivedList
}

// Source describes the single relation a suite validates.
type Source struct {
	// Relation is emitted verbatim, so it may carry its own quoting
	// (e.g. DB.SCHEMA."view").
	Relation string
	Filters  []Filter
	Distinct bool
}

// Filter restricts the source relation on one column.
type Filter struct {
	Column string
	Cond   Condition
}

// Condition is a sealed variant describing one filter's right-hand side.
//
// Condition types:
//   - Equals: column = literal
//   - InList: column IN (literals)
//   - RawCondition: operator string passed through (e.g. "LIKE 'A%'")
//   - OperatorValue: explicit {operator, value} pair
//   - RelativeDate: column <op> today shifted by N units
type Condition interface {
	conditionNode()
}

type Equals struct {
	Value Value
}

type InList struct {
	Values []Value
}

type RawCondition struct {
	SQL string
}

type OperatorValue struct {
	Operator string
	Value    any // Value or []Value
}

// DateUnit is a calendar unit accepted by relative date filters.
type DateUnit string

const (
	UnitDay     DateUnit = "day"
	UnitWeek    DateUnit = "week"
	UnitMonth   DateUnit = "month"
	UnitQuarter DateUnit = "quarter"
	UnitYear    DateUnit = "year"
)

type RelativeDate struct {
	Operator string
	Amount   int
	Unit     DateUnit
}

func (Equals) conditionNode()        {}
func (InList) conditionNode()        {}
func (RawCondition) conditionNode()  {}
func (OperatorValue) conditionNode() {}
func (RelativeDate) conditionNode()  {}

// Value is a scalar literal: string, int64, float64, bool or nil.
type Value any

// ColumnValues pairs a column with a value set.
type ColumnValues struct {
	Column string
	Values []Value
}

// Membership is the polarity of a conditional scope.
type Membership string

const (
	// Exclude evaluates the rule only for records outside the group.
	Exclude Membership = "exclude"
	// Include evaluates the rule only for records inside the group.
	Include Membership = "include"
)

// Conditional scopes a rule by membership in a derived group's failing records.
type Conditional struct {
	// DerivedGroup is the group's id (expectation_id) or its status label.
	DerivedGroup string
	Membership   Membership
}

// DerivedGroup is a named OR over rule targets.
//
// Exactly one resolution mode is active: filter mode when Columns is set,
// legacy mode when ExpectationIDs is set. Embedded column conditions are extra
// constituents that do not exist as targets of their own.
type DerivedGroup struct {
	Label          string
	ID             string
	Columns        []string
	Kind           Kind // optional filter on rule kind
	ExpectationIDs []string
	Embedded       []ColumnValues
}

// FilterMode reports whether the group resolves by (kind, column) filter.
func (g DerivedGroup) FilterMode() bool {
	return len(g.Columns) > 0
}

// Column is the result column carrying this group's status.
func (g DerivedGroup) Column() string {
	return DerivedColumn(g.Label)
}

// DerivedList selects the records that fail none of the listed derived statuses.
type DerivedList struct {
	Name            string
	Description     string
	ExcludeStatuses []string
}

var unsafeLabelChars = regexp.MustCompile(`[^a-z0-9]+`)

// SafeLabel lowercases label and collapses every run of characters outside
// [a-z0-9] into one underscore, trimming underscores at both ends.
func SafeLabel(label string) string {
	return strings.Trim(unsafeLabelChars.ReplaceAllString(strings.ToLower(label), "_"), "_")
}

// DerivedColumn names the status column of a derived group with this label.
func DerivedColumn(label string) string {
	return "derived_" + SafeLabel(label)
}

// DefaultGroupID is the id given to a derived group that does not declare one.
func DefaultGroupID(label string) string {
	return "exp_derived_" + SafeLabel(label)
}

// FindGroup returns the derived group referenced by ref, matching the group id
// first and the status label second.
func (s *Suite) FindGroup(ref string) (DerivedGroup, bool) {
	for _, g := range s.DerivedGroups {
		if g.ID == ref {
			return g, true
		}
	}
	for _, g := range s.DerivedGroups {
		if g.Label == ref {
			return g, true
		}
	}
	return DerivedGroup{}, false
}

// Columns returns every column touched by the suite's rules and embedded group
// conditions, deduplicated in first-seen order.
func (s *Suite) Columns() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(cols ...string) {
		for _, c := range cols {
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, r := range s.Rules {
		add(Columns(r)...)
	}
	for _, g := range s.DerivedGroups {
		for _, e := range g.Embedded {
			add(e.Column)
		}
	}
	return out
}
