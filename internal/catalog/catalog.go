// Package catalog expands a suite's rules into their targets and resolves
// derived groups against them.
//
// The compiler, the interpreter and the lookup command all call Expand on the
// same suite and get the same targets in the same order. No state is shared
// between them; agreement comes from the expansion being deterministic.
package catalog

import (
	"github.com/roach88/dqc/internal/ids"
	"github.com/roach88/dqc/internal/rules"
)

// Target is one column-level check produced by a rule.
type Target struct {
	ID            string
	RuleID        string
	RuleIndex     int
	Kind          rules.Kind
	Columns       []string
	Discriminator string
	Rule          rules.Rule
}

// Conditional returns the scope of the target's rule, if any.
func (t Target) Conditional() *rules.Conditional {
	if t.Rule == nil {
		return nil
	}
	return t.Rule.Meta().Conditional
}

// Expand returns every target of the suite in rule order, then target order
// within a rule.
func Expand(s *rules.Suite) []Target {
	var out []Target
	for _, r := range s.Rules {
		out = append(out, ExpandRule(s.Name, r)...)
	}
	return out
}

// ExpandRule returns the targets of one rule.
func ExpandRule(suiteName string, r rules.Rule) []Target {
	rid := ids.RuleID(suiteName, string(r.Kind()))
	idx := r.Meta().Index

	target := func(disc string, cols ...string) Target {
		return Target{
			ID:            ids.TargetID(rid, disc),
			RuleID:        rid,
			RuleIndex:     idx,
			Kind:          r.Kind(),
			Columns:       cols,
			Discriminator: disc,
			Rule:          r,
		}
	}
	perColumn := func(cols []string) []Target {
		out := make([]Target, 0, len(cols))
		for _, c := range cols {
			out = append(out, target(c, c))
		}
		return out
	}

	switch rule := r.(type) {
	case rules.ValueInSet:
		out := make([]Target, 0, len(rule.Sets))
		for _, set := range rule.Sets {
			out = append(out, target(set.Column, set.Column))
		}
		return out
	case rules.ValueNotInSet:
		return []Target{target(rule.Column, rule.Column)}
	case rules.PairEqual:
		return []Target{target(ids.Pair(rule.ColumnA, rule.ColumnB), rule.ColumnA, rule.ColumnB)}
	case rules.PairGreaterThan:
		return []Target{target(ids.Pair(rule.ColumnA, rule.ColumnB), rule.ColumnA, rule.ColumnB)}
	case rules.ConditionalRequired:
		return []Target{target(ids.Pair(rule.ConditionColumn, rule.RequiredColumn), rule.ConditionColumn, rule.RequiredColumn)}
	case rules.ConditionalValueInSet:
		return []Target{target(ids.Pair(rule.ConditionColumn, rule.TargetColumn), rule.ConditionColumn, rule.TargetColumn)}
	case rules.CompoundUnique:
		return []Target{target(ids.Compound(rule.Columns), rule.Columns...)}
	default:
		return perColumn(rules.Columns(r))
	}
}
