package catalog

import (
	"slices"
	"strings"

	"github.com/roach88/dqc/internal/ids"
	"github.com/roach88/dqc/internal/rules"
)

// EntryKind says what an identifier names.
type EntryKind string

const (
	EntryTarget  EntryKind = "target"
	EntryRule    EntryKind = "rule"
	EntryDerived EntryKind = "derived"
)

// Entry describes the configuration behind one identifier.
type Entry struct {
	Suite       string            `json:"suite"`
	ID          string            `json:"id"`
	Kind        EntryKind         `json:"kind"`
	RuleID      string            `json:"rule_id,omitempty"`
	RuleKind    rules.Kind        `json:"type,omitempty"`
	Columns     []string          `json:"columns"`
	Description string            `json:"description,omitempty"`
	Conditional *rules.Conditional `json:"conditional_on,omitempty"`
	// TargetIDs is set for rule and derived entries.
	TargetIDs []string `json:"target_ids,omitempty"`
	// Column is the result column carrying the entry's status.
	Column string `json:"column"`
}

// Lookup reverse-maps id to its definition by regenerating every id of the
// suite. It accepts a target id, a rule id, a derived group id, a derived
// status label or a derived column name.
func Lookup(s *rules.Suite, id string) (Entry, bool) {
	id = strings.TrimSpace(id)
	targets := Expand(s)

	if ids.IsTargetID(id) {
		for _, t := range targets {
			if t.ID == id {
				return targetEntry(s.Name, t), true
			}
		}
		return Entry{}, false
	}

	if ids.IsRuleID(id) {
		var e *Entry
		for _, t := range targets {
			if t.RuleID != id {
				continue
			}
			if e == nil {
				e = &Entry{
					Suite:       s.Name,
					ID:          id,
					Kind:        EntryRule,
					RuleID:      id,
					RuleKind:    t.Kind,
					Description: t.Rule.Meta().Description,
					Column:      id,
				}
			}
			e.TargetIDs = append(e.TargetIDs, t.ID)
			e.Columns = appendNew(e.Columns, t.Columns...)
		}
		if e != nil {
			return *e, true
		}
	}

	for _, g := range s.DerivedGroups {
		if g.ID == id || g.Label == id || strings.EqualFold(g.Column(), id) {
			return derivedEntry(s.Name, ResolveGroup(g, targets)), true
		}
	}
	return Entry{}, false
}

// Entries returns one entry per target followed by one per derived group.
func Entries(s *rules.Suite) []Entry {
	targets := Expand(s)
	out := make([]Entry, 0, len(targets)+len(s.DerivedGroups))
	for _, t := range targets {
		out = append(out, targetEntry(s.Name, t))
	}
	for _, res := range Resolve(s, targets) {
		out = append(out, derivedEntry(s.Name, res))
	}
	return out
}

func targetEntry(suite string, t Target) Entry {
	return Entry{
		Suite:       suite,
		ID:          t.ID,
		Kind:        EntryTarget,
		RuleID:      t.RuleID,
		RuleKind:    t.Kind,
		Columns:     t.Columns,
		Description: t.Rule.Meta().Description,
		Conditional: t.Conditional(),
		Column:      t.ID,
	}
}

func derivedEntry(suite string, res Resolution) Entry {
	return Entry{
		Suite:     suite,
		ID:        res.Group.ID,
		Kind:      EntryDerived,
		RuleKind:  res.Group.Kind,
		Columns:   res.Columns(),
		TargetIDs: res.TargetIDs(),
		Column:    res.Group.Column(),
	}
}

func appendNew(dst []string, cols ...string) []string {
	for _, c := range cols {
		if !slices.Contains(dst, c) {
			dst = append(dst, c)
		}
	}
	return dst
}
