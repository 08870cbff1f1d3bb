package catalog

import (
	"slices"

	"github.com/roach88/dqc/internal/ids"
	"github.com/roach88/dqc/internal/rules"
)

// Mode is how a derived group picked its constituents.
type Mode string

const (
	ModeFilter Mode = "filter"
	ModeIDs    Mode = "ids"
)

// Resolution is a derived group together with the targets it ORs over.
type Resolution struct {
	Group   rules.DerivedGroup
	Mode    Mode
	Targets []Target
	// MissingIDs lists legacy ids that matched no target.
	MissingIDs []string
	// Embedded are column conditions owned by the group itself.
	Embedded []rules.ColumnValues
}

// Empty reports whether the group has nothing to OR over.
func (r Resolution) Empty() bool {
	return len(r.Targets) == 0 && len(r.Embedded) == 0
}

// TargetIDs returns the constituent target ids in resolution order.
func (r Resolution) TargetIDs() []string {
	out := make([]string, len(r.Targets))
	for i, t := range r.Targets {
		out[i] = t.ID
	}
	return out
}

// Resolve resolves every derived group of the suite in declaration order.
func Resolve(s *rules.Suite, targets []Target) []Resolution {
	out := make([]Resolution, 0, len(s.DerivedGroups))
	for _, g := range s.DerivedGroups {
		out = append(out, ResolveGroup(g, targets))
	}
	return out
}

// ResolveGroup picks the constituents of one group.
//
// Filter mode takes every target whose columns intersect the group's columns,
// restricted to the group's kind when one is set. Legacy mode expands a rule
// id to all of that rule's targets and takes target ids as they are.
// Duplicates are dropped and first-seen order kept in both modes.
func ResolveGroup(g rules.DerivedGroup, targets []Target) Resolution {
	res := Resolution{Group: g, Embedded: g.Embedded}
	seen := make(map[string]bool)
	add := func(t Target) {
		if !seen[t.ID] {
			seen[t.ID] = true
			res.Targets = append(res.Targets, t)
		}
	}

	if g.FilterMode() {
		res.Mode = ModeFilter
		for _, t := range targets {
			if g.Kind != "" && t.Kind != g.Kind {
				continue
			}
			if intersects(t.Columns, g.Columns) {
				add(t)
			}
		}
		return res
	}

	res.Mode = ModeIDs
	for _, ref := range g.ExpectationIDs {
		matched := false
		for _, t := range targets {
			if t.ID == ref || (t.RuleID == ref && !ids.IsTargetID(ref)) {
				add(t)
				matched = true
			}
		}
		if !matched {
			res.MissingIDs = append(res.MissingIDs, ref)
		}
	}
	return res
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

// Columns returns the target columns and embedded columns of the group,
// deduplicated in first-seen order.
func (r Resolution) Columns() []string {
	var out []string
	for _, t := range r.Targets {
		for _, c := range t.Columns {
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	for _, e := range r.Embedded {
		if !slices.Contains(out, e.Column) {
			out = append(out, e.Column)
		}
	}
	return out
}
