// Package results turns a compiled query's output back into rule-level and
// record-level outcomes.
//
// The interpreter re-expands the suite with the catalog instead of reading
// anything the compiler produced, so the two can run in separate processes.
// Inconsistencies between suite and result (a missing status column) are
// flagged on the outcome and never abort the interpretation.
package results

import (
	"fmt"
	"slices"

	"github.com/roach88/dqc/internal/catalog"
	"github.com/roach88/dqc/internal/grain"
	loglib "github.com/roach88/dqc/internal/log"
	"github.com/roach88/dqc/internal/rules"
)

// Options tune interpretation.
type Options struct {
	// Detail records per-row failures for targets and per-record failures
	// for derived groups.
	Detail bool
	Grains *grain.Table
	Logger loglib.Logger
}

// Failure is one failing row of a target.
type Failure struct {
	RecordKey string         `json:"record_key"`
	Values    map[string]any `json:"values"`
	Context   map[string]any `json:"context,omitempty"`
}

// TargetOutcome aggregates one target's status column.
type TargetOutcome struct {
	TargetID          string     `json:"target_id"`
	RuleID            string     `json:"rule_id"`
	Kind              rules.Kind `json:"type"`
	Columns           []string   `json:"columns"`
	ElementCount      int        `json:"element_count"`
	UnexpectedCount   int        `json:"unexpected_count"`
	UnexpectedPercent float64    `json:"unexpected_percent"`
	Success           bool       `json:"success"`
	Grain             string     `json:"grain"`
	// UniqueBy are the grain keys present in the result.
	UniqueBy       []string `json:"unique_by"`
	ContextColumns []string `json:"context_columns"`
	// Missing is set when the result has no column for this target.
	Missing bool `json:"missing,omitempty"`
	// FailingKeys are the distinct record keys with at least one FAIL.
	FailingKeys []string  `json:"-"`
	Failures    []Failure `json:"failures,omitempty"`
}

// RecordFailure explains why one record fails a derived group.
type RecordFailure struct {
	FailedTargets []string `json:"failed_targets"`
	FailedColumns []string `json:"failed_columns"`
	FailureCount  int      `json:"failure_count"`
}

// DerivedOutcome aggregates one derived group over unique record keys.
type DerivedOutcome struct {
	Label             string   `json:"status"`
	ID                string   `json:"id"`
	Column            string   `json:"column"`
	Constituents      []string `json:"constituents"`
	ElementCount      int      `json:"element_count"`
	UnexpectedCount   int      `json:"unexpected_count"`
	UnexpectedPercent float64  `json:"unexpected_percent"`
	Success           bool     `json:"success"`
	// Missing is set when the derived column was absent and the status was
	// recomputed from the constituent target columns.
	Missing     bool                     `json:"missing,omitempty"`
	MissingIDs  []string                 `json:"missing_ids,omitempty"`
	FailingKeys []string                 `json:"-"`
	Records     map[string]RecordFailure `json:"records,omitempty"`
}

// ListOutcome is the set of records failing none of a list's statuses.
type ListOutcome struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	RecordKeys  []string `json:"record_keys"`
	Count       int      `json:"count"`
}

// Interpretation is the full outcome of one result table.
type Interpretation struct {
	Suite   string           `json:"suite"`
	Targets []TargetOutcome  `json:"targets"`
	Derived []DerivedOutcome `json:"derived"`
	Lists   []ListOutcome    `json:"lists,omitempty"`
	// RecordKeys are the distinct record keys in row order.
	RecordKeys []string `json:"-"`
	// AggregateCount is the number of records: distinct keys, or rows when
	// the result has no key column.
	AggregateCount int `json:"aggregate_count"`
	// FailedRecordCount counts records with a FAIL in any status column.
	FailedRecordCount int      `json:"failed_record_count"`
	Warnings          []string `json:"warnings,omitempty"`
}

type interpreter struct {
	table  *Table
	suite  *rules.Suite
	opts   Options
	grains *grain.Table
	logger loglib.Logger
	cols   columnIndex

	// rowKeys[i] is the record key of row i; rows without a key get a
	// synthetic per-row key so they still count once.
	rowKeys []string
	out     *Interpretation
	failed  map[string]bool
}

// Interpret reads table as the output of suite's compiled query.
func Interpret(table *Table, suite *rules.Suite, opts Options) *Interpretation {
	if table == nil {
		table = &Table{}
	}
	grains := opts.Grains
	if grains == nil {
		grains = grain.Default()
	}
	key := suite.IndexColumn
	if key == "" {
		key = rules.DefaultIndexColumn
	}

	in := &interpreter{
		table:  table,
		suite:  suite,
		opts:   opts,
		grains: grains.WithRecordKey(key),
		logger: loglib.NewLogger(opts.Logger).WithFields(loglib.Fields{
			loglib.ModuleField: "results",
			loglib.SuiteField:  suite.Name,
		}),
		cols:   newColumnIndex(table.Columns),
		out:    &Interpretation{Suite: suite.Name},
		failed: make(map[string]bool),
	}
	in.keys(key)

	targets := catalog.Expand(suite)
	for _, t := range targets {
		in.out.Targets = append(in.out.Targets, in.target(t))
	}
	for _, res := range catalog.Resolve(suite, targets) {
		in.out.Derived = append(in.out.Derived, in.derived(res))
	}
	in.lists()

	in.out.FailedRecordCount = len(in.failed)
	in.logger.Debug("interpreted result", loglib.Fields{
		"rows":    len(table.Rows),
		"records": in.out.AggregateCount,
		"failed":  in.out.FailedRecordCount,
	})
	return in.out
}

func (in *interpreter) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	in.out.Warnings = append(in.out.Warnings, msg)
	in.logger.Warn(nil, msg)
}

func (in *interpreter) keys(key string) {
	ki, hasKey := in.cols.find(key)
	if !hasKey {
		in.warn("record key column %s not in result; counting rows", key)
	}
	seen := make(map[string]bool)
	in.rowKeys = make([]string, len(in.table.Rows))
	for i, row := range in.table.Rows {
		k, ok := "", false
		if hasKey && ki < len(row) {
			k, ok = keyString(row[ki])
		}
		if !ok {
			k = fmt.Sprintf("#row%d", i)
		} else if !seen[k] {
			in.out.RecordKeys = append(in.out.RecordKeys, k)
		}
		seen[k] = true
		in.rowKeys[i] = k
	}
	in.out.AggregateCount = len(seen)
}

func (in *interpreter) cell(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return Normalize(row[i])
}

func (in *interpreter) target(t catalog.Target) TargetOutcome {
	g := in.grains.GrainForColumns(t.Columns)
	out := TargetOutcome{
		TargetID:       t.ID,
		RuleID:         t.RuleID,
		Kind:           t.Kind,
		Columns:        t.Columns,
		ElementCount:   len(in.table.Rows),
		Grain:          g.Name,
		UniqueBy:       in.uniqueBy(g.Keys),
		ContextColumns: in.grains.ContextColumns(t.Columns),
	}

	ci, ok := in.cols.find(t.ID)
	if !ok {
		out.Missing = true
		in.warn("target %s (%s on %v) has no result column", t.ID, t.Kind, t.Columns)
		return out
	}

	seen := make(map[string]bool)
	for r, row := range in.table.Rows {
		if !isFail(in.cell(row, ci)) {
			continue
		}
		out.UnexpectedCount++
		k := in.rowKeys[r]
		in.failed[k] = true
		if !seen[k] {
			seen[k] = true
			out.FailingKeys = append(out.FailingKeys, k)
		}
		if in.opts.Detail {
			out.Failures = append(out.Failures, Failure{
				RecordKey: k,
				Values:    in.values(row, t.Columns),
				Context:   in.values(row, out.UniqueBy),
			})
		}
	}
	out.UnexpectedPercent = percent(out.UnexpectedCount, out.ElementCount)
	out.Success = out.UnexpectedCount == 0
	return out
}

// present returns the columns of cols found in the result.
// uniqueBy returns the grain keys that identify a failing row in the result,
// reduced when the result lacks some of them.
func (in *interpreter) uniqueBy(keys []string) []string {
	wanted := slices.Concat(keys, []string{in.grains.RecordKey()})
	available := in.present(wanted)
	if grain.ValidateGrainExists(wanted, available) {
		return keys
	}
	return in.grains.FallbackGrain(keys, available)
}

func (in *interpreter) present(cols []string) []string {
	var out []string
	for _, c := range cols {
		if _, ok := in.cols.find(c); ok && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func (in *interpreter) values(row []any, cols []string) map[string]any {
	if len(cols) == 0 {
		return nil
	}
	m := make(map[string]any, len(cols))
	for _, c := range cols {
		if i, ok := in.cols.find(c); ok {
			m[c] = in.cell(row, i)
		}
	}
	return m
}

func (in *interpreter) derived(res catalog.Resolution) DerivedOutcome {
	out := DerivedOutcome{
		Label:        res.Group.Label,
		ID:           res.Group.ID,
		Column:       res.Group.Column(),
		Constituents: res.TargetIDs(),
		ElementCount: in.out.AggregateCount,
		MissingIDs:   res.MissingIDs,
	}
	if len(res.MissingIDs) > 0 {
		in.warn("derived group %q references unknown ids %v", res.Group.Label, res.MissingIDs)
	}

	type constituent struct {
		id   string
		cols []string
		idx  int
	}
	var parts []constituent
	for _, t := range res.Targets {
		i, ok := in.cols.find(t.ID)
		if !ok {
			continue
		}
		parts = append(parts, constituent{id: t.ID, cols: t.Columns, idx: i})
	}
	type embedded struct {
		cv  rules.ColumnValues
		idx int
	}
	var conds []embedded
	for _, cv := range res.Embedded {
		if i, ok := in.cols.find(cv.Column); ok {
			conds = append(conds, embedded{cv: cv, idx: i})
		}
	}

	di, hasColumn := in.cols.find(out.Column)
	if !hasColumn {
		out.Missing = true
		in.warn("derived column %s not in result; recomputed from %d constituents", out.Column, len(parts)+len(conds))
	}

	records := make(map[string]*RecordFailure)
	for r, row := range in.table.Rows {
		var fails bool
		if hasColumn {
			fails = isFail(in.cell(row, di))
		} else {
			for _, p := range parts {
				fails = fails || isFail(in.cell(row, p.idx))
			}
			for _, e := range conds {
				fails = fails || outsideSet(in.cell(row, e.idx), e.cv.Values)
			}
		}
		if !fails {
			continue
		}

		k := in.rowKeys[r]
		in.failed[k] = true
		rf, seen := records[k]
		if !seen {
			rf = &RecordFailure{}
			records[k] = rf
			out.FailingKeys = append(out.FailingKeys, k)
		}
		if !in.opts.Detail {
			continue
		}
		for _, p := range parts {
			if isFail(in.cell(row, p.idx)) && !slices.Contains(rf.FailedTargets, p.id) {
				rf.FailedTargets = append(rf.FailedTargets, p.id)
				for _, c := range p.cols {
					if !slices.Contains(rf.FailedColumns, c) {
						rf.FailedColumns = append(rf.FailedColumns, c)
					}
				}
			}
		}
		for _, e := range conds {
			if outsideSet(in.cell(row, e.idx), e.cv.Values) && !slices.Contains(rf.FailedColumns, e.cv.Column) {
				rf.FailedColumns = append(rf.FailedColumns, e.cv.Column)
			}
		}
	}

	out.UnexpectedCount = len(out.FailingKeys)
	out.UnexpectedPercent = percent(out.UnexpectedCount, out.ElementCount)
	out.Success = out.UnexpectedCount == 0
	if in.opts.Detail {
		out.Records = make(map[string]RecordFailure, len(records))
		for k, rf := range records {
			rf.FailureCount = len(rf.FailedTargets)
			if rf.FailureCount == 0 {
				// Only embedded conditions failed.
				rf.FailureCount = len(rf.FailedColumns)
			}
			out.Records[k] = *rf
		}
	}
	return out
}

// outsideSet mirrors SQL "v NOT IN (values)": NULL is never outside.
func outsideSet(v any, values []rules.Value) bool {
	if v == nil {
		return false
	}
	s := fmt.Sprint(v)
	for _, allowed := range values {
		if allowed != nil && fmt.Sprint(allowed) == s {
			return false
		}
	}
	return true
}

func (in *interpreter) lists() {
	failing := make(map[string]map[string]bool, len(in.out.Derived))
	for _, d := range in.out.Derived {
		set := make(map[string]bool, len(d.FailingKeys))
		for _, k := range d.FailingKeys {
			set[k] = true
		}
		failing[d.Label] = set
	}

	for _, l := range in.suite.DerivedLists {
		lo := ListOutcome{Name: l.Name, Description: l.Description, RecordKeys: []string{}}
		for _, k := range in.out.RecordKeys {
			excluded := false
			for _, status := range l.ExcludeStatuses {
				if failing[status][k] {
					excluded = true
					break
				}
			}
			if !excluded {
				lo.RecordKeys = append(lo.RecordKeys, k)
			}
		}
		lo.Count = len(lo.RecordKeys)
		in.out.Lists = append(in.out.Lists, lo)
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
