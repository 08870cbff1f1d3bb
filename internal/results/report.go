package results

import (
	"sort"
	"strings"

	"github.com/roach88/dqc/internal/rules"
)

// Status values of a summary row.
const (
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusMissing = "MISSING"
)

// ReportRow is one failing value, flattened for reporting tables.
type ReportRow struct {
	ExpectationID   string         `json:"expectation_id"`
	RuleID          string         `json:"rule_id"`
	ExpectationType rules.Kind     `json:"expectation_type"`
	Column          string         `json:"column"`
	RecordKey       string         `json:"record_key"`
	UnexpectedValue any            `json:"unexpected_value"`
	Context         map[string]any `json:"context,omitempty"`
}

// SummaryRow is one status column of a run.
type SummaryRow struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Columns           string  `json:"columns"`
	ElementCount      int     `json:"element_count"`
	UnexpectedCount   int     `json:"unexpected_count"`
	UnexpectedPercent float64 `json:"unexpected_percent"`
	Status            string  `json:"status"`
}

// Report flattens target failures into one row per failing column value.
// Only detail interpretations carry failures.
func Report(in *Interpretation) []ReportRow {
	var out []ReportRow
	for _, t := range in.Targets {
		for _, f := range t.Failures {
			for _, c := range t.Columns {
				out = append(out, ReportRow{
					ExpectationID:   t.TargetID,
					RuleID:          t.RuleID,
					ExpectationType: t.Kind,
					Column:          c,
					RecordKey:       f.RecordKey,
					UnexpectedValue: f.Values[c],
					Context:         f.Context,
				})
			}
		}
	}
	return out
}

// Summary lists targets first, then derived groups.
func Summary(in *Interpretation) []SummaryRow {
	out := make([]SummaryRow, 0, len(in.Targets)+len(in.Derived))
	for _, t := range in.Targets {
		out = append(out, SummaryRow{
			ID:                t.TargetID,
			Type:              string(t.Kind),
			Columns:           strings.Join(t.Columns, ", "),
			ElementCount:      t.ElementCount,
			UnexpectedCount:   t.UnexpectedCount,
			UnexpectedPercent: t.UnexpectedPercent,
			Status:            status(t.Success, t.Missing),
		})
	}
	for _, d := range in.Derived {
		// A recomputed derived column still has a meaningful status.
		out = append(out, SummaryRow{
			ID:                d.Column,
			Type:              "derived",
			Columns:           strings.Join(d.Constituents, ", "),
			ElementCount:      d.ElementCount,
			UnexpectedCount:   d.UnexpectedCount,
			UnexpectedPercent: d.UnexpectedPercent,
			Status:            status(d.Success, false),
		})
	}
	return out
}

// FailingRecordKeys returns the sorted keys of records failing any status.
func FailingRecordKeys(in *Interpretation) []string {
	set := make(map[string]bool)
	for _, t := range in.Targets {
		for _, k := range t.FailingKeys {
			set[k] = true
		}
	}
	for _, d := range in.Derived {
		for _, k := range d.FailingKeys {
			set[k] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func status(success, missing bool) string {
	switch {
	case missing:
		return StatusMissing
	case success:
		return StatusPass
	default:
		return StatusFail
	}
}
