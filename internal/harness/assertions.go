package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/dqc/internal/results"
)

// checkExpectations compares the expected status of each listed record with
// the result. A record appearing on several rows must have the expected
// status on every one of them.
func checkExpectations(t *results.Table, key string, expect map[string]map[string]string) []string {
	var errs []string
	keyIdx := slices.Index(t.Columns, key)

	columns := make([]string, 0, len(expect))
	for c := range expect {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	for _, column := range columns {
		colIdx := slices.IndexFunc(t.Columns, func(c string) bool { return strings.EqualFold(c, column) })
		if colIdx < 0 {
			errs = append(errs, fmt.Sprintf("expect: column %s not in result", column))
			continue
		}
		if keyIdx < 0 {
			errs = append(errs, fmt.Sprintf("expect: record key column %s not in result", key))
			return errs
		}

		records := make([]string, 0, len(expect[column]))
		for r := range expect[column] {
			records = append(records, r)
		}
		sort.Strings(records)

		for _, record := range records {
			want := strings.ToUpper(expect[column][record])
			found := false
			for _, row := range t.Rows {
				if fmt.Sprint(row[keyIdx]) != record {
					continue
				}
				found = true
				if got := fmt.Sprint(row[colIdx]); got != want {
					errs = append(errs, fmt.Sprintf("expect: %s[%s] = %s, want %s", column, record, got, want))
					break
				}
			}
			if !found {
				errs = append(errs, fmt.Sprintf("expect: record %s not in result", record))
			}
		}
	}
	return errs
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	in := result.Interpretation
	switch a.Type {
	case AssertUnexpectedCount:
		got, ok := unexpectedCount(in, a.ID)
		if !ok {
			return fmt.Errorf("no target or derived column %s", a.ID)
		}
		if got != *a.Count {
			return fmt.Errorf("%s: unexpected_count = %d, want %d", a.ID, got, *a.Count)
		}

	case AssertFailedRecords:
		if in.FailedRecordCount != *a.Count {
			return fmt.Errorf("failed records = %d, want %d", in.FailedRecordCount, *a.Count)
		}

	case AssertListMembers:
		for _, l := range in.Lists {
			if l.Name != a.List {
				continue
			}
			want := append([]string{}, a.Keys...)
			got := append([]string{}, l.RecordKeys...)
			sort.Strings(want)
			sort.Strings(got)
			if !slices.Equal(want, got) {
				return fmt.Errorf("list %s = %v, want %v", a.List, got, want)
			}
			return nil
		}
		return fmt.Errorf("no derived list %s", a.List)

	case AssertWarningContains:
		for _, w := range result.Warnings() {
			if strings.Contains(w, a.Text) {
				return nil
			}
		}
		return fmt.Errorf("no warning contains %q", a.Text)

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func unexpectedCount(in *results.Interpretation, id string) (int, bool) {
	for _, t := range in.Targets {
		if t.TargetID == id {
			return t.UnexpectedCount, true
		}
	}
	for _, d := range in.Derived {
		if d.Column == id || d.ID == id {
			return d.UnexpectedCount, true
		}
	}
	return 0, false
}
