package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dqc/internal/results"
)

// Snapshot renders the parts of a result that golden files pin: the record
// counts and one line per status column in query order.
func Snapshot(name string, result *Result) []byte {
	in := result.Interpretation
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "suite: %s\n", in.Suite)
	fmt.Fprintf(&b, "records: %d\n", in.AggregateCount)
	fmt.Fprintf(&b, "failed_records: %d\n", in.FailedRecordCount)
	for _, row := range results.Summary(in) {
		fmt.Fprintf(&b, "%s %s %s %d/%d\n", row.ID, row.Type, row.Status, row.UnexpectedCount, row.ElementCount)
	}
	for _, l := range in.Lists {
		fmt.Fprintf(&b, "list %s: %s\n", l.Name, strings.Join(l.RecordKeys, ","))
	}
	return []byte(b.String())
}

// GoldenDir is the directory, next to the scenario files, holding their
// golden snapshots.
const GoldenDir = "golden"

// GoldenPath returns the snapshot file of the scenario at scenarioFile.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), GoldenDir, name+".golden")
}

// RunWithGolden loads and runs the scenario at scenarioFile and compares its
// snapshot with GoldenPath(scenarioFile).
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenarioFile string) (*Result, error) {
	t.Helper()

	scenario, err := LoadScenario(scenarioFile)
	if err != nil {
		return nil, err
	}
	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	golden := GoldenPath(scenarioFile)
	g := goldie.New(t,
		goldie.WithFixtureDir(filepath.Dir(golden)),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, strings.TrimSuffix(filepath.Base(golden), ".golden"), Snapshot(scenario.Name, result))
	return result, nil
}
