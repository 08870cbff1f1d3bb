package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dqc/internal/catalog"
	"github.com/roach88/dqc/internal/ids"
)

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <suite> <id>",
		Short: "Show the configuration behind an identifier",
		Long: `Reverse-map an identifier found in a result back to its configuration.

Accepts a target id (exp_xxxxxx_yyyy), a rule id (exp_xxxxxx), a derived
status id, a derived status label or a derived column name.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runLookup(opts *RootOptions, path, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	suite, err := loadSuite(formatter, path)
	if err != nil {
		return err
	}
	entry, ok := catalog.Lookup(suite, id)
	if !ok {
		msg := fmt.Sprintf("%s is not produced by suite %s", id, suite.Name)
		// A stale target id usually means the rule's columns changed.
		if rule, found := catalog.Lookup(suite, ids.BaseOf(id)); found && rule.ID != id {
			msg += fmt.Sprintf("; rule %s now produces %s", rule.ID, strings.Join(rule.TargetIDs, ", "))
		}
		return formatter.Fail(ExitFailure, ErrCodeUnknownID, msg, nil)
	}

	if formatter.IsJSON() {
		return formatter.Success(entry)
	}
	writeEntry(formatter, entry)
	return nil
}

func writeEntry(f *OutputFormatter, e catalog.Entry) {
	rows := [][]string{
		{"id:", e.ID},
		{"kind:", string(e.Kind)},
		{"suite:", e.Suite},
	}
	if e.RuleID != "" && e.RuleID != e.ID {
		rows = append(rows, []string{"rule:", e.RuleID})
	}
	if e.RuleKind != "" {
		rows = append(rows, []string{"type:", string(e.RuleKind)})
	}
	rows = append(rows,
		[]string{"columns:", strings.Join(e.Columns, ", ")},
		[]string{"result column:", e.Column},
	)
	if e.Description != "" {
		rows = append(rows, []string{"description:", e.Description})
	}
	if c := e.Conditional; c != nil {
		rows = append(rows, []string{"conditional on:", fmt.Sprintf("%s (%s)", c.DerivedGroup, c.Membership)})
	}
	if len(e.TargetIDs) > 0 {
		rows = append(rows, []string{"targets:", strings.Join(e.TargetIDs, ", ")})
	}
	f.Table("", nil, rows)
}
