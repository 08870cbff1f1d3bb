package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dqc/internal/catalog"
)

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "catalog <suite>",
		Short:         "List every identifier a suite produces",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCatalog(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	suite, err := loadSuite(formatter, path)
	if err != nil {
		return err
	}
	entries := catalog.Entries(suite)

	if formatter.IsJSON() {
		return formatter.Success(entries)
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Column, string(e.Kind), string(e.RuleKind), strings.Join(e.Columns, ", ")})
	}
	formatter.Table("", []string{"COLUMN", "KIND", "TYPE", "COLUMNS"}, rows)
	return nil
}
