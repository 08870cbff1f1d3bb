package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dqc/internal/compiler"
	"github.com/roach88/dqc/internal/sqlgen"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Limit  int
}

// CompileOutput is the JSON payload of the compile command.
type CompileOutput struct {
	Suite          string   `json:"suite"`
	Dialect        string   `json:"dialect"`
	SQL            string   `json:"sql"`
	Targets        []string `json:"targets"`
	Derived        []string `json:"derived"`
	ContextColumns []string `json:"context_columns"`
	Warnings       []string `json:"warnings,omitempty"`
	Output         string   `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <suite>",
		Short: "Compile a suite to one SQL query",
		Long: `Compile a suite into the single query that evaluates all of its rules.

The query returns one row per source record with a PASS/FAIL column per
rule target and per derived status. Without --dialect the dialect setting
is used, and Snowflake when that is empty too.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the SQL to this file")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "cap the number of source rows (0 means no limit)")
	cmd.Flags().String("dialect", "", "SQL dialect (snowflake|postgres|sqlite)")
	_ = rootOpts.v.BindPFlag(keyDialect, cmd.Flags().Lookup("dialect"))

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Limit < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--limit must not be negative, got %d", opts.Limit), nil)
	}
	suite, err := loadSuite(formatter, path)
	if err != nil {
		return err
	}
	dialect, err := opts.dialect(formatter, sqlgen.Snowflake{})
	if err != nil {
		return err
	}
	grains, err := opts.loadGrains(formatter)
	if err != nil {
		return err
	}

	q, err := compiler.Compile(suite, compiler.Options{
		RowLimit: opts.Limit,
		Dialect:  dialect,
		Grains:   grains,
		Logger:   opts.Logger(),
	})
	if err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return formatter.Fail(ExitFailure, ErrCodeCompile, compileErr.Error(), nil)
		}
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Compiled %d target(s) and %d derived status(es) for %s", len(q.Targets), len(q.Derived), q.Dialect)

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(q.SQL+"\n"), 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("write %s: %v", opts.Output, err), nil)
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(CompileOutput{
			Suite:          suite.Name,
			Dialect:        q.Dialect,
			SQL:            q.SQL,
			Targets:        q.TargetIDs(),
			Derived:        q.DerivedColumns(),
			ContextColumns: q.ContextColumns,
			Warnings:       q.Warnings,
			Output:         opts.Output,
		})
	}

	for _, w := range q.Warnings {
		formatter.Warn("%s", w)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Compiled %s (%d targets, %d derived) to %s\n",
			suite.Name, len(q.Targets), len(q.Derived), opts.Output)
		return nil
	}
	fmt.Fprintln(formatter.Writer, q.SQL)
	return nil
}
