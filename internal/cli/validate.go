package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dqc/internal/config"
)

// ValidationResult is the validation outcome of one suite file.
type ValidationResult struct {
	Path   string                   `json:"path"`
	Valid  bool                     `json:"valid"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <suite>...",
		Short: "Validate suite files without compiling them",
		Long: `Validate suite configuration files (.yaml, .yml or .cue).

Every problem in a file is reported, not just the first one.

Exit codes:
  0 - All suites valid
  1 - One or more suites invalid
  2 - Command error (missing file, unsupported extension)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	results := make([]ValidationResult, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		format, err := config.FormatForPath(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeFormat, err.Error(), nil)
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("suite not found: %s", path), nil)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
		}

		formatter.VerboseLog("Validating %s as %s", path, format)
		errs := config.Validate(data, format)
		results = append(results, ValidationResult{Path: path, Valid: len(errs) == 0, Errors: errs})
		if len(errs) > 0 {
			invalid++
		}
	}

	if invalid == 0 {
		if formatter.IsJSON() {
			return formatter.Success(results)
		}
		for _, r := range results {
			fmt.Fprintf(formatter.Writer, "✓ %s valid\n", r.Path)
		}
		return nil
	}

	message := fmt.Sprintf("%d of %d suite(s) invalid", invalid, len(results))
	if formatter.IsJSON() {
		first := firstError(results)
		return formatter.Failure(results, first.Code, message)
	}
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(formatter.Writer, "✓ %s valid\n", r.Path)
			continue
		}
		writeValidationErrors(formatter, r.Path, r.Errors)
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "✗ Validation failed: %s\n", message)
	return NewExitError(ExitFailure, message)
}

func firstError(results []ValidationResult) config.ValidationError {
	for _, r := range results {
		if len(r.Errors) > 0 {
			return r.Errors[0]
		}
	}
	return config.ValidationError{Code: ErrCodeGeneric}
}
