package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/roach88/dqc/internal/config"
	"github.com/roach88/dqc/internal/grain"
	"github.com/roach88/dqc/internal/rules"
	"github.com/roach88/dqc/internal/sqlgen"
	"github.com/roach88/dqc/internal/warehouse"
)

// Error code constants for command-level problems. Suite validation uses the
// config package codes (E100-E124).
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeFormat       = "E002" // Unsupported suite file extension
	ErrCodeReadFailed   = "E004" // Suite or grain file unreadable
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeCompile      = "E008" // Suite valid but not compilable
	ErrCodeWarehouse    = "E009" // Warehouse open or query failure
	ErrCodeUnknownID    = "E010" // Lookup found nothing
	ErrCodeDataFailures = "E011" // Run finished with failing records
	ErrCodeInvalidSuite = "E012" // Suite failed validation
)

// loadSuite loads the suite at path. The returned error is an ExitError that
// has already been reported through f.
func loadSuite(f *OutputFormatter, path string) (*rules.Suite, error) {
	f.VerboseLog("Loading suite %s", path)
	suite, err := config.Load(path)
	if err == nil {
		return suite, nil
	}

	var schemaErr *config.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		if !f.IsJSON() {
			writeValidationErrors(f, path, schemaErr.Errors)
		}
		return nil, f.Fail(ExitFailure, ErrCodeInvalidSuite,
			fmt.Sprintf("%s: suite has %d validation error(s)", path, len(schemaErr.Errors)), schemaErr.Errors)
	case errors.Is(err, fs.ErrNotExist):
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("suite not found: %s", path), nil)
	default:
		if _, fmtErr := config.FormatForPath(path); fmtErr != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeFormat, fmtErr.Error(), nil)
		}
		return nil, f.Fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
	}
}

// loadGrains returns the grain table configured by grain.file, or the
// embedded default.
func (o *RootOptions) loadGrains(f *OutputFormatter) (*grain.Table, error) {
	path := o.v.GetString(keyGrainFile)
	if path == "" {
		return grain.Default(), nil
	}
	f.VerboseLog("Loading grain table %s", path)
	t, err := grain.Load(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("load grain table: %v", err), nil)
	}
	return t, nil
}

// dialect returns the configured dialect, or fallback when none is set.
func (o *RootOptions) dialect(f *OutputFormatter, fallback sqlgen.Dialect) (sqlgen.Dialect, error) {
	name := o.v.GetString(keyDialect)
	if name == "" {
		return fallback, nil
	}
	d, err := sqlgen.DialectByName(name)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	return d, nil
}

// warehouseConfig reads the executor settings.
func (o *RootOptions) warehouseConfig() warehouse.Config {
	return warehouse.Config{
		Driver:     o.v.GetString(keyWarehouseDriver),
		DSN:        o.v.GetString(keyWarehouseDSN),
		MaxRetries: o.v.GetUint(keyWarehouseRetries),
		Logger:     o.Logger(),
	}
}

// writeValidationErrors prints validation problems for one suite file.
func writeValidationErrors(f *OutputFormatter, path string, errs []config.ValidationError) {
	fmt.Fprintf(f.Writer, "✗ %s\n", path)
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(f.Writer, "  line %d\n", e.Line)
		}
		fmt.Fprintf(f.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
