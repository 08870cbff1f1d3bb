// Package cli implements the dqc command line.
package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	loglib "github.com/roach88/dqc/internal/log"
	zerologlib "github.com/roach88/dqc/internal/log/zerolog"
)

// Configuration keys. Each can be set in the config file or through a DQC_
// environment variable (warehouse.dsn is DQC_WAREHOUSE_DSN).
const (
	keyWarehouseDriver  = "warehouse.driver"
	keyWarehouseDSN     = "warehouse.dsn"
	keyWarehouseRetries = "warehouse.retries"
	keyDialect          = "dialect"
	keyGrainFile        = "grain.file"
	keyLogLevel         = "log.level"
	keyRunParallel      = "run.parallel"
)

// RootOptions holds global flags and the settings shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	v      *viper.Viper
	clock  clockwork.Clock
	logger loglib.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dqc CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(clockwork.NewRealClock())
}

func newRootCommand(clock clockwork.Clock) *cobra.Command {
	opts := &RootOptions{v: newViper(), clock: clock}

	cmd := &cobra.Command{
		Use:   "dqc",
		Short: "dqc - data quality rule compiler",
		Long: `Compile declarative data quality rules into one SQL query per suite,
run it on a warehouse and turn the PASS/FAIL columns back into per-rule
and per-record outcomes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.ConfigFile != "" {
				opts.v.SetConfigFile(opts.ConfigFile)
				if err := opts.v.ReadInConfig(); err != nil {
					return WrapExitError(ExitCommandError, "read config", err)
				}
			}
			opts.logger = zerologlib.NewStdLogger(zerologlib.NewLogger(&zerologlib.Config{
				LogLevel: opts.v.GetString(keyLogLevel),
				Out:      cmd.ErrOrStderr(),
			}))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().String("log-level", "warn", "log level (trace|debug|info|warn|error|disabled)")
	_ = opts.v.BindPFlag(keyLogLevel, cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("DQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyWarehouseDriver, "sqlite")
	v.SetDefault(keyWarehouseDSN, "")
	v.SetDefault(keyWarehouseRetries, 3)
	v.SetDefault(keyDialect, "")
	v.SetDefault(keyGrainFile, "")
	v.SetDefault(keyRunParallel, 4)
	return v
}

// Logger returns the command logger. It is a noop before the root command's
// pre-run hook has executed.
func (o *RootOptions) Logger() loglib.Logger {
	return loglib.NewLogger(o.logger)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
