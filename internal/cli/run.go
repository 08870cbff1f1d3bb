package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/dqc/internal/compiler"
	"github.com/roach88/dqc/internal/grain"
	loglib "github.com/roach88/dqc/internal/log"
	"github.com/roach88/dqc/internal/results"
	"github.com/roach88/dqc/internal/rules"
	"github.com/roach88/dqc/internal/warehouse"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Detail bool
	Limit  int
	// Failed names a status column whose failing rows are returned in full.
	Failed string
}

// SuiteRun is the outcome of one suite.
type SuiteRun struct {
	Suite         string                `json:"suite"`
	Path          string                `json:"path"`
	Records       int                   `json:"records"`
	FailedRecords int                   `json:"failed_records"`
	Summary       []results.SummaryRow  `json:"summary"`
	Metrics       results.Metrics       `json:"metrics"`
	Lists         []results.ListOutcome `json:"lists,omitempty"`
	Failures      []results.ReportRow   `json:"failures,omitempty"`
	FailingKeys   []string              `json:"failing_keys,omitempty"`
	FailedRows    *results.Table        `json:"failed_rows,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// RunReport is the outcome of one invocation of the run command.
type RunReport struct {
	RunID      string     `json:"run_id"`
	Warehouse  string     `json:"warehouse"`
	Dialect    string     `json:"dialect"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	DurationMS int64      `json:"duration_ms"`
	Suites     []SuiteRun `json:"suites"`
}

// FailedSuites counts suites with at least one failing record.
func (r *RunReport) FailedSuites() int {
	n := 0
	for _, s := range r.Suites {
		if s.FailedRecords > 0 {
			n++
		}
	}
	return n
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <suite>...",
		Short: "Compile, execute and interpret suites",
		Long: `Compile each suite, run its query on the configured warehouse and report
per-rule and per-record outcomes. Suites run in parallel.

Exit codes:
  0 - No record failed any rule
  1 - Invalid or uncompilable suite, or failing records
  2 - Command error (missing suite, warehouse unreachable, query failed)

Examples:
  dqc run suites/products.yaml --driver sqlite --dsn warehouse.db
  dqc run suites/products.yaml --dsn warehouse.db --failed derived_missing_basics
  DQC_WAREHOUSE_DRIVER=postgres DQC_WAREHOUSE_DSN=postgres://... dqc run suites/*.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Detail, "detail", false, "include failing values and per-record reasons")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "cap the number of source rows per suite (0 means no limit)")
	cmd.Flags().StringVar(&opts.Failed, "failed", "", "print the result rows failing this target or derived column")
	cmd.Flags().String("driver", "sqlite", "warehouse driver (sqlite|postgres)")
	cmd.Flags().String("dsn", "", "warehouse DSN: a file path for sqlite, a URL for postgres")
	cmd.Flags().Int("parallel", 4, "maximum number of suites running at once")
	_ = rootOpts.v.BindPFlag(keyWarehouseDriver, cmd.Flags().Lookup("driver"))
	_ = rootOpts.v.BindPFlag(keyWarehouseDSN, cmd.Flags().Lookup("dsn"))
	_ = rootOpts.v.BindPFlag(keyRunParallel, cmd.Flags().Lookup("parallel"))

	return cmd
}

type suiteJob struct {
	path  string
	suite *rules.Suite
	query *compiler.Query
}

func runRun(ctx context.Context, opts *RunOptions, paths []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	parallel := opts.v.GetInt(keyRunParallel)
	if parallel < 1 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("run.parallel must be at least 1, got %d", parallel), nil)
	}

	if opts.Limit < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--limit must not be negative, got %d", opts.Limit), nil)
	}

	// Every suite is loaded before anything runs so a bad file fails fast.
	jobs := make([]suiteJob, 0, len(paths))
	for _, path := range paths {
		suite, err := loadSuite(formatter, path)
		if err != nil {
			return err
		}
		jobs = append(jobs, suiteJob{path: path, suite: suite})
	}

	grains, err := opts.loadGrains(formatter)
	if err != nil {
		return err
	}
	whCfg := opts.warehouseConfig()
	driverDialect, err := warehouse.Dialect(whCfg.Driver)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWarehouse, err.Error(), nil)
	}
	dialect, err := opts.dialect(formatter, driverDialect)
	if err != nil {
		return err
	}

	// Compile everything before the warehouse is touched.
	for i := range jobs {
		q, err := compiler.Compile(jobs[i].suite, compiler.Options{
			RowLimit: opts.Limit,
			Dialect:  dialect,
			Grains:   grains,
			Logger:   opts.Logger(),
		})
		if err != nil {
			code := ErrCodeGeneric
			var compileErr *compiler.CompileError
			if errors.As(err, &compileErr) {
				code = ErrCodeCompile
			}
			return formatter.Fail(ExitFailure, code, fmt.Sprintf("%s: %v", jobs[i].path, err), nil)
		}
		if opts.Failed != "" && !hasStatusColumn(q, opts.Failed) {
			return formatter.Fail(ExitCommandError, ErrCodeUnknownID,
				fmt.Sprintf("%s: suite %s has no status column %s", jobs[i].path, jobs[i].suite.Name, opts.Failed), nil)
		}
		jobs[i].query = q
	}

	report := &RunReport{
		RunID:     uuid.NewString(),
		Warehouse: whCfg.Driver,
		Dialect:   dialect.Name(),
		StartedAt: opts.clock.Now().UTC(),
		Suites:    make([]SuiteRun, len(jobs)),
	}
	logger := opts.Logger().WithFields(loglib.Fields{
		loglib.ModuleField: "cli",
		loglib.RunField:    report.RunID,
	})

	exec, err := warehouse.Open(ctx, whCfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWarehouse, fmt.Sprintf("open warehouse: %v", err), nil)
	}
	defer exec.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, job := range jobs {
		g.Go(func() error {
			run, err := runSuite(gctx, exec, job, suiteSettings{
				grains: grains,
				detail: opts.Detail,
				failed: opts.Failed,
				logger: logger.WithFields(loglib.Fields{loglib.SuiteField: job.suite.Name}),
			})
			if err != nil {
				return err
			}
			report.Suites[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWarehouse, err.Error(), nil)
	}

	report.FinishedAt = opts.clock.Now().UTC()
	report.DurationMS = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
	logger.Info("run finished", loglib.Fields{
		"suites":      len(report.Suites),
		"failed":      report.FailedSuites(),
		"duration_ms": report.DurationMS,
	})

	return outputRun(formatter, report)
}

type suiteSettings struct {
	grains *grain.Table
	detail bool
	failed string
	logger loglib.Logger
}

// hasStatusColumn reports whether q produces column as a target or derived
// status. Result columns are matched case-insensitively.
func hasStatusColumn(q *compiler.Query, column string) bool {
	match := func(c string) bool { return strings.EqualFold(c, column) }
	return slices.ContainsFunc(q.TargetIDs(), match) || slices.ContainsFunc(q.DerivedColumns(), match)
}

func runSuite(ctx context.Context, exec warehouse.Executor, job suiteJob, s suiteSettings) (SuiteRun, error) {
	q := job.query
	s.logger.Debug("executing query", loglib.Fields{"targets": len(q.Targets)})
	table, err := exec.Query(ctx, q.SQL)
	if err != nil {
		return SuiteRun{}, fmt.Errorf("%s: execute query: %w", job.path, err)
	}

	in := results.Interpret(table, job.suite, results.Options{
		Detail: s.detail,
		Grains: s.grains,
		Logger: s.logger,
	})
	run := SuiteRun{
		Suite:         job.suite.Name,
		Path:          job.path,
		Records:       in.AggregateCount,
		FailedRecords: in.FailedRecordCount,
		Summary:       results.Summary(in),
		Metrics:       results.ComputeMetrics(in),
		Lists:         in.Lists,
		Warnings:      append(append([]string{}, q.Warnings...), in.Warnings...),
	}
	if s.detail {
		run.Failures = results.Report(in)
		run.FailingKeys = results.FailingRecordKeys(in)
	}
	if s.failed != "" {
		rows, err := results.FailedRecords(table, s.failed)
		if err != nil {
			return SuiteRun{}, fmt.Errorf("%s: %w", job.path, err)
		}
		run.FailedRows = rows
	}
	return run, nil
}

func outputRun(f *OutputFormatter, report *RunReport) error {
	failed := report.FailedSuites()
	message := fmt.Sprintf("%d of %d suite(s) have failing records", failed, len(report.Suites))

	if f.IsJSON() {
		if failed > 0 {
			return f.Failure(report, ErrCodeDataFailures, message)
		}
		return f.Success(report)
	}

	w := f.Writer
	fmt.Fprintf(w, "Run %s (%s, %s, %d suite(s), %dms)\n",
		report.RunID, report.Warehouse, report.Dialect, len(report.Suites), report.DurationMS)
	for _, s := range report.Suites {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s: %d record(s), %d failed, pass rate %.2f%%\n",
			mark(s.FailedRecords == 0), s.Suite, s.Records, s.FailedRecords, s.Metrics.OverallPassRate)
		for _, warning := range s.Warnings {
			f.Warn("%s: %s", s.Suite, warning)
		}

		rows := make([][]string, 0, len(s.Summary))
		for _, r := range s.Summary {
			rows = append(rows, []string{
				r.ID, r.Type, r.Columns, r.Status,
				fmt.Sprintf("%d/%d (%.2f%%)", r.UnexpectedCount, r.ElementCount, r.UnexpectedPercent),
			})
		}
		f.Table("  ", []string{"ID", "TYPE", "COLUMNS", "STATUS", "UNEXPECTED"}, rows)

		for _, l := range s.Lists {
			fmt.Fprintf(w, "  list %s: %d record(s)\n", l.Name, l.Count)
			if f.Verbose && l.Count > 0 {
				fmt.Fprintf(w, "    %s\n", strings.Join(l.RecordKeys, ", "))
			}
		}

		if len(s.Failures) > 0 {
			fmt.Fprintln(w, "  failures:")
			rows := make([][]string, 0, len(s.Failures))
			for _, r := range s.Failures {
				rows = append(rows, []string{r.ExpectationID, r.Column, r.RecordKey, formatValue(r.UnexpectedValue)})
			}
			f.Table("    ", []string{"ID", "COLUMN", "RECORD", "VALUE"}, rows)
		}
		if f.Verbose && len(s.FailingKeys) > 0 {
			fmt.Fprintf(w, "  failing records: %s\n", strings.Join(s.FailingKeys, ", "))
		}

		if t := s.FailedRows; t != nil {
			fmt.Fprintf(w, "  failed rows: %d\n", len(t.Rows))
			rows := make([][]string, 0, len(t.Rows))
			for _, row := range t.Rows {
				cells := make([]string, len(row))
				for i, v := range row {
					cells[i] = formatValue(v)
				}
				rows = append(rows, cells)
			}
			if len(rows) > 0 {
				f.Table("    ", t.Columns, rows)
			}
		}
	}

	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "✗ %s\n", message)
		return NewExitError(ExitFailure, message)
	}
	fmt.Fprintln(w, "✓ All suites passed")
	return nil
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(x)
	default:
		return fmt.Sprint(x)
	}
}
