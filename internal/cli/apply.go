package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerd/ledgerd/internal/engine"
	"github.com/ledgerd/ledgerd/internal/ledger"
	"github.com/ledgerd/ledgerd/internal/store"
)

// asOfClock pins the engine's "today" for --as-of runs.
type asOfClock struct{ t time.Time }

func (c asOfClock) Now() time.Time { return c.t }

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database string
	AsOf     string
	DryRun   bool
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run one recurring-charge sweep",
		Long: `Run one recurring-charge generation sweep against the database.

Every active rule's missing occurrences between the stored watermark and
today are inserted, at most one per rule and period, and the watermark
advances to today. --as-of substitutes a different "today" for
deterministic backfills; --dry-run prints what a sweep would insert
without writing anything.

Example:
  ledgerd apply --db ./ledgerd.db
  ledgerd apply --db ./ledgerd.db --as-of 2024-03-15 --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", `treat this date (YYYY-MM-DD) as "today"`)
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report the sweep without writing")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runApply(opts *ApplyOptions, cmd *cobra.Command) error {
	configureLogging(opts.Verbose, slog.LevelWarn)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	engineOpts := []engine.EngineOption{}
	if opts.AsOf != "" {
		asOf, err := ledger.ParseDate(opts.AsOf)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --as-of date", err)
		}
		engineOpts = append(engineOpts, engine.WithClock(asOfClock{asOf}))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	eng := engine.New(st, engine.UUIDv7Generator{}, engineOpts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.DryRun {
		plan, err := eng.Plan(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "sweep plan failed", err)
		}
		return printPlan(formatter, plan)
	}

	report, err := eng.Apply(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "sweep failed", err)
	}
	return printReport(formatter, report)
}

func printReport(f *OutputFormatter, report engine.Report) error {
	if f.Format == "json" {
		return f.Success(report)
	}
	fmt.Fprintf(f.Writer, "Inserted %d transaction(s) across %d rule(s) (run %s)\n",
		report.Inserted, report.Rules, report.RunToken)
	if report.Existing > 0 || report.Skipped > 0 {
		fmt.Fprintf(f.Writer, "Left alone: %d existing, %d skipped by user\n",
			report.Existing, report.Skipped)
	}
	for _, warn := range report.Invalid {
		fmt.Fprintf(f.Writer, "Warning: rule %d (%s) skipped: %s\n",
			warn.RuleID, warn.Name, warn.Reason)
	}
	return nil
}

func printPlan(f *OutputFormatter, plan *engine.Plan) error {
	if f.Format == "json" {
		return f.Success(plan)
	}
	fmt.Fprintf(f.Writer, "Sweep plan for %s (watermark %s): %d insert(s)\n",
		plan.Today, plan.Watermark, plan.Inserts())
	for _, entry := range plan.Entries {
		fmt.Fprintf(f.Writer, "  %-6s  %s  %s  %s  %.2f\n",
			entry.Action, entry.Due, entry.PeriodKey, entry.RuleName, entry.Amount)
	}
	for _, warn := range plan.Invalid {
		fmt.Fprintf(f.Writer, "Warning: rule %d (%s) skipped: %s\n",
			warn.RuleID, warn.Name, warn.Reason)
	}
	return nil
}
