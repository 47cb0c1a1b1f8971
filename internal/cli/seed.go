package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ledgerd/ledgerd/internal/manifest"
	"github.com/ledgerd/ledgerd/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <manifest>",
		Short: "Apply a CUE seed manifest to the database",
		Long: `Apply a CUE seed manifest to the database.

The manifest describes users, categories, accounts and recurrence rules
by name; it is validated against the embedded schema before anything is
written. Rows whose names already exist are left alone, so re-applying
the same manifest is harmless.

The manifest argument may be a single .cue file or a directory holding
a CUE package.

Example:
  ledgerd seed --db ./ledgerd.db ./seeds/household.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSeed(opts *SeedOptions, manifestPath string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose, slog.LevelWarn)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
	data, err := m.SeedData()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifest data", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := st.ApplySeed(ctx, data)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to apply seed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]int{
			"users_created":      result.UsersCreated,
			"categories_created": result.CategoriesCreated,
			"accounts_created":   result.AccountsCreated,
			"rules_created":      result.RulesCreated,
			"skipped":            result.Skipped,
		})
	}
	fmt.Fprintf(formatter.Writer,
		"Seeded %d user(s), %d category(ies), %d account(s), %d rule(s); %d already present\n",
		result.UsersCreated, result.CategoriesCreated,
		result.AccountsCreated, result.RulesCreated, result.Skipped)
	return nil
}
