package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerd/ledgerd/internal/store"
)

// BackupOptions holds flags for the backup command.
type BackupOptions struct {
	*RootOptions
	Database string
	Dir      string
	Force    bool
	List     bool
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database",
		Long: `Snapshot the database into a date-stamped file via VACUUM INTO.

At most one snapshot is written per calendar day unless --force is set;
an existing snapshot from today is reported instead. Old snapshots
beyond the retention limit are pruned, oldest first.

Example:
  ledgerd backup --db ./ledgerd.db --dir ./backups
  ledgerd backup --db ./ledgerd.db --dir ./backups --list`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Dir, "dir", "backups", "backup directory")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "snapshot even if one exists from today")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list existing snapshots instead of writing one")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runBackup(opts *BackupOptions, cmd *cobra.Command) error {
	configureLogging(opts.Verbose, slog.LevelWarn)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.List {
		backups, err := store.ListBackups(opts.Dir)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list backups", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(backups)
		}
		if len(backups) == 0 {
			fmt.Fprintln(formatter.Writer, "No snapshots found")
			return nil
		}
		for _, b := range backups {
			fmt.Fprintf(formatter.Writer, "%s  %d bytes\n", b.FileName, b.Size)
		}
		return nil
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

	path, err := st.CreateBackup(ctx, opts.Dir, time.Now(), !opts.Force)
	if err != nil {
		return WrapExitError(ExitFailure, "backup failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"path": path})
	}
	fmt.Fprintf(formatter.Writer, "Snapshot at %s\n", path)
	return nil
}
