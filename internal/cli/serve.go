package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerd/ledgerd/internal/config"
	"github.com/ledgerd/ledgerd/internal/engine"
	"github.com/ledgerd/ledgerd/internal/server"
	"github.com/ledgerd/ledgerd/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ledger JSON API",
		Long: `Start the ledgerd JSON API server.

The server opens the SQLite database (creating it if it doesn't exist),
ensures the default catalog rows, optionally runs one recurring-charge
sweep, and serves the API until interrupted.

Configuration comes from an optional YAML file plus LEDGERD_* environment
overrides; flags on this command only choose the file.

Example:
  ledgerd serve
  ledgerd serve --config ./ledgerd.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	level, _ := cfg.Level() // Load already validated it
	configureLogging(opts.Verbose, level)

	slog.Info("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if seeded, err := st.EnsureDefaults(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to seed default catalog", err)
	} else if seeded {
		slog.Info("default catalog seeded")
	}

	if cfg.BackupDir != "" {
		if path, err := st.CreateBackup(ctx, cfg.BackupDir, time.Now(), true); err != nil {
			slog.Error("startup backup failed", "error", err)
		} else {
			slog.Info("startup backup ready", "path", path)
		}
	}

	eng := engine.New(st, engine.UUIDv7Generator{})

	if cfg.ApplyOnStart {
		report, err := eng.Apply(ctx)
		if err != nil {
			// The server is still useful without the sweep;
			// the API trigger can retry it.
			slog.Error("startup sweep failed", "error", err)
		} else {
			slog.Info("applied recurring transactions on startup",
				"inserted", report.Inserted,
				"run_token", report.RunToken,
			)
		}
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(st, eng, slog.Default()).Handler(),
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Addr, "db", cfg.DB)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving the ledger API on %s\n", cfg.Addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	if cfg.BackupDir != "" {
		if path, err := st.CreateBackup(context.Background(), cfg.BackupDir, time.Now(), true); err != nil {
			slog.Error("shutdown backup failed", "error", err)
		} else {
			slog.Info("shutdown backup ready", "path", path)
		}
	}

	slog.Info("server stopped gracefully")
	return nil
}
