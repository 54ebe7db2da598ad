package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"MemeCurator/internal/app"
	"MemeCurator/internal/config"
	"MemeCurator/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, logOut io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		logger := logging.NewWithHandler("info", "text", logOut, nil)
		logger.Error("application stopped", "error", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "memecurator",
		Short:         "Curate one meme per cycle from subreddits and post it to a channel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), onceCmd(), historyCmd())
	return root
}

// bootstrap loads configuration and builds the application with the
// activity log attached to the logger.
func bootstrap(cmd *cobra.Command) (*app.Application, func(), error) {
	cfg := config.Load()
	activity := logging.NewActivityLog(cfg.Logging.ActivitySize)
	logger := logging.NewWithHandler(cfg.Logging.Level, cfg.Logging.Format, os.Stdout, activity)

	application, err := app.New(cmd.Context(), cfg, logger, activity)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		return nil, nil, err
	}
	cleanup := func() {
		if err := application.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	return application, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run cycles on the configured interval and expose the status server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return application.Serve(cmd.Context())
		},
	}
}

func onceCmd() *cobra.Command {
	var printReport bool
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single curation cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, runErr := application.RunOnce(cmd.Context())
			if printReport {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&printReport, "report", false, "print the cycle report as JSON")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the persisted history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			history, err := application.History(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, history)
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
