package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"RSSDigest/internal/app"
	"RSSDigest/internal/config"
	"RSSDigest/internal/infrastructure/lock"
	"RSSDigest/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, lock.ErrLocked) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "rssdigest",
		Short: "Build a topic-grouped HTML digest from RSS feeds",
		Long: `rssdigest fetches recent entries from the configured feeds, classifies
each one into a topic with an LLM endpoint pool, summarizes every topic and
writes a dated HTML report. Interrupted runs resume from the last checkpoint.

Without a subcommand it performs a run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDigest(cmd, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (or set "+config.PathEnv+")")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once, resuming from checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDigest(cmd, configPath)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := build(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			statuses, err := application.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range statuses {
				if s.Present {
					fmt.Fprintf(out, "%-12s present  %d items\n", s.Name, s.Items)
				} else {
					fmt.Fprintf(out, "%-12s absent\n", s.Name)
				}
			}
			return nil
		},
	}

	var resetAll bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the fetched and classified checkpoints",
		Long: `reset removes the resumable stage checkpoints so the next run starts from
ingestion. With --all the seen-links snapshot is removed too and the next run
uses the first-run lookback window.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := build(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer application.Close()
			return application.Reset(cmd.Context(), resetAll)
		},
	}
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "also remove the seen-links snapshot")

	root.AddCommand(runCmd, statusCmd, resetCmd)
	return root
}

func build(ctx context.Context, configPath string) (*app.Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format))
}

func runDigest(cmd *cobra.Command, configPath string) error {
	application, err := build(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer application.Close()

	res, err := application.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.ReportPath)
	return nil
}
