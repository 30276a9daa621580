package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"CrossSentinel/internal/metrics"
	"CrossSentinel/internal/runner"
	"CrossSentinel/internal/scheduler"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:          "crosssentinel",
		Short:        "Golden/death cross signal bot with RSI and volume confirmation",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "configuration file path (default $CONFIG_PATH or configs/config.yaml)")

	rootCmd.AddCommand(newRunCmd(&cfgPath))
	rootCmd.AddCommand(newServeCmd(&cfgPath))
	rootCmd.AddCommand(newAnalyzeCmd(&cfgPath))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Analyze every configured symbol once and notify signals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			report := a.runner.Run(ctx, a.cfg.Symbols)
			return report.Err()
		},
	}
}

func newServeCmd(cfgPath *string) *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis on a cron schedule and answer Telegram commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			sched := scheduler.NewScheduler(ctx, a.runner, a.cfg.Symbols, a.log)
			if err := sched.Register(a.cfg.Schedule.Cron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			if a.telegram != nil {
				go a.telegram.StartPolling(ctx, sched.HandleCommand)
				a.log.Info("telegram polling started")
			}

			var srv *metrics.Server
			if a.cfg.Metrics.Addr != "" {
				srv = metrics.NewServer(a.cfg.Metrics.Addr, a.registry, a.metrics, a.log)
				srv.Start()
			}

			if runOnStart || os.Getenv("RUN_ON_START") == "true" {
				a.log.Info("run on start enabled, executing batch now")
				go sched.RunNow()
			}

			a.log.Info("CrossSentinel is running. Press Ctrl+C to stop.")
			<-ctx.Done()
			a.log.Info("shutdown signal received, stopping...")

			if srv != nil {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.log.WithError(err).Warn("metrics server shutdown")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run one batch immediately after start")
	return cmd
}

func newAnalyzeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze SYMBOL...",
		Short: "Evaluate symbols and print the indicator breakdown without notifying",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext()
			defer cancel()

			outcomes := make([]runner.Outcome, 0, len(args))
			var errs []error
			for _, symbol := range args {
				o := a.runner.Analyze(ctx, strings.ToUpper(symbol))
				outcomes = append(outcomes, o)
				if o.Status == runner.StatusFailed {
					errs = append(errs, fmt.Errorf("%s: %w", o.Symbol, o.Err))
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderAnalysis(outcomes))
			return errors.Join(errs...)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crosssentinel %s\n", version)
		},
	}
}
