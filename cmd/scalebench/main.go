// Package main provides the CLI entry point for scalebench, a strong
// scaling harness for MPI solvers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weiihann/scalebench/config"
	"github.com/weiihann/scalebench/harness"
	"github.com/weiihann/scalebench/metrics"
	"github.com/weiihann/scalebench/report"
	"github.com/weiihann/scalebench/sweep"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCmd(a)

	if err := root.ExecuteContext(ctx); err != nil {
		a.log().Error("scalebench failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

// app carries state shared between the root and its subcommands.
type app struct {
	cfgFile string
	verbose bool
	noColor bool
	logger  *slog.Logger
}

func (a *app) log() *slog.Logger {
	if a.logger == nil {
		a.logger = newLogger(os.Stderr, a.verbose, a.noColor)
	}

	return a.logger
}

func newLogger(w io.Writer, verbose, noColor bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "scalebench",
		Short: "Strong scaling harness for parallel solvers",
		Long: `Scalebench launches an MPI solver across a grid of processor counts
and problem sizes, collects the DATA line each run prints, and writes the
results to a CSV table while reporting speedup on the console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.logger = newLogger(cmd.ErrOrStderr(), a.verbose, a.noColor)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"YAML file with sweep settings")
	pf.BoolVarP(&a.verbose, "verbose", "v", false,
		"Enable debug logging")
	pf.BoolVar(&a.noColor, "no-color", false,
		"Disable colored log output")

	root.AddCommand(newRunCmd(a))

	return root
}

type runOptions struct {
	envFile    string
	summary    bool
	outputJSON bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scaling sweep",
		Long: `Run every (grid size, processor count) pair in order, one solver
process at a time. Failed runs are reported and skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}

			cfg, err := config.Load(viper.New(), cmd.Flags(), a.cfgFile)
			if err != nil {
				return err
			}

			return runSweep(cmd.Context(), a.log(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, opts)
		},
	}

	flags := cmd.Flags()
	config.RegisterFlags(flags)
	flags.StringVar(&opts.envFile, "env-file", ".env",
		"Dotenv file loaded before reading SCALEBENCH_* variables")
	flags.BoolVar(&opts.summary, "summary", false,
		"Print a per-grid speedup table after the sweep")
	flags.BoolVar(&opts.outputJSON, "json", false,
		"Print measurements as JSON after the sweep")

	return cmd
}

func runSweep(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	errOut io.Writer,
	cfg config.Sweep,
	opts runOptions,
) (err error) {
	logger.InfoContext(ctx, "starting sweep",
		slog.Any("processors", cfg.Processors),
		slog.Any("grid_sizes", cfg.GridSizes),
		slog.Int("iterations", cfg.Iterations),
		slog.String("launcher", cfg.Launcher),
		slog.String("solver", cfg.Solver),
		slog.Duration("timeout", cfg.Timeout),
	)

	if err := harness.Build(ctx, logger, errOut, cfg.BuildCommand); err != nil {
		return err
	}

	w, err := report.Create(cfg.OutputPath)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
	}

	runner := harness.NewRunner(harness.RunConfig{
		Launcher:     cfg.Launcher,
		LauncherArgs: cfg.LauncherArgs,
		Solver:       cfg.Solver,
		Env:          cfg.Env,
		Timeout:      cfg.Timeout,
	}, logger)

	summary, runErr := sweep.New(cfg, runner, w, out, logger, m).Run(ctx)

	if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.WarnContext(ctx, "metrics not written", slog.String("error", err.Error()))
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("sweep interrupted after %d rows: %w", w.Rows(), runErr)
		}

		return fmt.Errorf("sweep aborted: %w", runErr)
	}

	if opts.summary && len(summary.Measurements) > 0 {
		fmt.Fprintln(out)
		if err := report.Generate(out, summary.Measurements); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	if opts.outputJSON {
		if err := report.GenerateJSON(out, summary.Measurements); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	}

	failed := 0
	for _, n := range summary.Failed {
		failed += n
	}

	logger.InfoContext(ctx, "sweep complete",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", failed),
		slog.String("output", w.Path()),
	)

	return nil
}
