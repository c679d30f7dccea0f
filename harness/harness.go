package harness

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Invoke waits for the child's stdio to close
// after the context kills it.
const waitDelay = 5 * time.Second

// RunConfig holds the invocation settings shared by every experiment.
type RunConfig struct {
	Launcher     string
	LauncherArgs []string
	Solver       string
	Env          []string
	Timeout      time.Duration
}

// Runner launches the solver once per experiment.
type Runner struct {
	cfg    RunConfig
	Logger *slog.Logger
}

// NewRunner creates a Runner. Env is appended to the inherited environment.
func NewRunner(cfg RunConfig, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		Logger: logger.With(slog.String("solver", cfg.Solver)),
	}
}

// Invoke runs exp to completion and classifies the result. It never
// returns an error: every failure is reported through the Outcome.
func (r *Runner) Invoke(ctx context.Context, exp Experiment) Outcome {
	runCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	cc := Command(r.cfg, exp)
	cmd := exec.CommandContext(runCtx, cc.Binary, cc.Args...)
	cmd.WaitDelay = waitDelay

	if len(r.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), r.cfg.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := r.Logger.With(
		slog.Int("np", exp.NP),
		slog.Int("grid", exp.GridX),
	)
	logger.DebugContext(ctx, "starting solver",
		slog.String("launcher", cc.Binary),
		slog.Any("args", cc.Args),
	)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	out := Outcome{ExitCode: 0, Stderr: stderr.String(), Elapsed: elapsed}

	if err != nil {
		out.Err = err
		out.ExitCode = -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		}

		out.Kind = ProcessError
		if r.cfg.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) &&
			ctx.Err() == nil {
			out.Kind = Timeout
			out.Err = context.DeadlineExceeded
		}

		logger.DebugContext(ctx, "solver failed",
			slog.String("kind", out.Kind.String()),
			slog.Int("exit_code", out.ExitCode),
			slog.Duration("elapsed", elapsed),
		)

		return out
	}

	fields, ok := ParseDataLine(stdout.String())
	if !ok {
		out.Kind = MissingData

		logger.DebugContext(ctx, "solver printed no DATA line",
			slog.Int("stdout_bytes", stdout.Len()),
		)

		return out
	}

	out.Kind = Success
	out.Fields = fields

	logger.DebugContext(ctx, "solver finished",
		slog.Duration("elapsed", elapsed),
	)

	return out
}
