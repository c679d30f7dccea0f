// Package sweep drives a scaling study: grid size in the outer loop,
// processor count in the inner loop, one solver process at a time.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/weiihann/scalebench/config"
	"github.com/weiihann/scalebench/harness"
	"github.com/weiihann/scalebench/metrics"
)

// Result field positions within a DATA line.
const (
	fieldTime       = 3
	fieldThroughput = 5
)

// ErrMalformedResult is returned when a DATA line is present but its
// time or throughput field is not a number. It aborts the sweep.
var ErrMalformedResult = errors.New("malformed solver result")

// Invoker runs one experiment.
type Invoker interface {
	Invoke(ctx context.Context, exp harness.Experiment) harness.Outcome
}

// RowWriter persists one result row.
type RowWriter interface {
	WriteRow(fields []string) error
}

// Summary describes a finished (or aborted) sweep.
type Summary struct {
	Measurements []harness.Measurement
	Succeeded    int
	Failed       map[harness.Kind]int
}

// Controller runs a sweep.
type Controller struct {
	cfg     config.Sweep
	invoker Invoker
	writer  RowWriter
	out     io.Writer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Controller. out receives console progress; m may be nil.
func New(
	cfg config.Sweep,
	invoker Invoker,
	writer RowWriter,
	out io.Writer,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Controller {
	return &Controller{
		cfg:     cfg.Clone(),
		invoker: invoker,
		writer:  writer,
		out:     out,
		logger:  logger,
		metrics: m,
	}
}

// Plan lists every experiment of cfg in sweep order.
func Plan(cfg config.Sweep) []harness.Experiment {
	exps := make([]harness.Experiment, 0, len(cfg.GridSizes)*len(cfg.Processors))

	for _, g := range cfg.GridSizes {
		for _, np := range cfg.Processors {
			exps = append(exps, harness.Experiment{
				NP:         np,
				GridX:      g,
				GridY:      g,
				Iterations: cfg.Iterations,
			})
		}
	}

	return exps
}

// Speedup is the serial time over the parallel time. It is 1 at np == 1
// and 0 when timeSec is not positive.
func Speedup(np int, timeSec, tSerial float64) float64 {
	if np == 1 {
		return 1.0
	}

	if timeSec > 0 {
		return tSerial / timeSec
	}

	return 0
}

// Run executes the sweep. Failed experiments are reported and skipped;
// a malformed result, a write failure or a cancelled ctx stops the run.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Failed: make(map[harness.Kind]int)}

	fmt.Fprintf(c.out, "Starting Benchmark... Saving to %s\n", c.cfg.OutputPath)

	var tSerial float64

	for i, exp := range Plan(c.cfg) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if i%len(c.cfg.Processors) == 0 {
			fmt.Fprintf(c.out, "\n--- Testing Grid Size: %dx%d ---\n", exp.GridX, exp.GridY)

			tSerial = 0.0
		}

		fmt.Fprintf(c.out, "Running with NP=%d... ", exp.NP)

		outcome := c.invoker.Invoke(ctx, exp)
		c.metrics.ObserveOutcome(outcome.Kind.String(), outcome.Elapsed.Seconds())

		if !outcome.OK() {
			if err := ctx.Err(); err != nil {
				fmt.Fprintln(c.out, "Cancelled.")

				return summary, err
			}

			c.reportFailure(ctx, exp, outcome)
			summary.Failed[outcome.Kind]++

			continue
		}

		if err := c.writer.WriteRow(outcome.Fields); err != nil {
			return summary, fmt.Errorf("persist %s: %w", exp, err)
		}

		m, err := measure(exp, outcome.Fields)
		if err != nil {
			fmt.Fprintln(c.out)

			return summary, fmt.Errorf("%s: %w", exp, err)
		}

		if exp.NP == 1 {
			tSerial = m.TimeSec
		}

		m.Speedup = Speedup(exp.NP, m.TimeSec, tSerial)

		fmt.Fprintf(c.out, "Done. Time=%.4fs | Speedup=%.2fx | GFLOPs/s=%.2f\n",
			m.TimeSec, m.Speedup, m.GFLOPsPerSec)

		c.metrics.ObserveResult(exp.NP, exp.GridX, m.TimeSec, m.GFLOPsPerSec, m.Speedup)

		summary.Measurements = append(summary.Measurements, m)
		summary.Succeeded++
	}

	fmt.Fprintf(c.out, "\nBenchmark finished. Data saved to %s\n", c.cfg.OutputPath)

	return summary, nil
}

func (c *Controller) reportFailure(
	ctx context.Context,
	exp harness.Experiment,
	outcome harness.Outcome,
) {
	fmt.Fprintf(c.out, "Failed (%s).\n", outcome.Reason())

	attrs := []any{
		slog.Int("np", exp.NP),
		slog.Int("grid", exp.GridX),
		slog.String("kind", outcome.Kind.String()),
		slog.Int("exit_code", outcome.ExitCode),
		slog.Duration("elapsed", outcome.Elapsed),
	}

	if outcome.Err != nil {
		attrs = append(attrs, slog.String("error", outcome.Err.Error()))
	}

	if outcome.Stderr != "" {
		attrs = append(attrs, slog.String("stderr", outcome.Stderr))
	}

	c.logger.WarnContext(ctx, fmt.Sprintf("error running NP=%d", exp.NP), attrs...)
}

// measure parses the display-only numbers out of a row.
func measure(exp harness.Experiment, fields []string) (harness.Measurement, error) {
	if len(fields) <= fieldThroughput {
		return harness.Measurement{}, fmt.Errorf(
			"%w: got %d fields, want at least %d",
			ErrMalformedResult, len(fields), fieldThroughput+1,
		)
	}

	timeSec, err := strconv.ParseFloat(fields[fieldTime], 64)
	if err != nil {
		return harness.Measurement{}, fmt.Errorf(
			"%w: time %q: %v", ErrMalformedResult, fields[fieldTime], err,
		)
	}

	rate, err := strconv.ParseFloat(fields[fieldThroughput], 64)
	if err != nil {
		return harness.Measurement{}, fmt.Errorf(
			"%w: throughput %q: %v", ErrMalformedResult, fields[fieldThroughput], err,
		)
	}

	return harness.Measurement{
		Experiment:   exp,
		Fields:       fields,
		TimeSec:      timeSec,
		GFLOPsPerSec: rate,
	}, nil
}
