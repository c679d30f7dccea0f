// Package metrics records per-experiment results as Prometheus metrics
// so a sweep can be scraped through node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scalebench"

// Metrics holds the collectors for one sweep. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Experiments  *prometheus.CounterVec
	SolverTime   *prometheus.GaugeVec
	Throughput   *prometheus.GaugeVec
	Speedup      *prometheus.GaugeVec
	WallDuration prometheus.Histogram
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Experiments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experiments_total",
			Help:      "Experiments run, by outcome",
		},
		[]string{"outcome"},
	)

	m.SolverTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solver_time_seconds",
			Help:      "Elapsed time reported by the solver",
		},
		[]string{"np", "grid"},
	)

	m.Throughput = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solver_gflops_per_second",
			Help:      "Throughput reported by the solver",
		},
		[]string{"np", "grid"},
	)

	m.Speedup = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "speedup_ratio",
			Help:      "Serial time divided by parallel time within one grid size",
		},
		[]string{"np", "grid"},
	)

	m.WallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock duration of each solver invocation",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		},
	)

	m.registry.MustRegister(
		m.Experiments,
		m.SolverTime,
		m.Throughput,
		m.Speedup,
		m.WallDuration,
	)

	return m
}

// ObserveOutcome counts one invocation and its wall-clock seconds.
func (m *Metrics) ObserveOutcome(outcome string, wallSeconds float64) {
	if m == nil {
		return
	}

	m.Experiments.WithLabelValues(outcome).Inc()
	m.WallDuration.Observe(wallSeconds)
}

// ObserveResult records the numbers of a successful experiment.
func (m *Metrics) ObserveResult(np, grid int, timeSec, gflopsPerSec, speedup float64) {
	if m == nil {
		return
	}

	labels := []string{strconv.Itoa(np), strconv.Itoa(grid)}
	m.SolverTime.WithLabelValues(labels...).Set(timeSec)
	m.Throughput.WithLabelValues(labels...).Set(gflopsPerSec)
	m.Speedup.WithLabelValues(labels...).Set(speedup)
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}

	return nil
}
