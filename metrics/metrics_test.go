package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOutcome(t *testing.T) {
	m := New()

	m.ObserveOutcome("success", 1.5)
	m.ObserveOutcome("success", 0.5)
	m.ObserveOutcome("timeout", 30)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Experiments.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Experiments.WithLabelValues("timeout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Experiments.WithLabelValues("missing data")))
}

func TestObserveResult(t *testing.T) {
	m := New()

	m.ObserveResult(2, 256, 6.0, 8.33, 1.67)

	assert.Equal(t, 6.0, testutil.ToFloat64(m.SolverTime.WithLabelValues("2", "256")))
	assert.Equal(t, 8.33, testutil.ToFloat64(m.Throughput.WithLabelValues("2", "256")))
	assert.Equal(t, 1.67, testutil.ToFloat64(m.Speedup.WithLabelValues("2", "256")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveOutcome("success", 1)
		m.ObserveResult(1, 1, 1, 1, 1)
	})
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveOutcome("success", 2)
	m.ObserveResult(1, 512, 10.0, 5.0, 1.0)

	path := filepath.Join(t.TempDir(), "scalebench.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `scalebench_experiments_total{outcome="success"} 1`)
	assert.Contains(t, text, `scalebench_speedup_ratio{grid="512",np="1"} 1`)
}
