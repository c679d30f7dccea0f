// Package report persists sweep results as CSV and formats end-of-run
// summaries.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/weiihann/scalebench/harness"
)

// Generate writes a markdown speedup table per grid size for the given
// measurements, in the order they were taken.
func Generate(w io.Writer, results []harness.Measurement) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, "## Scaling Results")

	grid := -1

	for _, m := range results {
		if m.Experiment.GridX != grid {
			grid = m.Experiment.GridX

			fmt.Fprintln(w)
			fmt.Fprintf(w, "### Grid %dx%d\n", m.Experiment.GridX, m.Experiment.GridY)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "| NP | Time | Speedup | GFLOPs/s |")
			fmt.Fprintln(w, "|----|------|---------|----------|")
		}

		fmt.Fprintf(w, "| %d | %s | %.2fx | %.2f |\n",
			m.Experiment.NP,
			formatSeconds(m.TimeSec),
			m.Speedup,
			m.GFLOPsPerSec,
		)
	}

	return nil
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, results []harness.Measurement) error {
	if results == nil {
		results = []harness.Measurement{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%.1fms", s*1000)
	}

	return fmt.Sprintf("%.4fs", s)
}
