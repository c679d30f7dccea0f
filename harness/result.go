// Package harness launches the external parallel solver for a single
// experiment and turns what it printed into a tagged Outcome.
package harness

import (
	"fmt"
	"time"
)

// Experiment is one (grid size, processor count) point of a sweep.
type Experiment struct {
	NP         int `json:"np"`
	GridX      int `json:"grid_x"`
	GridY      int `json:"grid_y"`
	Iterations int `json:"iterations"`
}

func (e Experiment) String() string {
	return fmt.Sprintf("np=%d grid=%dx%d iters=%d", e.NP, e.GridX, e.GridY, e.Iterations)
}

// Kind tags the result of an invocation.
type Kind int

const (
	// Success means the solver exited 0 and printed a DATA line.
	Success Kind = iota
	// ProcessError means the solver exited non-zero or never started.
	ProcessError
	// MissingData means the solver exited 0 without a DATA line.
	MissingData
	// Timeout means the per-experiment deadline expired.
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case ProcessError:
		return "process error"
	case MissingData:
		return "missing data"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is what one invocation produced. Fields is set only for Success
// and holds the solver's text verbatim.
type Outcome struct {
	Kind     Kind
	Fields   []string
	ExitCode int
	Stderr   string
	Err      error
	Elapsed  time.Duration
}

// OK reports whether the outcome carries a result.
func (o Outcome) OK() bool { return o.Kind == Success }

// Reason is a short human-readable description of a failed outcome.
func (o Outcome) Reason() string {
	switch o.Kind {
	case Success:
		return ""
	case ProcessError:
		if o.ExitCode >= 0 {
			return fmt.Sprintf("exit status %d", o.ExitCode)
		}

		if o.Err != nil {
			return o.Err.Error()
		}
	}

	return o.Kind.String()
}

// Measurement pairs a successful experiment with its raw fields and the
// numbers derived from them for display.
type Measurement struct {
	Experiment   Experiment `json:"experiment"`
	Fields       []string   `json:"fields"`
	TimeSec      float64    `json:"time_sec"`
	GFLOPsPerSec float64    `json:"gflops_per_sec"`
	Speedup      float64    `json:"speedup"`
}
