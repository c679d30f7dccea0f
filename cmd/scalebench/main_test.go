package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with the test binary playing mpirun.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	stdout, _, err := executeCapture(t, args...)

	return stdout, err
}

// executeCapture is execute that also returns what was written to stderr.
func executeCapture(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	base := []string{
		"run",
		"--no-color",
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"--launcher", os.Args[0],
		"--launcher-args=-test.run=TestHelperProcess,--",
		"--env", "GO_WANT_HELPER_PROCESS=1",
		"--solver", "./heat",
	}

	var stdout, stderr bytes.Buffer

	root := newRootCmd(&app{})
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(base, args...))

	err := root.ExecuteContext(context.Background())
	t.Logf("stderr:\n%s", stderr.String())

	return stdout.String(), stderr.String(), err
}

func TestRunEndToEnd(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.csv")

	console, err := execute(t,
		"--processors", "1,2,4,8",
		"--grid-sizes", "256",
		"--output", out,
		"--summary",
	)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	// NP=4 exits non-zero and NP=8 prints no DATA line.
	assert.Equal(t,
		"NP,GridX,Iterations,Time_Sec,Total_GFLOPs,GFLOPs_Sec\n"+
			"1,256,1000,10.0,50.0,5.0\n"+
			"2,256,1000,6.0,50.0,8.33\n",
		string(data))

	assert.Contains(t, console, "Starting Benchmark... Saving to "+out)
	assert.Contains(t, console, "Running with NP=2... Done. Time=6.0000s | Speedup=1.67x | GFLOPs/s=8.33")
	assert.Contains(t, console, "Running with NP=4... Failed (exit status 1).")
	assert.Contains(t, console, "Running with NP=8... Failed (missing data).")
	assert.Contains(t, console, "Benchmark finished. Data saved to "+out)
	assert.Contains(t, console, "### Grid 256x256")
}

func TestRunConfigFileAndMetrics(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "results.csv")
	prom := filepath.Join(dir, "scalebench.prom")
	cfgPath := filepath.Join(dir, "sweep.yaml")

	cfg := fmt.Sprintf("processors: [1, 2]\ngrid_sizes: [64, 128]\niterations: 7\noutput: %s\nmetrics_file: %s\n",
		out, prom)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	_, err := execute(t, "--config", cfgPath, "--json")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"NP,GridX,Iterations,Time_Sec,Total_GFLOPs,GFLOPs_Sec\n"+
			"1,64,7,10.0,50.0,5.0\n"+
			"2,64,7,6.0,50.0,8.33\n"+
			"1,128,7,10.0,50.0,5.0\n"+
			"2,128,7,6.0,50.0,8.33\n",
		string(data))

	metricsText, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), `scalebench_experiments_total{outcome="success"} 4`)
}

func TestRunMalformedAborts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.csv")

	_, err := execute(t,
		"--processors", "1,16,2",
		"--grid-sizes", "256",
		"--output", out,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed solver result")

	data, readErr := os.ReadFile(out)
	require.NoError(t, readErr)
	assert.Equal(t,
		"NP,GridX,Iterations,Time_Sec,Total_GFLOPs,GFLOPs_Sec\n"+
			"1,256,1000,10.0,50.0,5.0\n"+
			"16,256,1000,quick,50.0,8.33\n",
		string(data))
}

func TestRunInvalidConfig(t *testing.T) {
	_, err := execute(t, "--iterations", "0", "--output", filepath.Join(t.TempDir(), "r.csv"))
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRunBuildFailureSkipsSweep(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	out := filepath.Join(t.TempDir(), "results.csv")

	_, stderr, err := executeCapture(t,
		"--output", out,
		"--build-command", sh+",-c,echo compiling heat solver; exit 2",
	)
	require.Error(t, err)
	assert.Contains(t, stderr, "compiling heat solver")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "output must not be created when the build fails")
}

// TestHelperProcess plays `mpirun -np P solver X Y I`. NP=4 crashes,
// NP=8 prints nothing useful and NP=16 prints a bad time field.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}

	if len(args) != 6 {
		os.Exit(2)
	}

	np, gridX, iters := args[1], args[3], args[5]

	switch np {
	case "1":
		fmt.Printf("DATA,1,%s,%s,10.0,50.0,5.0\n", gridX, iters)
	case "4":
		fmt.Fprintln(os.Stderr, "mpirun: rank 3 exited on signal 11")
		os.Exit(1)
	case "8":
		fmt.Println("warning: no result")
	case "16":
		fmt.Printf("DATA,16,%s,%s,quick,50.0,8.33\n", gridX, iters)
	default:
		fmt.Printf("DATA,%s,%s,%s,6.0,50.0,8.33\n", np, gridX, iters)
	}

	os.Exit(0)
}
