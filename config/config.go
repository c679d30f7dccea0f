// Package config loads the immutable sweep configuration from flags,
// environment variables, an optional YAML file and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// SCALEBENCH_ITERATIONS=500.
const EnvPrefix = "SCALEBENCH"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Sweep describes one scaling study. It is treated as a value: callers
// that keep it around should Clone it.
type Sweep struct {
	Processors   []int
	GridSizes    []int
	Iterations   int
	OutputPath   string
	Launcher     string
	LauncherArgs []string
	Solver       string
	Env          []string
	Timeout      time.Duration
	BuildCommand []string
	MetricsFile  string
}

// Default returns the sweep used when nothing is configured.
func Default() Sweep {
	return Sweep{
		Processors: []int{1, 2, 4, 8, 16, 32},
		GridSizes:  []int{256, 512, 1024, 2048, 4096},
		Iterations: 1000,
		OutputPath: "benchmark_results_final.csv",
		Launcher:   "mpirun",
		Solver:     "./heat_rewritten_correct",
	}
}

// Clone returns a deep copy so that later mutation of the source slices
// cannot leak into a running sweep.
func (s Sweep) Clone() Sweep {
	s.Processors = slices.Clone(s.Processors)
	s.GridSizes = slices.Clone(s.GridSizes)
	s.LauncherArgs = slices.Clone(s.LauncherArgs)
	s.Env = slices.Clone(s.Env)
	s.BuildCommand = slices.Clone(s.BuildCommand)

	return s
}

// Validate reports the first problem found in s.
func (s Sweep) Validate() error {
	if len(s.Processors) == 0 {
		return fmt.Errorf("%w: at least one processor count is required", ErrInvalid)
	}

	for _, np := range s.Processors {
		if np <= 0 {
			return fmt.Errorf("%w: processor count %d must be positive", ErrInvalid, np)
		}
	}

	if len(s.GridSizes) == 0 {
		return fmt.Errorf("%w: at least one grid size is required", ErrInvalid)
	}

	for _, g := range s.GridSizes {
		if g <= 0 {
			return fmt.Errorf("%w: grid size %d must be positive", ErrInvalid, g)
		}
	}

	switch {
	case s.Iterations <= 0:
		return fmt.Errorf("%w: iterations %d must be positive", ErrInvalid, s.Iterations)
	case s.OutputPath == "":
		return fmt.Errorf("%w: output path is empty", ErrInvalid)
	case s.Launcher == "":
		return fmt.Errorf("%w: launcher is empty", ErrInvalid)
	case s.Solver == "":
		return fmt.Errorf("%w: solver path is empty", ErrInvalid)
	case s.Timeout < 0:
		return fmt.Errorf("%w: timeout %s is negative", ErrInvalid, s.Timeout)
	}

	return nil
}

// flagKeys maps viper keys to their command-line flag names.
var flagKeys = map[string]string{
	"processors":    "processors",
	"grid_sizes":    "grid-sizes",
	"iterations":    "iterations",
	"output":        "output",
	"launcher":      "launcher",
	"launcher_args": "launcher-args",
	"solver":        "solver",
	"env":           "env",
	"timeout":       "timeout",
	"build_command": "build-command",
	"metrics_file":  "metrics-file",
}

// RegisterFlags adds the sweep flags to flags with the default values.
func RegisterFlags(flags *pflag.FlagSet) {
	def := Default()

	flags.IntSlice("processors", def.Processors,
		"Processor counts to sweep, in order")
	flags.IntSlice("grid-sizes", def.GridSizes,
		"Square grid sizes to sweep, in order")
	flags.Int("iterations", def.Iterations,
		"Solver iteration count")
	flags.StringP("output", "o", def.OutputPath,
		"CSV file to write (truncated on every run)")
	flags.String("launcher", def.Launcher,
		"Parallel launcher used to start the solver")
	flags.StringSlice("launcher-args", nil,
		"Extra launcher options placed before -np")
	flags.String("solver", def.Solver,
		"Path to the solver executable")
	flags.StringSlice("env", nil,
		"Extra KEY=VALUE pairs for the solver environment")
	flags.Duration("timeout", 0,
		"Per-experiment timeout (0 = wait forever)")
	flags.StringSlice("build-command", nil,
		"Command run once before the sweep, e.g. make")
	flags.String("metrics-file", "",
		"Write Prometheus metrics to this textfile after the sweep")
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default .env)
// into the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return fmt.Errorf("load %s: %w", p, err)
		}
	}

	return nil
}

// Load resolves a Sweep from v. Precedence is flag, environment, config
// file, default. flags and cfgFile are optional.
func Load(v *viper.Viper, flags *pflag.FlagSet, cfgFile string) (Sweep, error) {
	def := Default()

	v.SetDefault("processors", def.Processors)
	v.SetDefault("grid_sizes", def.GridSizes)
	v.SetDefault("iterations", def.Iterations)
	v.SetDefault("output", def.OutputPath)
	v.SetDefault("launcher", def.Launcher)
	v.SetDefault("solver", def.Solver)
	v.SetDefault("timeout", "0s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}

			if err := v.BindPFlag(key, f); err != nil {
				return Sweep{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)

		if err := v.ReadInConfig(); err != nil {
			return Sweep{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	processors, err := intSlice(v, "processors")
	if err != nil {
		return Sweep{}, err
	}

	grids, err := intSlice(v, "grid_sizes")
	if err != nil {
		return Sweep{}, err
	}

	s := Sweep{
		Processors:   processors,
		GridSizes:    grids,
		Iterations:   v.GetInt("iterations"),
		OutputPath:   v.GetString("output"),
		Launcher:     v.GetString("launcher"),
		LauncherArgs: v.GetStringSlice("launcher_args"),
		Solver:       v.GetString("solver"),
		Env:          v.GetStringSlice("env"),
		Timeout:      v.GetDuration("timeout"),
		BuildCommand: v.GetStringSlice("build_command"),
		MetricsFile:  v.GetString("metrics_file"),
	}

	if err := s.Validate(); err != nil {
		return Sweep{}, err
	}

	return s, nil
}

// intSlice accepts both real lists (flags, YAML) and the comma or space
// separated strings that arrive through environment variables.
func intSlice(v *viper.Viper, key string) ([]int, error) {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetIntSlice(key), nil
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '[' || r == ']'
	})

	out := make([]int, 0, len(parts))

	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not an integer", ErrInvalid, key, p)
		}

		out = append(out, n)
	}

	return out, nil
}
