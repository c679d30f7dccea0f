package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
)

// CommandConfig is a resolved launch command.
type CommandConfig struct {
	Binary string
	Args   []string
}

// Command builds the launch line for exp:
//
//	<launcher> [launcher args...] -np <P> <solver> <GridX> <GridY> <Iterations>
func Command(cfg RunConfig, exp Experiment) CommandConfig {
	args := make([]string, 0, len(cfg.LauncherArgs)+6)
	args = append(args, cfg.LauncherArgs...)
	args = append(args,
		"-np", strconv.Itoa(exp.NP),
		cfg.Solver,
		strconv.Itoa(exp.GridX),
		strconv.Itoa(exp.GridY),
		strconv.Itoa(exp.Iterations),
	)

	return CommandConfig{Binary: cfg.Launcher, Args: args}
}

// Build runs the optional pre-sweep build command, streaming its output
// to w. An empty command is a no-op.
func Build(
	ctx context.Context,
	logger *slog.Logger,
	w io.Writer,
	command []string,
) error {
	if len(command) == 0 {
		return nil
	}

	if command[0] == "" {
		return errors.New("build command has an empty program name")
	}

	logger.InfoContext(ctx, "building solver",
		slog.Any("command", command),
	)

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build %v: %w", command, err)
	}

	logger.InfoContext(ctx, "solver built")

	return nil
}
