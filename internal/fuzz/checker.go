package fuzz

import (
	"context"
	"fmt"
	"time"

	"satfuzz/internal/proc"
)

// DefaultCheckSubcommand is the solver subcommand that validates a solution
// file against a formula.
const DefaultCheckSubcommand = "check"

// SolutionVerifier validates the solution the solver under test wrote for a
// SAT verdict.
type SolutionVerifier interface {
	CheckSat(ctx context.Context, formulaPath, resultPath string) error
}

// ProcessSolutionChecker runs <Path> <Subcommand> <formula> <result> and
// accepts the solution on exit code 0.
type ProcessSolutionChecker struct {
	Path       string
	Subcommand string
	WorkDir    string

	Runner  proc.Runner
	Timeout time.Duration
}

// Command returns the exact invocation for the given artifact paths.
func (c *ProcessSolutionChecker) Command(formulaPath, resultPath string) proc.Command {
	args := make([]string, 0, 3)
	if c.Subcommand != "" {
		args = append(args, c.Subcommand)
	}
	args = append(args, formulaPath, resultPath)
	return proc.Command{Path: c.Path, Args: args, Dir: c.WorkDir, Timeout: c.Timeout}
}

// CheckSat implements SolutionVerifier.
func (c *ProcessSolutionChecker) CheckSat(ctx context.Context, formulaPath, resultPath string) error {
	runner := c.Runner
	if runner == nil {
		runner = proc.Exec{}
	}
	cmd := c.Command(formulaPath, resultPath)
	res, err := runner.Run(ctx, cmd)
	if err != nil {
		if isCancellation(ctx, err) {
			return err
		}
		return stageFailure(ErrSolutionRejected, res, err)
	}
	if res.ExitCode != 0 {
		return stageFailure(ErrSolutionRejected, res, fmt.Errorf("%s exited with code %d", cmd, res.ExitCode))
	}
	return nil
}
