package fuzz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"satfuzz/internal/proc"
)

// DefaultSolverSubcommand is inserted before the artifact paths.
const DefaultSolverSubcommand = "solve"

// Solver runs the solver under test.
//
// The returned verdict is SAT or UNSAT. Any other exit code is reported as a
// *Failure of kind ErrSolverInvalidCode.
type Solver interface {
	Solve(ctx context.Context, formulaPath, resultPath string) (Verdict, error)
}

// ProcessSolver invokes the solver under test as
//
//	<Path> [Subcommand] <formula> <result>
type ProcessSolver struct {
	Path       string
	Subcommand string
	WorkDir    string

	Runner  proc.Runner
	Timeout time.Duration
}

// Command returns the exact invocation for the given artifact paths.
func (s *ProcessSolver) Command(formulaPath, resultPath string) proc.Command {
	args := make([]string, 0, 3)
	if s.Subcommand != "" {
		args = append(args, s.Subcommand)
	}
	args = append(args, formulaPath, resultPath)
	return proc.Command{Path: s.Path, Args: args, Dir: s.WorkDir, Timeout: s.Timeout}
}

// Solve implements Solver.
func (s *ProcessSolver) Solve(ctx context.Context, formulaPath, resultPath string) (Verdict, error) {
	runner := s.Runner
	if runner == nil {
		runner = proc.Exec{}
	}

	// A stale solution from the previous seed must never be mistaken for
	// this iteration's output.
	if err := os.Remove(resultPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return VerdictUnknown, &Failure{Kind: ErrSolverInvalidCode, ExitCode: -1, Cause: fmt.Errorf("reset result artifact: %w", err)}
	}

	cmd := s.Command(formulaPath, resultPath)
	res, err := runner.Run(ctx, cmd)
	if err != nil {
		if isCancellation(ctx, err) {
			return VerdictUnknown, err
		}
		return VerdictUnknown, stageFailure(ErrSolverInvalidCode, res, err)
	}

	v := VerdictFromExitCode(res.ExitCode)
	if v == VerdictUnknown {
		return v, stageFailure(ErrSolverInvalidCode, res, fmt.Errorf("%s exited with code %d", cmd, res.ExitCode))
	}
	return v, nil
}
