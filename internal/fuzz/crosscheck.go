package fuzz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"satfuzz/internal/proc"
)

// Reference is a trusted solver.
//
// Check solves the formula at formulaPath, writes its transcript to log and
// returns an exit code following the 10/20 convention. A non-nil error means
// no verdict could be obtained at all.
type Reference interface {
	Check(ctx context.Context, formulaPath string, log io.Writer) (int, error)
}

// Confirmer double-checks an UNSAT claim of the solver under test.
type Confirmer interface {
	ConfirmUnsat(ctx context.Context, formulaPath string) error
}

// ProcessReference runs a trusted solver binary as <Path> <formula>.
type ProcessReference struct {
	Path    string
	WorkDir string

	Runner  proc.Runner
	Timeout time.Duration
}

// Command returns the exact invocation for formulaPath, without stdout.
func (r *ProcessReference) Command(formulaPath string) proc.Command {
	return proc.Command{Path: r.Path, Args: []string{formulaPath}, Dir: r.WorkDir, Timeout: r.Timeout}
}

// Check implements Reference.
func (r *ProcessReference) Check(ctx context.Context, formulaPath string, log io.Writer) (int, error) {
	runner := r.Runner
	if runner == nil {
		runner = proc.Exec{}
	}
	cmd := r.Command(formulaPath)
	cmd.Stdout = log
	res, err := runner.Run(ctx, cmd)
	return res.ExitCode, err
}

// CrossChecker confirms UNSAT verdicts against a Reference, keeping the
// reference's transcript in LogPath for postmortem.
type CrossChecker struct {
	Reference Reference
	LogPath   string
}

// ConfirmUnsat implements Confirmer. Only exit code 20 confirms; anything
// else, including a failure to get a verdict, is ErrContradiction.
func (c *CrossChecker) ConfirmUnsat(ctx context.Context, formulaPath string) (err error) {
	if c.Reference == nil {
		return &Failure{Kind: ErrContradiction, ExitCode: -1, Cause: errors.New("no trusted solver configured")}
	}

	log := io.Discard
	if c.LogPath != "" {
		f, ferr := os.Create(c.LogPath)
		if ferr != nil {
			return &Failure{Kind: ErrContradiction, ExitCode: -1, Cause: fmt.Errorf("open log artifact: %w", ferr)}
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = &Failure{Kind: ErrContradiction, ExitCode: -1, Cause: fmt.Errorf("close log artifact: %w", cerr)}
			}
		}()
		log = f
	}

	code, cerr := c.Reference.Check(ctx, formulaPath, log)
	if cerr != nil {
		if isCancellation(ctx, cerr) {
			return cerr
		}
		res := proc.Result{ExitCode: code, TimedOut: errors.Is(cerr, context.DeadlineExceeded)}
		return stageFailure(ErrContradiction, res, cerr)
	}
	if code != ExitUnsat {
		return &Failure{
			Kind:     ErrContradiction,
			ExitCode: code,
			Cause:    fmt.Errorf("trusted solver answered %s (exit code %d) for a formula reported UNSAT", VerdictFromExitCode(code), code),
		}
	}
	return nil
}
