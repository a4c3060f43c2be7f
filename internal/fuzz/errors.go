package fuzz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"satfuzz/internal/proc"
)

// Failure kinds. Every kind is fatal to the run.
var (
	// ErrGeneratorFailure: the generator did not produce a formula. This is a
	// configuration or environment problem, not a solver bug.
	ErrGeneratorFailure = errors.New("generator failure")

	// ErrSolverInvalidCode: the solver under test exited with neither the SAT
	// nor the UNSAT code.
	ErrSolverInvalidCode = errors.New("solver returned invalid exit code")

	// ErrContradiction: the trusted solver did not confirm an UNSAT claim.
	ErrContradiction = errors.New("trusted solver contradicts UNSAT verdict")

	// ErrSolutionRejected: the solution checker rejected a SAT solution.
	ErrSolutionRejected = errors.New("solution rejected")

	// ErrInterrupted: the run was cancelled from outside.
	ErrInterrupted = errors.New("run interrupted")
)

// Failure is a fatal iteration outcome carrying everything needed to
// reproduce it.
//
// Components fill Kind, ExitCode, TimedOut and Cause; the Controller adds the
// seed, mode and artifact paths before reporting it.
type Failure struct {
	Kind error

	Seed Seed
	Mode Mode

	FormulaPath string
	ResultPath  string
	LogPath     string

	// ExitCode is the raw exit code of the process that failed, or -1 when
	// there was none (start failure, timeout, in-process error).
	ExitCode int

	TimedOut bool

	// Stderr holds the head of the failing process's standard error, if any.
	Stderr string

	Cause error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	if f.Kind != nil {
		b.WriteString(f.Kind.Error())
	} else {
		b.WriteString("failure")
	}
	fmt.Fprintf(&b, ": seed=%d mode=%s exit_code=%d", f.Seed, f.Mode, f.ExitCode)
	if f.TimedOut {
		b.WriteString(" timed_out=true")
	}
	if f.FormulaPath != "" {
		fmt.Fprintf(&b, " formula=%s", f.FormulaPath)
	}
	if f.Cause != nil {
		fmt.Fprintf(&b, ": %v", f.Cause)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (f *Failure) Unwrap() []error {
	if f == nil {
		return nil
	}
	if f.Cause == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Cause}
}

// stageFailure builds the component-level part of a Failure from a process
// result and the error (if any) the runner returned.
func stageFailure(kind error, res proc.Result, cause error) *Failure {
	f := &Failure{
		Kind:     kind,
		ExitCode: res.ExitCode,
		TimedOut: res.TimedOut || errors.Is(cause, proc.ErrTimeout),
		Stderr:   strings.TrimSpace(string(res.Stderr)),
		Cause:    cause,
	}
	return f
}

// isCancellation reports whether err stems from the caller cancelling ctx,
// as opposed to a per-invocation timeout.
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
