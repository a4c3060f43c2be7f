package state

import (
	"errors"
	"fmt"

	"satfuzz/internal/fuzz"
)

// SystemFailureError represents an internal failure around the loop, such as
// a store write that did not go through. Resumable.
type SystemFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *SystemFailureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("system failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("system failure: %s", e.Message)
}

func (e *SystemFailureError) Unwrap() error { return e.Cause }

// Failure kind codes as persisted in failure.json.
const (
	KindContradiction     = "Contradiction"
	KindSolverInvalidCode = "SolverInvalidCode"
	KindSolutionRejected  = "SolutionRejected"
	KindGeneratorFailure  = "GeneratorFailure"
	KindInterrupted       = "Interrupted"
	KindSystemFailure     = "SystemFailure"
)

// ReproCommand is the command line that re-runs exactly one seed.
func ReproCommand(mode fuzz.Mode, seed fuzz.Seed) string {
	return fmt.Sprintf("satfuzz -mode %d -start %d -iterations %d", int(mode), int(seed), int(seed)+1)
}

func failureFromError(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	if errors.Is(err, fuzz.ErrInterrupted) {
		return Failure{
			FailureClass: FailureClassSystem,
			Kind:         KindInterrupted,
			ExitCode:     -1,
			Message:      err.Error(),
			Resumable:    true,
		}, nil
	}

	var ff *fuzz.Failure
	if errors.As(err, &ff) && ff != nil {
		seed := int(ff.Seed)
		f := Failure{
			Seed:        &seed,
			Mode:        ff.Mode.String(),
			FormulaPath: ff.FormulaPath,
			ResultPath:  ff.ResultPath,
			LogPath:     ff.LogPath,
			ExitCode:    ff.ExitCode,
			TimedOut:    ff.TimedOut,
			Message:     ff.Error(),
			Repro:       ReproCommand(ff.Mode, ff.Seed),
		}
		switch {
		case errors.Is(ff, fuzz.ErrContradiction):
			f.FailureClass, f.Kind = FailureClassDivergence, KindContradiction
		case errors.Is(ff, fuzz.ErrSolverInvalidCode):
			f.FailureClass, f.Kind = FailureClassDivergence, KindSolverInvalidCode
		case errors.Is(ff, fuzz.ErrSolutionRejected):
			f.FailureClass, f.Kind = FailureClassDivergence, KindSolutionRejected
		case errors.Is(ff, fuzz.ErrGeneratorFailure):
			f.FailureClass, f.Kind, f.Resumable = FailureClassGenerator, KindGeneratorFailure, true
		default:
			f.FailureClass, f.Kind, f.Resumable = FailureClassSystem, KindSystemFailure, true
		}
		return f, nil
	}

	var sf *SystemFailureError
	if errors.As(err, &sf) && sf != nil {
		return Failure{
			FailureClass: FailureClassSystem,
			Kind:         nonEmptyOr(sf.Code, KindSystemFailure),
			ExitCode:     -1,
			Message:      nonEmptyOr(sf.Message, sf.Error()),
			Resumable:    true,
		}, nil
	}

	// Unknown error: most conservative resumable class.
	return Failure{
		FailureClass: FailureClassSystem,
		Kind:         KindSystemFailure,
		ExitCode:     -1,
		Message:      err.Error(),
		Resumable:    true,
	}, nil
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
