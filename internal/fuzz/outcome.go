package fuzz

import (
	"errors"
	"time"
)

// Outcome is the result of one loop pass.
type Outcome string

const (
	OutcomeSatAccepted       Outcome = "SAT-accepted"
	OutcomeUnsatConfirmed    Outcome = "UNSAT-confirmed"
	OutcomeUnsatContradicted Outcome = "UNSAT-contradicted"
	OutcomeGeneratorFailure  Outcome = "GeneratorFailure"
	OutcomeSolverInvalidCode Outcome = "SolverInvalidCode"
	OutcomeSolutionRejected  Outcome = "SolutionRejected"
)

// Fatal reports whether the outcome ends the run.
func (o Outcome) Fatal() bool {
	switch o {
	case OutcomeSatAccepted, OutcomeUnsatConfirmed:
		return false
	default:
		return true
	}
}

// OutcomeOf maps a failure kind to the outcome it produces.
func OutcomeOf(kind error) Outcome {
	switch {
	case errors.Is(kind, ErrGeneratorFailure):
		return OutcomeGeneratorFailure
	case errors.Is(kind, ErrSolverInvalidCode):
		return OutcomeSolverInvalidCode
	case errors.Is(kind, ErrContradiction):
		return OutcomeUnsatContradicted
	case errors.Is(kind, ErrSolutionRejected):
		return OutcomeSolutionRejected
	default:
		return ""
	}
}

// Stage names one external invocation within an iteration.
type Stage string

const (
	StageGenerator Stage = "generator"
	StageSolver    Stage = "solver"
	StageTrusted   Stage = "trusted"
	StageChecker   Stage = "checker"
)

// Iteration is the full record of one finished loop pass.
type Iteration struct {
	Seed    Seed
	Verdict Verdict
	Outcome Outcome

	// Timings holds the wall-clock duration of each stage that ran.
	Timings map[Stage]time.Duration

	// Failure is set for fatal outcomes.
	Failure *Failure
}

// IterationRecord is the timing-free summary of an Iteration kept in a
// Report. Two runs against deterministic tools produce equal records.
type IterationRecord struct {
	Seed    Seed
	Verdict Verdict
	Outcome Outcome
}
