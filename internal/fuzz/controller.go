package fuzz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config is the fixed configuration of a run.
type Config struct {
	Spec GeneratorSpec

	// Start and End bound the seed range [Start, End).
	Start Seed
	End   Seed

	FormulaPath string
	ResultPath  string
	LogPath     string
}

// Components are the collaborators the controller drives.
type Components struct {
	Generator Generator
	Solver    Solver
	Confirmer Confirmer

	// Verifier is optional. When nil, SAT verdicts are accepted as reported.
	Verifier SolutionVerifier

	Observers []Observer
}

// Report summarizes a finished run.
type Report struct {
	State RunState
	Mode  Mode
	Start Seed
	End   Seed

	// NextSeed is the first seed that did not complete. For a completed run
	// it equals End; after an abort it is the failing seed.
	NextSeed Seed

	Iterations []IterationRecord
	Counts     map[Outcome]int

	// Failure is set when State is StateAborted.
	Failure *Failure
}

// Completed returns the number of iterations that finished without a fatal
// outcome.
func (r Report) Completed() int {
	return r.Counts[OutcomeSatAccepted] + r.Counts[OutcomeUnsatConfirmed]
}

// Controller runs the fuzzing loop. A Controller is single-use.
type Controller struct {
	cfg   Config
	comp  Components
	seq   *Sequencer
	state RunState
}

// NewController validates cfg and comp. Nothing is executed until Run.
func NewController(cfg Config, comp Components) (*Controller, error) {
	if cfg.Spec.Executable == "" {
		return nil, errors.New("generator spec is required")
	}
	if cfg.FormulaPath == "" {
		return nil, errors.New("formula path is required")
	}
	if cfg.ResultPath == "" {
		return nil, errors.New("result path is required")
	}
	if comp.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if comp.Solver == nil {
		return nil, errors.New("solver is required")
	}
	if comp.Confirmer == nil {
		return nil, errors.New("confirmer is required")
	}
	seq, err := NewSequencer(cfg.Start, cfg.End)
	if err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg, comp: comp, seq: seq, state: StateRunning}, nil
}

// State returns the current run state.
func (c *Controller) State() RunState { return c.state }

// Run executes iterations until the seed range is exhausted, a fatal outcome
// occurs, or ctx is cancelled.
//
// The error is nil for a completed run, a *Failure for an aborted run, and
// wraps ErrInterrupted (and the context error) for an interrupted one.
func (c *Controller) Run(ctx context.Context) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.state != StateRunning {
		return Report{}, fmt.Errorf("controller already finished (%s)", c.state)
	}

	rep := Report{
		Mode:   c.cfg.Spec.Mode,
		Start:  c.cfg.Start,
		End:    c.cfg.End,
		Counts: map[Outcome]int{},
	}

	for {
		if err := ctx.Err(); err != nil {
			return c.finish(rep, StateInterrupted, fmt.Errorf("%w: %w", ErrInterrupted, err))
		}
		seed, ok := c.seq.Next()
		if !ok {
			rep.NextSeed = c.cfg.End
			return c.finish(rep, StateCompleted, nil)
		}
		rep.NextSeed = seed

		c.notifyStarted(seed)
		it, err := c.iterate(ctx, seed)
		if err != nil {
			// Cancelled mid-iteration: the seed did not complete.
			return c.finish(rep, StateInterrupted, fmt.Errorf("%w at seed %d: %w", ErrInterrupted, seed, err))
		}

		rep.Iterations = append(rep.Iterations, IterationRecord{Seed: it.Seed, Verdict: it.Verdict, Outcome: it.Outcome})
		rep.Counts[it.Outcome]++
		c.notifyFinished(it)

		if it.Outcome.Fatal() {
			rep.Failure = it.Failure
			return c.finish(rep, StateAborted, it.Failure)
		}
		if err := transition(&c.state, StateRunning); err != nil {
			return rep, err
		}
	}
}

// iterate runs one loop pass. A non-nil error means the pass was cancelled;
// fatal outcomes are reported through the returned Iteration.
func (c *Controller) iterate(ctx context.Context, seed Seed) (Iteration, error) {
	it := Iteration{Seed: seed, Timings: make(map[Stage]time.Duration, 3)}

	t0 := time.Now()
	err := c.comp.Generator.Generate(ctx, c.cfg.Spec, seed, c.cfg.FormulaPath)
	it.Timings[StageGenerator] = time.Since(t0)
	if err != nil {
		return c.fail(ctx, it, ErrGeneratorFailure, err)
	}

	t0 = time.Now()
	verdict, err := c.comp.Solver.Solve(ctx, c.cfg.FormulaPath, c.cfg.ResultPath)
	it.Timings[StageSolver] = time.Since(t0)
	if err == nil && verdict == VerdictUnknown {
		err = &Failure{Kind: ErrSolverInvalidCode, ExitCode: -1, Cause: errors.New("solver reported no verdict")}
	}
	if err != nil {
		return c.fail(ctx, it, ErrSolverInvalidCode, err)
	}
	it.Verdict = verdict

	switch verdict {
	case VerdictSat:
		if c.comp.Verifier != nil {
			t0 = time.Now()
			err = c.comp.Verifier.CheckSat(ctx, c.cfg.FormulaPath, c.cfg.ResultPath)
			it.Timings[StageChecker] = time.Since(t0)
			if err != nil {
				return c.fail(ctx, it, ErrSolutionRejected, err)
			}
		}
		it.Outcome = OutcomeSatAccepted
	case VerdictUnsat:
		t0 = time.Now()
		err = c.comp.Confirmer.ConfirmUnsat(ctx, c.cfg.FormulaPath)
		it.Timings[StageTrusted] = time.Since(t0)
		if err != nil {
			return c.fail(ctx, it, ErrContradiction, err)
		}
		it.Outcome = OutcomeUnsatConfirmed
	}
	return it, nil
}

// fail turns a stage error into a fatal Iteration, or returns the error
// unchanged if it is a cancellation. A *Failure is fatal even when ctx was
// cancelled in the meantime: the stage finished and reported it.
func (c *Controller) fail(ctx context.Context, it Iteration, kind error, err error) (Iteration, error) {
	var f *Failure
	if errors.As(err, &f) && f != nil {
		cp := *f
		f = &cp
	} else if isCancellation(ctx, err) {
		return it, err
	} else {
		f = &Failure{ExitCode: -1, Cause: err}
	}
	f.Kind = kind
	f.Seed = it.Seed
	f.Mode = c.cfg.Spec.Mode
	f.FormulaPath = c.cfg.FormulaPath
	f.ResultPath = c.cfg.ResultPath
	f.LogPath = c.cfg.LogPath

	it.Outcome = OutcomeOf(kind)
	it.Failure = f
	return it, nil
}

func (c *Controller) finish(rep Report, to RunState, err error) (Report, error) {
	if terr := transition(&c.state, to); terr != nil {
		return rep, terr
	}
	rep.State = c.state
	for _, o := range c.comp.Observers {
		o.RunFinished(rep)
	}
	return rep, err
}

func (c *Controller) notifyStarted(seed Seed) {
	for _, o := range c.comp.Observers {
		o.IterationStarted(seed)
	}
}

func (c *Controller) notifyFinished(it Iteration) {
	for _, o := range c.comp.Observers {
		o.IterationFinished(it)
	}
}
