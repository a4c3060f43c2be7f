package fuzz

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLogObserver_ProgressLineCarriesSeedAndVerdict(t *testing.T) {
	logger, hook := test.NewNullLogger()
	o := NewLogObserver(logger, ModeSgenUnsat)

	o.IterationFinished(Iteration{Seed: 12, Verdict: VerdictUnsat, Outcome: OutcomeUnsatConfirmed})

	e := hook.LastEntry()
	if e == nil {
		t.Fatalf("no log entry")
	}
	if e.Level != logrus.InfoLevel || e.Message != "unsat, checked" {
		t.Fatalf("unexpected entry: %s %q", e.Level, e.Message)
	}
	if e.Data["seed"] != 12 || e.Data["verdict"] != "UNSAT" || e.Data["mode"] != "sgen-unsat" {
		t.Fatalf("unexpected fields: %v", e.Data)
	}
}

func TestLogObserver_AbortReportsReproFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	o := NewLogObserver(logger, ModeBiere)

	f := &Failure{
		Kind:        ErrContradiction,
		Seed:        9,
		Mode:        ModeBiere,
		FormulaPath: "/w/tmp.cnf",
		ResultPath:  "/w/tmp.sol",
		LogPath:     "/w/tmp.log",
		ExitCode:    10,
		Cause:       errors.New("trusted solver answered SAT"),
	}
	o.RunFinished(Report{State: StateAborted, Mode: ModeBiere, NextSeed: 9, Failure: f})

	e := hook.LastEntry()
	if e == nil || e.Level != logrus.ErrorLevel {
		t.Fatalf("expected error entry, got %+v", e)
	}
	if e.Message != "run aborted: INVALID UNSAT" {
		t.Fatalf("message: %q", e.Message)
	}
	for k, want := range map[string]any{"seed": 9, "formula": "/w/tmp.cnf", "log": "/w/tmp.log", "exit_code": 10} {
		if e.Data[k] != want {
			t.Fatalf("field %s: got %v want %v", k, e.Data[k], want)
		}
	}
}

func TestLogObserver_CompletionIsInfo(t *testing.T) {
	logger, hook := test.NewNullLogger()
	o := NewLogObserver(logger, ModeBiere)
	o.RunFinished(Report{State: StateCompleted, Counts: map[Outcome]int{OutcomeSatAccepted: 3}})
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.InfoLevel || e.Data["sat"] != 3 {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestFailure_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	f := &Failure{Kind: ErrSolverInvalidCode, Seed: 1, Mode: ModeXor, ExitCode: 3, Cause: cause}
	if !errors.Is(f, ErrSolverInvalidCode) || !errors.Is(f, cause) {
		t.Fatalf("Unwrap must expose kind and cause")
	}
	want := "solver returned invalid exit code: seed=1 mode=xor exit_code=3: boom"
	if f.Error() != want {
		t.Fatalf("Error():\n got %q\nwant %q", f.Error(), want)
	}
}

func TestOutcomeOf(t *testing.T) {
	cases := map[error]Outcome{
		ErrGeneratorFailure:  OutcomeGeneratorFailure,
		ErrSolverInvalidCode: OutcomeSolverInvalidCode,
		ErrContradiction:     OutcomeUnsatContradicted,
		ErrSolutionRejected:  OutcomeSolutionRejected,
	}
	for kind, want := range cases {
		if got := OutcomeOf(kind); got != want || !got.Fatal() {
			t.Fatalf("OutcomeOf(%v) = %q", kind, got)
		}
	}
	if OutcomeSatAccepted.Fatal() || OutcomeUnsatConfirmed.Fatal() {
		t.Fatalf("accepted outcomes must not be fatal")
	}
}
