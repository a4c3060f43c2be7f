package trace

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"satfuzz/internal/fuzz"
)

func TestCanonicalTraceStability_ByteForByte(t *testing.T) {
	trace1 := IterationTrace{
		RunKey: "biere:0:3",
		Events: []Event{
			{Kind: EventUnsatConfirmed, Seed: 1, Verdict: "UNSAT"},
			{Kind: EventSeedAccepted, Seed: 0, Verdict: "SAT"},
			{Kind: EventRunFinished, Seed: 3, Reason: "COMPLETED"},
			{Kind: EventSeedAccepted, Seed: 2, Verdict: "SAT"},
		},
	}
	trace2 := IterationTrace{
		RunKey: "biere:0:3",
		Events: []Event{
			{Kind: EventRunFinished, Seed: 3, Reason: "COMPLETED"},
			{Kind: EventSeedAccepted, Seed: 2, Verdict: "SAT"},
			{Kind: EventSeedAccepted, Seed: 0, Verdict: "SAT"},
			{Kind: EventUnsatConfirmed, Seed: 1, Verdict: "UNSAT"},
		},
	}

	b1, err := trace1.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (1): %v", err)
	}
	b2, err := trace2.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (2): %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected identical bytes\n1=%s\n2=%s", string(b1), string(b2))
	}
}

func TestCanonicalOrdering_SeedThenKind(t *testing.T) {
	tr := IterationTrace{
		RunKey: "xor:4:6",
		Events: []Event{
			{Kind: EventRunFinished, Seed: 5, Reason: "ABORTED"},
			{Kind: EventUnsatContradicted, Seed: 5, Verdict: "UNSAT", Reason: "exit_code=10"},
			{Kind: EventSeedAccepted, Seed: 4, Verdict: "SAT"},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"runKey":"xor:4:6","events":[` +
		`{"kind":"SeedAccepted","seed":4,"verdict":"SAT"},` +
		`{"kind":"UnsatContradicted","seed":5,"verdict":"UNSAT","reason":"exit_code=10"},` +
		`{"kind":"RunFinished","seed":5,"reason":"ABORTED"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestCanonicalJSON_DoesNotMutateCaller(t *testing.T) {
	tr := IterationTrace{
		RunKey: "k",
		Events: []Event{{Kind: EventSeedAccepted, Seed: 2}, {Kind: EventSeedAccepted, Seed: 1}},
	}
	if _, err := tr.CanonicalJSON(); err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	if tr.Events[0].Seed != 2 {
		t.Fatalf("caller slice was reordered: %+v", tr.Events)
	}
}

func TestHash_Deterministic(t *testing.T) {
	tr := IterationTrace{RunKey: "k", Events: []Event{{Kind: EventSeedAccepted, Seed: 0, Verdict: "SAT"}}}
	h1, err := tr.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := tr.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == "" || h1 != h2 {
		t.Fatalf("hash not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected sha256 hex, got %q", h1)
	}
}

func TestHash_ChangesWithVerdict(t *testing.T) {
	a := IterationTrace{RunKey: "k", Events: []Event{{Kind: EventSeedAccepted, Seed: 0, Verdict: "SAT"}}}
	b := IterationTrace{RunKey: "k", Events: []Event{{Kind: EventUnsatConfirmed, Seed: 0, Verdict: "UNSAT"}}}
	ha, _ := a.Hash()
	hb, _ := b.Hash()
	if ha == hb {
		t.Fatalf("different traces must hash differently")
	}
}

func TestValidate(t *testing.T) {
	if err := (&IterationTrace{}).Validate(); err == nil {
		t.Fatalf("expected missing runKey error")
	}
	tr := IterationTrace{RunKey: "k", Events: []Event{{Seed: 1}}}
	if _, err := tr.CanonicalJSON(); err == nil {
		t.Fatalf("expected missing kind error")
	}
	tr = IterationTrace{RunKey: "k", Events: []Event{{Kind: EventSeedAccepted, Seed: -1}}}
	if err := tr.Validate(); err == nil {
		t.Fatalf("expected negative seed error")
	}
}

func TestComputeTraceHash_Empty(t *testing.T) {
	if got := ComputeTraceHash(nil); got != "" {
		t.Fatalf("expected empty hash, got %q", got)
	}
}

func TestRunKey(t *testing.T) {
	if got := RunKey(fuzz.ModeSgenUnsat, 10, 20); got != "sgen-unsat:10:20" {
		t.Fatalf("RunKey = %q", got)
	}
}

func TestRecorder_MapsOutcomes(t *testing.T) {
	r := NewRecorder("biere:0:3")
	r.IterationStarted(0)
	r.IterationFinished(fuzz.Iteration{Seed: 0, Verdict: fuzz.VerdictSat, Outcome: fuzz.OutcomeSatAccepted})
	r.IterationFinished(fuzz.Iteration{Seed: 1, Verdict: fuzz.VerdictUnsat, Outcome: fuzz.OutcomeUnsatConfirmed})
	r.IterationFinished(fuzz.Iteration{
		Seed:    2,
		Outcome: fuzz.OutcomeGeneratorFailure,
		Failure: &fuzz.Failure{Kind: fuzz.ErrGeneratorFailure, ExitCode: 1, Cause: errors.New("boom")},
	})
	r.RunFinished(fuzz.Report{State: fuzz.StateAborted, NextSeed: 2})

	tr := r.Trace()
	want := []Event{
		{Kind: EventSeedAccepted, Seed: 0, Verdict: "SAT"},
		{Kind: EventUnsatConfirmed, Seed: 1, Verdict: "UNSAT"},
		{Kind: EventGeneratorFailed, Seed: 2, Reason: "exit_code=1"},
		{Kind: EventRunFinished, Seed: 2, Reason: "ABORTED"},
	}
	if len(tr.Events) != len(want) {
		t.Fatalf("events: got %+v", tr.Events)
	}
	for i := range want {
		if tr.Events[i] != want[i] {
			t.Fatalf("events[%d]: got %+v want %+v", i, tr.Events[i], want[i])
		}
	}
}

func TestRecorder_TimeoutReason(t *testing.T) {
	r := NewRecorder("k")
	r.IterationFinished(fuzz.Iteration{
		Seed:    3,
		Verdict: fuzz.VerdictUnsat,
		Outcome: fuzz.OutcomeUnsatContradicted,
		Failure: &fuzz.Failure{Kind: fuzz.ErrContradiction, ExitCode: -1, TimedOut: true},
	})
	if got := r.Trace().Events[0].Reason; got != "timed_out" {
		t.Fatalf("reason = %q", got)
	}
}

func TestRecorder_WriteFileIdempotent(t *testing.T) {
	record := func() *Recorder {
		r := NewRecorder("brummayer:0:2")
		r.IterationFinished(fuzz.Iteration{Seed: 1, Verdict: fuzz.VerdictSat, Outcome: fuzz.OutcomeSatAccepted})
		r.IterationFinished(fuzz.Iteration{Seed: 0, Verdict: fuzz.VerdictUnsat, Outcome: fuzz.OutcomeUnsatConfirmed})
		r.RunFinished(fuzz.Report{State: fuzz.StateCompleted, NextSeed: 2})
		return r
	}

	dir := t.TempDir()
	p1 := filepath.Join(dir, "a", "trace.json")
	p2 := filepath.Join(dir, "b", "trace.json")
	h1, err := record().WriteFile(p1)
	if err != nil {
		t.Fatalf("write 1: %v", err)
	}
	h2, err := record().WriteFile(p2)
	if err != nil {
		t.Fatalf("write 2: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash mismatch: %s vs %s", h1, h2)
	}

	b1, _ := os.ReadFile(p1)
	b2, _ := os.ReadFile(p2)
	if !bytes.Equal(b1, b2) {
		t.Fatalf("trace bytes differ\n1=%s\n2=%s", b1, b2)
	}
	if ComputeTraceHash(b1) != h1 {
		t.Fatalf("returned hash does not match file content")
	}
}
