package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"satfuzz/internal/fuzz"
)

// RunKey identifies a run configuration. It excludes everything that varies
// between otherwise identical runs (run id, timestamps, paths).
func RunKey(mode fuzz.Mode, start, end fuzz.Seed) string {
	return fmt.Sprintf("%s:%d:%d", mode, start, end)
}

// Recorder is a fuzz.Observer that collects trace events in memory.
//
// Recording never fails; the trace is canonicalized when it is built, so
// the order events arrive in does not matter.
type Recorder struct {
	mu     sync.Mutex
	runKey string
	events []Event
}

var _ fuzz.Observer = (*Recorder)(nil)

func NewRecorder(runKey string) *Recorder { return &Recorder{runKey: runKey} }

func (r *Recorder) IterationStarted(fuzz.Seed) {}

func (r *Recorder) IterationFinished(it fuzz.Iteration) {
	kind, ok := eventKind(it.Outcome)
	if !ok {
		return
	}
	ev := Event{Kind: kind, Seed: int(it.Seed)}
	if it.Verdict != fuzz.VerdictUnknown {
		ev.Verdict = it.Verdict.String()
	}
	if it.Failure != nil {
		ev.Reason = "exit_code=" + strconv.Itoa(it.Failure.ExitCode)
		if it.Failure.TimedOut {
			ev.Reason = "timed_out"
		}
	}
	r.record(ev)
}

func (r *Recorder) RunFinished(rep fuzz.Report) {
	r.record(Event{Kind: EventRunFinished, Seed: int(rep.NextSeed), Reason: string(rep.State)})
}

func (r *Recorder) record(ev Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all recorded events.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Trace builds a canonical IterationTrace from the recorded events.
func (r *Recorder) Trace() IterationTrace {
	tr := IterationTrace{RunKey: r.runKey, Events: r.Snapshot()}
	tr.Canonicalize()
	return tr
}

// WriteFile writes the canonical trace JSON to path, replacing any previous
// content. It returns the trace hash.
func (r *Recorder) WriteFile(path string) (string, error) {
	b, err := r.Trace().CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("encode trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create trace dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write trace: %w", err)
	}
	return ComputeTraceHash(b), nil
}

func eventKind(o fuzz.Outcome) (EventKind, bool) {
	switch o {
	case fuzz.OutcomeSatAccepted:
		return EventSeedAccepted, true
	case fuzz.OutcomeUnsatConfirmed:
		return EventUnsatConfirmed, true
	case fuzz.OutcomeUnsatContradicted:
		return EventUnsatContradicted, true
	case fuzz.OutcomeGeneratorFailure:
		return EventGeneratorFailed, true
	case fuzz.OutcomeSolverInvalidCode:
		return EventSolverInvalid, true
	case fuzz.OutcomeSolutionRejected:
		return EventSolutionRejected, true
	default:
		return "", false
	}
}
