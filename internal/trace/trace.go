// Package trace records the canonical, timing-free history of a fuzzing run.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// IterationTrace is the deterministic record of a run.
//
// Invariants:
//   - Captures RunKey and the ordered list of logical events.
//   - Contains verdicts and outcomes only; no timestamps, durations, paths or
//     error strings. Two runs of the same configuration against deterministic
//     tools produce byte-identical canonical JSON.
type IterationTrace struct {
	RunKey string
	Events []Event
}

// EventKind discriminates Event. The string values are part of the canonical
// bytes; do not rename.
type EventKind string

const (
	EventSeedAccepted      EventKind = "SeedAccepted"
	EventUnsatConfirmed    EventKind = "UnsatConfirmed"
	EventUnsatContradicted EventKind = "UnsatContradicted"
	EventGeneratorFailed   EventKind = "GeneratorFailed"
	EventSolverInvalid     EventKind = "SolverInvalid"
	EventSolutionRejected  EventKind = "SolutionRejected"
	EventRunFinished       EventKind = "RunFinished"
)

// Event is a single logical outcome.
type Event struct {
	Kind EventKind

	// Seed is the iteration seed. For EventRunFinished it is the next seed
	// that did not complete.
	Seed int

	// Verdict is the solver-under-test verdict, when one was obtained.
	Verdict string

	// Reason is a stable code: the terminal state for EventRunFinished, the
	// raw exit code for failures.
	Reason string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *IterationTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.RunKey == "" {
		return errors.New("runKey is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Seed < 0 {
			return fmt.Errorf("events[%d].seed must be >= 0", i)
		}
	}
	return nil
}

// Canonicalize stably sorts events by (seed, kind order, verdict, reason).
func (t *IterationTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.Seed != b.Seed {
			return a.Seed < b.Seed
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Verdict != b.Verdict {
			return a.Verdict < b.Verdict
		}
		return a.Reason < b.Reason
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventSeedAccepted:
		return 10
	case EventUnsatConfirmed:
		return 20
	case EventGeneratorFailed:
		return 30
	case EventSolverInvalid:
		return 40
	case EventSolutionRejected:
		return 50
	case EventUnsatContradicted:
		return 60
	case EventRunFinished:
		return 100
	default:
		return 1000
	}
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy to avoid mutating the caller's slice.
func (t IterationTrace) CanonicalJSON() ([]byte, error) {
	cp := IterationTrace{RunKey: t.RunKey, Events: make([]Event, len(t.Events))}
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&cp)
}

// Hash returns the sha256 hex of the canonical JSON bytes.
func (t IterationTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order.
func (t IterationTrace) MarshalJSON() ([]byte, error) {
	if t.RunKey == "" {
		return nil, errors.New("runKey is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"runKey":`)
	rk, _ := json.Marshal(t.RunKey)
	buf.Write(rk)
	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields. The seed is
// always present since 0 is a valid seed.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)
	fmt.Fprintf(&buf, `,"seed":%d`, e.Seed)
	if e.Verdict != "" {
		buf.WriteString(`,"verdict":`)
		vb, _ := json.Marshal(e.Verdict)
		buf.Write(vb)
	}
	if e.Reason != "" {
		buf.WriteString(`,"reason":`)
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
