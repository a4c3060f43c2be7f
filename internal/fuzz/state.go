package fuzz

import "fmt"

// RunState is the controller's state.
//
//	RUNNING -> RUNNING | COMPLETED | ABORTED | INTERRUPTED
type RunState string

const (
	StateRunning     RunState = "RUNNING"
	StateCompleted   RunState = "COMPLETED"
	StateAborted     RunState = "ABORTED"
	StateInterrupted RunState = "INTERRUPTED"
)

// IsTerminal reports whether no further transition is possible.
func (s RunState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateAborted, StateInterrupted:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to RunState) bool {
	if from != StateRunning {
		return false
	}
	switch to {
	case StateRunning, StateCompleted, StateAborted, StateInterrupted:
		return true
	default:
		return false
	}
}

func transition(cur *RunState, to RunState) error {
	if !isAllowedTransition(*cur, to) {
		return fmt.Errorf("disallowed run transition: %s -> %s", *cur, to)
	}
	*cur = to
	return nil
}
