package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"satfuzz/internal/fuzz"
)

// Run is the persistent metadata of one fuzzing attempt.
//
// Seeds cover [start_seed, end_seed). previous_run_id is null unless the run
// resumed another one.
type Run struct {
	RunID         string        `json:"run_id"`
	Mode          string        `json:"mode"`
	StartSeed     int           `json:"start_seed"`
	EndSeed       int           `json:"end_seed"`
	StartTime     time.Time     `json:"start_time"`
	Status        fuzz.RunState `json:"status"`
	PreviousRunID *string       `json:"previous_run_id"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if _, err := fuzz.ParseMode(r.Mode); err != nil {
		errs = append(errs, fmt.Errorf("invalid mode: %w", err))
	}
	if r.StartSeed < 0 {
		errs = append(errs, errors.New("start_seed must be >= 0"))
	}
	if r.EndSeed < r.StartSeed {
		errs = append(errs, errors.New("end_seed must be >= start_seed"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case fuzz.StateRunning, fuzz.StateCompleted, fuzz.StateAborted, fuzz.StateInterrupted:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.PreviousRunID != nil && strings.TrimSpace(*r.PreviousRunID) == "" {
		errs = append(errs, errors.New("previous_run_id must not be empty when provided"))
	}
	return errors.Join(errs...)
}

// Checkpoint is the durable resume point of a run: every seed below
// next_seed finished with an accepted outcome.
type Checkpoint struct {
	NextSeed  int       `json:"next_seed"`
	Completed int       `json:"completed"`
	Timestamp time.Time `json:"timestamp"`
}

func (c Checkpoint) Validate() error {
	var errs []error
	if c.NextSeed < 0 {
		errs = append(errs, errors.New("next_seed must be >= 0"))
	}
	if c.Completed < 0 {
		errs = append(errs, errors.New("completed must be >= 0"))
	}
	if c.Timestamp.IsZero() {
		errs = append(errs, errors.New("timestamp is required"))
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	// FailureClassDivergence: the solver under test disagreed with the
	// reference or broke its exit-code contract. Never resumable.
	FailureClassDivergence FailureClass = "divergence"

	// FailureClassGenerator: the generator failed. Resumable once the
	// environment is fixed.
	FailureClassGenerator FailureClass = "generator"

	// FailureClassSystem: interruption, crash or internal error. Resumable.
	FailureClassSystem FailureClass = "system"
)

// Failure is the recorded termination reason of a run.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Kind         string       `json:"kind"`
	Seed         *int         `json:"seed"`
	Mode         string       `json:"mode,omitempty"`
	FormulaPath  string       `json:"formula_path,omitempty"`
	ResultPath   string       `json:"result_path,omitempty"`
	LogPath      string       `json:"log_path,omitempty"`
	ExitCode     int          `json:"exit_code"`
	TimedOut     bool         `json:"timed_out"`
	Message      string       `json:"message"`
	Repro        string       `json:"repro,omitempty"`
	Artifacts    []string     `json:"artifacts"`
	Resumable    bool         `json:"resumable"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassDivergence, FailureClassGenerator, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.FailureClass == FailureClassDivergence && f.Resumable {
		errs = append(errs, errors.New("divergence failures are not resumable"))
	}
	if strings.TrimSpace(f.Kind) == "" {
		errs = append(errs, errors.New("kind is required"))
	}
	if f.Seed != nil && *f.Seed < 0 {
		errs = append(errs, errors.New("seed must be >= 0"))
	}
	if strings.TrimSpace(f.Message) == "" {
		errs = append(errs, errors.New("message is required"))
	}
	return errors.Join(errs...)
}
