package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"satfuzz/internal/fuzz"
)

// Checkpointer is a fuzz.Observer that persists a checkpoint after every
// accepted iteration.
//
// It enforces the checkpoint rules:
//   - the iteration finished with a non-fatal outcome
//   - seeds advance strictly in order
//
// Observers cannot fail the loop, so the first error is kept and reported
// by Err.
type Checkpointer struct {
	store *Store
	runID string
	now   func() time.Time

	last      Checkpoint
	saved     bool
	completed int
	err       error
}

var _ fuzz.Observer = (*Checkpointer)(nil)

// NewCheckpointer returns a Checkpointer for runID. completed is the number
// of iterations already accounted for by a resumed run.
func NewCheckpointer(store *Store, runID string, completed int) (*Checkpointer, error) {
	if store == nil {
		return nil, errors.New("Store is required")
	}
	if strings.TrimSpace(runID) == "" {
		return nil, errors.New("runID is required")
	}
	if completed < 0 {
		return nil, errors.New("completed must be >= 0")
	}
	return &Checkpointer{store: store, runID: runID, now: time.Now, completed: completed}, nil
}

func (c *Checkpointer) IterationStarted(fuzz.Seed) {}

func (c *Checkpointer) IterationFinished(it fuzz.Iteration) {
	if c.err != nil || it.Outcome.Fatal() {
		return
	}
	next := int(it.Seed) + 1
	if c.saved && next <= c.last.NextSeed {
		c.err = fmt.Errorf("checkpoint out of order: seed %d after next_seed %d", it.Seed, c.last.NextSeed)
		return
	}
	cp := Checkpoint{NextSeed: next, Completed: c.completed + 1, Timestamp: c.now().UTC()}
	if err := c.store.SaveCheckpoint(c.runID, cp); err != nil {
		c.err = &SystemFailureError{Code: "CheckpointWrite", Message: err.Error(), Cause: err}
		return
	}
	c.last, c.saved = cp, true
	c.completed++
}

func (c *Checkpointer) RunFinished(fuzz.Report) {}

// Last returns the most recently saved checkpoint, if any.
func (c *Checkpointer) Last() (Checkpoint, bool) { return c.last, c.saved }

// Err returns the first checkpointing error.
func (c *Checkpointer) Err() error { return c.err }
