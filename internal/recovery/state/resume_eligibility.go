package state

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"satfuzz/internal/fuzz"
)

// ResumeEligibilityChecker determines whether a new run may continue from a
// previous run.
//
// Rules:
//   - the previous run exists and used the same generator mode
//   - a recorded failure is resumable (a divergence must be investigated
//     before the loop moves past it)
//   - an aborted run has a failure record
//   - the checkpoint, if any, lies inside the previous run's seed range
//   - seeds remain below the requested end
type ResumeEligibilityChecker struct {
	Store *Store
}

type ResumeEligibilityRequest struct {
	// PreviousRunID is the run to continue.
	PreviousRunID string

	// Mode is the generator mode name of the new run.
	Mode string

	// EndSeed is the exclusive seed bound of the new run.
	EndSeed int

	// KeepEndSeed continues to the previous run's bound; EndSeed is ignored.
	KeepEndSeed bool
}

// ResumePoint is where an eligible resume starts.
type ResumePoint struct {
	Previous  Run
	NextSeed  int
	EndSeed   int
	Completed int
}

func (c *ResumeEligibilityChecker) Check(req ResumeEligibilityRequest) (ResumePoint, error) {
	if c == nil {
		return ResumePoint{}, errors.New("nil ResumeEligibilityChecker")
	}
	if c.Store == nil {
		return ResumePoint{}, errors.New("Store is required")
	}
	prevID := strings.TrimSpace(req.PreviousRunID)
	if prevID == "" {
		return ResumePoint{}, errors.New("previous run id is required for resume")
	}
	prev, err := c.Store.LoadRun(prevID)
	if err != nil {
		return ResumePoint{}, fmt.Errorf("previous run does not exist: %w", err)
	}
	if prev.Mode != req.Mode {
		return ResumePoint{}, fmt.Errorf("mode mismatch (prev=%s new=%s)", prev.Mode, req.Mode)
	}

	failure, ferr := c.Store.LoadFailure(prevID)
	switch {
	case ferr == nil:
		if !failure.Resumable {
			return ResumePoint{}, fmt.Errorf("previous run failure is not resumable (class=%s kind=%s); reproduce with: %s",
				failure.FailureClass, failure.Kind, failure.Repro)
		}
	case os.IsNotExist(ferr):
		if prev.Status == fuzz.StateAborted {
			return ResumePoint{}, errors.New("previous run aborted without a failure record")
		}
	default:
		return ResumePoint{}, fmt.Errorf("loading previous run failure: %w", ferr)
	}

	point := ResumePoint{Previous: prev, NextSeed: prev.StartSeed, EndSeed: req.EndSeed}
	if req.KeepEndSeed {
		point.EndSeed = prev.EndSeed
	}
	cp, cerr := c.Store.LoadCheckpoint(prevID)
	switch {
	case cerr == nil:
		if cp.NextSeed < prev.StartSeed || cp.NextSeed > prev.EndSeed {
			return ResumePoint{}, fmt.Errorf("checkpoint next_seed %d outside previous run range [%d, %d)",
				cp.NextSeed, prev.StartSeed, prev.EndSeed)
		}
		point.NextSeed = cp.NextSeed
		point.Completed = cp.Completed
	case os.IsNotExist(cerr):
		// No iteration completed; start over at the previous start seed.
	default:
		return ResumePoint{}, fmt.Errorf("loading previous run checkpoint: %w", cerr)
	}

	if point.NextSeed >= point.EndSeed {
		return ResumePoint{}, fmt.Errorf("nothing to resume: next seed %d is not below %d", point.NextSeed, point.EndSeed)
	}
	return point, nil
}
