package state

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// FailureRecorder writes run.json and failure.json records.
//
// Callers provide Run metadata and the triggering error; the recorder
// classifies the error and persists the Failure record using Store.
type FailureRecorder struct {
	Store *Store
}

// NewRunID returns a random 128-bit hex run identifier.
func (r *FailureRecorder) NewRunID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func (r *FailureRecorder) StartRun(run Run) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	if run.StartTime.IsZero() {
		run.StartTime = time.Now().UTC()
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	return r.Store.SaveRun(run)
}

// RecordFailure classifies err, copies its artifacts into the run store and
// persists failure.json. The saved record is returned.
func (r *FailureRecorder) RecordFailure(runID string, err error) (Failure, error) {
	if r == nil || r.Store == nil {
		return Failure{}, errors.New("Store is required")
	}
	f, ferr := failureFromError(err)
	if ferr != nil {
		return Failure{}, ferr
	}
	if f.FormulaPath != "" || f.ResultPath != "" || f.LogPath != "" {
		kept, perr := r.Store.PreserveArtifacts(runID, f.FormulaPath, f.ResultPath, f.LogPath)
		f.Artifacts = kept
		if perr != nil {
			if serr := r.Store.SaveFailure(runID, f); serr != nil {
				return f, errors.Join(perr, serr)
			}
			return f, perr
		}
	}
	if err := r.Store.SaveFailure(runID, f); err != nil {
		return f, err
	}
	return f, nil
}
