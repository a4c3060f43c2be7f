package fuzz

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Observer is notified of loop progress. Observers must not block; they run
// on the loop's goroutine between iterations.
type Observer interface {
	IterationStarted(seed Seed)
	IterationFinished(it Iteration)
	RunFinished(rep Report)
}

// LogObserver writes one progress line per iteration and a summary at the
// end of the run.
type LogObserver struct {
	log  logrus.FieldLogger
	mode Mode
}

// NewLogObserver returns a LogObserver tagging every entry with mode.
func NewLogObserver(log logrus.FieldLogger, mode Mode) *LogObserver {
	return &LogObserver{log: log, mode: mode}
}

func (o *LogObserver) IterationStarted(seed Seed) {
	o.log.WithFields(logrus.Fields{"seed": int(seed), "mode": o.mode.String()}).Debug("fuzzing seed")
}

func (o *LogObserver) IterationFinished(it Iteration) {
	entry := o.log.WithFields(logrus.Fields{
		"seed":    int(it.Seed),
		"mode":    o.mode.String(),
		"verdict": it.Verdict.String(),
	})
	switch it.Outcome {
	case OutcomeSatAccepted:
		entry.Info("satisfiable")
	case OutcomeUnsatConfirmed:
		entry.Info("unsat, checked")
	default:
		if it.Failure != nil {
			failureEntry(entry, it.Failure).Error(it.Failure.Kind.Error())
		}
	}
}

func (o *LogObserver) RunFinished(rep Report) {
	entry := o.log.WithFields(logrus.Fields{
		"state":     string(rep.State),
		"mode":      rep.Mode.String(),
		"start":     int(rep.Start),
		"end":       int(rep.End),
		"next_seed": int(rep.NextSeed),
		"sat":       rep.Counts[OutcomeSatAccepted],
		"unsat":     rep.Counts[OutcomeUnsatConfirmed],
	})
	switch rep.State {
	case StateCompleted:
		entry.Info("fuzz budget completed, no divergence found")
	case StateInterrupted:
		entry.Warn("run interrupted")
	case StateAborted:
		msg := "run aborted"
		if rep.Failure != nil && errors.Is(rep.Failure, ErrContradiction) {
			msg = "run aborted: INVALID UNSAT"
		}
		if rep.Failure != nil {
			entry = failureEntry(entry, rep.Failure)
		}
		entry.Error(msg)
	}
}

func failureEntry(entry *logrus.Entry, f *Failure) *logrus.Entry {
	fields := logrus.Fields{
		"kind":      f.Kind.Error(),
		"seed":      int(f.Seed),
		"formula":   f.FormulaPath,
		"result":    f.ResultPath,
		"exit_code": f.ExitCode,
	}
	if f.LogPath != "" {
		fields["log"] = f.LogPath
	}
	if f.TimedOut {
		fields["timed_out"] = true
	}
	if f.Stderr != "" {
		fields["stderr"] = f.Stderr
	}
	if f.Cause != nil {
		fields["cause"] = f.Cause.Error()
	}
	return entry.WithFields(fields)
}
