package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"satfuzz/internal/fuzz"
	"satfuzz/internal/metrics"
	"satfuzz/internal/proc"
	"satfuzz/internal/recovery/state"
	"satfuzz/internal/refsolver"
	"satfuzz/internal/trace"
)

type CLIResult struct {
	ExitCode int
	RunID    string
	Report   fuzz.Report

	// TraceHash is set when a trace was written.
	TraceHash string

	// Failure is the persisted failure record, if one was written.
	Failure *state.Failure
}

// Deps are the process-level collaborators of Execute.
type Deps struct {
	// Runner executes child processes. Defaults to proc.Exec.
	Runner proc.Runner

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Registry receives the run's metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry
}

// Execute runs a canonical invocation with default dependencies.
func Execute(ctx context.Context, inv CLIInvocation) (CLIResult, error) {
	return ExecuteWithDeps(ctx, inv, Deps{})
}

// ExecuteWithDeps maps a canonical CLIInvocation to a fuzzing run.
//
// Responsibilities:
//   - Record the run (and a resume link) in the run store before the loop.
//   - Wire components and observers into the Controller.
//   - Serve metrics beside the loop when requested.
//   - Write the trace, final status and failure record on every exit path.
//   - Translate the outcome to a semantic exit code.
func ExecuteWithDeps(ctx context.Context, inv CLIInvocation, deps Deps) (res CLIResult, execErr error) {
	res.ExitCode = ExitInternalError
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.Runner == nil {
		deps.Runner = proc.Exec{}
	}
	if deps.LogOutput == nil {
		deps.LogOutput = os.Stderr
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	logger := newLogger(inv, deps.LogOutput)

	st, err := state.NewStore(inv.WorkDir)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	rec := &state.FailureRecorder{Store: st}
	runID, err := rec.NewRunID()
	if err != nil {
		return res, fmt.Errorf("new run id: %w", err)
	}
	res.RunID = runID
	log := logger.WithField("run_id", runID)

	start, end := inv.Start, inv.End
	completed := 0
	var previousRunID *string
	if inv.Resume != "" {
		point, err := resolveResume(st, inv)
		if err != nil {
			log.WithError(err).Error("resume refused")
			res.ExitCode = ExitConfigError
			return res, err
		}
		prevID := point.Previous.RunID
		previousRunID = &prevID
		start, end, completed = point.NextSeed, point.EndSeed, point.Completed
		log.WithFields(logrus.Fields{
			"previous_run_id": prevID,
			"next_seed":       start,
			"end_seed":        end,
			"completed":       completed,
		}).Info("resuming run")
	}

	recorder := trace.NewRecorder(trace.RunKey(inv.Mode, fuzz.Seed(start), fuzz.Seed(end)))
	if inv.Trace.Enabled {
		defer func() {
			// Always finalize trace output, even on failure.
			hash, err := recorder.WriteFile(inv.Trace.Path)
			if err != nil {
				log.WithError(err).Error("writing trace")
				if execErr == nil {
					execErr = err
				}
				return
			}
			res.TraceHash = hash
			log.WithFields(logrus.Fields{"trace": inv.Trace.Path, "hash": hash}).Debug("trace written")
		}()
	}

	comp, err := buildComponents(inv, deps.Runner)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	collector, err := metrics.NewCollector(deps.Registry)
	if err != nil {
		return res, err
	}
	checkpointer, err := state.NewCheckpointer(st, runID, completed)
	if err != nil {
		return res, err
	}
	comp.Observers = []fuzz.Observer{
		fuzz.NewLogObserver(log, inv.Mode),
		recorder,
		collector,
		checkpointer,
	}

	spec, err := inv.Mode.Spec()
	if err != nil {
		res.ExitCode = ExitInvalidInvocation
		return res, err
	}
	ctrl, err := fuzz.NewController(fuzz.Config{
		Spec:        spec,
		Start:       fuzz.Seed(start),
		End:         fuzz.Seed(end),
		FormulaPath: inv.FormulaPath,
		ResultPath:  inv.ResultPath,
		LogPath:     inv.LogPath,
	}, comp)
	if err != nil {
		res.ExitCode = ExitInvalidInvocation
		return res, err
	}

	var ln net.Listener
	if inv.MetricsAddr != "" {
		ln, err = net.Listen("tcp", inv.MetricsAddr)
		if err != nil {
			res.ExitCode = ExitConfigError
			return res, fmt.Errorf("metrics listener: %w", err)
		}
	}

	if err := rec.StartRun(state.Run{
		RunID:         runID,
		Mode:          inv.Mode.String(),
		StartSeed:     start,
		EndSeed:       end,
		StartTime:     time.Now().UTC(),
		Status:        fuzz.StateRunning,
		PreviousRunID: previousRunID,
	}); err != nil {
		if ln != nil {
			_ = ln.Close()
		}
		res.ExitCode = ExitConfigError
		return res, fmt.Errorf("recording run: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			execErr = fmt.Errorf("panic: %v", r)
			_ = st.UpdateStatus(runID, fuzz.StateAborted)
			_, _ = rec.RecordFailure(runID, &state.SystemFailureError{Code: "Panic", Message: execErr.Error(), Cause: execErr})
		}
	}()

	log.WithFields(logrus.Fields{
		"mode":    spec.String(),
		"start":   start,
		"end":     end,
		"solver":  inv.Solver,
		"trusted": inv.Trusted,
		"workdir": inv.WorkDir,
	}).Info("starting fuzz run")

	rep, runErr, serveErr := runLoop(ctx, ctrl, ln, deps.Registry)
	res.Report = rep
	if serveErr != nil {
		log.WithError(serveErr).Error("metrics server failed")
	}

	status := rep.State
	if status == "" {
		status = fuzz.StateAborted
	}
	if err := st.UpdateStatus(runID, status); err != nil {
		log.WithError(err).Error("updating run status")
	}
	if cerr := checkpointer.Err(); cerr != nil {
		log.WithError(cerr).Warn("checkpointing failed; resume may repeat seeds")
	}

	if runErr != nil {
		f, ferr := rec.RecordFailure(runID, runErr)
		if ferr != nil {
			log.WithError(ferr).Error("recording failure")
		} else {
			res.Failure = &f
			entry := log.WithFields(logrus.Fields{"run_dir": st.RunDir(runID), "resumable": f.Resumable})
			if f.Repro != "" {
				entry = entry.WithField("repro", f.Repro)
			}
			if len(f.Artifacts) > 0 {
				entry = entry.WithField("artifacts", f.Artifacts)
			}
			entry.Info("failure recorded")
		}
	}

	res.ExitCode = exitCodeFor(runErr)
	if res.ExitCode == ExitInternalError {
		return res, runErr
	}
	return res, nil
}

// runLoop runs the controller and, when ln is set, the metrics endpoint
// beside it. The server is shut down as soon as the loop returns.
func runLoop(ctx context.Context, ctrl *fuzz.Controller, ln net.Listener, reg prometheus.Gatherer) (fuzz.Report, error, error) {
	if ln == nil {
		rep, err := ctrl.Run(ctx)
		return rep, err, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	var (
		rep    fuzz.Report
		runErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		rep, runErr = ctrl.Run(gctx)
		return nil
	})
	serveErr := g.Wait()
	return rep, runErr, serveErr
}

func buildComponents(inv CLIInvocation, runner proc.Runner) (fuzz.Components, error) {
	var reference fuzz.Reference
	if refsolver.IsBuiltin(inv.Trusted) {
		s, err := refsolver.Lookup(inv.Trusted, inv.Timeout)
		if err != nil {
			return fuzz.Components{}, err
		}
		reference = s
	} else {
		reference = &fuzz.ProcessReference{Path: inv.Trusted, WorkDir: inv.WorkDir, Runner: runner, Timeout: inv.Timeout}
	}

	for _, p := range []string{inv.FormulaPath, inv.ResultPath, inv.LogPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fuzz.Components{}, fmt.Errorf("artifact dir: %w", err)
		}
	}

	solver := &fuzz.ProcessSolver{
		Path:       inv.Solver,
		Subcommand: inv.SolverSubcommand,
		WorkDir:    inv.WorkDir,
		Runner:     runner,
		Timeout:    inv.Timeout,
	}
	comp := fuzz.Components{
		Generator: &fuzz.ProcessGenerator{Dir: inv.GeneratorDir, WorkDir: inv.WorkDir, Runner: runner, Timeout: inv.Timeout},
		Solver:    solver,
		Confirmer: &fuzz.CrossChecker{Reference: reference, LogPath: inv.LogPath},
	}
	if inv.CheckSat {
		comp.Verifier = &fuzz.ProcessSolutionChecker{
			Path:       inv.Solver,
			Subcommand: fuzz.DefaultCheckSubcommand,
			WorkDir:    inv.WorkDir,
			Runner:     runner,
			Timeout:    inv.Timeout,
		}
	}
	return comp, nil
}

func resolveResume(st *state.Store, inv CLIInvocation) (state.ResumePoint, error) {
	id := inv.Resume
	if id == ResumeLatest {
		latest, err := st.LatestRunID()
		if err != nil {
			return state.ResumePoint{}, err
		}
		id = latest
	}
	checker := &state.ResumeEligibilityChecker{Store: st}
	return checker.Check(state.ResumeEligibilityRequest{
		PreviousRunID: id,
		Mode:          inv.Mode.String(),
		EndSeed:       inv.End,
		KeepEndSeed:   !inv.EndGiven,
	})
}

func newLogger(inv CLIInvocation, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(inv.LogLevel)
	if inv.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return logger
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, fuzz.ErrInterrupted):
		return ExitInterrupted
	case errors.Is(err, fuzz.ErrContradiction):
		return ExitContradiction
	case errors.Is(err, fuzz.ErrGeneratorFailure):
		return ExitGeneratorFailure
	case errors.Is(err, fuzz.ErrSolverInvalidCode):
		return ExitSolverInvalidCode
	case errors.Is(err, fuzz.ErrSolutionRejected):
		return ExitSolutionRejected
	default:
		return ExitInternalError
	}
}
