package fuzz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"satfuzz/internal/proc"
)

// Generator writes the formula for (spec, seed) to destination.
//
// On success destination exists, holds the complete formula and is closed.
// Errors other than cancellation are reported as a *Failure of kind
// ErrGeneratorFailure.
type Generator interface {
	Generate(ctx context.Context, spec GeneratorSpec, seed Seed, destination string) error
}

// ProcessGenerator runs the external generators found in Dir.
type ProcessGenerator struct {
	// Dir holds the generator executables.
	Dir string

	// WorkDir is the working directory of the child process.
	WorkDir string

	Runner  proc.Runner
	Timeout time.Duration
}

// Command returns the exact invocation for (spec, seed), without stdout.
func (g *ProcessGenerator) Command(spec GeneratorSpec, seed Seed) proc.Command {
	return proc.Command{
		Path:    filepath.Join(g.Dir, spec.Executable),
		Args:    spec.Args(seed),
		Dir:     g.WorkDir,
		Timeout: g.Timeout,
	}
}

// Generate implements Generator.
func (g *ProcessGenerator) Generate(ctx context.Context, spec GeneratorSpec, seed Seed, destination string) (err error) {
	if spec.Executable == "" {
		return &Failure{Kind: ErrGeneratorFailure, ExitCode: -1, Cause: errors.New("generator spec has no executable")}
	}
	runner := g.Runner
	if runner == nil {
		runner = proc.Exec{}
	}

	// Create truncates: each iteration overwrites the previous formula.
	f, err := os.Create(destination)
	if err != nil {
		return &Failure{Kind: ErrGeneratorFailure, ExitCode: -1, Cause: fmt.Errorf("open formula artifact: %w", err)}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil && !errors.Is(cerr, os.ErrClosed) {
			err = &Failure{Kind: ErrGeneratorFailure, ExitCode: -1, Cause: fmt.Errorf("close formula artifact: %w", cerr)}
		}
	}()

	cmd := g.Command(spec, seed)
	cmd.Stdout = f
	res, runErr := runner.Run(ctx, cmd)
	if runErr != nil {
		if isCancellation(ctx, runErr) {
			return runErr
		}
		return stageFailure(ErrGeneratorFailure, res, runErr)
	}
	if res.ExitCode != 0 {
		return stageFailure(ErrGeneratorFailure, res, fmt.Errorf("%s exited with code %d", cmd, res.ExitCode))
	}

	if err := f.Sync(); err != nil {
		return &Failure{Kind: ErrGeneratorFailure, ExitCode: res.ExitCode, Cause: fmt.Errorf("sync formula artifact: %w", err)}
	}
	if err := f.Close(); err != nil {
		return &Failure{Kind: ErrGeneratorFailure, ExitCode: res.ExitCode, Cause: fmt.Errorf("close formula artifact: %w", err)}
	}
	return nil
}
