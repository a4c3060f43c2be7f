// Package refsolver provides in-process trusted solvers.
//
// A backend reads the DIMACS formula artifact, solves it with a pure-Go
// solver library and reports the result using the 10/20 exit code
// convention, so it can stand in for a trusted solver binary.
package refsolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"satfuzz/internal/fuzz"
)

// Prefix marks a trusted-solver setting as a builtin backend name.
const Prefix = "builtin:"

// status is a backend answer.
type status int

const (
	statusUnknown status = iota
	statusSat
	statusUnsat
)

type solveFunc func(ctx context.Context, formula io.Reader) (status, error)

var backends = map[string]solveFunc{
	"gini":      solveGini,
	"gophersat": solveGophersat,
}

// Names returns the builtin backend names, sorted.
func Names() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether setting selects a builtin backend.
func IsBuiltin(setting string) bool {
	return strings.HasPrefix(setting, Prefix)
}

// Solver is a fuzz.Reference backed by an in-process solver library.
type Solver struct {
	name    string
	solve   solveFunc
	timeout time.Duration
}

var _ fuzz.Reference = (*Solver)(nil)

// Lookup returns the backend called name, with or without Prefix.
// A positive timeout bounds each Check.
func Lookup(name string, timeout time.Duration) (*Solver, error) {
	n := strings.TrimPrefix(strings.TrimSpace(name), Prefix)
	fn, ok := backends[n]
	if !ok {
		return nil, fmt.Errorf("unknown builtin solver %q (expected one of %s)", name, strings.Join(Names(), "|"))
	}
	return &Solver{name: n, solve: fn, timeout: timeout}, nil
}

func (s *Solver) Name() string { return s.name }

// Check implements fuzz.Reference.
func (s *Solver) Check(ctx context.Context, formulaPath string, log io.Writer) (int, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	f, err := os.Open(formulaPath)
	if err != nil {
		return -1, fmt.Errorf("%s: open formula: %w", s.name, err)
	}
	defer f.Close()

	st, err := s.solve(ctx, f)
	if err != nil {
		fmt.Fprintf(log, "c %s: %v\ns UNKNOWN\n", s.name, err)
		return -1, fmt.Errorf("%s: %w", s.name, err)
	}
	switch st {
	case statusSat:
		fmt.Fprintf(log, "c solved by %s\ns SATISFIABLE\n", s.name)
		return fuzz.ExitSat, nil
	case statusUnsat:
		fmt.Fprintf(log, "c solved by %s\ns UNSATISFIABLE\n", s.name)
		return fuzz.ExitUnsat, nil
	default:
		fmt.Fprintf(log, "c solved by %s\ns UNKNOWN\n", s.name)
		return 0, nil
	}
}
