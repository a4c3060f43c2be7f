package refsolver

import (
	"context"
	"fmt"
	"io"

	"github.com/crillab/gophersat/solver"
)

type gophersatResult struct {
	st  status
	err error
}

// solveGophersat runs the search on its own goroutine. gophersat has no
// cancellation hook, so on ctx expiry the search is abandoned and finishes
// in the background.
func solveGophersat(ctx context.Context, formula io.Reader) (status, error) {
	pb, err := solver.ParseCNF(formula)
	if err != nil {
		return statusUnknown, fmt.Errorf("parse dimacs: %w", err)
	}

	done := make(chan gophersatResult, 1)
	go func() {
		s := solver.New(pb)
		done <- gophersatResult{st: gophersatStatus(s.Solve())}
	}()

	select {
	case <-ctx.Done():
		return statusUnknown, ctx.Err()
	case r := <-done:
		return r.st, r.err
	}
}

func gophersatStatus(st solver.Status) status {
	switch st {
	case solver.Sat:
		return statusSat
	case solver.Unsat:
		return statusUnsat
	default:
		return statusUnknown
	}
}
