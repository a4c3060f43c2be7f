package refsolver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-air/gini"
)

// giniPoll is how often a running gini search is checked for cancellation.
const giniPoll = 20 * time.Millisecond

func solveGini(ctx context.Context, formula io.Reader) (status, error) {
	g, err := gini.NewDimacs(formula)
	if err != nil {
		return statusUnknown, fmt.Errorf("parse dimacs: %w", err)
	}

	s := g.GoSolve()
	tick := time.NewTicker(giniPoll)
	defer tick.Stop()
	for {
		if res, done := s.Test(); done {
			return giniStatus(res), nil
		}
		select {
		case <-ctx.Done():
			s.Stop()
			return statusUnknown, ctx.Err()
		case <-tick.C:
		}
	}
}

// giniStatus maps gini's 1 / -1 / 0 convention.
func giniStatus(res int) status {
	switch res {
	case 1:
		return statusSat
	case -1:
		return statusUnsat
	default:
		return statusUnknown
	}
}
