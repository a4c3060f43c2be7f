package fuzz

import "fmt"

// DefaultIterations is the default exclusive upper bound of the seed range.
const DefaultIterations = 10000

// Seed is an iteration index. External generators derive their randomness
// from it, so a (mode, seed) pair identifies a formula.
type Seed int

// Sequencer yields the seeds of a run in strictly increasing order.
//
// There is no randomness in the sequence itself: two sequencers built with
// the same bounds yield the same seeds.
type Sequencer struct {
	start Seed
	end   Seed
	next  Seed
}

// NewSequencer returns a sequencer over [start, end).
func NewSequencer(start, end Seed) (*Sequencer, error) {
	if start < 0 {
		return nil, fmt.Errorf("start seed must be >= 0 (got %d)", start)
	}
	if end < start {
		return nil, fmt.Errorf("end seed %d is before start seed %d", end, start)
	}
	return &Sequencer{start: start, end: end, next: start}, nil
}

// Next returns the next seed. The second result is false once the range is
// exhausted, which is normal completion, not an error.
func (s *Sequencer) Next() (Seed, bool) {
	if s.next >= s.end {
		return 0, false
	}
	seed := s.next
	s.next++
	return seed, true
}

// Peek returns the seed Next would return, without consuming it.
func (s *Sequencer) Peek() (Seed, bool) {
	if s.next >= s.end {
		return 0, false
	}
	return s.next, true
}

// Reset restarts the sequence from its start seed.
func (s *Sequencer) Reset() { s.next = s.start }

// Start returns the first seed of the range.
func (s *Sequencer) Start() Seed { return s.start }

// End returns the exclusive upper bound of the range.
func (s *Sequencer) End() Seed { return s.end }

// Remaining reports how many seeds Next will still yield.
func (s *Sequencer) Remaining() int {
	if s.next >= s.end {
		return 0
	}
	return int(s.end - s.next)
}
