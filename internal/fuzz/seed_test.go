package fuzz

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func drain(s *Sequencer) []Seed {
	var out []Seed
	for {
		seed, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, seed)
	}
}

func TestSequencer_IdenticalConfigurationIdenticalSequence(t *testing.T) {
	a, err := NewSequencer(0, 50)
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}
	b, err := NewSequencer(0, 50)
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}
	sa, sb := drain(a), drain(b)
	if diff := cmp.Diff(sa, sb); diff != "" {
		t.Fatalf("sequences differ (-a +b):\n%s", diff)
	}
	if len(sa) != 50 {
		t.Fatalf("expected 50 seeds, got %d", len(sa))
	}
	for i, s := range sa {
		if s != Seed(i) {
			t.Fatalf("seed[%d] = %d, want %d", i, s, i)
		}
	}
}

func TestSequencer_ResetReproducesSequence(t *testing.T) {
	s, err := NewSequencer(3, 8)
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}
	first := drain(s)
	s.Reset()
	second := drain(s)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("reset changed sequence (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]Seed{3, 4, 5, 6, 7}, first); diff != "" {
		t.Fatalf("unexpected sequence (-want +got):\n%s", diff)
	}
}

func TestSequencer_ExhaustionIsNotAnError(t *testing.T) {
	s, err := NewSequencer(5, 5)
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}
	if _, ok := s.Next(); ok {
		t.Fatalf("empty range must yield nothing")
	}
	if s.Remaining() != 0 {
		t.Fatalf("Remaining: got %d", s.Remaining())
	}
}

func TestSequencer_PeekDoesNotConsume(t *testing.T) {
	s, _ := NewSequencer(0, 2)
	p, ok := s.Peek()
	if !ok || p != 0 {
		t.Fatalf("Peek: got %d, %v", p, ok)
	}
	n, _ := s.Next()
	if n != 0 {
		t.Fatalf("Next after Peek: got %d", n)
	}
	if s.Remaining() != 1 {
		t.Fatalf("Remaining: got %d", s.Remaining())
	}
}

func TestNewSequencer_RejectsInvalidBounds(t *testing.T) {
	if _, err := NewSequencer(-1, 10); err == nil {
		t.Fatalf("expected error for negative start")
	}
	if _, err := NewSequencer(10, 9); err == nil {
		t.Fatalf("expected error for end < start")
	}
}
