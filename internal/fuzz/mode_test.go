package fuzz

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGeneratorSpec_ArgvRules(t *testing.T) {
	cases := []struct {
		mode Mode
		exe  string
		args []string
	}{
		{ModeBiere, "cnf-fuzz-biere", []string{"42"}},
		{ModeBrummayer, "cnf-fuzz-brummayer.py", []string{"-s", "42"}},
		{ModeXor, "cnf-fuzz-xor.py", []string{"--seed=42"}},
		{ModeLargeRandom, "largefuzzer", []string{"42"}},
		{ModeSgenSat, "sgen4", []string{"-n", "100", "-sat", "-s", "42"}},
		{ModeSgenUnsat, "sgen4", []string{"-n", "50", "-unsat", "-s", "42"}},
	}
	for _, tc := range cases {
		spec, err := tc.mode.Spec()
		if err != nil {
			t.Fatalf("mode %d: %v", tc.mode, err)
		}
		if spec.Executable != tc.exe {
			t.Fatalf("mode %d executable: got %q want %q", tc.mode, spec.Executable, tc.exe)
		}
		if diff := cmp.Diff(tc.args, spec.Args(42)); diff != "" {
			t.Fatalf("mode %d args (-want +got):\n%s", tc.mode, diff)
		}
	}
}

func TestGeneratorSpec_SeedZero(t *testing.T) {
	spec, _ := ModeXor.Spec()
	if diff := cmp.Diff([]string{"--seed=0"}, spec.Args(0)); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"1":            ModeBiere,
		"2":            ModeBrummayer,
		"3":            ModeXor,
		"4":            ModeLargeRandom,
		"5":            ModeSgenSat,
		"6":            ModeSgenUnsat,
		"biere":        ModeBiere,
		" SGEN-UNSAT":  ModeSgenUnsat,
		"large-random": ModeLargeRandom,
	}
	for raw, want := range cases {
		got, err := ParseMode(raw)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseMode(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestParseMode_Invalid(t *testing.T) {
	for _, raw := range []string{"", "0", "7", "-1", "minisat"} {
		if _, err := ParseMode(raw); err == nil {
			t.Fatalf("ParseMode(%q): expected error", raw)
		}
	}
}

func TestModes_CoversEverySpecInOrder(t *testing.T) {
	specs := Modes()
	if len(specs) != 6 {
		t.Fatalf("expected 6 modes, got %d", len(specs))
	}
	for i, s := range specs {
		if s.Mode != Mode(i+1) {
			t.Fatalf("specs[%d].Mode = %d", i, s.Mode)
		}
	}
}

func TestMode_StringFallsBackToNumber(t *testing.T) {
	if got := Mode(9).String(); got != "9" {
		t.Fatalf("got %q", got)
	}
	if got := ModeSgenSat.String(); got != "sgen-sat" {
		t.Fatalf("got %q", got)
	}
}
