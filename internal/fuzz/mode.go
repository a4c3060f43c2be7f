package fuzz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Mode selects the formula generator of a run.
//
// The integer values are part of the command-line surface; do not renumber.
type Mode int

const (
	ModeBiere Mode = iota + 1
	ModeBrummayer
	ModeXor
	ModeLargeRandom
	ModeSgenSat
	ModeSgenUnsat
)

// DefaultMode is used when no mode is given.
const DefaultMode = ModeBiere

// sgen formula sizes. The unsat class is generated at half the size of the
// sat class; both values are fixed properties of the generator.
const (
	sgenSatSize   = 100
	sgenUnsatSize = 50
)

// GeneratorSpec describes how one generator is invoked.
type GeneratorSpec struct {
	Mode Mode

	// Name is the stable human-readable identifier of the mode.
	Name string

	// Executable is the generator's file name inside the generator directory.
	Executable string

	args func(seed string) []string
}

// Args returns the generator arguments (without the executable) for seed.
func (g GeneratorSpec) Args(seed Seed) []string {
	if g.args == nil {
		return nil
	}
	return g.args(strconv.Itoa(int(seed)))
}

func (g GeneratorSpec) String() string {
	return fmt.Sprintf("%d (%s)", g.Mode, g.Name)
}

var generatorSpecs = []GeneratorSpec{
	{
		Mode:       ModeBiere,
		Name:       "biere",
		Executable: "cnf-fuzz-biere",
		args:       func(s string) []string { return []string{s} },
	},
	{
		Mode:       ModeBrummayer,
		Name:       "brummayer",
		Executable: "cnf-fuzz-brummayer.py",
		args:       func(s string) []string { return []string{"-s", s} },
	},
	{
		Mode:       ModeXor,
		Name:       "xor",
		Executable: "cnf-fuzz-xor.py",
		args:       func(s string) []string { return []string{"--seed=" + s} },
	},
	{
		Mode:       ModeLargeRandom,
		Name:       "large-random",
		Executable: "largefuzzer",
		args:       func(s string) []string { return []string{s} },
	},
	{
		Mode:       ModeSgenSat,
		Name:       "sgen-sat",
		Executable: "sgen4",
		args: func(s string) []string {
			return []string{"-n", strconv.Itoa(sgenSatSize), "-sat", "-s", s}
		},
	},
	{
		Mode:       ModeSgenUnsat,
		Name:       "sgen-unsat",
		Executable: "sgen4",
		args: func(s string) []string {
			return []string{"-n", strconv.Itoa(sgenUnsatSize), "-unsat", "-s", s}
		},
	},
}

// Spec returns the generator spec for m.
func (m Mode) Spec() (GeneratorSpec, error) {
	spec, ok := lo.Find(generatorSpecs, func(g GeneratorSpec) bool { return g.Mode == m })
	if !ok {
		return GeneratorSpec{}, fmt.Errorf("invalid mode %d (expected 1-%d)", int(m), len(generatorSpecs))
	}
	return spec, nil
}

func (m Mode) String() string {
	spec, err := m.Spec()
	if err != nil {
		return strconv.Itoa(int(m))
	}
	return spec.Name
}

// Modes returns every known generator spec in mode order.
func Modes() []GeneratorSpec {
	out := make([]GeneratorSpec, len(generatorSpecs))
	copy(out, generatorSpecs)
	return out
}

// ParseMode accepts either the integer mode or its name.
func ParseMode(raw string) (Mode, error) {
	n := strings.ToLower(strings.TrimSpace(raw))
	if n == "" {
		return 0, fmt.Errorf("mode is required")
	}
	if i, err := strconv.Atoi(n); err == nil {
		m := Mode(i)
		if _, err := m.Spec(); err != nil {
			return 0, err
		}
		return m, nil
	}
	spec, ok := lo.Find(generatorSpecs, func(g GeneratorSpec) bool { return g.Name == n })
	if !ok {
		names := lo.Map(generatorSpecs, func(g GeneratorSpec, _ int) string { return g.Name })
		return 0, fmt.Errorf("invalid mode %q (expected 1-%d or one of %s)", raw, len(generatorSpecs), strings.Join(names, "|"))
	}
	return spec.Mode, nil
}
