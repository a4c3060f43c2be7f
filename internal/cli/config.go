package cli

import (
	"bytes"
	"flag"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v2"
)

// fileConfig is the -config YAML document. Keys mirror the flag names; a
// key that is absent leaves the flag default alone.
type fileConfig struct {
	Mode             *string `yaml:"mode"`
	Iterations       *int    `yaml:"iterations"`
	Start            *int    `yaml:"start"`
	WorkDir          *string `yaml:"workdir"`
	Generators       *string `yaml:"generators"`
	Solver           *string `yaml:"solver"`
	SolverSubcommand *string `yaml:"solver-subcommand"`
	Trusted          *string `yaml:"trusted"`
	Formula          *string `yaml:"formula"`
	Result           *string `yaml:"result"`
	Log              *string `yaml:"log"`
	Timeout          *string `yaml:"timeout"`
	CheckSat         *bool   `yaml:"check-sat"`
	Resume           *string `yaml:"resume"`
	Trace            *string `yaml:"trace"`
	MetricsAddr      *string `yaml:"metrics-addr"`
	LogLevel         *string `yaml:"log-level"`
	LogFormat        *string `yaml:"log-format"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, configErrorf("reading config %s: %v", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fc, nil
	}
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return fc, configErrorf("parsing config %s: %v", path, err)
	}
	return fc, nil
}

// values returns the flag values the document provides, keyed by flag name.
func (fc fileConfig) values() map[string]string {
	out := map[string]string{}
	str := func(name string, v *string) {
		if v != nil {
			out[name] = *v
		}
	}
	num := func(name string, v *int) {
		if v != nil {
			out[name] = strconv.Itoa(*v)
		}
	}
	str("mode", fc.Mode)
	num("iterations", fc.Iterations)
	num("start", fc.Start)
	str("workdir", fc.WorkDir)
	str("generators", fc.Generators)
	str("solver", fc.Solver)
	str("solver-subcommand", fc.SolverSubcommand)
	str("trusted", fc.Trusted)
	str("formula", fc.Formula)
	str("result", fc.Result)
	str("log", fc.Log)
	str("timeout", fc.Timeout)
	if fc.CheckSat != nil {
		out["check-sat"] = strconv.FormatBool(*fc.CheckSat)
	}
	str("resume", fc.Resume)
	str("trace", fc.Trace)
	str("metrics-addr", fc.MetricsAddr)
	str("log-level", fc.LogLevel)
	str("log-format", fc.LogFormat)
	return out
}

// apply sets every flag the document provides, except those already set on
// the command line, and marks them in explicit.
func (fc fileConfig) apply(fs *flag.FlagSet, explicit map[string]bool) error {
	vals := fc.values()
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if explicit[name] {
			continue
		}
		if err := fs.Set(name, vals[name]); err != nil {
			return configErrorf("config key %q: %v", name, err)
		}
		explicit[name] = true
	}
	return nil
}
