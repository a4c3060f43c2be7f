package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"satfuzz/internal/fuzz"
	"satfuzz/internal/refsolver"
)

const (
	ExitSuccess           = 0
	ExitContradiction     = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
	ExitGeneratorFailure  = 5
	ExitSolverInvalidCode = 6
	ExitSolutionRejected  = 7
	ExitInterrupted       = 130
)

// Flag defaults.
const (
	DefaultGeneratorDir = "../cnf-utils"
	DefaultSolver       = "build/dawn"
	DefaultTrusted      = "./cryptominisat5"
	DefaultFormulaPath  = "tmp.cnf"
	DefaultResultPath   = "tmp.sol"
	DefaultLogPath      = "tmp.log"
)

// ResumeLatest selects the most recently started run.
const ResumeLatest = "latest"

type TraceConfig struct {
	Enabled bool
	Path    string
}

// CLIInvocation is the fully canonicalized description of a run.
//
// All paths are normalized (Clean) and relative paths are resolved relative
// to WorkDir, which is always absolute.
type CLIInvocation struct {
	WorkDir      string
	GeneratorDir string

	Solver           string
	SolverSubcommand string

	// Trusted is an executable path or a refsolver builtin ("builtin:gini").
	Trusted string

	Mode  fuzz.Mode
	Start int
	End   int

	// EndGiven is set when -iterations came from the command line or the
	// config file. A resumed run keeps its previous bound otherwise.
	EndGiven bool

	FormulaPath string
	ResultPath  string
	LogPath     string

	Timeout  time.Duration
	CheckSat bool

	// Resume is a previous run id, ResumeLatest, or empty.
	Resume string

	Trace       TraceConfig
	MetricsAddr string

	LogLevel  logrus.Level
	LogFormat string

	ConfigPath string
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf(format, args...)}
}

// ParseInvocation parses CLI flags relative to the process working directory.
func ParseInvocation(args []string) (CLIInvocation, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return CLIInvocation{}, configErrorf("cannot determine working directory: %v", err)
	}
	return ParseInvocationIn(cwd, args)
}

// ParseInvocationIn parses CLI flags into a canonical CLIInvocation. cwd must
// be absolute; it is the default -workdir and the base of a relative one.
//
// Values come from, in increasing precedence: built-in defaults, the -config
// YAML file, explicitly set flags. Environment variables are not read.
func ParseInvocationIn(cwd string, args []string) (CLIInvocation, error) {
	if !filepath.IsAbs(cwd) {
		return CLIInvocation{}, invalidInvocationf("working directory must be absolute (got %q)", cwd)
	}

	fs := flag.NewFlagSet("satfuzz", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed

	var (
		mode         string
		iterations   int
		start        int
		workDir      string
		generatorDir string
		solver       string
		subcommand   string
		trusted      string
		formulaPath  string
		resultPath   string
		logPath      string
		timeout      time.Duration
		checkSat     bool
		resume       string
		tracePath    string
		metricsAddr  string
		configPath   string
		logLevel     string
		logFormat    string
	)

	fs.StringVar(&mode, "mode", fuzz.DefaultMode.String(), "Generator mode: 1-6 or "+strings.Join(modeNames(), "|"))
	fs.IntVar(&iterations, "iterations", fuzz.DefaultIterations, "Seed upper bound (exclusive).")
	fs.IntVar(&start, "start", 0, "First seed.")
	fs.StringVar(&workDir, "workdir", "", "Directory the run owns. Defaults to the current directory.")
	fs.StringVar(&generatorDir, "generators", DefaultGeneratorDir, "Directory holding the generator executables.")
	fs.StringVar(&solver, "solver", DefaultSolver, "Solver-under-test binary.")
	fs.StringVar(&subcommand, "solver-subcommand", fuzz.DefaultSolverSubcommand, "Subcommand inserted before the artifact paths.")
	fs.StringVar(&trusted, "trusted", DefaultTrusted, "Trusted solver path or "+refsolver.Prefix+"<"+strings.Join(refsolver.Names(), "|")+">.")
	fs.StringVar(&formulaPath, "formula", DefaultFormulaPath, "Formula artifact path.")
	fs.StringVar(&resultPath, "result", DefaultResultPath, "Result artifact path.")
	fs.StringVar(&logPath, "log", DefaultLogPath, "Trusted solver transcript path.")
	fs.DurationVar(&timeout, "timeout", 0, "Per-invocation timeout (0 disables).")
	fs.BoolVar(&checkSat, "check-sat", false, "Verify SAT solutions with the solver's check subcommand.")
	fs.StringVar(&resume, "resume", "", "Resume a previous run id, or \"latest\".")
	fs.StringVar(&tracePath, "trace", "", "Iteration trace output path (optional).")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (optional).")
	fs.StringVar(&configPath, "config", "", "YAML file providing flag defaults (optional).")
	fs.StringVar(&logLevel, "log-level", logrus.InfoLevel.String(), "Log level.")
	fs.StringVar(&logFormat, "log-format", "text", "Log format: text|json")

	if err := fs.Parse(args); err != nil {
		return CLIInvocation{}, invalidInvocationf("%v", err)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Positional mode, as in `satfuzz 6`.
	switch fs.NArg() {
	case 0:
	case 1:
		if set["mode"] {
			return CLIInvocation{}, invalidInvocationf("mode given both as -mode and as positional argument %q", fs.Arg(0))
		}
		if err := fs.Set("mode", fs.Arg(0)); err != nil {
			return CLIInvocation{}, invalidInvocationf("%v", err)
		}
		set["mode"] = true
	default:
		return CLIInvocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(fs.Args(), " "))
	}

	baseDir := cwd
	if set["workdir"] {
		baseDir = resolvePath(cwd, workDir)
	}

	if configPath != "" {
		cfgFile := resolvePath(baseDir, configPath)
		fc, err := loadFileConfig(cfgFile)
		if err != nil {
			return CLIInvocation{}, err
		}
		if err := fc.apply(fs, set); err != nil {
			return CLIInvocation{}, err
		}
		configPath = cfgFile
	}

	if strings.TrimSpace(resume) != "" && set["start"] {
		return CLIInvocation{}, invalidInvocationf("-start cannot be combined with -resume (a resumed run starts at its checkpoint)")
	}

	if strings.TrimSpace(workDir) == "" {
		workDir = cwd
	} else {
		workDir = resolvePath(cwd, workDir)
	}

	parsedMode, err := fuzz.ParseMode(mode)
	if err != nil {
		return CLIInvocation{}, invalidInvocationf("invalid -mode: %v", err)
	}
	if start < 0 {
		return CLIInvocation{}, invalidInvocationf("-start must be >= 0 (got %d)", start)
	}
	if iterations < start {
		return CLIInvocation{}, invalidInvocationf("-iterations (%d) must be >= -start (%d)", iterations, start)
	}
	if timeout < 0 {
		return CLIInvocation{}, invalidInvocationf("-timeout must be >= 0 (got %s)", timeout)
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return CLIInvocation{}, invalidInvocationf("invalid -log-level: %v", err)
	}
	logFormat = strings.ToLower(strings.TrimSpace(logFormat))
	switch logFormat {
	case "text", "json":
	default:
		return CLIInvocation{}, invalidInvocationf("invalid -log-format %q (expected text|json)", logFormat)
	}

	if strings.TrimSpace(solver) == "" {
		return CLIInvocation{}, invalidInvocationf("-solver must not be empty")
	}
	trusted = strings.TrimSpace(trusted)
	switch {
	case trusted == "":
		return CLIInvocation{}, invalidInvocationf("-trusted must not be empty")
	case refsolver.IsBuiltin(trusted):
		if _, err := refsolver.Lookup(trusted, 0); err != nil {
			return CLIInvocation{}, invalidInvocationf("invalid -trusted: %v", err)
		}
	default:
		trusted = resolveExecutable(workDir, trusted)
	}

	inv := CLIInvocation{
		WorkDir:          workDir,
		GeneratorDir:     resolvePath(workDir, generatorDir),
		Solver:           resolveExecutable(workDir, solver),
		SolverSubcommand: strings.TrimSpace(subcommand),
		Trusted:          trusted,
		Mode:             parsedMode,
		Start:            start,
		End:              iterations,
		EndGiven:         set["iterations"],
		Timeout:          timeout,
		CheckSat:         checkSat,
		Resume:           strings.TrimSpace(resume),
		MetricsAddr:      strings.TrimSpace(metricsAddr),
		LogLevel:         level,
		LogFormat:        logFormat,
		ConfigPath:       configPath,
	}

	for _, p := range []struct {
		flag string
		raw  string
		dst  *string
	}{
		{"formula", formulaPath, &inv.FormulaPath},
		{"result", resultPath, &inv.ResultPath},
		{"log", logPath, &inv.LogPath},
	} {
		resolved, err := resolveUnderWorkDir(workDir, p.raw)
		if err != nil {
			return CLIInvocation{}, invalidInvocationf("-%s: %v", p.flag, err)
		}
		*p.dst = resolved
	}

	if strings.TrimSpace(tracePath) != "" {
		resolvedTrace, err := resolveUnderWorkDir(workDir, tracePath)
		if err != nil {
			return CLIInvocation{}, invalidInvocationf("-trace: %v", err)
		}
		inv.Trace = TraceConfig{Enabled: true, Path: resolvedTrace}
	}

	return inv, nil
}

func modeNames() []string {
	return lo.Map(fuzz.Modes(), func(g fuzz.GeneratorSpec, _ int) string { return g.Name })
}

// resolvePath cleans p and resolves it under base when relative.
func resolvePath(base, p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean
	}
	return filepath.Join(base, clean)
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", errors.New("path must not be '.'")
	}
	return resolvePath(workDir, clean), nil
}

// resolveExecutable resolves values with a path separator under workDir.
// Bare names are left for the PATH lookup done by os/exec.
func resolveExecutable(workDir, p string) string {
	p = strings.TrimSpace(p)
	if !strings.ContainsRune(p, filepath.Separator) {
		return p
	}
	return resolvePath(workDir, p)
}

// ExitCode extracts a semantic exit code from a ParseInvocation error.
// If the error is not a known invocation error, it returns ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
