package fuzz

// Exit code convention shared by SAT solvers.
const (
	ExitSat   = 10
	ExitUnsat = 20
)

// Verdict is a solver's answer as derived from its exit code.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictSat
	VerdictUnsat
)

// VerdictFromExitCode maps 10 to SAT, 20 to UNSAT and anything else to
// VerdictUnknown.
func VerdictFromExitCode(code int) Verdict {
	switch code {
	case ExitSat:
		return VerdictSat
	case ExitUnsat:
		return VerdictUnsat
	default:
		return VerdictUnknown
	}
}

func (v Verdict) String() string {
	switch v {
	case VerdictSat:
		return "SAT"
	case VerdictUnsat:
		return "UNSAT"
	default:
		return "UNKNOWN-ERROR"
	}
}
