package refsolver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"satfuzz/internal/fuzz"
)

const (
	satCNF   = "c sat\np cnf 3 2\n1 -2 0\n2 3 0\n"
	unsatCNF = "c unsat\np cnf 2 4\n1 2 0\n-1 2 0\n1 -2 0\n-1 -2 0\n"
)

func writeFormula(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tmp.cnf")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write formula: %v", err)
	}
	return p
}

func TestBackends_AgreeOnSmallFormulas(t *testing.T) {
	sat := writeFormula(t, satCNF)
	unsat := writeFormula(t, unsatCNF)

	for _, name := range Names() {
		s, err := Lookup(Prefix+name, 10*time.Second)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", name, err)
		}

		var log bytes.Buffer
		code, err := s.Check(context.Background(), sat, &log)
		if err != nil || code != fuzz.ExitSat {
			t.Fatalf("%s on sat formula: code=%d err=%v", name, code, err)
		}
		if !strings.Contains(log.String(), "s SATISFIABLE") {
			t.Fatalf("%s log: %q", name, log.String())
		}

		log.Reset()
		code, err = s.Check(context.Background(), unsat, &log)
		if err != nil || code != fuzz.ExitUnsat {
			t.Fatalf("%s on unsat formula: code=%d err=%v", name, code, err)
		}
		if !strings.Contains(log.String(), "s UNSATISFIABLE") {
			t.Fatalf("%s log: %q", name, log.String())
		}
	}
}

func TestBackend_ConfirmsThroughCrossChecker(t *testing.T) {
	s, err := Lookup("gini", 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	dir := t.TempDir()
	logPath := filepath.Join(dir, "tmp.log")
	cc := &fuzz.CrossChecker{Reference: s, LogPath: logPath}

	if err := cc.ConfirmUnsat(context.Background(), writeFormula(t, unsatCNF)); err != nil {
		t.Fatalf("ConfirmUnsat on unsat formula: %v", err)
	}
	if err := cc.ConfirmUnsat(context.Background(), writeFormula(t, satCNF)); err == nil {
		t.Fatalf("expected contradiction for a satisfiable formula")
	}
}

func TestLookup_UnknownName(t *testing.T) {
	if _, err := Lookup("builtin:minisat", 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNames_Sorted(t *testing.T) {
	if diff := cmp.Diff([]string{"gini", "gophersat"}, Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestIsBuiltin(t *testing.T) {
	if !IsBuiltin("builtin:gini") || IsBuiltin("./cryptominisat5") {
		t.Fatalf("unexpected IsBuiltin result")
	}
}

func TestCheck_MissingFormula(t *testing.T) {
	s, _ := Lookup("gophersat", 0)
	code, err := s.Check(context.Background(), filepath.Join(t.TempDir(), "none.cnf"), &bytes.Buffer{})
	if err == nil || code != -1 {
		t.Fatalf("expected open error, got code=%d err=%v", code, err)
	}
}
