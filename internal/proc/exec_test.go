package proc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func TestExec_ReportsExitCode(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "exit20.sh", "exit 20")

	res, err := Exec{}.Run(context.Background(), Command{Path: script, Dir: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 20 {
		t.Fatalf("exit code: got %d want 20", res.ExitCode)
	}
	if res.TimedOut {
		t.Fatalf("unexpected timeout flag")
	}
}

func TestExec_PassesArgsInOrderAndRedirectsStdout(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "echo.sh", `printf '%s ' "$@"`)
	out := filepath.Join(dir, "out.txt")

	f, err := os.Create(out)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := Exec{}.Run(context.Background(), Command{
		Path:   script,
		Args:   []string{"-n", "100", "-sat", "-s", "7"},
		Dir:    dir,
		Stdout: f,
	})
	f.Close()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code: got %d", res.ExitCode)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.TrimSpace(string(b)); got != "-n 100 -sat -s 7" {
		t.Fatalf("stdout: got %q", got)
	}
}

func TestExec_CapturesStderr(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "err.sh", "echo broken >&2\nexit 3")

	res, err := Exec{}.Run(context.Background(), Command{Path: script, Dir: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code: got %d want 3", res.ExitCode)
	}
	if !strings.Contains(string(res.Stderr), "broken") {
		t.Fatalf("stderr not captured: %q", res.Stderr)
	}
}

func TestExec_TimeoutKillsChild(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "hang.sh", "sleep 30")

	start := time.Now()
	res, err := Exec{}.Run(context.Background(), Command{Path: script, Dir: dir, Timeout: 200 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected TimedOut")
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code: got %d want -1", res.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("child not killed promptly: %s", elapsed)
	}
}

func TestExec_CancellationKillsChild(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "hang.sh", "sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Exec{}.Run(ctx, Command{Path: script, Dir: dir})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("child not killed promptly: %s", elapsed)
	}
}

func TestExec_MissingExecutable(t *testing.T) {
	res, err := Exec{}.Run(context.Background(), Command{Path: filepath.Join(t.TempDir(), "nope")})
	if err == nil {
		t.Fatalf("expected start error")
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code: got %d want -1", res.ExitCode)
	}
}

func TestCommand_Argv(t *testing.T) {
	c := Command{Path: "sgen4", Args: []string{"-n", "50"}}
	if got := c.String(); got != "sgen4 -n 50" {
		t.Fatalf("String: got %q", got)
	}
}

func TestHeadBuffer_Truncates(t *testing.T) {
	b := &headBuffer{limit: 4}
	n, _ := b.Write([]byte("abcdef"))
	if n != 6 {
		t.Fatalf("Write must report full length, got %d", n)
	}
	if string(b.Bytes()) != "abcd" {
		t.Fatalf("got %q", b.Bytes())
	}
}
