// Package proc runs external tools as child processes with a bounded
// lifetime.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ErrTimeout is returned (wrapped) when a command outlives its Timeout.
var ErrTimeout = errors.New("process timed out")

// maxStderr bounds how much of a child's stderr is retained for diagnostics.
const maxStderr = 64 << 10

// Command describes a single child process invocation.
type Command struct {
	// Path is the executable. Bare names are looked up in PATH.
	Path string

	// Args are passed after Path, in order.
	Args []string

	// Dir is the working directory of the child.
	Dir string

	// Stdout receives the child's standard output. Nil discards it.
	Stdout io.Writer

	// Timeout bounds the wall-clock lifetime of the child. Zero means none.
	Timeout time.Duration
}

// Argv returns the full argument vector, Path first.
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Path)
	return append(argv, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Result is what is observable about a finished child.
type Result struct {
	// ExitCode is the process exit code, or -1 if the process did not exit
	// normally (signal, kill, never started).
	ExitCode int

	// Stderr holds the first bytes the child wrote to standard error.
	Stderr []byte

	// Duration is the wall-clock time between start and exit.
	Duration time.Duration

	// TimedOut is set when the child was killed for exceeding its Timeout.
	TimedOut bool
}

// Runner starts a command and blocks until it has exited.
//
// A non-zero exit code is not an error. An error means the process could not
// be started, was cancelled through ctx, or timed out; in the last two cases
// the whole process group has been killed and reaped before Run returns.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Exec is the os/exec backed Runner.
type Exec struct{}

// Run implements Runner.
func (Exec) Run(ctx context.Context, c Command) (Result, error) {
	res := Result{ExitCode: -1}
	if c.Path == "" {
		return res, errors.New("command path is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%s not started: %w", c.Path, err)
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	stderr := &headBuffer{limit: maxStderr}
	cmd.Stderr = stderr

	// Own process group so the whole tree can be killed on cancellation.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return res, fmt.Errorf("failed to start %s: %w", c.Path, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var expired <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var err error
	select {
	case <-ctx.Done():
		killGroup(cmd)
		<-done
		res.Stderr = stderr.Bytes()
		res.Duration = time.Since(start)
		return res, fmt.Errorf("%s cancelled: %w", c.Path, ctx.Err())
	case <-expired:
		killGroup(cmd)
		<-done
		res.Stderr = stderr.Bytes()
		res.Duration = time.Since(start)
		res.TimedOut = true
		return res, fmt.Errorf("%s exceeded %s: %w", c.Path, c.Timeout, ErrTimeout)
	case err = <-done:
	}

	res.Stderr = stderr.Bytes()
	res.Duration = time.Since(start)
	res.ExitCode = 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			res.ExitCode = -1
			return res, fmt.Errorf("failed to execute %s: %w", c.Path, err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid addresses the process group.
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// headBuffer keeps the first limit bytes written to it and drops the rest.
type headBuffer struct {
	limit int
	buf   []byte
}

func (b *headBuffer) Write(p []byte) (int, error) {
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *headBuffer) Bytes() []byte {
	if len(b.buf) == 0 {
		return nil
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}
