package toolexec

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

var (
	// ErrToolNotFound indicates the executable is not on PATH.
	ErrToolNotFound = stderrors.New("tool not found")
	// ErrToolFailed indicates the tool ran and exited non-zero.
	ErrToolFailed = stderrors.New("tool failed")
)

// DefaultTailLines is the number of output lines retained for diagnostics.
const DefaultTailLines = 40

// Command describes one external tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the current environment
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result describes a finished invocation.
type Result struct {
	ExitCode int
	Duration time.Duration
	Tail     string
}

// Runner executes commands. Implementations must honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Stdout    io.Writer
	Stderr    io.Writer
	TailLines int
}

// NewExecRunner streams tool output to the process stdout/stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr, TailLines: DefaultTailLines}
}

// Run starts cmd and waits for it. A non-zero exit returns an *ExitError
// wrapping ErrToolFailed; the Result is populated in both cases.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	path, err := exec.LookPath(c.Name)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%w: %s: %w", ErrToolNotFound, c.Name, err)
	}

	tail := newTailBuffer(r.tailLines())
	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdout = io.MultiWriter(writerOrDiscard(r.Stdout), tail)
	cmd.Stderr = io.MultiWriter(writerOrDiscard(r.Stderr), tail)

	slog.Debug("Running tool", logfields.Tool(c.Name), logfields.Args(c.Args), logfields.Path(c.Dir))
	start := time.Now()
	err = cmd.Run()
	res := Result{Duration: time.Since(start), Tail: tail.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s interrupted: %w", c.Name, ctxErr)
	}
	return res, &ExitError{Command: c, Result: res, Err: err}
}

func (r *ExecRunner) tailLines() int {
	if r.TailLines > 0 {
		return r.TailLines
	}
	return DefaultTailLines
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// ExitError reports a tool that exited unsuccessfully.
type ExitError struct {
	Command Command
	Result  Result
	Err     error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.Result.ExitCode)
	if e.Result.Tail != "" {
		msg += ":\n" + e.Result.Tail
	}
	return msg
}

func (e *ExitError) Unwrap() []error { return []error{ErrToolFailed, e.Err} }

// Tail returns the retained tool output of err, if any.
func Tail(err error) string {
	var ee *ExitError
	if stderrors.As(err, &ee) {
		return ee.Result.Tail
	}
	return ""
}
