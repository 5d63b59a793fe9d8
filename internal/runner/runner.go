// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"levo-ci/internal/credentials"
)

// tailSize bounds how much stderr is kept for error messages in Stream mode.
const tailSize = 2048

type (
	// ExecCommandFunc creates the exec.Cmd for an invocation. Implementations
	// must use exec.CommandContext so that cancellation reaches the child.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a ProcessRunner.
	Option func(*ProcessRunner)

	// ProcessRunner runs one external process per call with a class timeout.
	ProcessRunner struct {
		timeouts    Timeouts
		execCommand ExecCommandFunc
		stdout      io.Writer
		stderr      io.Writer
		logger      *slog.Logger
	}
)

// WithTimeouts overrides the per-class timeouts. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(r *ProcessRunner) {
		if t.Short > 0 {
			r.timeouts.Short = t.Short
		}
		if t.Medium > 0 {
			r.timeouts.Medium = t.Medium
		}
		if t.Long > 0 {
			r.timeouts.Long = t.Long
		}
		if t.Grace > 0 {
			r.timeouts.Grace = t.Grace
		}
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(r *ProcessRunner) {
		r.execCommand = fn
	}
}

// WithOutput sets where streamed output goes (defaults to os.Stdout/os.Stderr).
// Both may be the same writer.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *ProcessRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithLogger sets the logger used for invocation echoes.
func WithLogger(l *slog.Logger) Option {
	return func(r *ProcessRunner) {
		r.logger = l
	}
}

// New creates a ProcessRunner.
func New(opts ...Option) *ProcessRunner {
	r := &ProcessRunner{
		timeouts:    DefaultTimeouts(),
		execCommand: exec.CommandContext,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeouts returns the effective timeouts.
func (r *ProcessRunner) Timeouts() Timeouts { return r.timeouts }

// Run launches inv and waits for it.
//
// A zero exit returns a Result and nil. A non-zero exit returns the Result and
// an *ExitError. When the class timeout elapses the child receives SIGINT and,
// after the grace period, is killed; Run then returns a *TimeoutError.
// Cancellation of ctx behaves the same but returns an error wrapping ctx.Err().
func (r *ProcessRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if len(inv.Argv) == 0 || inv.Argv[0] == "" {
		return nil, fmt.Errorf("%s: %w", inv.Name, ErrEmptyCommand)
	}

	timeout := r.timeouts.For(inv.Timeout)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := r.execCommand(runCtx, inv.Argv[0], inv.Argv[1:]...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.timeouts.Grace
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}
	if len(inv.Env) > 0 {
		cmd.Env = append(cmd.Environ(), inv.Env...)
	}

	var stdout, stderr bytes.Buffer
	tail := &tailBuffer{max: tailSize}
	switch inv.Output {
	case Capture:
		cmd.Stdout = &stdout
		cmd.Stderr = io.MultiWriter(&stderr, tail)
	default:
		// exec copies each stream on its own goroutine; the two writers may
		// be the same build log.
		var mu sync.Mutex
		cmd.Stdout = &lockedWriter{mu: &mu, w: r.stdout}
		cmd.Stderr = &lockedWriter{mu: &mu, w: io.MultiWriter(r.stderr, tail)}
	}

	r.logger.Info("running "+inv.Name,
		"command", MaskCommandLine(inv.Argv, inv.Secrets),
		"timeout", timeout.String())

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		r.logger.Debug(inv.Name+" finished", "duration", result.Duration.Round(time.Millisecond).String())
		return result, nil
	}

	// Parent cancellation wins over our own deadline.
	if err := ctx.Err(); err != nil {
		result.ExitCode = -1
		if errors.Is(err, context.DeadlineExceeded) {
			return result, &TimeoutError{Name: inv.Name, Class: inv.Timeout, Timeout: timeout}
		}
		return result, fmt.Errorf("%s aborted: %w", inv.Name, err)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.ExitCode = -1
		return result, &TimeoutError{Name: inv.Name, Class: inv.Timeout, Timeout: timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{
			Name: inv.Name,
			Code: result.ExitCode,
			Tail: maskText(strings.TrimSpace(tail.String()), inv.Secrets),
		}
	}

	result.ExitCode = -1
	return result, fmt.Errorf("failed to start %s: %w", inv.Name, runErr)
}

// MaskCommandLine renders argv as a shell-quoted line with every secret masked.
func MaskCommandLine(argv []string, secrets []credentials.Secret) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		arg = maskText(arg, secrets)
		quoted, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			quoted = fmt.Sprintf("%q", arg)
		}
		parts[i] = quoted
	}
	return strings.Join(parts, " ")
}

func maskText(s string, secrets []credentials.Secret) string {
	for _, secret := range secrets {
		if secret.IsZero() {
			continue
		}
		s = strings.ReplaceAll(s, secret.Reveal(), secret.String())
	}
	return s
}

// lockedWriter serializes writes to w through mu.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
