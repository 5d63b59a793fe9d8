// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"levo-ci/internal/credentials"
)

const (
	// Short bounds helper probes such as `id -u`.
	Short TimeoutClass = iota
	// Medium bounds image pulls and logout.
	Medium
	// Long bounds login and the main test command.
	Long
)

const (
	// Stream copies child output live to the build log.
	Stream OutputMode = iota
	// Capture buffers child output and returns it in the Result.
	Capture
)

// DefaultGracePeriod is how long a child gets to exit after SIGINT before it is killed.
const DefaultGracePeriod = 10 * time.Second

// ErrEmptyCommand is returned when an Invocation has no argv.
var ErrEmptyCommand = errors.New("empty command")

type (
	// TimeoutClass selects one of the configured process timeouts.
	TimeoutClass int

	// OutputMode selects whether child output is streamed or captured.
	OutputMode int

	// Timeouts holds the duration for each TimeoutClass.
	Timeouts struct {
		Short  time.Duration
		Medium time.Duration
		Long   time.Duration
		// Grace is the SIGINT-to-kill delay.
		Grace time.Duration
	}

	// Invocation is a single external process launch.
	Invocation struct {
		// Name labels the step in logs and errors, e.g. "login".
		Name string
		// Argv is the full command line; Argv[0] is the program.
		Argv []string
		// Env is appended to the inherited environment.
		Env []string
		// Dir is the working directory; empty means the current one.
		Dir     string
		Timeout TimeoutClass
		Output  OutputMode
		// Secrets are masked wherever the command line is echoed.
		Secrets []credentials.Secret
	}

	// Result describes a finished process.
	Result struct {
		ExitCode int
		// Stdout and Stderr hold the full output in Capture mode.
		Stdout   string
		Stderr   string
		Duration time.Duration
	}

	// Runner launches external processes.
	Runner interface {
		Run(ctx context.Context, inv Invocation) (*Result, error)
	}

	// ExitError reports a non-zero exit status.
	ExitError struct {
		Name string
		Code int
		// Tail is the last part of the child's stderr.
		Tail string
	}

	// TimeoutError reports that a process outlived its timeout class.
	TimeoutError struct {
		Name    string
		Class   TimeoutClass
		Timeout time.Duration
	}
)

// String returns the lowercase class name.
func (c TimeoutClass) String() string {
	switch c {
	case Short:
		return "short"
	case Medium:
		return "medium"
	case Long:
		return "long"
	default:
		return fmt.Sprintf("TimeoutClass(%d)", int(c))
	}
}

// DefaultTimeouts returns 60s / 10m / 30m with the default grace period.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Short:  60 * time.Second,
		Medium: 10 * time.Minute,
		Long:   30 * time.Minute,
		Grace:  DefaultGracePeriod,
	}
}

// For returns the duration configured for class.
func (t Timeouts) For(class TimeoutClass) time.Duration {
	switch class {
	case Short:
		return t.Short
	case Medium:
		return t.Medium
	default:
		return t.Long
	}
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
	if e.Tail != "" {
		msg += ": " + e.Tail
	}
	return msg
}

// ExitCode returns the child's exit status.
func (e *ExitError) ExitCode() int { return e.Code }

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s (%s timeout)", e.Name, e.Timeout, e.Class)
}

// Unwrap returns context.DeadlineExceeded for errors.Is compatibility.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// ExitCodeOf returns the exit status carried by err, or fallback when err has none.
func ExitCodeOf(err error, fallback int) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return fallback
}
