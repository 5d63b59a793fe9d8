// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"errors"
	"fmt"

	"levo-ci/internal/runner"
)

var (
	// ErrLogin is the sentinel wrapped by LoginError.
	ErrLogin = errors.New("levo login failed")

	// ErrWorkspace is returned when the workspace directories cannot be prepared.
	ErrWorkspace = errors.New("workspace not usable")
)

type (
	// LoginError is returned when `levo login` does not succeed. The main
	// command is never attempted after it.
	LoginError struct {
		// ExitCode is the login process status, or -1 when it did not exit normally.
		ExitCode int
		Err      error
	}

	// CleanupWarning records a failed cleanup step. It is logged and
	// reported but never fails the run.
	CleanupWarning struct {
		Step string
		Err  error
	}
)

// Error implements the error interface.
func (e *LoginError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s (exit status %d): %v", ErrLogin, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrLogin, e.Err)
}

// Unwrap returns ErrLogin and the runner error.
func (e *LoginError) Unwrap() []error { return []error{ErrLogin, e.Err} }

func newLoginError(err error) *LoginError {
	return &LoginError{ExitCode: runner.ExitCodeOf(err, -1), Err: err}
}

// Error implements the error interface.
func (w *CleanupWarning) Error() string {
	return fmt.Sprintf("cleanup %s: %v", w.Step, w.Err)
}

// Unwrap returns the underlying error.
func (w *CleanupWarning) Unwrap() error { return w.Err }
