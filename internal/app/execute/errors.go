// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"

	"levo-ci/internal/container"
	"levo-ci/internal/credentials"
	"levo-ci/internal/issue"
	"levo-ci/internal/lifecycle"
	"levo-ci/internal/runner"
	"levo-ci/internal/testrun"
	"levo-ci/internal/workspace"
)

// Exit codes reported to the CI job.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitCredentials   = 3
	ExitLogin         = 4
	ExitTimeout       = 124
	ExitAborted       = 130
)

// ErrExecution is the sentinel error wrapped by ExecutionError.
var ErrExecution = errors.New("levo test run failed")

// ExecutionError is returned when the main Levo command does not succeed.
type ExecutionError struct {
	// Command is the Levo subcommand, e.g. "test" or "remote-test-run".
	Command string
	// ExitCode is the child's status, or ExitTimeout when Timeout is set.
	ExitCode int
	Timeout  bool
	Err      error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("levo %s timed out: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("levo %s failed with exit code %d", e.Command, e.ExitCode)
}

// Unwrap returns ErrExecution and the runner error.
func (e *ExecutionError) Unwrap() []error { return []error{ErrExecution, e.Err} }

// newExecutionError classifies a main-command failure. Cancellation is
// returned unchanged so it maps to ExitAborted.
func newExecutionError(command string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var timeout *runner.TimeoutError
	if errors.As(err, &timeout) {
		return &ExecutionError{Command: command, ExitCode: ExitTimeout, Timeout: true, Err: err}
	}
	code := runner.ExitCodeOf(err, ExitFailure)
	if code <= 0 {
		code = ExitFailure
	}
	return &ExecutionError{Command: command, ExitCode: code, Err: err}
}

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var execErr *ExecutionError
	switch {
	case errors.Is(err, testrun.ErrConfiguration):
		return ExitConfiguration
	case credentials.IsResolutionError(err):
		return ExitCredentials
	case errors.Is(err, lifecycle.ErrLogin):
		return ExitLogin
	case errors.As(err, &execErr):
		return execErr.ExitCode
	case errors.Is(err, context.Canceled):
		return ExitAborted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	default:
		return ExitFailure
	}
}

// actionable decorates err with an operation, catalog page and hints for
// the user-facing error message.
func actionable(err error, resource string) error {
	if err == nil {
		return nil
	}
	ctx := issue.NewErrorContext().WithResource(resource).Wrap(err)

	var execErr *ExecutionError
	switch {
	case errors.Is(err, testrun.ErrConfiguration):
		ctx.WithOperation("validate step configuration").
			WithIssue(issue.StepConfigInvalidId).
			WithSuggestion("Run 'levo-ci validate' to list every problem with the step")
	case errors.Is(err, credentials.ErrCredentialNotFound):
		ctx.WithOperation("resolve Levo credentials").
			WithIssue(issue.CredentialNotFoundId).
			WithSuggestion("Check credentials_id and the configured credential stores")
	case errors.Is(err, credentials.ErrEnvironmentNotFound):
		ctx.WithOperation("resolve environment secret").
			WithIssue(issue.EnvironmentNotFoundId).
			WithSuggestion("Check environment_secret_id, or remove it if the run needs no environment file")
	case errors.Is(err, lifecycle.ErrLogin):
		ctx.WithOperation("log in to Levo").
			WithIssue(issue.LoginFailedId).
			WithSuggestion("Verify the organization id and authorization key are current")
	case errors.As(err, &execErr) && execErr.Timeout:
		ctx.WithOperation("run Levo tests").
			WithIssue(issue.TestRunTimedOutId).
			WithSuggestion("Raise timeouts.long in the levo-ci config")
	case errors.As(err, &execErr):
		ctx.WithOperation("run Levo tests").
			WithIssue(issue.TestRunFailedId)
	case errors.Is(err, workspace.ErrLockTimeout):
		ctx.WithOperation("lock workspace").
			WithIssue(issue.WorkspaceLockedId).
			WithSuggestion("Another levo-ci run is using this workspace; enable workspace.isolate_credentials or use separate work directories")
	case errors.Is(err, container.ErrEngineNotAvailable), errors.Is(err, container.ErrInvalidEngineType):
		ctx.WithOperation("select container engine").
			WithIssue(issue.ContainerEngineNotFoundId).
			WithSuggestion("Install Docker or Podman, or set container_engine in the levo-ci config")
	default:
		ctx.WithOperation("run Levo step")
	}
	return ctx.BuildError()
}
