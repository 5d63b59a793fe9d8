// SPDX-License-Identifier: MPL-2.0

// Package lifecycle sequences one Levo run: purge, pull, login, main command,
// and a cleanup that runs exactly once on every exit path.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"levo-ci/internal/container"
	"levo-ci/internal/credentials"
	"levo-ci/internal/issue"
	"levo-ci/internal/levo"
	"levo-ci/internal/runner"
	"levo-ci/internal/workspace"
)

const (
	// DefaultCleanupTimeout bounds the whole cleanup phase.
	DefaultCleanupTimeout = 2 * time.Minute
	// DefaultPullAttempts is how many times a transient pull failure is tried.
	DefaultPullAttempts = 3
	// DefaultPullBackoff is the delay before the second pull attempt; it doubles after.
	DefaultPullBackoff = 2 * time.Second
)

type (
	// ImageChecker reports whether an image is already cached locally.
	ImageChecker interface {
		ImageExists(ctx context.Context, image string) (bool, error)
	}

	// Session is everything one run needs.
	Session struct {
		Workspace   *workspace.Workspace
		Builder     *levo.Builder
		Credentials *credentials.Credentials
		// Environment is the optional environment file payload.
		Environment credentials.Secret
		// WriteEnvironment is false for subcommands that take no --env-file.
		WriteEnvironment bool
		// Pull refreshes the image before login.
		Pull bool
	}

	// MainFunc runs the primary command after a successful login. envFile
	// reports whether the environment file was written.
	MainFunc func(ctx context.Context, envFile bool) error

	// Report summarizes the non-fatal events of a run.
	Report struct {
		// PullErr is the final image pull failure, if any. It is an
		// *issue.ActionableError when no cached copy of the image exists.
		PullErr error
		// Identity is the host identity passed to the container.
		Identity levo.Identity
		// EnvironmentFile reports whether the environment file was written.
		EnvironmentFile bool
		// Warnings holds pre-login purge and cleanup failures.
		Warnings []*CleanupWarning
		// CleanedUp reports whether the cleanup phase ran.
		CleanedUp bool
	}

	// Option configures a Manager.
	Option func(*Manager)

	// Manager owns the credential lifecycle around a main command.
	Manager struct {
		runner         runner.Runner
		images         ImageChecker
		cleanupTimeout time.Duration
		pullAttempts   int
		pullBackoff    time.Duration
		logger         *slog.Logger
	}
)

// WithImageChecker enables a cache check after a failed pull.
func WithImageChecker(c ImageChecker) Option {
	return func(m *Manager) {
		m.images = c
	}
}

// WithCleanupTimeout bounds the cleanup phase.
func WithCleanupTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cleanupTimeout = d
		}
	}
}

// WithPullRetry sets the pull attempts and the initial backoff.
func WithPullRetry(attempts int, backoff time.Duration) Option {
	return func(m *Manager) {
		if attempts > 0 {
			m.pullAttempts = attempts
		}
		if backoff > 0 {
			m.pullBackoff = backoff
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// New creates a Manager that launches processes through r.
func New(r runner.Runner, opts ...Option) *Manager {
	m := &Manager{
		runner:         r,
		cleanupTimeout: DefaultCleanupTimeout,
		pullAttempts:   DefaultPullAttempts,
		pullBackoff:    DefaultPullBackoff,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes the lifecycle protocol around main.
//
// Errors before login (workspace preparation, cancellation during pull) are
// returned without touching credentials. From the moment login is attempted,
// cleanup (environment file removal, logout, credential-store purge) is
// guaranteed to run exactly once, on a context detached from ctx so that it
// also runs after cancellation or timeout. A failed login returns a
// *LoginError and main is not called. Otherwise main's error is returned.
func (m *Manager) Run(ctx context.Context, s Session, main MainFunc) (*Report, error) {
	report := &Report{}

	m.purge(s.Workspace, "pre-login purge", report)

	if err := s.Workspace.EnsureDirs(); err != nil {
		return report, fmt.Errorf("%w: %w", ErrWorkspace, err)
	}

	if s.Pull {
		report.PullErr = m.pull(ctx, s.Builder)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, fmt.Errorf("aborted during image pull: %w", ctxErr)
		}
	}

	if id, probeErr := s.Builder.ProbeIdentity(ctx, m.runner); probeErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, fmt.Errorf("aborted during host id probe: %w", ctxErr)
		}
		m.logger.Warn("could not determine host user and group ids; container files may be owned by another user",
			"error", probeErr)
	} else {
		report.Identity = id
	}

	defer m.cleanup(ctx, s, report)

	if _, loginErr := m.runner.Run(ctx, s.Builder.Login(s.Credentials).Invocation()); loginErr != nil {
		if errors.Is(loginErr, context.Canceled) {
			return report, loginErr
		}
		return report, newLoginError(loginErr)
	}
	m.logger.Info("logged in to Levo", "organization", s.Credentials.OrganizationID, "account", s.Credentials.Name)

	if s.WriteEnvironment && !s.Environment.IsZero() {
		if werr := s.Workspace.WriteEnvironmentFile(s.Environment.Reveal()); werr != nil {
			m.logger.Warn("could not write environment file; running without --env-file", "error", werr)
		} else {
			report.EnvironmentFile = true
		}
	}

	return report, main(ctx, report.EnvironmentFile)
}

// pull refreshes the image, retrying transient failures. The final failure
// is returned for reporting only; a cached image can still run.
func (m *Manager) pull(ctx context.Context, b *levo.Builder) error {
	cmd := b.Pull()
	err := container.RetryWithBackoff(ctx, m.pullAttempts, m.pullBackoff, func(attempt int) (bool, error) {
		_, err := m.runner.Run(ctx, cmd.Invocation())
		if err != nil && container.IsTransientError(err) {
			m.logger.Debug("transient image pull failure, retrying",
				"attempt", attempt+1, "maxAttempts", m.pullAttempts, "error", err)
			return true, err
		}
		return false, err
	})
	if err == nil || ctx.Err() != nil {
		return err
	}

	if m.images != nil {
		if ok, _ := m.images.ImageExists(ctx, b.Image()); !ok {
			m.logger.Warn("image pull failed and no cached copy exists; the run will likely fail",
				"image", b.Image(), "error", err)
			return issue.NewErrorContext().
				WithOperation("pull image").
				WithResource(b.Image()).
				WithIssue(issue.ImagePullFailedId).
				WithSuggestion("Check registry access from the build agent or pre-pull the image").
				Wrap(err).
				BuildError()
		}
	}
	m.logger.Warn("image pull failed; using cached image", "image", b.Image(), "error", err)
	return err
}

// cleanup removes the environment file, logs out and purges the credential
// store. It never returns an error; failures become warnings.
func (m *Manager) cleanup(parent context.Context, s Session, report *Report) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.cleanupTimeout)
	defer cancel()

	report.CleanedUp = true

	if err := s.Workspace.RemoveEnvironmentFile(); err != nil {
		m.warn(report, "environment file", err)
	}

	if _, err := m.runner.Run(ctx, s.Builder.Logout(s.Credentials).Invocation()); err != nil {
		m.warn(report, "logout", err)
	}

	m.purge(s.Workspace, "credential purge", report)
}

func (m *Manager) purge(ws *workspace.Workspace, step string, report *Report) {
	for _, err := range ws.PurgeCredentialStore() {
		m.warn(report, step, err)
	}
}

func (m *Manager) warn(report *Report, step string, err error) {
	w := &CleanupWarning{Step: step, Err: err}
	report.Warnings = append(report.Warnings, w)
	m.logger.Warn("cleanup step failed", "step", step, "error", err)
}
