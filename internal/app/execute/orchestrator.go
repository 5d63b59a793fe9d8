// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"levo-ci/internal/config"
	"levo-ci/internal/container"
	"levo-ci/internal/credentials"
	"levo-ci/internal/lifecycle"
	"levo-ci/internal/levo"
	"levo-ci/internal/report"
	"levo-ci/internal/runner"
	"levo-ci/internal/testrun"
	"levo-ci/internal/workspace"
	"levo-ci/pkg/platform"
)

// JUnitReportFile is the report name inside the workspace reports directory.
const JUnitReportFile = "junit.xml"

type (
	// Request describes one build step.
	Request struct {
		// Step holds the step field candidates from flags, environment and file.
		Step config.StepSources
		// Settings are the tool settings; nil means config.DefaultConfig().
		Settings *config.Config
		// WorkDir is the workspace root shared with the container.
		WorkDir string
	}

	// Outcome is the result of Execute. Err is nil on success and otherwise
	// an *issue.ActionableError whose cause classifies the failure.
	Outcome struct {
		ExecutionID string
		Plan        testrun.Plan
		Warnings    testrun.Warnings
		Lifecycle   *lifecycle.Report
		// JUnit is set when a JUnit report was requested and found.
		JUnit    *report.Summary
		ExitCode int
		Err      error
	}

	// Preview is a validated step and, when credentials resolved, the
	// masked command that would run.
	Preview struct {
		Plan        testrun.Plan
		Warnings    testrun.Warnings
		Credentials *credentials.Credentials
		Command     string
	}

	// EngineFactory selects the container engine for a run.
	EngineFactory func(ctx context.Context, preferred container.EngineType) (container.Engine, error)

	// Option configures an Orchestrator.
	Option func(*Orchestrator)

	// Orchestrator runs build steps.
	Orchestrator struct {
		store     credentials.Store
		engines   EngineFactory
		runner    runner.Runner
		fs        afero.Fs
		host      platform.HostOS
		newID     func() string
		logger    *slog.Logger
		runnerOut []runner.Option
	}
)

// WithStore sets the credential store.
func WithStore(s credentials.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithEngineFactory overrides container engine selection.
func WithEngineFactory(f EngineFactory) Option {
	return func(o *Orchestrator) {
		o.engines = f
	}
}

// WithRunner overrides the process runner. By default a runner.ProcessRunner
// with the configured timeouts is used.
func WithRunner(r runner.Runner) Option {
	return func(o *Orchestrator) {
		o.runner = r
	}
}

// WithRunnerOptions adds options for the default process runner.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(o *Orchestrator) {
		o.runnerOut = append(o.runnerOut, opts...)
	}
}

// WithFs sets the workspace filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *Orchestrator) {
		o.fs = fs
	}
}

// WithHostOS overrides host detection.
func WithHostOS(h platform.HostOS) Option {
	return func(o *Orchestrator) {
		o.host = h
	}
}

// WithExecutionID sets the execution id generator.
func WithExecutionID(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store: credentials.MapStore{},
		engines: func(ctx context.Context, preferred container.EngineType) (container.Engine, error) {
			return container.NewEngine(ctx, preferred)
		},
		fs:     afero.NewOsFs(),
		host:   platform.Current(),
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate resolves and dispatches the step without starting any process.
// Credentials are resolved only when withCommand is set; the command is
// then rendered with every secret masked.
func (o *Orchestrator) Validate(ctx context.Context, req Request, withCommand bool) (*Preview, error) {
	settings := settingsOrDefault(req.Settings)

	cfg, plan, warnings, err := o.dispatch(req)
	if err != nil {
		return nil, actionable(err, req.WorkDir)
	}
	preview := &Preview{Plan: plan, Warnings: warnings}
	if !withCommand {
		return preview, nil
	}

	creds, err := credentials.NewResolver(o.store).ResolveLevo(ctx, cfg.LevoCredentialsID)
	if err != nil {
		return preview, actionable(err, cfg.LevoCredentialsID)
	}
	preview.Credentials = creds

	ws, err := o.workspace(req.WorkDir, settings, "")
	if err != nil {
		return preview, actionable(err, req.WorkDir)
	}
	engine := previewEngine(container.EngineType(settings.ContainerEngine))
	builderOpts := []levo.Option{levo.WithImage(settings.Image)}
	if o.host.IsLinux() {
		builderOpts = append(builderOpts, levo.WithIdentity(levo.Identity{
			UID: strconv.Itoa(os.Getuid()),
			GID: strconv.Itoa(os.Getgid()),
		}))
	}
	envFile := cfg.SecretEnvironmentID != "" && testrun.AcceptsEnvironmentFile(plan)
	cmd, err := levo.NewBuilder(engine, ws, builderOpts...).Main(plan, creds, envFile)
	if err != nil {
		return preview, actionable(err, req.WorkDir)
	}
	preview.Command = cmd.String()
	return preview, nil
}

// Execute runs the step. It never panics on user input and always returns
// an Outcome; cleanup has finished by the time it returns.
func (o *Orchestrator) Execute(ctx context.Context, req Request) Outcome {
	out := Outcome{ExecutionID: o.newID()}
	logger := o.logger.With("execution", out.ExecutionID)

	err := o.execute(ctx, req, &out, logger)
	out.ExitCode = ExitCode(err)
	out.Err = actionable(err, req.WorkDir)

	switch {
	case err == nil:
		logger.Info("levo step succeeded")
	case out.ExitCode == ExitAborted:
		logger.Warn("levo step aborted", "error", err)
	default:
		logger.Error("levo step failed", "exitCode", out.ExitCode, "error", err)
	}
	return out
}

func (o *Orchestrator) execute(ctx context.Context, req Request, out *Outcome, logger *slog.Logger) error {
	settings := settingsOrDefault(req.Settings)

	cfg, plan, warnings, err := o.dispatch(req)
	out.Plan, out.Warnings = plan, warnings
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn("step configuration", "field", w.Field, "warning", w.Message)
	}

	resolver := credentials.NewResolver(o.store)
	creds, err := resolver.ResolveLevo(ctx, cfg.LevoCredentialsID)
	if err != nil {
		return err
	}
	logger.Info("resolved Levo credentials", "credential", creds.Name, "organization", creds.OrganizationID,
		"key", creds.AuthorizationKey)

	var env credentials.Secret
	switch {
	case cfg.SecretEnvironmentID == "":
	case !testrun.AcceptsEnvironmentFile(plan):
		logger.Warn("environment secret ignored; remote test runs take no environment file",
			"secret", cfg.SecretEnvironmentID)
	default:
		if env, err = resolver.ResolveEnvironment(ctx, cfg.SecretEnvironmentID); err != nil {
			return err
		}
	}

	ws, err := o.workspace(req.WorkDir, settings, out.ExecutionID)
	if err != nil {
		return err
	}
	if settings.Workspace.Lock {
		lock, lockErr := ws.Lock(ctx)
		if lockErr != nil {
			return lockErr
		}
		defer lock.Release()
	}

	engine, err := o.engines(ctx, container.EngineType(settings.ContainerEngine))
	if err != nil {
		return err
	}
	logger.Debug("container engine selected", "engine", engine.Name())

	r := o.runner
	if r == nil {
		r = runner.New(append([]runner.Option{
			runner.WithTimeouts(runner.Timeouts{
				Short:  settings.Timeouts.Short,
				Medium: settings.Timeouts.Medium,
				Long:   settings.Timeouts.Long,
			}),
			runner.WithLogger(logger),
		}, o.runnerOut...)...)
	}

	builder := levo.NewBuilder(engine, ws, levo.WithImage(settings.Image))
	manager := lifecycle.New(r,
		lifecycle.WithImageChecker(engine),
		lifecycle.WithCleanupTimeout(settings.Timeouts.Cleanup),
		lifecycle.WithPullRetry(settings.Pull.Attempts, 0),
		lifecycle.WithLogger(logger),
	)
	session := lifecycle.Session{
		Workspace:        ws,
		Builder:          builder,
		Credentials:      creds,
		Environment:      env,
		WriteEnvironment: testrun.AcceptsEnvironmentFile(plan),
		Pull:             settings.Pull.Enabled,
	}

	junitPath := filepath.Join(ws.ReportsDir(), JUnitReportFile)
	if testrun.WantsJUnitReport(plan) {
		if rmErr := ws.Fs().Remove(junitPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("could not remove previous JUnit report", "path", junitPath, "error", rmErr)
		}
	}

	out.Lifecycle, err = manager.Run(ctx, session, func(ctx context.Context, envFile bool) error {
		cmd, buildErr := builder.Main(plan, creds, envFile)
		if buildErr != nil {
			return buildErr
		}
		if _, runErr := r.Run(ctx, cmd.Invocation()); runErr != nil {
			return newExecutionError(cmd.Name, runErr)
		}
		return nil
	})

	if testrun.WantsJUnitReport(plan) && out.Lifecycle != nil && out.Lifecycle.CleanedUp && !errors.Is(err, lifecycle.ErrLogin) {
		out.JUnit = junitSummary(ws.Fs(), junitPath, logger)
	}
	return err
}

func (o *Orchestrator) dispatch(req Request) (testrun.Config, testrun.Plan, testrun.Warnings, error) {
	cfg, err := req.Step.Resolve()
	if err != nil {
		return cfg, nil, nil, err
	}
	plan, warnings, err := testrun.Dispatch(cfg)
	return cfg, plan, warnings, err
}

func (o *Orchestrator) workspace(root string, settings *config.Config, executionID string) (*workspace.Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lifecycle.ErrWorkspace, err)
	}
	opts := []workspace.Option{workspace.WithFs(o.fs), workspace.WithHostOS(o.host)}
	if settings.Workspace.IsolateCredentials && executionID != "" {
		opts = append(opts, workspace.WithIsolatedCredentials(executionID))
	}
	ws, err := workspace.New(abs, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lifecycle.ErrWorkspace, err)
	}
	return ws, nil
}

func junitSummary(fs afero.Fs, path string, logger *slog.Logger) *report.Summary {
	sum, found, err := report.ReadFile(fs, path)
	switch {
	case err != nil:
		logger.Warn("could not read JUnit report", "path", path, "error", err)
		return nil
	case !found:
		logger.Warn("JUnit report requested but not produced", "path", path)
		return nil
	}
	logger.Info("JUnit report", "path", path, "tests", sum.Tests, "failures", sum.Failures,
		"errors", sum.Errors, "skipped", sum.Skipped)
	return &sum
}

func settingsOrDefault(s *config.Config) *config.Config {
	if s == nil {
		return config.DefaultConfig()
	}
	return s
}

// previewEngine returns an engine for rendering commands without probing
// whether it is installed.
func previewEngine(t container.EngineType) container.Engine {
	if t == container.EngineTypePodman {
		return container.NewPodmanEngine()
	}
	return container.NewDockerEngine()
}

// IsAborted reports whether the outcome ended because of cancellation.
func (o Outcome) IsAborted() bool {
	return o.ExitCode == ExitAborted && errors.Is(o.Err, context.Canceled)
}
