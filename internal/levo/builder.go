// SPDX-License-Identifier: MPL-2.0

package levo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"levo-ci/internal/config"
	"levo-ci/internal/container"
	"levo-ci/internal/credentials"
	"levo-ci/internal/runner"
	"levo-ci/internal/testrun"
	"levo-ci/internal/workspace"
)

// ErrUnsupportedPlan is returned by Main for a Plan type it does not know.
var ErrUnsupportedPlan = errors.New("unsupported run plan")

type (
	// Identity is the host user and group that should own files the
	// container writes into bind mounts.
	Identity struct {
		UID string
		GID string
	}

	// Option configures a Builder.
	Option func(*Builder)

	// Builder produces Levo CLI commands for one workspace and engine.
	// Argument order is fixed: engine run prefix, volumes, environment,
	// image, subcommand, structured flags, extra arguments.
	Builder struct {
		engine   container.Engine
		ws       *workspace.Workspace
		image    string
		identity Identity
	}
)

// IsZero reports whether no identity is known.
func (i Identity) IsZero() bool { return i.UID == "" && i.GID == "" }

// WithImage overrides the Levo CLI image.
func WithImage(image string) Option {
	return func(b *Builder) {
		if image != "" {
			b.image = image
		}
	}
}

// WithIdentity sets the host identity without probing.
func WithIdentity(id Identity) Option {
	return func(b *Builder) {
		b.identity = id
	}
}

// NewBuilder creates a Builder.
func NewBuilder(engine container.Engine, ws *workspace.Workspace, opts ...Option) *Builder {
	b := &Builder{engine: engine, ws: ws, image: config.DefaultImage}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Image returns the image reference used for every command.
func (b *Builder) Image() string { return b.image }

// Identity returns the identity used for LOCAL_USER_ID / LOCAL_GROUP_ID.
func (b *Builder) Identity() Identity { return b.identity }

// ProbeIdentity runs `id -u` and `id -g` on Linux hosts and records the result.
// On other hosts it is a no-op.
func (b *Builder) ProbeIdentity(ctx context.Context, r runner.Runner) (Identity, error) {
	if !b.ws.Host().IsLinux() {
		return Identity{}, nil
	}
	uid, err := probeID(ctx, r, "-u")
	if err != nil {
		return Identity{}, err
	}
	gid, err := probeID(ctx, r, "-g")
	if err != nil {
		return Identity{}, err
	}
	b.identity = Identity{UID: uid, GID: gid}
	return b.identity, nil
}

func probeID(ctx context.Context, r runner.Runner, flag string) (string, error) {
	res, err := r.Run(ctx, runner.Invocation{
		Name:    "id " + flag,
		Argv:    []string{"id", flag},
		Timeout: runner.Short,
		Output:  runner.Capture,
	})
	if err != nil {
		return "", fmt.Errorf("probe host id %s: %w", flag, err)
	}
	out := strings.TrimSpace(res.Stdout)
	if _, err := strconv.ParseUint(out, 10, 32); err != nil {
		return "", fmt.Errorf("probe host id %s: unexpected output %q", flag, out)
	}
	return out, nil
}

// Pull builds the image refresh command.
func (b *Builder) Pull() Command {
	argv := append([]string{b.engine.Name()}, b.engine.PullArgs(b.image)...)
	return Command{Name: "pull", Argv: argv, Timeout: runner.Medium, Output: runner.Stream}
}

// Login builds `login -k <key> -o <org>`.
func (b *Builder) Login(creds *credentials.Credentials) Command {
	return b.command("login", creds, runner.Long,
		"login", "-k", creds.AuthorizationKey.Reveal(), "-o", creds.OrganizationID)
}

// Logout builds `logout`.
func (b *Builder) Logout(creds *credentials.Credentials) Command {
	return b.command("logout", creds, runner.Medium, "logout")
}

// Main builds the primary command for plan. envFile reports whether the
// environment file was written to the workspace.
func (b *Builder) Main(plan testrun.Plan, creds *credentials.Credentials, envFile bool) (Command, error) {
	switch p := plan.(type) {
	case testrun.TestPlanRun:
		return b.TestPlan(p, creds, envFile), nil
	case testrun.AppNameRun:
		return b.AppName(p, creds, envFile), nil
	case testrun.RemoteRun:
		return b.RemoteTestRun(p, creds), nil
	default:
		return Command{}, fmt.Errorf("%w: %T", ErrUnsupportedPlan, plan)
	}
}

// TestPlan builds `test --test-plan` for a stored test plan.
func (b *Builder) TestPlan(p testrun.TestPlanRun, creds *credentials.Credentials, envFile bool) Command {
	args := []string{"test"}
	args = appendOrganization(args, creds)
	args = append(args, "--test-plan", p.TestPlan, "--target-url", p.TargetURL)
	args = appendTestTail(args, p.JUnitReport, envFile, p.ExtraArgs)
	return b.command("test", creds, runner.Long, args...)
}

// AppName builds `test --app-name ... --env ...`. The target URL is omitted
// when blank so the app's configured default applies.
func (b *Builder) AppName(p testrun.AppNameRun, creds *credentials.Credentials, envFile bool) Command {
	args := []string{"test"}
	args = appendOrganization(args, creds)
	args = append(args, "--app-name", p.AppName, "--env", p.Environment)
	args = appendOptional(args, "--categories", p.Categories)
	args = appendOptional(args, "--data-source", p.DataSource.String())
	args = appendOptional(args, "--target-url", p.TargetURL)
	args = appendTestTail(args, p.JUnitReport, envFile, p.ExtraArgs)
	return b.command("test", creds, runner.Long, args...)
}

// RemoteTestRun builds `remote-test-run`. The API key travels as a flag
// because the remote runner does not use the local login state.
func (b *Builder) RemoteTestRun(p testrun.RemoteRun, creds *credentials.Credentials) Command {
	args := []string{
		"remote-test-run",
		"--app-name", p.AppName,
		"--env", p.Environment,
		"--data-source", p.DataSource.String(),
		"--run-on", p.RunOn.String(),
	}
	args = appendOptional(args, "--categories", p.Categories)
	args = appendOptional(args, "--methods", p.Methods)
	args = appendOptional(args, "--exclude-methods", p.ExcludeMethods)
	args = appendOptional(args, "--endpoint-pattern", p.EndpointPattern)
	args = appendOptional(args, "--exclude-endpoint-pattern", p.ExcludeEndpointPattern)
	args = appendOptional(args, "--test-users", strings.Join(p.TestUsers, ","))
	args = append(args, "--target-url", p.TargetURL)
	args = appendOptional(args, "--fail-severity", p.FailSeverity)
	args = appendOptional(args, "--fail-scope", p.FailScope)
	args = appendOptional(args, "--fail-threshold", p.FailThreshold)
	args = append(args,
		"--key", creds.AuthorizationKey.Reveal(),
		"--organization", creds.OrganizationID,
		"--verbosity", RemoteVerbosity,
	)
	args = append(args, p.ExtraArgs...)
	return b.command("remote-test-run", creds, runner.Long, args...)
}

func (b *Builder) command(name string, creds *credentials.Credentials, timeout runner.TimeoutClass, levoArgs ...string) Command {
	mounts := b.ws.Mounts()
	opts := container.RunOptions{
		Image:  b.image,
		Remove: true,
		Volumes: []container.VolumeMount{
			{HostPath: mounts.ConfigStore, ContainerPath: ConfigStorePath},
			{HostPath: mounts.Reports, ContainerPath: ReportsPath},
			{HostPath: mounts.Work, ContainerPath: WorkPath},
		},
		Env: []container.EnvVar{
			{Name: "TERM", Value: TerminalType},
			{Name: "LEVO_BASE_URL", Value: baseURL(creds)},
		},
		Command: levoArgs,
	}
	if b.ws.Host().IsLinux() && !b.identity.IsZero() {
		opts.Env = append(opts.Env,
			container.EnvVar{Name: "LOCAL_USER_ID", Value: b.identity.UID},
			container.EnvVar{Name: "LOCAL_GROUP_ID", Value: b.identity.GID},
		)
	}

	var secrets []credentials.Secret
	if creds != nil && !creds.AuthorizationKey.IsZero() {
		secrets = []credentials.Secret{creds.AuthorizationKey}
	}

	return Command{
		Name:    name,
		Argv:    append([]string{b.engine.Name()}, b.engine.RunArgs(opts)...),
		Secrets: secrets,
		Timeout: timeout,
		Output:  runner.Stream,
	}
}

func baseURL(creds *credentials.Credentials) string {
	if creds == nil || strings.TrimSpace(creds.BaseURL) == "" {
		return credentials.DefaultBaseURL
	}
	return creds.BaseURL
}

func appendOrganization(args []string, creds *credentials.Credentials) []string {
	if creds == nil {
		return args
	}
	return appendOptional(args, "--organization", creds.OrganizationID)
}

func appendOptional(args []string, flag, value string) []string {
	if value == "" {
		return args
	}
	return append(args, flag, value)
}

func appendTestTail(args []string, junit, envFile bool, extra []string) []string {
	if junit {
		args = append(args, "--export-junit-xml="+JUnitReportPath)
	}
	if envFile {
		args = append(args, "--env-file", EnvironmentFileArg)
	}
	return append(args, extra...)
}
