// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"levo-ci/internal/config"
	"levo-ci/internal/container"
	"levo-ci/internal/credentials"
	"levo-ci/internal/issue"
	"levo-ci/internal/lifecycle"
	"levo-ci/internal/runner"
	"levo-ci/internal/testrun"
	"levo-ci/pkg/platform"
)

const testKey = "lk_secret_value_123"

type recordingRunner struct {
	mu    sync.Mutex
	calls []runner.Invocation
	errs  map[string]error
	// onRun is called for every invocation before its error is returned.
	onRun func(ctx context.Context, inv runner.Invocation) error
}

func (r *recordingRunner) Run(ctx context.Context, inv runner.Invocation) (*runner.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	err := r.errs[inv.Name]
	r.mu.Unlock()

	if r.onRun != nil {
		if hookErr := r.onRun(ctx, inv); hookErr != nil {
			err = hookErr
		}
	}
	res := &runner.Result{}
	if strings.HasPrefix(inv.Name, "id ") {
		res.Stdout = "1000\n"
	}
	return res, err
}

func (r *recordingRunner) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Name
	}
	return out
}

func (r *recordingRunner) argv(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.Name == name {
			return c.Argv
		}
	}
	return nil
}

type harness struct {
	fs       afero.Fs
	runner   *recordingRunner
	store    credentials.MapStore
	settings *config.Config
	engine   container.Engine
	engErr   error
}

func newHarness() *harness {
	settings := config.DefaultConfig()
	settings.Pull.Enabled = false
	return &harness{
		fs:     afero.NewMemMapFs(),
		runner: &recordingRunner{errs: map[string]error{}},
		store: credentials.MapStore{
			"levo-prod": {
				Type:             credentials.RecordLevoCLI,
				Description:      "Levo production",
				OrganizationID:   "org-1",
				AuthorizationKey: testKey,
			},
			"levo-env": {
				Type:   credentials.RecordSecretText,
				Secret: "auth:\n  token: abc\n",
			},
		},
		settings: settings,
		engine:   container.NewDockerEngine(),
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return New(
		WithStore(h.store),
		WithEngineFactory(func(context.Context, container.EngineType) (container.Engine, error) {
			if h.engErr != nil {
				return nil, h.engErr
			}
			return h.engine, nil
		}),
		WithRunner(h.runner),
		WithFs(h.fs),
		WithHostOS(platform.Linux),
		WithExecutionID(func() string { return "exec-1" }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func appNameStep(extra map[string]config.Candidates) config.StepSources {
	flags := map[string]config.Candidates{
		config.KeyAppName:       {"my-api-app"},
		config.KeyEnvironment:   {"production"},
		config.KeyCategories:    {"BOLA,BFLA"},
		config.KeyCredentialsID: {"levo-prod"},
	}
	for k, v := range extra {
		flags[k] = v
	}
	return config.StepSources{Flags: flags}
}

func (h *harness) request(step config.StepSources) Request {
	return Request{Step: step, Settings: h.settings, WorkDir: "/work"}
}

func requireIssue(t *testing.T, err error, want issue.Id) {
	t.Helper()
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *issue.ActionableError, got %T: %v", err, err)
	}
	if ae.Issue != want {
		t.Errorf("issue = %d, want %d", ae.Issue, want)
	}
}

func TestExecute_AppNameSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.runner.onRun = func(_ context.Context, inv runner.Invocation) error {
		if inv.Name == "test" {
			path := filepath.Join("/work", "levo-reports", JUnitReportFile)
			return afero.WriteFile(h.fs, path, []byte(`<testsuites tests="4" failures="0"/>`), 0o644)
		}
		return nil
	}
	step := appNameStep(map[string]config.Candidates{
		config.KeyJUnit:               {"true"},
		config.KeyEnvironmentSecretID: {"levo-env"},
	})

	out := h.orchestrator().Execute(t.Context(), h.request(step))
	if out.ExitCode != ExitOK || out.Err != nil {
		t.Fatalf("exit %d: %v", out.ExitCode, out.Err)
	}
	if out.ExecutionID != "exec-1" {
		t.Errorf("ExecutionID = %q", out.ExecutionID)
	}
	if _, ok := out.Plan.(testrun.AppNameRun); !ok {
		t.Errorf("plan = %T", out.Plan)
	}

	want := []string{"id -u", "id -g", "login", "test", "logout"}
	if got := h.runner.names(); !slices.Equal(got, want) {
		t.Errorf("invocations = %q, want %q", got, want)
	}
	argv := strings.Join(h.runner.argv("test"), " ")
	for _, frag := range []string{
		"test --organization org-1 --app-name my-api-app --env production --categories BOLA,BFLA",
		"--export-junit-xml=/home/levo/reports/junit.xml --env-file environment.yaml",
		"-e LOCAL_USER_ID=1000 -e LOCAL_GROUP_ID=1000 levoai/levo:stable",
	} {
		if !strings.Contains(argv, frag) {
			t.Errorf("main argv missing %q:\n%s", frag, argv)
		}
	}
	if strings.Contains(argv, "--target-url") {
		t.Error("blank target URL must be omitted")
	}

	if out.JUnit == nil || out.JUnit.Tests != 4 {
		t.Errorf("JUnit summary = %+v", out.JUnit)
	}
	if !out.Lifecycle.CleanedUp || !out.Lifecycle.EnvironmentFile {
		t.Errorf("lifecycle report = %+v", out.Lifecycle)
	}
	if ok, _ := afero.Exists(h.fs, "/work/environment.yaml"); ok {
		t.Error("environment file left behind")
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		step      config.StepSources
		setup     func(h *harness)
		wantCode  int
		wantIssue issue.Id
		wantCalls []string
	}{
		{
			name: "configuration error starts nothing",
			step: appNameStep(map[string]config.Candidates{
				config.KeyTestPlan: {"plan-1"},
				config.KeyMode:     {"app-name"},
			}),
			wantCode:  ExitConfiguration,
			wantIssue: issue.StepConfigInvalidId,
		},
		{
			name:      "unknown credential",
			step:      appNameStep(map[string]config.Candidates{config.KeyCredentialsID: {"nope"}}),
			wantCode:  ExitCredentials,
			wantIssue: issue.CredentialNotFoundId,
		},
		{
			name:      "unknown environment secret",
			step:      appNameStep(map[string]config.Candidates{config.KeyEnvironmentSecretID: {"nope"}}),
			wantCode:  ExitCredentials,
			wantIssue: issue.EnvironmentNotFoundId,
		},
		{
			name: "login failure skips main",
			step: appNameStep(nil),
			setup: func(h *harness) {
				h.runner.errs["login"] = &runner.ExitError{Name: "login", Code: 1, Tail: "unauthorized"}
			},
			wantCode:  ExitLogin,
			wantIssue: issue.LoginFailedId,
			wantCalls: []string{"id -u", "id -g", "login", "logout"},
		},
		{
			name: "main exit code propagates",
			step: appNameStep(nil),
			setup: func(h *harness) {
				h.runner.errs["test"] = &runner.ExitError{Name: "test", Code: 7}
			},
			wantCode:  7,
			wantIssue: issue.TestRunFailedId,
			wantCalls: []string{"id -u", "id -g", "login", "test", "logout"},
		},
		{
			name: "main timeout",
			step: appNameStep(nil),
			setup: func(h *harness) {
				h.runner.errs["test"] = &runner.TimeoutError{Name: "test", Class: runner.Long, Timeout: time.Minute}
			},
			wantCode:  ExitTimeout,
			wantIssue: issue.TestRunTimedOutId,
			wantCalls: []string{"id -u", "id -g", "login", "test", "logout"},
		},
		{
			name: "engine unavailable",
			step: appNameStep(nil),
			setup: func(h *harness) {
				h.engErr = &container.EngineNotAvailableError{Engine: container.EngineTypeDocker, Reason: "not installed"}
			},
			wantCode:  ExitFailure,
			wantIssue: issue.ContainerEngineNotFoundId,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness()
			if tt.setup != nil {
				tt.setup(h)
			}
			out := h.orchestrator().Execute(t.Context(), h.request(tt.step))
			if out.ExitCode != tt.wantCode {
				t.Errorf("exit code = %d, want %d (%v)", out.ExitCode, tt.wantCode, out.Err)
			}
			requireIssue(t, out.Err, tt.wantIssue)
			if got := h.runner.names(); !slices.Equal(got, tt.wantCalls) {
				t.Errorf("invocations = %q, want %q", got, tt.wantCalls)
			}
		})
	}
}

func TestExecute_Cancelled(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx, cancel := context.WithCancel(t.Context())
	h.runner.onRun = func(ctx context.Context, inv runner.Invocation) error {
		if inv.Name == "test" {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	out := h.orchestrator().Execute(ctx, h.request(appNameStep(nil)))
	if out.ExitCode != ExitAborted || !out.IsAborted() {
		t.Fatalf("exit code = %d (%v)", out.ExitCode, out.Err)
	}
	if got := h.runner.names(); got[len(got)-1] != "logout" {
		t.Errorf("cleanup did not run after cancellation: %q", got)
	}
}

func TestExecute_RemoteRunIgnoresEnvironmentSecret(t *testing.T) {
	t.Parallel()

	h := newHarness()
	step := config.StepSources{Flags: map[string]config.Candidates{
		config.KeyMode:                {"remote"},
		config.KeyAppName:             {"my-api-app"},
		config.KeyEnvironment:         {"staging"},
		config.KeyDataSource:          {"traces"},
		config.KeyRunOn:               {"saas"},
		config.KeyTargetURL:           {"https://api.example.com"},
		config.KeyCredentialsID:       {"levo-prod"},
		config.KeyEnvironmentSecretID: {"does-not-exist"},
	}}

	out := h.orchestrator().Execute(t.Context(), h.request(step))
	if out.ExitCode != ExitOK {
		t.Fatalf("exit %d: %v", out.ExitCode, out.Err)
	}
	argv := strings.Join(h.runner.argv("remote-test-run"), " ")
	for _, frag := range []string{
		"remote-test-run --app-name my-api-app --env staging --data-source Traces --run-on cloud",
		"--key " + testKey + " --organization org-1 --verbosity INFO",
	} {
		if !strings.Contains(argv, frag) {
			t.Errorf("argv missing %q:\n%s", frag, argv)
		}
	}
	if strings.Contains(argv, "--env-file") {
		t.Error("remote-test-run must not receive --env-file")
	}
}

func TestExecute_IsolatedCredentialStore(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.settings.Workspace.IsolateCredentials = true

	out := h.orchestrator().Execute(t.Context(), h.request(appNameStep(nil)))
	if out.ExitCode != ExitOK {
		t.Fatalf("exit %d: %v", out.ExitCode, out.Err)
	}
	argv := strings.Join(h.runner.argv("login"), " ")
	if !strings.Contains(argv, "/work/.levoconfig-exec-1:/home/levo/.config/configstore:rw") {
		t.Errorf("login argv does not mount the isolated store:\n%s", argv)
	}
	if ok, _ := afero.DirExists(h.fs, "/work/.levoconfig-exec-1"); ok {
		t.Error("isolated credential store not removed")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	h := newHarness()
	o := h.orchestrator()

	preview, err := o.Validate(t.Context(), h.request(appNameStep(nil)), false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if preview.Command != "" || preview.Credentials != nil {
		t.Error("credentials resolved without a command request")
	}

	preview, err = o.Validate(t.Context(), h.request(appNameStep(nil)), true)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if strings.Contains(preview.Command, testKey) {
		t.Errorf("preview leaks the key: %s", preview.Command)
	}
	if !strings.Contains(preview.Command, "lk_...123") {
		t.Errorf("preview does not show the masked key: %s", preview.Command)
	}
	if preview.Credentials.Name != "Levo production" {
		t.Errorf("credential name = %q", preview.Credentials.Name)
	}
	if len(h.runner.names()) != 0 {
		t.Errorf("Validate started processes: %q", h.runner.names())
	}

	_, err = o.Validate(t.Context(), h.request(config.StepSources{}), false)
	requireIssue(t, err, issue.StepConfigInvalidId)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"configuration", &testrun.ConfigurationError{}, ExitConfiguration},
		{"credential", &credentials.ResolutionError{Kind: credentials.ErrCredentialNotFound}, ExitCredentials},
		{"login timeout is a login error", &lifecycle.LoginError{ExitCode: -1, Err: context.DeadlineExceeded}, ExitLogin},
		{"execution", &ExecutionError{Command: "test", ExitCode: 9}, 9},
		{"timeout", &ExecutionError{Command: "test", ExitCode: ExitTimeout, Timeout: true}, ExitTimeout},
		{"aborted", context.Canceled, ExitAborted},
		{"unknown", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode = %d, want %d", got, tt.want)
			}
			if tt.err != nil {
				if got := ExitCode(actionable(tt.err, "")); got != tt.want {
					t.Errorf("ExitCode through ActionableError = %d, want %d", got, tt.want)
				}
			}
		})
	}
}

func TestNewExecutionError(t *testing.T) {
	t.Parallel()

	if err := newExecutionError("test", context.Canceled); !errors.Is(err, context.Canceled) || ExitCode(err) != ExitAborted {
		t.Errorf("cancellation misclassified: %v", err)
	}
	var execErr *ExecutionError
	err := newExecutionError("test", errors.New("start failed"))
	if !errors.As(err, &execErr) || execErr.ExitCode != ExitFailure {
		t.Errorf("unknown failure: %v", err)
	}
	if !errors.Is(err, ErrExecution) {
		t.Error("ExecutionError must wrap ErrExecution")
	}
}
