// SPDX-License-Identifier: MPL-2.0

package levo

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"levo-ci/internal/container"
	"levo-ci/internal/credentials"
	"levo-ci/internal/runner"
	"levo-ci/internal/testrun"
	"levo-ci/internal/workspace"
	"levo-ci/pkg/platform"
)

const testKey = credentials.Secret("lk_0123456789abcdef")

func testCreds() *credentials.Credentials {
	return &credentials.Credentials{
		OrganizationID:   "org-42",
		AuthorizationKey: testKey,
		BaseURL:          "https://api.dev.levo.ai",
	}
}

func newTestBuilder(t *testing.T, host platform.HostOS, opts ...Option) *Builder {
	t.Helper()
	ws, err := workspace.New("/work", workspace.WithFs(afero.NewMemMapFs()), workspace.WithHostOS(host))
	if err != nil {
		t.Fatal(err)
	}
	return NewBuilder(container.NewDockerEngine(), ws, opts...)
}

func linuxPrefix() []string {
	return []string{
		"docker", "run", "--rm",
		"-v", "/work/.levoconfig:/home/levo/.config/configstore:rw",
		"-v", "/work/levo-reports:/home/levo/reports:rw",
		"-v", "/work:/home/levo/work:rw",
		"-e", "TERM=xterm-256color",
		"-e", "LEVO_BASE_URL=https://api.dev.levo.ai",
		"-e", "LOCAL_USER_ID=1000",
		"-e", "LOCAL_GROUP_ID=1001",
		"levoai/levo:stable",
	}
}

func assertArgv(t *testing.T, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("argv mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestBuilder_Login(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, platform.Linux, WithIdentity(Identity{UID: "1000", GID: "1001"}))
	cmd := b.Login(testCreds())

	assertArgv(t, cmd.Argv, append(linuxPrefix(), "login", "-k", testKey.Reveal(), "-o", "org-42"))
	if cmd.Timeout != runner.Long || cmd.Output != runner.Stream {
		t.Errorf("unexpected classes %v/%v", cmd.Timeout, cmd.Output)
	}
	if strings.Contains(cmd.String(), testKey.Reveal()) {
		t.Errorf("String() leaks the key: %s", cmd.String())
	}
	if !strings.Contains(cmd.String(), "-k lk_...def") {
		t.Errorf("String() should show the masked key: %s", cmd.String())
	}
}

func TestBuilder_Logout(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, platform.Linux, WithIdentity(Identity{UID: "1000", GID: "1001"}))
	cmd := b.Logout(testCreds())
	assertArgv(t, cmd.Argv, append(linuxPrefix(), "logout"))
	if cmd.Timeout != runner.Medium {
		t.Errorf("logout timeout class = %v", cmd.Timeout)
	}
}

func TestBuilder_Pull(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, platform.Linux, WithImage("levoai/levo:1.2.3"))
	cmd := b.Pull()
	assertArgv(t, cmd.Argv, []string{"docker", "pull", "levoai/levo:1.2.3"})
	if cmd.Timeout != runner.Medium {
		t.Errorf("pull timeout class = %v", cmd.Timeout)
	}
}

func TestBuilder_NonLinuxHostOmitsIdentity(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, platform.Darwin, WithIdentity(Identity{UID: "501", GID: "20"}))
	cmd := b.Logout(&credentials.Credentials{OrganizationID: "o"})

	joined := strings.Join(cmd.Argv, " ")
	if strings.Contains(joined, "LOCAL_USER_ID") || strings.Contains(joined, "LOCAL_GROUP_ID") {
		t.Errorf("non-Linux host must not set ownership ids: %s", joined)
	}
	if !strings.Contains(joined, "LEVO_BASE_URL=https://api.levo.ai") {
		t.Errorf("blank base URL must default: %s", joined)
	}
}

func TestBuilder_AppNameOmitsTargetURL(t *testing.T) {
	t.Parallel()

	plan, _, err := testrun.Dispatch(testrun.Config{
		Mode:        testrun.ModeAppName,
		AppName:     "my-api-app",
		Environment: "production",
		Categories:  "BOLA,BFLA",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	b := newTestBuilder(t, platform.Linux, WithIdentity(Identity{UID: "1000", GID: "1001"}))
	cmd, err := b.Main(plan, testCreds(), false)
	if err != nil {
		t.Fatalf("Main: %v", err)
	}

	joined := strings.Join(cmd.Argv, " ")
	if strings.Contains(joined, "--target-url") {
		t.Errorf("--target-url must be omitted: %s", joined)
	}
	if !strings.Contains(joined, "--app-name my-api-app --env production --categories BOLA,BFLA") {
		t.Errorf("missing app-name flags: %s", joined)
	}
	assertArgv(t, cmd.Argv, append(linuxPrefix(),
		"test", "--organization", "org-42",
		"--app-name", "my-api-app", "--env", "production", "--categories", "BOLA,BFLA"))
}

func TestBuilder_AppNameFullFlags(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, platform.Linux, WithIdentity(Identity{UID: "1000", GID: "1001"}))
	cmd := b.AppName(testrun.AppNameRun{
		AppName:     "shop",
		Environment: "staging",
		Categories:  "BOLA",
		DataSource:  testrun.DataSourceTraces,
		TargetURL:   "https://shop.example.com",
		JUnitReport: true,
		ExtraArgs:   []string{"--verbosity", "DEBUG"},
	}, testCreds(), true)

	assertArgv(t, cmd.Argv, append(linuxPrefix(),
		"test", "--organization", "org-42",
		"--app-name", "shop", "--env", "staging",
		"--categories", "BOLA", "--data-source", "Traces",
		"--target-url", "https://shop.example.com",
		"--export-junit-xml=/home/levo/reports/junit.xml",
		"--env-file", "environment.yaml",
		"--verbosity", "DEBUG"))
}

func TestBuilder_TestPlan(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, platform.Linux, WithIdentity(Identity{UID: "1000", GID: "1001"}))
	creds := testCreds()
	creds.OrganizationID = ""
	creds.BaseURL = "https://api.dev.levo.ai"

	cmd := b.TestPlan(testrun.TestPlanRun{
		TestPlan:  "ns:app/plan-1",
		TargetURL: "https://api.example.com",
		ExtraArgs: []string{"--fail-fast"},
	}, creds, false)

	assertArgv(t, cmd.Argv, append(linuxPrefix(),
		"test", "--test-plan", "ns:app/plan-1", "--target-url", "https://api.example.com", "--fail-fast"))
}

func TestBuilder_RemoteTestRun(t *testing.T) {
	t.Parallel()

	plan, _, err := testrun.Dispatch(testrun.Config{
		Mode:            testrun.ModeRemoteTestRun,
		AppName:         "shop",
		Environment:     "prod",
		DataSource:      "test user data",
		RunOn:           "on-premises",
		Methods:         "GET,POST",
		EndpointPattern: "^/api/.*",
		TestUsers:       "alice, bob",
		TargetURL:       "https://shop.example.com",
		FailSeverity:    "high",
		FailThreshold:   "3",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	b := newTestBuilder(t, platform.Linux, WithIdentity(Identity{UID: "1000", GID: "1001"}))
	cmd, err := b.Main(plan, testCreds(), true)
	if err != nil {
		t.Fatalf("Main: %v", err)
	}

	assertArgv(t, cmd.Argv, append(linuxPrefix(),
		"remote-test-run",
		"--app-name", "shop", "--env", "prod",
		"--data-source", "Test User Data", "--run-on", "on-prem",
		"--methods", "GET,POST",
		"--endpoint-pattern", "^/api/.*",
		"--test-users", "alice,bob",
		"--target-url", "https://shop.example.com",
		"--fail-severity", "high", "--fail-threshold", "3",
		"--key", testKey.Reveal(), "--organization", "org-42",
		"--verbosity", "INFO"))
	if strings.Contains(cmd.String(), testKey.Reveal()) {
		t.Errorf("String() leaks the key: %s", cmd.String())
	}
}

func TestBuilder_RunOnSynonymsCanonicalize(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, platform.Linux)
	for _, raw := range []string{"onprem", "on-premises"} {
		plan, _, err := testrun.Dispatch(testrun.Config{
			Mode:        testrun.ModeRemoteTestRun,
			AppName:     "a",
			Environment: "e",
			DataSource:  "Traces",
			RunOn:       raw,
			TargetURL:   "https://t.example.com",
		})
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		cmd, err := b.Main(plan, testCreds(), false)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(strings.Join(cmd.Argv, " "), "--run-on on-prem ") {
			t.Errorf("%s: run-on not canonical: %q", raw, cmd.Argv)
		}
	}
}

type unknownPlan struct{ testrun.TestPlanRun }

func TestBuilder_MainUnknownPlan(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, platform.Linux)
	if _, err := b.Main(unknownPlan{}, testCreds(), false); !errors.Is(err, ErrUnsupportedPlan) {
		t.Fatalf("expected ErrUnsupportedPlan, got %v", err)
	}
}

type fakeRunner struct {
	outputs map[string]string
	err     error
	calls   []runner.Invocation
}

func (f *fakeRunner) Run(_ context.Context, inv runner.Invocation) (*runner.Result, error) {
	f.calls = append(f.calls, inv)
	if f.err != nil {
		return nil, f.err
	}
	return &runner.Result{Stdout: f.outputs[strings.Join(inv.Argv, " ")]}, nil
}

func TestBuilder_ProbeIdentity(t *testing.T) {
	t.Parallel()

	t.Run("linux", func(t *testing.T) {
		t.Parallel()
		r := &fakeRunner{outputs: map[string]string{"id -u": "1000\n", "id -g": "1001\n"}}
		b := newTestBuilder(t, platform.Linux)
		id, err := b.ProbeIdentity(t.Context(), r)
		if err != nil {
			t.Fatalf("ProbeIdentity: %v", err)
		}
		if id != (Identity{UID: "1000", GID: "1001"}) || b.Identity() != id {
			t.Errorf("identity = %+v", id)
		}
		for _, inv := range r.calls {
			if inv.Timeout != runner.Short || inv.Output != runner.Capture {
				t.Errorf("probe %q must be short and captured", inv.Name)
			}
		}
		assertArgv(t, b.Logout(testCreds()).Argv, append(linuxPrefix(), "logout"))
	})

	t.Run("non-numeric output", func(t *testing.T) {
		t.Parallel()
		r := &fakeRunner{outputs: map[string]string{"id -u": "root", "id -g": "0"}}
		b := newTestBuilder(t, platform.Linux)
		if _, err := b.ProbeIdentity(t.Context(), r); err == nil {
			t.Fatal("expected error for non-numeric id")
		}
	})

	t.Run("runner failure", func(t *testing.T) {
		t.Parallel()
		r := &fakeRunner{err: &runner.ExitError{Name: "id -u", Code: 1}}
		b := newTestBuilder(t, platform.Linux)
		_, err := b.ProbeIdentity(t.Context(), r)
		var exitErr *runner.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("expected wrapped *runner.ExitError, got %v", err)
		}
	})

	t.Run("windows skips probes", func(t *testing.T) {
		t.Parallel()
		r := &fakeRunner{}
		b := newTestBuilder(t, platform.Windows)
		if _, err := b.ProbeIdentity(t.Context(), r); err != nil {
			t.Fatal(err)
		}
		if len(r.calls) != 0 {
			t.Errorf("expected no probes, got %d", len(r.calls))
		}
	})
}
