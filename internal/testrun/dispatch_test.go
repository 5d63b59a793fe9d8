// SPDX-License-Identifier: MPL-2.0

package testrun

import (
	"errors"
	"regexp/syntax"
	"slices"
	"strings"
	"testing"
)

func dispatch(t *testing.T, cfg Config) (Plan, Warnings, error) {
	t.Helper()
	return Dispatch(cfg)
}

func requireConfigError(t *testing.T, err error, fields ...string) *ConfigurationError {
	t.Helper()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %T", err)
	}
	got := cfgErr.Fields()
	for _, f := range fields {
		if !slices.Contains(got, f) {
			t.Errorf("problem fields = %v, missing %q", got, f)
		}
	}
	return cfgErr
}

func TestDispatch_TestPlanRejectsAppName(t *testing.T) {
	t.Parallel()

	plan, _, err := dispatch(t, Config{
		Mode:      ModeTestPlan,
		TestPlan:  "levo://plan/123",
		AppName:   "my-api-app",
		TargetURL: "https://api.example.com",
	})
	if plan != nil {
		t.Errorf("plan = %#v, want nil", plan)
	}
	requireConfigError(t, err, "app-name")
}

func TestDispatch_TestPlanRequiresTargetURL(t *testing.T) {
	t.Parallel()

	_, _, err := dispatch(t, Config{Mode: ModeTestPlan, TestPlan: "p"})
	requireConfigError(t, err, "target-url")
}

func TestDispatch_AppNameRequiresEnvironment(t *testing.T) {
	t.Parallel()

	_, _, err := dispatch(t, Config{Mode: ModeAppName, AppName: "my-api-app"})
	cfgErr := requireConfigError(t, err, "env")
	if cfgErr.Mode != ModeAppName {
		t.Errorf("Mode = %q, want %q", cfgErr.Mode, ModeAppName)
	}
}

func TestDispatch_AppName(t *testing.T) {
	t.Parallel()

	plan, warnings, err := dispatch(t, Config{
		Mode:        ModeAppName,
		AppName:     " my-api-app ",
		Environment: "production",
		Categories:  "BOLA,BFLA",
		DataSource:  "traces",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	got, ok := plan.(AppNameRun)
	if !ok {
		t.Fatalf("plan type = %T, want AppNameRun", plan)
	}
	want := AppNameRun{AppName: "my-api-app", Environment: "production", Categories: "BOLA,BFLA", DataSource: DataSourceTraces}
	if got.AppName != want.AppName || got.Environment != want.Environment ||
		got.Categories != want.Categories || got.DataSource != want.DataSource || got.TargetURL != "" {
		t.Errorf("plan = %+v, want %+v", got, want)
	}
}

func TestDispatch_InferredMode(t *testing.T) {
	t.Parallel()

	plan, _, err := dispatch(t, Config{TestPlan: "p", TargetURL: "http://localhost:8080"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if plan.Mode() != ModeTestPlan {
		t.Errorf("inferred mode = %q, want test-plan", plan.Mode())
	}

	_, _, err = dispatch(t, Config{})
	requireConfigError(t, err, "app-name", "env")
}

func TestDispatch_RemoteRunOnNormalization(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"onprem", "on-premises"} {
		plan, _, err := dispatch(t, Config{
			Mode:        ModeRemoteTestRun,
			AppName:     "a",
			Environment: "staging",
			DataSource:  "test user data",
			RunOn:       raw,
			TargetURL:   "https://target.example.com",
		})
		if err != nil {
			t.Fatalf("Dispatch(run-on=%q) error = %v", raw, err)
		}
		rr := plan.(RemoteRun)
		if rr.RunOn != RunOnPrem {
			t.Errorf("run-on %q normalized to %q, want %q", raw, rr.RunOn, RunOnPrem)
		}
		if rr.DataSource != DataSourceTestUserData {
			t.Errorf("data source = %q, want canonical %q", rr.DataSource, DataSourceTestUserData)
		}
	}
}

func TestDispatch_RemoteRequiredFields(t *testing.T) {
	t.Parallel()

	_, _, err := dispatch(t, Config{Mode: ModeRemoteTestRun})
	requireConfigError(t, err, "app-name", "env", "target-url", "data-source", "run-on")

	_, _, err = dispatch(t, Config{
		Mode:        ModeRemoteTestRun,
		AppName:     "a",
		Environment: "e",
		DataSource:  "logs",
		RunOn:       "mars",
		TargetURL:   "https://t",
	})
	requireConfigError(t, err, "data-source", "run-on")
}

func TestDispatch_InvalidEndpointPattern(t *testing.T) {
	t.Parallel()

	_, _, err := dispatch(t, Config{
		Mode:            ModeRemoteTestRun,
		AppName:         "a",
		Environment:     "e",
		DataSource:      "Traces",
		RunOn:           "cloud",
		TargetURL:       "https://t",
		EndpointPattern: "/users/(\\d+",
	})
	requireConfigError(t, err, "endpoint-pattern")

	var synErr *syntax.Error
	if !errors.As(err, &synErr) {
		t.Fatalf("error should carry the regexp diagnostic, got %v", err)
	}
	if synErr.Code != syntax.ErrMissingParen {
		t.Errorf("syntax error code = %q, want %q", synErr.Code, syntax.ErrMissingParen)
	}
	if !strings.Contains(err.Error(), "missing closing )") {
		t.Errorf("error message should include the diagnostic, got %q", err.Error())
	}
}

func TestDispatch_TestUsersBlankEntriesWarn(t *testing.T) {
	t.Parallel()

	plan, warnings, err := dispatch(t, Config{
		Mode:        ModeRemoteTestRun,
		AppName:     "a",
		Environment: "e",
		DataSource:  "Test User Data",
		RunOn:       "cloud",
		TargetURL:   "https://t",
		TestUsers:   "alice, ,bob,",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := plan.(RemoteRun).TestUsers; !slices.Equal(got, []string{"alice", "bob"}) {
		t.Errorf("TestUsers = %v", got)
	}
	if len(warnings) != 2 {
		t.Errorf("warnings = %v, want 2 blank-entry warnings", warnings)
	}
}

func TestDispatch_RemoteOnlyFieldsWarnInOtherModes(t *testing.T) {
	t.Parallel()

	_, warnings, err := dispatch(t, Config{
		Mode:          ModeAppName,
		AppName:       "a",
		Environment:   "e",
		Methods:       "GET",
		RunOn:         "cloud",
		FailThreshold: "3",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	var fields []string
	for _, w := range warnings {
		fields = append(fields, w.Field)
	}
	if !slices.Equal(fields, []string{"methods", "run-on", "fail-threshold"}) {
		t.Errorf("warning fields = %v", fields)
	}
}

func TestDispatch_FieldFormats(t *testing.T) {
	t.Parallel()

	base := Config{Mode: ModeAppName, AppName: "a", Environment: "e"}

	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{name: "relative target", edit: func(c *Config) { c.TargetURL = "/api" }, field: "target-url"},
		{name: "ftp target", edit: func(c *Config) { c.TargetURL = "ftp://host" }, field: "target-url"},
		{name: "negative threshold", edit: func(c *Config) { c.FailThreshold = "-1" }, field: "fail-threshold"},
		{name: "word threshold", edit: func(c *Config) { c.FailThreshold = "many" }, field: "fail-threshold"},
		{name: "unbalanced quote", edit: func(c *Config) { c.ExtraCLIArgs = `--header "X-A: b` }, field: "extra-cli-args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.edit(&cfg)
			_, _, err := dispatch(t, cfg)
			requireConfigError(t, err, tt.field)
		})
	}
}

func TestDispatch_ExtraArgsTokenized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		extra string
		want  []string
	}{
		{
			name:  "quotes group words",
			extra: `--verbosity DEBUG --header 'X-Build: 42' --tag "a b"`,
			want:  []string{"--verbosity", "DEBUG", "--header", "X-Build: 42", "--tag", "a b"},
		},
		{
			name:  "dollar in regex is literal",
			extra: `--filter ^/users/$id$`,
			want:  []string{"--filter", "^/users/$id$"},
		},
		{
			name:  "host variables are not expanded",
			extra: `--header X-Cost:$5 --note price$HOME --token "$PATH"`,
			want:  []string{"--header", "X-Cost:$5", "--note", "price$HOME", "--token", "$PATH"},
		},
		{
			name:  "command substitution is literal",
			extra: `--name $(whoami) *.json`,
			want:  []string{"--name", "$(whoami)", "*.json"},
		},
		{
			name:  "backslash escapes a space",
			extra: `--title my\ run`,
			want:  []string{"--title", "my run"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan, _, err := dispatch(t, Config{
				Mode:         ModeAppName,
				AppName:      "a",
				Environment:  "e",
				ExtraCLIArgs: tt.extra,
			})
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if got := plan.Extra(); !slices.Equal(got, tt.want) {
				t.Errorf("Extra() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlanHelpers(t *testing.T) {
	t.Parallel()

	if !AcceptsEnvironmentFile(TestPlanRun{}) || !AcceptsEnvironmentFile(AppNameRun{}) {
		t.Error("test subcommand modes should accept an environment file")
	}
	if AcceptsEnvironmentFile(RemoteRun{}) {
		t.Error("remote-test-run should not accept an environment file")
	}
	if !WantsJUnitReport(AppNameRun{JUnitReport: true}) || WantsJUnitReport(RemoteRun{}) {
		t.Error("WantsJUnitReport mismatch")
	}
}
