// SPDX-License-Identifier: MPL-2.0

package testrun

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// validation accumulates problems and warnings for one Config.
type validation struct {
	cfg      Config
	mode     Mode
	problems []Problem
	warnings Warnings
}

// InferMode returns the mode used when none is configured: test-plan when a
// test-plan id is present, app-name otherwise.
func InferMode(cfg Config) Mode {
	if present(cfg.TestPlan) {
		return ModeTestPlan
	}
	return ModeAppName
}

// Dispatch selects the run mode and validates cfg for it. On failure the
// error is a *ConfigurationError listing every problem found. Warnings are
// returned in both cases.
func Dispatch(cfg Config) (Plan, Warnings, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = InferMode(cfg)
	}
	if err := mode.Validate(); err != nil {
		return nil, nil, &ConfigurationError{Problems: []Problem{{Field: "mode", Message: "unknown mode", Err: err}}}
	}

	v := &validation{cfg: cfg, mode: mode}
	extra := v.shared()

	var plan Plan
	switch mode {
	case ModeTestPlan:
		plan = v.testPlan(extra)
	case ModeAppName:
		plan = v.appName(extra)
	case ModeRemoteTestRun:
		plan = v.remote(extra)
	}

	if len(v.problems) > 0 {
		return nil, v.warnings, &ConfigurationError{Mode: mode, Problems: v.problems}
	}
	return plan, v.warnings, nil
}

// shared validates fields whose format rules hold in every mode and returns
// the extra arguments split into words without any expansion.
func (v *validation) shared() []string {
	if present(v.cfg.TargetURL) {
		if err := checkTargetURL(v.cfg.TargetURL); err != nil {
			v.fail("target-url", "must be an absolute http(s) URL", err)
		}
	}
	v.checkPattern("endpoint-pattern", v.cfg.EndpointPattern)
	v.checkPattern("exclude-endpoint-pattern", v.cfg.ExcludeEndpointPattern)

	if present(v.cfg.FailThreshold) {
		n, err := strconv.Atoi(strings.TrimSpace(v.cfg.FailThreshold))
		switch {
		case err != nil:
			v.fail("fail-threshold", "must be an integer", err)
		case n < 0:
			v.fail("fail-threshold", fmt.Sprintf("must not be negative, got %d", n), nil)
		}
	}

	if !present(v.cfg.ExtraCLIArgs) {
		return nil
	}
	// Quotes and backslashes group words; $ and globs stay literal.
	fields, err := shellquote.Split(v.cfg.ExtraCLIArgs)
	if err != nil {
		v.fail("extra-cli-args", "cannot be split into arguments", err)
		return nil
	}
	return fields
}

func (v *validation) testPlan(extra []string) Plan {
	v.require("test-plan", v.cfg.TestPlan)
	v.require("target-url", v.cfg.TargetURL)
	if present(v.cfg.AppName) {
		v.fail("app-name", "must not be set together with test-plan", nil)
	}
	v.ignore("env", v.cfg.Environment)
	v.ignore("categories", v.cfg.Categories)
	v.ignore("data-source", v.cfg.DataSource)
	v.ignoreRemoteOnly()

	return TestPlanRun{
		TestPlan:    trim(v.cfg.TestPlan),
		TargetURL:   trim(v.cfg.TargetURL),
		JUnitReport: v.cfg.GenerateJUnitReport,
		ExtraArgs:   extra,
	}
}

func (v *validation) appName(extra []string) Plan {
	v.require("app-name", v.cfg.AppName)
	v.require("env", v.cfg.Environment)
	if present(v.cfg.TestPlan) {
		v.fail("test-plan", "must not be set together with app-name", nil)
	}
	var ds DataSource
	if present(v.cfg.DataSource) {
		ds = v.dataSource()
	}
	v.ignoreRemoteOnly()

	return AppNameRun{
		AppName:     trim(v.cfg.AppName),
		Environment: trim(v.cfg.Environment),
		Categories:  trim(v.cfg.Categories),
		DataSource:  ds,
		TargetURL:   trim(v.cfg.TargetURL),
		JUnitReport: v.cfg.GenerateJUnitReport,
		ExtraArgs:   extra,
	}
}

func (v *validation) remote(extra []string) Plan {
	v.require("app-name", v.cfg.AppName)
	v.require("env", v.cfg.Environment)
	v.require("target-url", v.cfg.TargetURL)
	if present(v.cfg.TestPlan) {
		v.fail("test-plan", "must not be set together with app-name", nil)
	}

	var ds DataSource
	if v.require("data-source", v.cfg.DataSource) {
		ds = v.dataSource()
	}
	var runOn RunOn
	if v.require("run-on", v.cfg.RunOn) {
		r, err := NormalizeRunOn(v.cfg.RunOn)
		if err != nil {
			v.fail("run-on", "unsupported location", err)
		}
		runOn = r
	}
	if v.cfg.GenerateJUnitReport {
		v.warn("junit", "remote-test-run does not export JUnit reports; ignored")
	}
	v.ignore("environment-secret-id", v.cfg.SecretEnvironmentID)

	return RemoteRun{
		AppName:                trim(v.cfg.AppName),
		Environment:            trim(v.cfg.Environment),
		DataSource:             ds,
		RunOn:                  runOn,
		Categories:             trim(v.cfg.Categories),
		Methods:                trim(v.cfg.Methods),
		ExcludeMethods:         trim(v.cfg.ExcludeMethods),
		EndpointPattern:        trim(v.cfg.EndpointPattern),
		ExcludeEndpointPattern: trim(v.cfg.ExcludeEndpointPattern),
		TestUsers:              v.testUsers(),
		TargetURL:              trim(v.cfg.TargetURL),
		FailSeverity:           trim(v.cfg.FailSeverity),
		FailScope:              trim(v.cfg.FailScope),
		FailThreshold:          trim(v.cfg.FailThreshold),
		ExtraArgs:              extra,
	}
}

func (v *validation) dataSource() DataSource {
	ds, err := ParseDataSource(v.cfg.DataSource)
	if err != nil {
		v.fail("data-source", "unsupported data source", err)
	}
	return ds
}

// testUsers splits the comma-separated list. Blank entries are dropped with
// a warning.
func (v *validation) testUsers() []string {
	if !present(v.cfg.TestUsers) {
		return nil
	}
	var users []string
	for i, u := range strings.Split(v.cfg.TestUsers, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			v.warn("test-users", fmt.Sprintf("entry %d is blank; ignored", i+1))
			continue
		}
		users = append(users, u)
	}
	return users
}

func (v *validation) ignoreRemoteOnly() {
	v.ignore("methods", v.cfg.Methods)
	v.ignore("exclude-methods", v.cfg.ExcludeMethods)
	v.ignore("endpoint-pattern", v.cfg.EndpointPattern)
	v.ignore("exclude-endpoint-pattern", v.cfg.ExcludeEndpointPattern)
	v.ignore("test-users", v.cfg.TestUsers)
	v.ignore("run-on", v.cfg.RunOn)
	v.ignore("fail-severity", v.cfg.FailSeverity)
	v.ignore("fail-scope", v.cfg.FailScope)
	v.ignore("fail-threshold", v.cfg.FailThreshold)
}

func (v *validation) checkPattern(field, pattern string) {
	if !present(pattern) {
		return
	}
	if _, err := regexp.Compile(pattern); err != nil {
		v.fail(field, "invalid regular expression", err)
	}
}

// require records a problem when value is blank and reports whether it was present.
func (v *validation) require(field, value string) bool {
	if present(value) {
		return true
	}
	v.fail(field, "required in "+v.mode.String()+" mode", nil)
	return false
}

func (v *validation) ignore(field, value string) {
	if present(value) {
		v.warn(field, "not used in "+v.mode.String()+" mode; ignored")
	}
}

func (v *validation) fail(field, msg string, err error) {
	v.problems = append(v.problems, Problem{Field: field, Message: msg, Err: err})
}

func (v *validation) warn(field, msg string) {
	v.warnings = append(v.warnings, Warning{Field: field, Message: msg})
}

func checkTargetURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
