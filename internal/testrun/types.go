// SPDX-License-Identifier: MPL-2.0

package testrun

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ModeTestPlan runs a stored test plan against a target.
	ModeTestPlan Mode = "test-plan"
	// ModeAppName runs tests derived from an application's API catalog.
	ModeAppName Mode = "app-name"
	// ModeRemoteTestRun triggers a run executed by a remote runner.
	ModeRemoteTestRun Mode = "remote-test-run"

	// DataSourceTestUserData drives tests from stored test-user data.
	DataSourceTestUserData DataSource = "Test User Data"
	// DataSourceTraces drives tests from recorded traffic traces.
	DataSourceTraces DataSource = "Traces"

	// RunOnCloud executes a remote run on Levo-hosted runners.
	RunOnCloud RunOn = "cloud"
	// RunOnPrem executes a remote run on customer-hosted runners.
	RunOnPrem RunOn = "on-prem"
)

var (
	// ErrInvalidMode is the sentinel error wrapped by InvalidModeError.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidDataSource is the sentinel error wrapped by InvalidDataSourceError.
	ErrInvalidDataSource = errors.New("invalid data source")
	// ErrInvalidRunOn is the sentinel error wrapped by InvalidRunOnError.
	ErrInvalidRunOn = errors.New("invalid run-on location")

	modeAliases = map[string]Mode{
		"test-plan":       ModeTestPlan,
		"testplan":        ModeTestPlan,
		"test_plan":       ModeTestPlan,
		"app-name":        ModeAppName,
		"appname":         ModeAppName,
		"app_name":        ModeAppName,
		"app":             ModeAppName,
		"remote-test-run": ModeRemoteTestRun,
		"remotetestrun":   ModeRemoteTestRun,
		"remote_test_run": ModeRemoteTestRun,
		"remote":          ModeRemoteTestRun,
	}

	runOnSynonyms = map[string]RunOn{
		"cloud":         RunOnCloud,
		"saas":          RunOnCloud,
		"hosted":        RunOnCloud,
		"levo":          RunOnCloud,
		"levo-cloud":    RunOnCloud,
		"on-prem":       RunOnPrem,
		"onprem":        RunOnPrem,
		"on_prem":       RunOnPrem,
		"on prem":       RunOnPrem,
		"on-premise":    RunOnPrem,
		"on-premises":   RunOnPrem,
		"onpremise":     RunOnPrem,
		"onpremises":    RunOnPrem,
		"self-hosted":   RunOnPrem,
		"selfhosted":    RunOnPrem,
		"local":         RunOnPrem,
		"customer":      RunOnPrem,
		"customer-host": RunOnPrem,
	}
)

type (
	// Mode selects which Levo CLI subcommand a run uses.
	Mode string

	// InvalidModeError is returned when a mode string matches no known alias.
	InvalidModeError struct {
		Value string
	}

	// DataSource selects where remote-run traffic comes from.
	DataSource string

	// InvalidDataSourceError is returned for a data source outside the canonical pair.
	InvalidDataSourceError struct {
		Value string
	}

	// RunOn selects where a remote run executes.
	RunOn string

	// InvalidRunOnError is returned when a run-on value has no synonym mapping.
	InvalidRunOnError struct {
		Value string
	}

	// Config is the resolved, single-valued step configuration.
	// Mode may be empty, in which case Dispatch infers it.
	Config struct {
		Mode                   Mode
		TargetURL              string
		TestPlan               string
		AppName                string
		Environment            string
		Categories             string
		Methods                string
		ExcludeMethods         string
		EndpointPattern        string
		ExcludeEndpointPattern string
		TestUsers              string
		DataSource             string
		RunOn                  string
		FailSeverity           string
		FailScope              string
		FailThreshold          string
		ExtraCLIArgs           string
		GenerateJUnitReport    bool

		// LevoCredentialsID names the Levo CLI credential record.
		LevoCredentialsID string
		// SecretEnvironmentID optionally names a secret holding environment.yaml.
		SecretEnvironmentID string
	}
)

// ParseMode maps a user-supplied mode string onto a Mode. Matching is
// case-insensitive and accepts the aliases in modeAliases. A blank string
// yields the zero Mode.
func ParseMode(raw string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", nil
	}
	if m, ok := modeAliases[key]; ok {
		return m, nil
	}
	return "", &InvalidModeError{Value: raw}
}

// Validate returns an error if the Mode is not one of the three known modes.
func (m Mode) Validate() error {
	switch m {
	case ModeTestPlan, ModeAppName, ModeRemoteTestRun:
		return nil
	default:
		return &InvalidModeError{Value: string(m)}
	}
}

// String returns the string representation of the Mode.
func (m Mode) String() string { return string(m) }

// Error implements the error interface.
func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid mode %q (valid: test-plan, app-name, remote-test-run)", e.Value)
}

// Unwrap returns ErrInvalidMode for errors.Is() compatibility.
func (e *InvalidModeError) Unwrap() error { return ErrInvalidMode }

// ParseDataSource matches raw case-insensitively against the canonical data
// sources and returns the canonical spelling.
func ParseDataSource(raw string) (DataSource, error) {
	trimmed := strings.TrimSpace(raw)
	for _, ds := range []DataSource{DataSourceTestUserData, DataSourceTraces} {
		if strings.EqualFold(trimmed, string(ds)) {
			return ds, nil
		}
	}
	return "", &InvalidDataSourceError{Value: raw}
}

// String returns the string representation of the DataSource.
func (d DataSource) String() string { return string(d) }

// Error implements the error interface.
func (e *InvalidDataSourceError) Error() string {
	return fmt.Sprintf("invalid data source %q (valid: %q, %q)", e.Value, DataSourceTestUserData, DataSourceTraces)
}

// Unwrap returns ErrInvalidDataSource for errors.Is() compatibility.
func (e *InvalidDataSourceError) Unwrap() error { return ErrInvalidDataSource }

// NormalizeRunOn maps raw onto cloud or on-prem through the synonym table.
// Matching ignores case and surrounding whitespace.
func NormalizeRunOn(raw string) (RunOn, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if r, ok := runOnSynonyms[key]; ok {
		return r, nil
	}
	return "", &InvalidRunOnError{Value: raw}
}

// String returns the string representation of the RunOn.
func (r RunOn) String() string { return string(r) }

// Error implements the error interface.
func (e *InvalidRunOnError) Error() string {
	return fmt.Sprintf("invalid run-on %q (valid: cloud, on-prem)", e.Value)
}

// Unwrap returns ErrInvalidRunOn for errors.Is() compatibility.
func (e *InvalidRunOnError) Unwrap() error { return ErrInvalidRunOn }
