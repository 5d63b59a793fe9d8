// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"levo-ci/internal/testrun"
	"levo-ci/pkg/cueutil"

	"github.com/spf13/viper"
)

const (
	// StepFileName is the conventional step file in the workspace root.
	StepFileName = "levo-step.cue"
	// StepEnvPrefix prefixes step variables, e.g. LEVO_STEP_APP_NAME.
	StepEnvPrefix = "LEVO_STEP"

	KeyMode                   = "mode"
	KeyTargetURL              = "target_url"
	KeyTestPlan               = "test_plan"
	KeyAppName                = "app_name"
	KeyEnvironment            = "environment"
	KeyCategories             = "categories"
	KeyMethods                = "methods"
	KeyExcludeMethods         = "exclude_methods"
	KeyEndpointPattern        = "endpoint_pattern"
	KeyExcludeEndpointPattern = "exclude_endpoint_pattern"
	KeyTestUsers              = "test_users"
	KeyDataSource             = "data_source"
	KeyRunOn                  = "run_on"
	KeyFailSeverity           = "fail_severity"
	KeyFailScope              = "fail_scope"
	KeyFailThreshold          = "fail_threshold"
	KeyExtraCLIArgs           = "extra_cli_args"
	KeyJUnit                  = "junit"
	KeyCredentialsID          = "credentials_id"
	KeyEnvironmentSecretID    = "environment_secret_id"
)

//go:embed step_schema.cue
var stepSchema []byte

// StepKeys lists every step field in documentation order.
var StepKeys = []string{
	KeyMode, KeyTargetURL, KeyTestPlan, KeyAppName, KeyEnvironment, KeyCategories,
	KeyMethods, KeyExcludeMethods, KeyEndpointPattern, KeyExcludeEndpointPattern,
	KeyTestUsers, KeyDataSource, KeyRunOn, KeyFailSeverity, KeyFailScope,
	KeyFailThreshold, KeyExtraCLIArgs, KeyJUnit, KeyCredentialsID, KeyEnvironmentSecretID,
}

// StepSources holds the candidates for every step field, per source.
// Candidates are consulted flags first, then environment, then file.
type StepSources struct {
	Flags map[string]Candidates
	Env   map[string]Candidates
	File  map[string]Candidates
}

// Candidates returns the merged candidate sequence for key.
func (s StepSources) Candidates(key string) Candidates {
	var out Candidates
	out = append(out, s.Flags[key]...)
	out = append(out, s.Env[key]...)
	out = append(out, s.File[key]...)
	return out
}

// Resolve collapses every field to a single value and returns the run
// configuration. Unknown modes and non-boolean junit values are reported
// as *testrun.ConfigurationError.
func (s StepSources) Resolve() (testrun.Config, error) {
	get := func(key string) string { return s.Candidates(key).String() }

	var problems []testrun.Problem

	mode, err := testrun.ParseMode(get(KeyMode))
	if err != nil {
		problems = append(problems, testrun.Problem{Field: "mode", Message: "unknown mode", Err: err})
	}
	junit, err := ResolveBool(s.Candidates(KeyJUnit))
	if err != nil {
		problems = append(problems, testrun.Problem{Field: "junit", Message: "invalid flag value", Err: err})
	}
	if len(problems) > 0 {
		return testrun.Config{}, &testrun.ConfigurationError{Problems: problems}
	}

	return testrun.Config{
		Mode:                   mode,
		TargetURL:              get(KeyTargetURL),
		TestPlan:               get(KeyTestPlan),
		AppName:                get(KeyAppName),
		Environment:            get(KeyEnvironment),
		Categories:             get(KeyCategories),
		Methods:                get(KeyMethods),
		ExcludeMethods:         get(KeyExcludeMethods),
		EndpointPattern:        get(KeyEndpointPattern),
		ExcludeEndpointPattern: get(KeyExcludeEndpointPattern),
		TestUsers:              get(KeyTestUsers),
		DataSource:             get(KeyDataSource),
		RunOn:                  get(KeyRunOn),
		FailSeverity:           get(KeyFailSeverity),
		FailScope:              get(KeyFailScope),
		FailThreshold:          get(KeyFailThreshold),
		ExtraCLIArgs:           get(KeyExtraCLIArgs),
		GenerateJUnitReport:    junit,
		LevoCredentialsID:      get(KeyCredentialsID),
		SecretEnvironmentID:    get(KeyEnvironmentSecretID),
	}, nil
}

// LoadStepFile reads a levo-step.cue file. A missing file yields no
// candidates and no error unless required is set.
func LoadStepFile(path string, required bool) (map[string]Candidates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read step file: %w", err)
	}
	return ParseStep(data, path)
}

// ParseStep validates data against #Step and converts each field to candidates.
func ParseStep(data []byte, filename string) (map[string]Candidates, error) {
	decoded, err := cueutil.ParseAndDecode[map[string]any](stepSchema, data, "#Step",
		cueutil.WithFilename(filename),
	)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Candidates, len(*decoded))
	for key, raw := range *decoded {
		c, err := candidatesFrom(normalizeInts(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", filename, key, err)
		}
		out[key] = c
	}
	return out, nil
}

// normalizeInts renders integer list entries (fail_threshold) as strings.
func normalizeInts(v any) any {
	switch val := v.(type) {
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeInts(item)
		}
		return out
	default:
		return v
	}
}

// StepEnv reads LEVO_STEP_<KEY> variables through Viper, e.g.
// LEVO_STEP_APP_NAME for app_name.
func StepEnv() map[string]Candidates {
	v := viper.New()
	v.SetEnvPrefix(StepEnvPrefix)

	out := make(map[string]Candidates)
	for _, key := range StepKeys {
		_ = v.BindEnv(key) // only fails without a key
		if val := v.GetString(key); val != "" {
			out[key] = Candidates{val}
		}
	}
	return out
}
