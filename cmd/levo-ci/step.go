// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"levo-ci/internal/config"
	"levo-ci/internal/credentials"
	"levo-ci/internal/issue"
)

var stepFlagUsage = map[string]string{
	config.KeyMode:                   "run mode: test-plan, app-name or remote-test-run (inferred when unset)",
	config.KeyTargetURL:              "URL of the API under test",
	config.KeyTestPlan:               "stored test plan id (test-plan mode)",
	config.KeyAppName:                "application name in the Levo catalog",
	config.KeyEnvironment:            "application environment, e.g. production",
	config.KeyCategories:             "comma-separated test categories, e.g. BOLA,BFLA",
	config.KeyMethods:                "HTTP methods to test (remote-test-run)",
	config.KeyExcludeMethods:         "HTTP methods to skip (remote-test-run)",
	config.KeyEndpointPattern:        "regular expression selecting endpoints (remote-test-run)",
	config.KeyExcludeEndpointPattern: "regular expression excluding endpoints (remote-test-run)",
	config.KeyTestUsers:              "comma-separated test users (remote-test-run)",
	config.KeyDataSource:             "data source: 'Test User Data' or 'Traces'",
	config.KeyRunOn:                  "where a remote run executes: cloud or on-prem",
	config.KeyFailSeverity:           "minimum finding severity that fails the run (remote-test-run)",
	config.KeyFailScope:              "scope used to evaluate failures (remote-test-run)",
	config.KeyFailThreshold:          "number of findings tolerated before failing (remote-test-run)",
	config.KeyExtraCLIArgs:           "extra Levo CLI arguments, shell-quoted",
	config.KeyJUnit:                  "export a JUnit report to levo-reports/junit.xml",
	config.KeyCredentialsID:          "id of the Levo CLI credential record",
	config.KeyEnvironmentSecretID:    "id of the secret holding environment.yaml",
}

// stepFlagName maps a step key to its flag, e.g. app_name to app-name.
func stepFlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// addStepFlags registers one repeatable flag per step field.
func addStepFlags(cmd *cobra.Command) {
	for _, key := range config.StepKeys {
		cmd.Flags().StringArray(stepFlagName(key), nil, stepFlagUsage[key])
	}
	cmd.Flags().Lookup(stepFlagName(config.KeyJUnit)).NoOptDefVal = "true"
}

// stepSources collects step candidates from flags, LEVO_STEP_* variables
// and the step file.
func (a *App) stepSources(cmd *cobra.Command) (config.StepSources, error) {
	flags := make(map[string]config.Candidates)
	for _, key := range config.StepKeys {
		vals, err := cmd.Flags().GetStringArray(stepFlagName(key))
		if err != nil {
			return config.StepSources{}, err
		}
		if len(vals) > 0 {
			flags[key] = vals
		}
	}

	path := a.opts.stepFile
	required := path != ""
	if path == "" {
		path = filepath.Join(a.opts.workdir, config.StepFileName)
	}
	file, err := config.LoadStepFile(path, required)
	if err != nil {
		return config.StepSources{}, issue.NewErrorContext().
			WithOperation("load step file").
			WithResource(path).
			WithIssue(issue.StepConfigInvalidId).
			WithSuggestion("Every field is a string or a list of strings; junit may also be a boolean").
			Wrap(err).
			BuildError()
	}

	return config.StepSources{Flags: flags, Env: config.StepEnv(), File: file}, nil
}

// credentialStore chains the environment store with the optional credentials file.
func credentialStore(settings *config.Config) credentials.Store {
	chain := credentials.ChainStore{credentials.NewEnvStore(settings.Credentials.EnvPrefix)}
	if settings.Credentials.File != "" {
		chain = append(chain, credentials.NewFileStore(afero.NewOsFs(), settings.Credentials.File))
	}
	return chain
}

func describeStores(settings *config.Config) string {
	desc := fmt.Sprintf("environment (%s_*)", settings.Credentials.EnvPrefix)
	if settings.Credentials.File != "" {
		desc += ", " + settings.Credentials.File
	}
	return desc
}
