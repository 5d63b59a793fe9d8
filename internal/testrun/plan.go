// SPDX-License-Identifier: MPL-2.0

package testrun

type (
	// Plan is a validated run. The concrete type is one of TestPlanRun,
	// AppNameRun or RemoteRun.
	Plan interface {
		Mode() Mode
		// Extra returns the tokenized free-form CLI arguments.
		Extra() []string
		isPlan()
	}

	// TestPlanRun executes a stored test plan against TargetURL.
	TestPlanRun struct {
		TestPlan    string
		TargetURL   string
		JUnitReport bool
		ExtraArgs   []string
	}

	// AppNameRun executes tests derived from an application's catalog.
	// TargetURL may be empty, in which case the app's configured default is used.
	AppNameRun struct {
		AppName     string
		Environment string
		Categories  string
		DataSource  DataSource
		TargetURL   string
		JUnitReport bool
		ExtraArgs   []string
	}

	// RemoteRun triggers a run executed by a remote runner.
	RemoteRun struct {
		AppName                string
		Environment            string
		DataSource             DataSource
		RunOn                  RunOn
		Categories             string
		Methods                string
		ExcludeMethods         string
		EndpointPattern        string
		ExcludeEndpointPattern string
		TestUsers              []string
		TargetURL              string
		FailSeverity           string
		FailScope              string
		FailThreshold          string
		ExtraArgs              []string
	}
)

func (TestPlanRun) Mode() Mode { return ModeTestPlan }
func (AppNameRun) Mode() Mode  { return ModeAppName }
func (RemoteRun) Mode() Mode   { return ModeRemoteTestRun }

func (p TestPlanRun) Extra() []string { return p.ExtraArgs }
func (p AppNameRun) Extra() []string  { return p.ExtraArgs }
func (p RemoteRun) Extra() []string   { return p.ExtraArgs }

func (TestPlanRun) isPlan() {}
func (AppNameRun) isPlan()  {}
func (RemoteRun) isPlan()   {}

// AcceptsEnvironmentFile reports whether the plan's subcommand takes --env-file.
func AcceptsEnvironmentFile(p Plan) bool {
	switch p.(type) {
	case TestPlanRun, AppNameRun:
		return true
	default:
		return false
	}
}

// WantsJUnitReport reports whether the run exports a JUnit report.
func WantsJUnitReport(p Plan) bool {
	switch p := p.(type) {
	case TestPlanRun:
		return p.JUnitReport
	case AppNameRun:
		return p.JUnitReport
	default:
		return false
	}
}
