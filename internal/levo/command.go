// SPDX-License-Identifier: MPL-2.0

// Package levo builds the container command lines that drive the Levo CLI.
package levo

import (
	"levo-ci/internal/credentials"
	"levo-ci/internal/runner"
)

// Paths and values fixed by the Levo CLI image.
const (
	ConfigStorePath = "/home/levo/.config/configstore"
	ReportsPath     = "/home/levo/reports"
	WorkPath        = "/home/levo/work"
	JUnitReportPath = ReportsPath + "/junit.xml"

	// EnvironmentFileArg is the --env-file value, relative to WorkPath.
	EnvironmentFileArg = "environment.yaml"

	TerminalType    = "xterm-256color"
	RemoteVerbosity = "INFO"
)

// Command is a fully built Levo CLI invocation.
type Command struct {
	// Name labels the step in logs: pull, login, test, remote-test-run, logout.
	Name    string
	Argv    []string
	Secrets []credentials.Secret
	Timeout runner.TimeoutClass
	Output  runner.OutputMode
}

// Invocation converts the command for a runner.
func (c Command) Invocation() runner.Invocation {
	return runner.Invocation{
		Name:    c.Name,
		Argv:    c.Argv,
		Timeout: c.Timeout,
		Output:  c.Output,
		Secrets: c.Secrets,
	}
}

// String returns the shell-quoted command line with secrets masked.
func (c Command) String() string {
	return runner.MaskCommandLine(c.Argv, c.Secrets)
}
