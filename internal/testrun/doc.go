// SPDX-License-Identifier: MPL-2.0

// Package testrun turns a resolved run configuration into a validated,
// mode-specific Plan.
//
// Three modes exist: test-plan (run a stored Levo test plan), app-name (run
// tests derived from an application's API catalog) and remote-test-run
// (trigger a run executed by Levo's cloud or an on-prem runner). Dispatch
// validates every field before any process is started.
package testrun
