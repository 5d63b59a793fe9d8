// SPDX-License-Identifier: MPL-2.0

// Package execute runs one Levo build step end to end. It resolves the step
// configuration, validates it, resolves credentials, and drives the
// credential lifecycle around the containerized Levo CLI. The outcome carries
// the exit code the CI job should report.
package execute
