// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers that fail the test on error, and a
// process-wide limit on concurrent container operations in integration tests.
package testutil
