// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the shared CUE parsing flow used for levo-ci's
// tool settings (config.cue) and step files (levo-step.cue):
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema definition
//  3. Validate and decode into a Go value
//
// Errors carry JSON-path style locations, e.g.
// "levo-step.cue: mode: 3 errors in empty disjunction".
package cueutil
