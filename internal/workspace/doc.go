// SPDX-License-Identifier: MPL-2.0

// Package workspace manages the per-workspace state a Levo run touches: the
// credential store mounted at /home/levo/.config/configstore, the report
// directory, the transient environment.yaml and the workspace lock.
//
// All filesystem access goes through an afero.Fs so lifecycle code can be
// tested against an in-memory filesystem.
package workspace
