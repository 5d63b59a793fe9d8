// SPDX-License-Identifier: MPL-2.0

// Package config handles levo-ci configuration.
//
// Tool settings (container engine, image, timeouts, credential backends) are
// loaded with Viper from config.cue in the user config directory
// (~/.config/levo-ci/config.cue on Linux) and validated against the embedded
// config_schema.cue. LEVO_CI_* environment variables override file values.
//
// Step configuration (what to test) arrives as candidate sequences from
// command-line flags, LEVO_STEP_* variables and an optional levo-step.cue
// file, and is resolved field by field to the first non-blank candidate.
package config
