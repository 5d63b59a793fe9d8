// SPDX-License-Identifier: MPL-2.0

// Package container abstracts the container engine CLI (Docker or Podman) that
// hosts the Levo CLI image.
//
// Engines only build argument vectors and answer availability probes; the
// actual run/pull processes are launched by the runner package so that every
// child process goes through the same timeout and cancellation handling.
//
// Engine selection uses NewEngine with automatic fallback to the other engine
// when the preferred one is not available.
package container
