// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"strings"
)

// engineInternalExitCode is the exit status Docker and Podman use for their
// own failures, as opposed to failures of the contained process.
const engineInternalExitCode = 125

// exitCoder is satisfied by *exec.ExitError and by the runner's exit errors.
type exitCoder interface {
	ExitCode() int
}

// transientMarkers are substrings of engine output that indicate a failure
// worth retrying.
var transientMarkers = []string{
	// Rootless Podman races and OCI runtime errors.
	"ping_group_range",
	"OCI runtime error",
	// Registry and network failures during pulls.
	"Temporary failure resolving",
	"Could not resolve host",
	"connection timed out",
	"connection refused",
	"connection reset by peer",
	"TLS handshake timeout",
	"i/o timeout",
	"toomanyrequests",
	"502 Bad Gateway",
	"503 Service Unavailable",
	// Storage driver races.
	"error creating overlay mount",
	"error mounting layer",
}

// IsTransientError reports whether err is a container engine failure that may
// succeed on retry, such as a registry timeout during an image pull.
//
// Context cancellation and deadline errors are never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var coder exitCoder
	if errors.As(err, &coder) && coder.ExitCode() == engineInternalExitCode {
		return true
	}

	errStr := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
