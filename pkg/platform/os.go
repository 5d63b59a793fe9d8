// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"path/filepath"
	goruntime "runtime"
	"strings"
)

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// HostOS identifies the operating system of the machine that launches the
// container engine. The zero value means "unknown" and is treated as non-Linux.
type HostOS string

// Current returns the HostOS of the running process.
func Current() HostOS {
	return HostOS(goruntime.GOOS)
}

// IsLinux reports whether bind mounts on this host need explicit user/group ids.
func (h HostOS) IsLinux() bool {
	return strings.EqualFold(string(h), Linux)
}

// IsWindows reports whether the host is Windows.
func (h HostOS) IsWindows() bool {
	return strings.EqualFold(string(h), Windows)
}

// String returns the string representation of the HostOS.
func (h HostOS) String() string { return string(h) }

// MountPath converts a host path into the form container engines accept on
// the left-hand side of a -v binding. On Windows, "C:\work\app" becomes
// "C:/work/app"; other hosts return the cleaned path unchanged.
func MountPath(host HostOS, path string) string {
	if host.IsWindows() {
		return strings.ReplaceAll(path, `\`, "/")
	}
	return filepath.Clean(path)
}
