// SPDX-License-Identifier: MPL-2.0

// Package platform provides host operating system detection and the small amount
// of path normalization needed to hand host paths to a container engine.
package platform
