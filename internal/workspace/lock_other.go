// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package workspace

import (
	"context"
	"errors"
)

// errFlockUnavailable makes Lock fall back to the in-process lock.
var errFlockUnavailable = errors.New("flock not available on this platform")

type fileLock struct{}

func acquireFileLock(context.Context, string) (*fileLock, error) {
	return nil, errFlockUnavailable
}

func (l *fileLock) release() {}
