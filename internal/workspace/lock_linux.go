// SPDX-License-Identifier: MPL-2.0

//go:build linux

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// errFlockUnavailable exists for parity with lock_other.go; on Linux
// acquireFileLock never returns it.
var errFlockUnavailable = errors.New("flock not available on this platform")

type fileLock struct {
	file *os.File
}

// acquireFileLock takes an exclusive flock on path, polling with LOCK_NB so
// ctx can end the wait. The kernel drops the lock if the process dies.
func acquireFileLock(ctx context.Context, path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	waiting := false
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &fileLock{file: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			_ = f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if !waiting {
			slog.Info("waiting for workspace lock", "path", path)
			waiting = true
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, path, ctx.Err())
		}
	}
}

func (l *fileLock) release() {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Debug("flock unlock failed", "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Debug("lock file close failed", "error", err)
	}
}
