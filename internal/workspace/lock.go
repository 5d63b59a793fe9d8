// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// lockPollInterval is how often a blocked Lock retries the file lock.
const lockPollInterval = 250 * time.Millisecond

// ErrLockTimeout is returned when the context ends while waiting for the lock.
var ErrLockTimeout = errors.New("workspace lock not acquired")

// mutexes serialize runs in this process when no file lock is available.
// Keyed by absolute workspace path.
var mutexes sync.Map

// Lock serializes runs on one workspace. Release is safe to call more than once.
type Lock struct {
	release func()
	once    sync.Once
}

// Release frees the lock.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	l.once.Do(l.release)
}

// Lock acquires the workspace lock, waiting until ctx ends. On Linux with
// the OS filesystem this is an exclusive flock on .levo-ci.lock, which also
// excludes other processes; otherwise an in-process lock is used.
func (w *Workspace) Lock(ctx context.Context) (*Lock, error) {
	if _, isOS := w.fs.(*afero.OsFs); isOS {
		if err := w.fs.MkdirAll(w.root, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace %s: %w", w.root, err)
		}
		fl, err := acquireFileLock(ctx, filepath.Join(w.root, LockFileName))
		switch {
		case err == nil:
			return &Lock{release: fl.release}, nil
		case !errors.Is(err, errFlockUnavailable):
			return nil, err
		}
		slog.Debug("file lock unavailable, using in-process lock", "workspace", w.root)
	}
	return w.lockInProcess(ctx)
}

func (w *Workspace) lockInProcess(ctx context.Context) (*Lock, error) {
	v, _ := mutexes.LoadOrStore(w.root, make(chan struct{}, 1))
	sem := v.(chan struct{})

	select {
	case sem <- struct{}{}:
		return &Lock{release: func() { <-sem }}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, w.root, ctx.Err())
	}
}
