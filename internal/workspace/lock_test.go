// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestLock_InProcess(t *testing.T) {
	t.Parallel()

	w, err := New("/lock-inprocess", WithFs(afero.NewMemMapFs()))
	if err != nil {
		t.Fatal(err)
	}
	testLockExcludes(t, w)
}

func TestLock_OsFs(t *testing.T) {
	t.Parallel()

	w, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testLockExcludes(t, w)
}

func testLockExcludes(t *testing.T, w *Workspace) {
	t.Helper()

	first, err := w.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := w.Lock(ctx); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second Lock() error = %v, want ErrLockTimeout", err)
	}

	first.Release()
	first.Release()

	second, err := w.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	second.Release()
}
