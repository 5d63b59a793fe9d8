// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"levo-ci/pkg/platform"

	"github.com/spf13/afero"
)

const (
	// ConfigDirName is the credential-store directory inside the workspace.
	ConfigDirName = ".levoconfig"
	// ReportsDirName is the report output directory inside the workspace.
	ReportsDirName = "levo-reports"
	// EnvironmentFileName is the transient environment file.
	EnvironmentFileName = "environment.yaml"
	// LockFileName is the workspace lock file.
	LockFileName = ".levo-ci.lock"
)

type (
	// Workspace is the handle for one workspace directory.
	Workspace struct {
		fs        afero.Fs
		root      string
		host      platform.HostOS
		configDir string
	}

	// Option configures a Workspace.
	Option func(*Workspace)

	// Mounts are the host-side bind-mount sources, already in the form the
	// container engine expects on this host.
	Mounts struct {
		ConfigStore string
		Reports     string
		Work        string
	}
)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(w *Workspace) {
		w.fs = fs
	}
}

// WithHostOS overrides host detection, which decides mount path syntax.
func WithHostOS(host platform.HostOS) Option {
	return func(w *Workspace) {
		w.host = host
	}
}

// WithIsolatedCredentials keys the credential store by executionID
// (.levoconfig-<id>) so concurrent runs sharing the workspace do not
// purge each other's login state.
func WithIsolatedCredentials(executionID string) Option {
	return func(w *Workspace) {
		if executionID != "" {
			w.configDir = ConfigDirName + "-" + executionID
		}
	}
}

// New creates a handle for root, which is made absolute. Nothing is
// created on disk until EnsureDirs.
func New(root string, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %s: %w", root, err)
	}
	w := &Workspace{
		fs:        afero.NewOsFs(),
		root:      abs,
		host:      platform.Current(),
		configDir: ConfigDirName,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute workspace path.
func (w *Workspace) Root() string { return w.root }

// Fs returns the filesystem backing the workspace.
func (w *Workspace) Fs() afero.Fs { return w.fs }

// Host returns the operating system the workspace lives on.
func (w *Workspace) Host() platform.HostOS { return w.host }

// ConfigDir returns the credential-store directory.
func (w *Workspace) ConfigDir() string { return filepath.Join(w.root, w.configDir) }

// ReportsDir returns the report directory.
func (w *Workspace) ReportsDir() string { return filepath.Join(w.root, ReportsDirName) }

// EnvironmentFile returns the environment file path.
func (w *Workspace) EnvironmentFile() string { return filepath.Join(w.root, EnvironmentFileName) }

// Isolated reports whether the credential store is keyed per execution.
func (w *Workspace) Isolated() bool { return w.configDir != ConfigDirName }

// Mounts returns bind-mount sources for the three Levo volumes.
func (w *Workspace) Mounts() Mounts {
	return Mounts{
		ConfigStore: platform.MountPath(w.host, w.ConfigDir()),
		Reports:     platform.MountPath(w.host, w.ReportsDir()),
		Work:        platform.MountPath(w.host, w.root),
	}
}

// EnsureDirs creates the credential-store and report directories if absent.
func (w *Workspace) EnsureDirs() error {
	for _, dir := range []string{w.ConfigDir(), w.ReportsDir()} {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// PurgeCredentialStore deletes every entry in the credential store. Each
// failed deletion is returned; a missing directory is not an error. An
// isolated store directory is removed entirely once empty.
func (w *Workspace) PurgeCredentialStore() []error {
	dir := w.ConfigDir()
	entries, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return []error{fmt.Errorf("list %s: %w", dir, err)}
	}

	var errs []error
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if err := w.fs.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	if len(errs) == 0 && w.Isolated() {
		if err := w.fs.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", dir, err))
		}
	}
	return errs
}

// WriteEnvironmentFile replaces any existing environment file with content.
func (w *Workspace) WriteEnvironmentFile(content string) error {
	path := w.EnvironmentFile()
	if err := w.RemoveEnvironmentFile(); err != nil {
		return err
	}
	if err := afero.WriteFile(w.fs, path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RemoveEnvironmentFile deletes the environment file. A missing file is not an error.
func (w *Workspace) RemoveEnvironmentFile() error {
	path := w.EnvironmentFile()
	if err := w.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
