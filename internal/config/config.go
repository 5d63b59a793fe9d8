// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"levo-ci/internal/issue"
	"levo-ci/pkg/cueutil"
	"levo-ci/pkg/platform"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "levo-ci"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. LEVO_CI_TIMEOUTS_LONG.
	EnvPrefix = "LEVO_CI"
)

//go:embed config_schema.cue
var configSchema []byte

// Dir returns the levo-ci configuration directory using platform-specific
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS
// and $XDG_CONFIG_HOME (defaulting to ~/.config) elsewhere.
func Dir() (string, error) {
	var base string

	switch platform.Current() {
	case platform.Windows:
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(base, AppName), nil
}

// FilePath returns the settings file path for the given options: the
// explicit file if set, otherwise config.cue inside the config directory.
func FilePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, nil
	}
	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("container_engine", defaults.ContainerEngine)
	v.SetDefault("image", defaults.Image)
	v.SetDefault("timeouts.short", defaults.Timeouts.Short)
	v.SetDefault("timeouts.medium", defaults.Timeouts.Medium)
	v.SetDefault("timeouts.long", defaults.Timeouts.Long)
	v.SetDefault("timeouts.cleanup", defaults.Timeouts.Cleanup)
	v.SetDefault("credentials.file", defaults.Credentials.File)
	v.SetDefault("credentials.env_prefix", defaults.Credentials.EnvPrefix)
	v.SetDefault("workspace.isolate_credentials", defaults.Workspace.IsolateCredentials)
	v.SetDefault("workspace.lock", defaults.Workspace.Lock)
	v.SetDefault("pull.enabled", defaults.Pull.Enabled)
	v.SetDefault("pull.attempts", defaults.Pull.Attempts)
	v.SetDefault("log.level", defaults.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// loadWithOptions loads settings without caching. A missing default file
// is not an error; a missing explicit file is.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	path, err := FilePath(opts)
	if err != nil {
		return nil, "", err
	}

	resolvedPath := ""
	switch {
	case fileExists(path):
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Run 'levo-ci config show' to see the effective settings").
				WithIssue(issue.SettingsLoadFailedId).
				Wrap(err).
				BuildError()
		}
		resolvedPath = path
	case opts.ConfigFilePath != "":
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Run 'levo-ci config init' to create a default file").
			WithIssue(issue.SettingsLoadFailedId).
			Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check LEVO_CI_* environment overrides").
			WithIssue(issue.SettingsLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
// Settings decode to a map with Concrete(false) because every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default settings to path. An existing file
// is left untouched unless force is set; the returned bool reports whether
// anything was written.
func CreateDefaultConfig(path string, force bool) (bool, error) {
	if !force && fileExists(path) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// levo-ci configuration\n\n")
	fmt.Fprintf(&sb, "container_engine: %q\n", cfg.ContainerEngine)
	fmt.Fprintf(&sb, "image: %q\n", cfg.Image)

	sb.WriteString("\ntimeouts: {\n")
	fmt.Fprintf(&sb, "\tshort: %q\n", cfg.Timeouts.Short.String())
	fmt.Fprintf(&sb, "\tmedium: %q\n", cfg.Timeouts.Medium.String())
	fmt.Fprintf(&sb, "\tlong: %q\n", cfg.Timeouts.Long.String())
	fmt.Fprintf(&sb, "\tcleanup: %q\n", cfg.Timeouts.Cleanup.String())
	sb.WriteString("}\n")

	sb.WriteString("\ncredentials: {\n")
	if cfg.Credentials.File != "" {
		fmt.Fprintf(&sb, "\tfile: %q\n", cfg.Credentials.File)
	}
	fmt.Fprintf(&sb, "\tenv_prefix: %q\n", cfg.Credentials.EnvPrefix)
	sb.WriteString("}\n")

	sb.WriteString("\nworkspace: {\n")
	fmt.Fprintf(&sb, "\tisolate_credentials: %v\n", cfg.Workspace.IsolateCredentials)
	fmt.Fprintf(&sb, "\tlock: %v\n", cfg.Workspace.Lock)
	sb.WriteString("}\n")

	sb.WriteString("\npull: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Pull.Enabled)
	fmt.Fprintf(&sb, "\tattempts: %d\n", cfg.Pull.Attempts)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	return sb.String()
}
