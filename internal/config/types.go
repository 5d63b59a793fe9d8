// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// ContainerEngineDocker uses Docker to run the Levo CLI image.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman uses Podman to run the Levo CLI image.
	ContainerEnginePodman ContainerEngine = "podman"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// DefaultImage is the Levo CLI image reference.
	DefaultImage = "levoai/levo:stable"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container runtime to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// LogLevel is the minimum level written to the build log.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// TimeoutsConfig holds the per-class process timeouts.
	TimeoutsConfig struct {
		// Short bounds helper probes such as `id -u`.
		Short time.Duration `json:"short" mapstructure:"short"`
		// Medium bounds image pulls and logout.
		Medium time.Duration `json:"medium" mapstructure:"medium"`
		// Long bounds login and the test run itself.
		Long time.Duration `json:"long" mapstructure:"long"`
		// Cleanup bounds the whole post-run cleanup phase.
		Cleanup time.Duration `json:"cleanup" mapstructure:"cleanup"`
	}

	// CredentialsConfig selects the credential backends.
	CredentialsConfig struct {
		// File is a credentials.yaml path; empty disables the file store.
		File string `json:"file" mapstructure:"file"`
		// EnvPrefix is the prefix for environment-backed credential records.
		EnvPrefix string `json:"env_prefix" mapstructure:"env_prefix"`
	}

	// WorkspaceConfig controls workspace sharing between runs.
	WorkspaceConfig struct {
		// IsolateCredentials keys the credential store per execution.
		IsolateCredentials bool `json:"isolate_credentials" mapstructure:"isolate_credentials"`
		// Lock serializes runs sharing a workspace.
		Lock bool `json:"lock" mapstructure:"lock"`
	}

	// PullConfig controls the image refresh before login.
	PullConfig struct {
		Enabled  bool `json:"enabled" mapstructure:"enabled"`
		Attempts int  `json:"attempts" mapstructure:"attempts"`
	}

	// LogConfig controls build-log verbosity.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// Config is the levo-ci tool configuration.
	Config struct {
		ContainerEngine ContainerEngine   `json:"container_engine" mapstructure:"container_engine"`
		Image           string            `json:"image" mapstructure:"image"`
		Timeouts        TimeoutsConfig    `json:"timeouts" mapstructure:"timeouts"`
		Credentials     CredentialsConfig `json:"credentials" mapstructure:"credentials"`
		Workspace       WorkspaceConfig   `json:"workspace" mapstructure:"workspace"`
		Pull            PullConfig        `json:"pull" mapstructure:"pull"`
		Log             LogConfig         `json:"log" mapstructure:"log"`
	}
)

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEngineDocker,
		Image:           DefaultImage,
		Timeouts: TimeoutsConfig{
			Short:   60 * time.Second,
			Medium:  10 * time.Minute,
			Long:    30 * time.Minute,
			Cleanup: 2 * time.Minute,
		},
		Credentials: CredentialsConfig{
			EnvPrefix: "LEVO_CREDENTIALS",
		},
		Workspace: WorkspaceConfig{
			Lock: true,
		},
		Pull: PullConfig{
			Enabled:  true,
			Attempts: 3,
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
	}
}

// Validate checks constraints the CUE schema cannot see after env overrides.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ContainerEngine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Image == "" {
		errs = append(errs, errors.New("image: must not be empty"))
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"timeouts.short", c.Timeouts.Short},
		{"timeouts.medium", c.Timeouts.Medium},
		{"timeouts.long", c.Timeouts.Long},
		{"timeouts.cleanup", c.Timeouts.Cleanup},
	} {
		if t.d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", t.name, t.d))
		}
	}
	if c.Pull.Attempts < 1 {
		errs = append(errs, fmt.Errorf("pull.attempts: must be at least 1, got %d", c.Pull.Attempts))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Validate returns an error if the ContainerEngine is not docker or podman.
func (ce ContainerEngine) Validate() error {
	switch ce {
	case ContainerEngineDocker, ContainerEnginePodman:
		return nil
	default:
		return &InvalidContainerEngineError{Value: ce}
	}
}

// String returns the string representation of the ContainerEngine.
func (ce ContainerEngine) String() string { return string(ce) }

// Error implements the error interface.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// Validate returns an error if the LogLevel is not recognized.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
