// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// EngineTypeDocker selects the Docker CLI.
	EngineTypeDocker EngineType = "docker"
	// EngineTypePodman selects the Podman CLI.
	EngineTypePodman EngineType = "podman"
)

var (
	// ErrEngineNotAvailable is the sentinel wrapped by EngineNotAvailableError.
	ErrEngineNotAvailable = errors.New("container engine not available")

	// ErrInvalidEngineType is the sentinel wrapped by InvalidEngineTypeError.
	ErrInvalidEngineType = errors.New("invalid container engine type")
)

type (
	// Engine is a container engine CLI.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// BinaryPath returns the resolved path of the engine binary, or "" when it is not installed.
		BinaryPath() string
		// Available reports whether the engine binary exists and answers a version probe.
		Available(ctx context.Context) bool
		// Version returns the engine version string.
		Version(ctx context.Context) (string, error)
		// ImageExists reports whether image is present in the local image store.
		ImageExists(ctx context.Context, image string) (bool, error)
		// RunArgs returns the arguments (without the binary) for a "run" invocation.
		RunArgs(opts RunOptions) []string
		// PullArgs returns the arguments (without the binary) for an image pull.
		PullArgs(image string) []string
	}

	// EngineType identifies the container engine.
	EngineType string

	// InvalidEngineTypeError is returned when an EngineType is neither docker nor podman.
	InvalidEngineTypeError struct {
		Value EngineType
	}

	// EngineNotAvailableError is returned when neither the preferred engine nor
	// its fallback can be used.
	EngineNotAvailableError struct {
		Engine EngineType
		Reason string
	}

	// RunOptions describes a container run.
	RunOptions struct {
		// Image is the image reference, e.g. levoai/levo:stable.
		Image string
		// Command is appended after the image.
		Command []string
		// Env is emitted as -e KEY=VALUE in order.
		Env []EnvVar
		// Volumes are emitted as -v host:container:mode in order.
		Volumes []VolumeMount
		// Remove adds --rm.
		Remove bool
	}

	// EnvVar is a single container environment variable.
	EnvVar struct {
		Name  string
		Value string
	}

	// VolumeMount is a host bind mount.
	VolumeMount struct {
		HostPath      string
		ContainerPath string
		ReadOnly      bool
	}
)

// String returns the string representation of the EngineType.
func (t EngineType) String() string { return string(t) }

// Validate returns an error if the EngineType is not docker or podman.
func (t EngineType) Validate() error {
	switch t {
	case EngineTypeDocker, EngineTypePodman:
		return nil
	default:
		return &InvalidEngineTypeError{Value: t}
	}
}

// Error implements the error interface.
func (e *InvalidEngineTypeError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman)", e.Value)
}

// Unwrap returns ErrInvalidEngineType for errors.Is compatibility.
func (e *InvalidEngineTypeError) Unwrap() error { return ErrInvalidEngineType }

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable for errors.Is compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// String renders the variable as NAME=VALUE.
func (v EnvVar) String() string { return v.Name + "=" + v.Value }

// String returns the mount in "host:container:rw" or "host:container:ro" form.
func (v VolumeMount) String() string {
	mode := "rw"
	if v.ReadOnly {
		mode = "ro"
	}
	return v.HostPath + ":" + v.ContainerPath + ":" + mode
}

// NewEngine returns the preferred engine if it is available, falling back to
// the other engine otherwise. opts are applied to both candidates.
func NewEngine(ctx context.Context, preferred EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	if err := preferred.Validate(); err != nil {
		return nil, err
	}

	docker := NewDockerEngine(opts...)
	podman := NewPodmanEngine(opts...)

	candidates := []Engine{docker, podman}
	if preferred == EngineTypePodman {
		candidates = []Engine{podman, docker}
	}
	return selectEngine(ctx, preferred, candidates)
}

func selectEngine(ctx context.Context, preferred EngineType, candidates []Engine) (Engine, error) {
	tried := make([]string, 0, len(candidates))
	for i, e := range candidates {
		if e.Available(ctx) {
			if i > 0 {
				slog.Warn("preferred container engine unavailable, falling back",
					"preferred", preferred, "using", e.Name())
			}
			return e, nil
		}
		tried = append(tried, e.Name())
	}
	return nil, &EngineNotAvailableError{
		Engine: preferred,
		Reason: fmt.Sprintf("none of [%s] is installed or responding", strings.Join(tried, ", ")),
	}
}
