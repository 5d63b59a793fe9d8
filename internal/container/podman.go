// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

const podmanVersionFormat = "{{.Version}}"

// PodmanEngine implements the Engine interface using Podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine.
// On hosts with SELinux enforcing, volume mounts are labeled with z.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")
	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypePodman))}, opts...)

	e := &PodmanEngine{BaseCLIEngine: NewBaseCLIEngine(path, allOpts...)}
	check := e.selinuxCheck
	e.volumeFormatter = func(v VolumeMount) string {
		return addSELinuxLabel(v.String(), check)
	}
	return e
}

// Name returns the engine name.
func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Available checks if Podman answers.
func (e *PodmanEngine) Available(ctx context.Context) bool {
	_, err := e.probeVersion(ctx, podmanVersionFormat)
	return err == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	return e.probeVersion(ctx, podmanVersionFormat)
}

// ImageExists checks if an image exists.
func (e *PodmanEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "exists", image)
	return err == nil, nil
}

// isSELinuxEnabled checks if SELinux is enforcing on the system.
func isSELinuxEnabled() bool {
	data, err := os.ReadFile("/sys/fs/selinux/enforce")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// addSELinuxLabel adds the z label to a volume spec when SELinux is enforcing
// and the mount does not already carry z or Z.
func addSELinuxLabel(volume string, enforcing SELinuxCheckFunc) string {
	if enforcing == nil || !enforcing() {
		return volume
	}

	// host_path:container_path[:options]
	parts := strings.Split(volume, ":")
	if len(parts) < 2 {
		return volume
	}

	if len(parts) >= 3 {
		for opt := range strings.SplitSeq(parts[len(parts)-1], ",") {
			if opt == "z" || opt == "Z" {
				return volume
			}
		}
		return volume + ",z"
	}

	return volume + ":z"
}
