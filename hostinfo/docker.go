package hostinfo

import (
	"context"
	"strings"
)

// DockerInfo describes the container runtime of a host
type DockerInfo struct {
	ServerVersion string   `json:"server_version"`
	Containers    []string `json:"containers,omitempty"`
	Images        []string `json:"images,omitempty"`
}

// DockerModule collects the Docker version and what is running
type DockerModule struct{}

// NewDockerModule creates a new docker module
func NewDockerModule() *DockerModule {
	return &DockerModule{}
}

// Name returns the module name
func (m *DockerModule) Name() string {
	return "docker"
}

// Description returns the module description
func (m *DockerModule) Description() string {
	return "Collects Docker version, containers and images"
}

// IsAvailable checks that the docker daemon answers
func (m *DockerModule) IsAvailable(ctx context.Context, executor CommandExecutor) bool {
	_, err := executor.Execute(ctx, "docker version --format '{{.Server.Version}}'")
	return err == nil
}

// Collect gathers docker information
func (m *DockerModule) Collect(ctx context.Context, executor CommandExecutor) (interface{}, error) {
	version, err := executor.Execute(ctx, "docker version --format '{{.Server.Version}}'")
	if err != nil {
		return nil, err
	}
	info := &DockerInfo{ServerVersion: strings.TrimSpace(version)}

	if out, err := executor.Execute(ctx, "docker ps -a --format '{{.Names}} {{.State}}'"); err == nil {
		info.Containers = nonEmptyLines(out)
	}
	if out, err := executor.Execute(ctx, "docker images --format '{{.Repository}}:{{.Tag}}'"); err == nil {
		info.Images = nonEmptyLines(out)
	}
	return info, nil
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
