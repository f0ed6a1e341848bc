package hostinfo

import (
	"context"
	"strings"
)

// SystemInfo represents basic system information
type SystemInfo struct {
	Hostname      string `json:"hostname"`
	KernelVersion string `json:"kernel_version"`
	OSInfo        string `json:"os_info"`
	Architecture  string `json:"architecture"`
	Uptime        string `json:"uptime,omitempty"`
}

// SystemModule collects basic system information
type SystemModule struct{}

// NewSystemModule creates a new system information module
func NewSystemModule() *SystemModule {
	return &SystemModule{}
}

// Name returns the module name
func (m *SystemModule) Name() string {
	return "system"
}

// Description returns the module description
func (m *SystemModule) Description() string {
	return "Collects basic system information (hostname, kernel, OS, architecture)"
}

// IsAvailable checks if the module can run
func (m *SystemModule) IsAvailable(ctx context.Context, executor CommandExecutor) bool {
	return true
}

// Collect gathers system information
func (m *SystemModule) Collect(ctx context.Context, executor CommandExecutor) (interface{}, error) {
	info := &SystemInfo{}

	if hostname, err := executor.Execute(ctx, "hostname"); err == nil {
		info.Hostname = strings.TrimSpace(hostname)
	}
	if kernel, err := executor.Execute(ctx, "uname -r"); err == nil {
		info.KernelVersion = strings.TrimSpace(kernel)
	}
	if osInfo, err := executor.Execute(ctx, "uname -a"); err == nil {
		info.OSInfo = strings.TrimSpace(osInfo)
	}
	if arch, err := executor.Execute(ctx, "uname -m"); err == nil {
		info.Architecture = strings.TrimSpace(arch)
	}
	if uptime, err := executor.Execute(ctx, "uptime -p"); err == nil {
		info.Uptime = strings.TrimSpace(uptime)
	}

	return info, nil
}
