package hostinfo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// CPUInfo represents CPU information
type CPUInfo struct {
	Model     string `json:"model"`
	Cores     int    `json:"cores"`
	Threads   int    `json:"threads"`
	Frequency string `json:"frequency,omitempty"`
	LoadAvg   string `json:"load_avg,omitempty"`
}

// CPUModule collects CPU information
type CPUModule struct{}

// NewCPUModule creates a new CPU information module
func NewCPUModule() *CPUModule {
	return &CPUModule{}
}

// Name returns the module name
func (m *CPUModule) Name() string {
	return "cpu"
}

// Description returns the module description
func (m *CPUModule) Description() string {
	return "Collects CPU information (model, cores, threads, frequency, load)"
}

// IsAvailable checks that /proc/cpuinfo can be read
func (m *CPUModule) IsAvailable(ctx context.Context, executor CommandExecutor) bool {
	_, err := executor.Execute(ctx, "test -r /proc/cpuinfo")
	return err == nil
}

// Collect gathers CPU information
func (m *CPUModule) Collect(ctx context.Context, executor CommandExecutor) (interface{}, error) {
	info := &CPUInfo{}

	if model, err := executor.Execute(ctx, "grep 'model name' /proc/cpuinfo | head -1 | cut -d':' -f2"); err == nil {
		info.Model = strings.TrimSpace(model)
	}

	if threads, err := executor.Execute(ctx, "nproc"); err == nil {
		if n, parseErr := strconv.Atoi(strings.TrimSpace(threads)); parseErr == nil {
			info.Threads = n
			info.Cores = n
		}
	}

	// Physical cores per socket; keep the logical count when unavailable
	if physical, err := executor.Execute(ctx, "grep 'cpu cores' /proc/cpuinfo | head -1 | cut -d':' -f2"); err == nil {
		if n, parseErr := strconv.Atoi(strings.TrimSpace(physical)); parseErr == nil && n > 0 {
			info.Cores = n
		}
	}

	if freq, err := executor.Execute(ctx, "grep 'cpu MHz' /proc/cpuinfo | head -1 | cut -d':' -f2"); err == nil {
		if f := strings.TrimSpace(freq); f != "" {
			info.Frequency = fmt.Sprintf("%s MHz", f)
		}
	}

	if load, err := executor.Execute(ctx, "cut -d' ' -f1-3 /proc/loadavg"); err == nil {
		info.LoadAvg = strings.TrimSpace(load)
	}

	return info, nil
}
