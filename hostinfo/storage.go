package hostinfo

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"fleet-admin/remote"
)

// StorageInfo describes the filesystem holding the data directory
type StorageInfo struct {
	Path       string `json:"path"`
	Device     string `json:"device"`
	FileSystem string `json:"filesystem,omitempty"`
	Size       string `json:"size"`
	Used       string `json:"used"`
	Available  string `json:"available"`
	UsePercent string `json:"use_percent"`
	MountPoint string `json:"mount_point"`
}

// StorageModule reports disk usage of the directory mounted into containers
type StorageModule struct {
	path string
}

// NewStorageModule creates a storage module for path
func NewStorageModule(path string) *StorageModule {
	return &StorageModule{path: path}
}

// Name returns the module name
func (m *StorageModule) Name() string {
	return "storage"
}

// Description returns the module description
func (m *StorageModule) Description() string {
	return "Collects disk usage of the data directory"
}

// IsAvailable checks that the data directory exists
func (m *StorageModule) IsAvailable(ctx context.Context, executor CommandExecutor) bool {
	_, err := executor.Execute(ctx, "test -d "+remote.Quote(m.path))
	return err == nil
}

// Collect gathers storage information
func (m *StorageModule) Collect(ctx context.Context, executor CommandExecutor) (interface{}, error) {
	out, err := executor.Execute(ctx, "df -hPT "+remote.Quote(m.path)+" | tail -n 1")
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(out)
	if len(fields) < 7 {
		return nil, errors.Errorf("unexpected df output: %q", strings.TrimSpace(out))
	}
	return &StorageInfo{
		Path:       m.path,
		Device:     fields[0],
		FileSystem: fields[1],
		Size:       fields[2],
		Used:       fields[3],
		Available:  fields[4],
		UsePercent: fields[5],
		MountPoint: fields[6],
	}, nil
}
