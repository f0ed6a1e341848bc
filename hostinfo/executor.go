package hostinfo

import (
	"context"

	"github.com/pkg/errors"

	"fleet-admin/remote"
)

// HostExecutor runs module commands on a fleet host
type HostExecutor struct {
	host remote.Executor
}

// NewHostExecutor creates an executor over a host that can run shell commands
func NewHostExecutor(host remote.Executor) *HostExecutor {
	return &HostExecutor{host: host}
}

// Execute runs a command and fails on a non-zero exit status
func (e *HostExecutor) Execute(ctx context.Context, command string) (string, error) {
	out, err := e.host.Exec(ctx, command)
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", errors.Errorf("command failed with exit code %d: %s", out.ExitCode, out.Text)
	}
	return out.Text, nil
}
