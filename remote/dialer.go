package remote

import (
	"context"

	"fleet-admin/ssh"
)

// ErrAuthentication is wrapped by dial errors caused by rejected or missing
// credentials; any other dial error is a connection failure.
var ErrAuthentication = ssh.ErrAuthentication

// Dialer opens a Host for an address
type Dialer interface {
	Dial(ctx context.Context, address string) (Host, error)
}

// SSHDialer reaches Docker on remote machines over SSH
type SSHDialer struct {
	base ssh.Config
}

// NewSSHDialer creates a dialer; the Host field of base is ignored
func NewSSHDialer(base ssh.Config) *SSHDialer {
	return &SSHDialer{base: base}
}

// Dial connects to address and returns a Docker host over the connection
func (d *SSHDialer) Dial(ctx context.Context, address string) (Host, error) {
	cfg := d.base
	cfg.Host = address

	client := ssh.NewClient(&cfg)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return NewDocker(address, NewSSHShell(client)), nil
}

// LocalDialer returns the Docker daemon of this machine for every address
type LocalDialer struct{}

// Dial never fails; the address is only used for identification
func (LocalDialer) Dial(ctx context.Context, address string) (Host, error) {
	return NewDocker(address, NewLocalShell()), nil
}
