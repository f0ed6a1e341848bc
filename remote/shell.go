package remote

import (
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"fleet-admin/ssh"
)

// Output is what a finished shell command left behind
type Output struct {
	Text     string
	ExitCode int
}

// Shell runs command lines on one machine
type Shell interface {
	Exec(ctx context.Context, command string) (*Output, error)
	Stream(ctx context.Context, command string, w io.Writer) error
	Close() error
}

// SSHShell executes commands over an established SSH connection
type SSHShell struct {
	client *ssh.Client
}

// NewSSHShell wraps a connected SSH client
func NewSSHShell(client *ssh.Client) *SSHShell {
	return &SSHShell{client: client}
}

// Exec runs a command on the remote system
func (s *SSHShell) Exec(ctx context.Context, command string) (*Output, error) {
	result, err := s.client.ExecuteCommand(ctx, command)
	if err != nil {
		return nil, err
	}
	return &Output{Text: result.Output, ExitCode: result.ExitCode}, nil
}

// Stream runs a command and forwards its output
func (s *SSHShell) Stream(ctx context.Context, command string, w io.Writer) error {
	return s.client.Stream(ctx, command, w)
}

// Close closes the SSH connection
func (s *SSHShell) Close() error {
	return s.client.Close()
}

// LocalShell executes commands on this machine
type LocalShell struct{}

// NewLocalShell creates a new local shell
func NewLocalShell() *LocalShell {
	return &LocalShell{}
}

// Exec runs a command locally
func (s *LocalShell) Exec(ctx context.Context, command string) (*Output, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Output{Text: string(output), ExitCode: exitErr.ExitCode()}, nil
		}
		return nil, errors.Wrap(err, "local command execution failed")
	}
	return &Output{Text: string(output)}, nil
}

// Stream runs a command locally and forwards its output
func (s *LocalShell) Stream(ctx context.Context, command string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "local stream failed")
	}
	return nil
}

// Close is a no-op for the local shell
func (s *LocalShell) Close() error {
	return nil
}

// Quote makes s safe to paste as a single word into a POSIX shell command
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuoting) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("@%+=:,./-_", r)
}

// QuoteArgs quotes every element and joins them with spaces
func QuoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}
