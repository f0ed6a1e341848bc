package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrAuthentication marks failures where the remote host rejected, or could
// not be offered, any usable credentials.
var ErrAuthentication = errors.New("ssh authentication failed")

// Config represents SSH connection configuration
type Config struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	KeyPath        string        `yaml:"key_path"`
	Password       string        `yaml:"password,omitempty"`
	KnownHostsPath string        `yaml:"known_hosts,omitempty"`
	UseAgent       bool          `yaml:"use_agent"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"` // zero means no limit
}

// Client wraps SSH client functionality
type Client struct {
	config *Config
	client *ssh.Client
	agent  net.Conn // open only while an agent offers keys
}

// Result represents the result of a remote command execution
type Result struct {
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// NewClient creates a new SSH client
func NewClient(config *Config) *Client {
	cfg := *config
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	return &Client{
		config: &cfg,
	}
}

// Connect establishes an SSH connection
func (c *Client) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	authMethods, err := c.authMethods()
	if err != nil {
		c.closeAgent()
		return err
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.config.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(expandHome(c.config.KnownHostsPath))
		if err != nil {
			c.closeAgent()
			return errors.Wrap(err, "failed to load known hosts")
		}
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.config.ConnectTimeout,
	}

	address := net.JoinHostPort(c.config.Host, fmt.Sprint(c.config.Port))
	conn, err := c.dialWithContext(ctx, "tcp", address, sshConfig)
	if err != nil {
		c.closeAgent()
		if isAuthFailure(err) {
			return errors.Wrapf(ErrAuthentication, "%s@%s: %v", c.config.User, address, err)
		}
		return errors.Wrapf(err, "failed to connect to %s", address)
	}

	c.client = conn
	return nil
}

// authMethods collects every configured way of proving identity
func (c *Client) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if c.config.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			if conn, err := net.Dial("unix", sock); err == nil {
				c.closeAgent()
				c.agent = conn
				methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			}
		}
	}

	if c.config.KeyPath != "" {
		key, err := loadPrivateKey(c.config.KeyPath)
		switch {
		case err == nil:
			methods = append(methods, ssh.PublicKeys(key))
		case isPassphraseMissing(err):
			// Only fatal when nothing else can be tried
			if len(methods) == 0 && c.config.Password == "" {
				return nil, errors.Wrapf(ErrAuthentication, "private key %s requires a passphrase", c.config.KeyPath)
			}
		case os.IsNotExist(errors.Cause(err)):
			// A missing default key is fine when the agent or a password is available
		default:
			return nil, errors.Wrap(err, "failed to load private key")
		}
	}

	if c.config.Password != "" {
		methods = append(methods, ssh.Password(c.config.Password))
	}

	if len(methods) == 0 {
		return nil, errors.Wrap(ErrAuthentication, "no authentication method provided")
	}
	return methods, nil
}

// ExecuteCommand runs a command on the remote host. A non-zero exit status is
// reported in the result, not as an error.
func (c *Client) ExecuteCommand(ctx context.Context, command string) (*Result, error) {
	if c.client == nil {
		return nil, errors.New("not connected")
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	defer session.Close()

	cmdCtx := ctx
	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	result := &Result{}
	done := make(chan error, 1)

	go func() {
		output, err := session.CombinedOutput(command)
		result.Output = string(output)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if !errors.As(err, &exitErr) {
				return nil, errors.Wrap(err, "command did not complete")
			}
			result.Error = err.Error()
			result.ExitCode = exitErr.ExitStatus()
		}
		return result, nil
	case <-cmdCtx.Done():
		session.Close()
		return nil, errors.Wrap(cmdCtx.Err(), "command interrupted")
	}
}

// Stream runs a command and copies its stdout and stderr to w until it exits
func (c *Client) Stream(ctx context.Context, command string, w io.Writer) error {
	if c.client == nil {
		return errors.New("not connected")
	}

	session, err := c.client.NewSession()
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stdout = w
	session.Stderr = io.MultiWriter(w, &stderr)

	if err := session.Start(command); err != nil {
		return errors.Wrap(err, "failed to start command")
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "stream ended: %s", strings.TrimSpace(stderr.String()))
		}
		return nil
	case <-ctx.Done():
		session.Signal(ssh.SIGTERM)
		session.Close()
		return nil
	}
}

// Config returns the SSH configuration
func (c *Client) Config() *Config {
	return c.config
}

// Close closes the SSH connection and the agent connection, if any
func (c *Client) Close() error {
	c.closeAgent()
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

func (c *Client) closeAgent() {
	if c.agent != nil {
		c.agent.Close()
		c.agent = nil
	}
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c.client != nil
}

// loadPrivateKey loads a private key from file
func loadPrivateKey(keyPath string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(expandHome(keyPath))
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(keyData)
}

func expandHome(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

func isPassphraseMissing(err error) bool {
	var missing *ssh.PassphraseMissingError
	return errors.As(err, &missing)
}

// isAuthFailure recognises the handshake error x/crypto/ssh returns after
// every offered method was rejected. It is not exported as a type.
func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// dialWithContext provides context-aware dialing
func (c *Client) dialWithContext(ctx context.Context, network, address string, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := &net.Dialer{
		Timeout: config.Timeout,
	}

	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}
