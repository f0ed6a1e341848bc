// Package remotetest provides in-memory remote hosts for tests.
package remotetest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"fleet-admin/remote"
)

// Host keeps containers in memory. Run registers a running container, Wait
// reports the exit code configured for its name, Stop marks it exited and
// Remove forgets it. All methods are safe for concurrent use.
type Host struct {
	Addr string

	// ExitCodes maps container names to the status Wait and RunOnce return
	ExitCodes map[string]int
	// RunErr and WaitErr, when set, fail every Run and Wait call
	RunErr  error
	WaitErr error
	// LogText is written by Logs for any existing container
	LogText string
	// Replies maps shell commands run through Exec to their output. Unknown
	// commands exit with status 127.
	Replies map[string]string

	mu         sync.Mutex
	containers map[string]*Container
	calls      []string
	runs       []remote.ContainerSpec
	pulls      []string
	networks   map[string]bool
	closed     bool
}

// Container is a container known to a Host
type Container struct {
	Spec   remote.ContainerSpec
	Status string
}

// NewHost creates an empty host
func NewHost(addr string) *Host {
	return &Host{Addr: addr}
}

func (h *Host) record(format string, args ...interface{}) {
	h.calls = append(h.calls, fmt.Sprintf(format, args...))
}

func (h *Host) notFound(name string) error {
	return errors.Wrapf(remote.ErrNotFound, "%s: no such container: %s", h.Addr, name)
}

// Address returns the host address
func (h *Host) Address() string { return h.Addr }

// Pull records the image
func (h *Host) Pull(ctx context.Context, image string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("pull %s", image)
	h.pulls = append(h.pulls, image)
	return nil
}

// Run starts a container. A name already in use is an error, as with docker.
func (h *Host) Run(ctx context.Context, spec remote.ContainerSpec) (*remote.Unit, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("run %s", spec.Name)
	if h.RunErr != nil {
		return nil, h.RunErr
	}
	if h.containers == nil {
		h.containers = make(map[string]*Container)
	}
	if _, ok := h.containers[spec.Name]; ok {
		return nil, errors.Errorf("%s: container name %q is already in use", h.Addr, spec.Name)
	}
	h.containers[spec.Name] = &Container{Spec: spec, Status: "running"}
	h.runs = append(h.runs, spec)
	return &remote.Unit{Name: spec.Name, ID: spec.Name + "-id", Address: h.Addr}, nil
}

// RunOnce records spec and returns its configured exit code
func (h *Host) RunOnce(ctx context.Context, spec remote.ContainerSpec) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("run-once %s", spec.Name)
	if h.RunErr != nil {
		return 0, h.RunErr
	}
	h.runs = append(h.runs, spec)
	return h.ExitCodes[spec.Name], nil
}

// Wait marks the container exited and returns its configured exit code
func (h *Host) Wait(ctx context.Context, unit *remote.Unit) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("wait %s", unit.Name)
	if h.WaitErr != nil {
		return 0, h.WaitErr
	}
	c, ok := h.containers[unit.Name]
	if !ok {
		return 0, h.notFound(unit.Name)
	}
	c.Status = "exited"
	return h.ExitCodes[unit.Name], nil
}

// Stop marks the container exited
func (h *Host) Stop(ctx context.Context, name string, timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("stop %s %s", name, timeout)
	c, ok := h.containers[name]
	if !ok {
		return h.notFound(name)
	}
	c.Status = "exited"
	return nil
}

// Status returns the container status
func (h *Host) Status(ctx context.Context, name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("status %s", name)
	c, ok := h.containers[name]
	if !ok {
		return "", h.notFound(name)
	}
	return c.Status, nil
}

// Remove forgets the container; a missing one is not an error
func (h *Host) Remove(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("remove %s", name)
	delete(h.containers, name)
	return nil
}

// Logs writes LogText for an existing container
func (h *Host) Logs(ctx context.Context, name string, follow bool, w io.Writer) error {
	h.mu.Lock()
	h.record("logs %s follow=%t", name, follow)
	_, ok := h.containers[name]
	text := h.LogText
	h.mu.Unlock()

	if !ok {
		return h.notFound(name)
	}
	_, err := io.WriteString(w, text)
	return err
}

// Exec answers from Replies
func (h *Host) Exec(ctx context.Context, command string) (*remote.Output, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("exec %s", command)
	text, ok := h.Replies[command]
	if !ok {
		return &remote.Output{Text: "sh: not found", ExitCode: 127}, nil
	}
	return &remote.Output{Text: text}, nil
}

// EnsureNetwork creates the network once
func (h *Host) EnsureNetwork(ctx context.Context, name, subnet, ipRange string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("network %s %s %s", name, subnet, ipRange)
	if h.networks == nil {
		h.networks = make(map[string]bool)
	}
	if h.networks[name] {
		return false, nil
	}
	h.networks[name] = true
	return true, nil
}

// Close marks the host closed
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// AddContainer registers an existing container with the given status
func (h *Host) AddContainer(name, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.containers == nil {
		h.containers = make(map[string]*Container)
	}
	h.containers[name] = &Container{Spec: remote.ContainerSpec{Name: name}, Status: status}
}

// Container returns a copy of the named container
func (h *Host) Container(name string) (Container, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.containers[name]
	if !ok {
		return Container{}, false
	}
	return *c, true
}

// Calls returns the operations performed so far
func (h *Host) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// Runs returns the specs of all started containers
func (h *Host) Runs() []remote.ContainerSpec {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]remote.ContainerSpec(nil), h.runs...)
}

// Pulls returns the pulled images
func (h *Host) Pulls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.pulls...)
}

// Closed reports whether Close was called
func (h *Host) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Dialer hands out one Host per address and fails the addresses in Errs
type Dialer struct {
	Errs map[string]error

	mu    sync.Mutex
	hosts map[string]*Host
	dials map[string]int
}

// NewDialer creates a dialer with no failing addresses
func NewDialer() *Dialer {
	return &Dialer{Errs: make(map[string]error)}
}

// Dial returns the host for address, creating it on first use
func (d *Dialer) Dial(ctx context.Context, address string) (remote.Host, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dials == nil {
		d.dials = make(map[string]int)
	}
	d.dials[address]++
	if err, ok := d.Errs[address]; ok {
		return nil, err
	}
	return d.hostLocked(address), nil
}

// Host returns the host for address, creating it if needed
func (d *Dialer) Host(address string) *Host {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hostLocked(address)
}

func (d *Dialer) hostLocked(address string) *Host {
	if d.hosts == nil {
		d.hosts = make(map[string]*Host)
	}
	h, ok := d.hosts[address]
	if !ok {
		h = NewHost(address)
		d.hosts[address] = h
	}
	return h
}

// Dials returns how many times address was dialed
func (d *Dialer) Dials(address string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[address]
}

// AuthError returns an error the connection pool classifies as an
// authentication failure
func AuthError(address string) error {
	return errors.Wrapf(remote.ErrAuthentication, "%s", address)
}
