package remote

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when the named container does not exist
var ErrNotFound = errors.New("container not found")

// Mount binds a host directory into a container
type Mount struct {
	Source string
	Target string
}

// ContainerSpec describes a container to launch
type ContainerSpec struct {
	Name    string
	Image   string
	Command []string
	Env     map[string]string
	Mounts  []Mount
	Network string // "host", a user-defined network, or empty for the default bridge
	IP      string // only meaningful with a user-defined network
}

// Unit is a container that has been launched and may still be running
type Unit struct {
	Name    string
	ID      string
	Address string
}

// Host is the remote executor for one machine: it manages containers there.
type Host interface {
	Address() string
	Pull(ctx context.Context, image string) error
	Run(ctx context.Context, spec ContainerSpec) (*Unit, error)
	RunOnce(ctx context.Context, spec ContainerSpec) (int, error)
	Wait(ctx context.Context, unit *Unit) (int, error)
	Stop(ctx context.Context, name string, timeout time.Duration) error
	Status(ctx context.Context, name string) (string, error)
	Remove(ctx context.Context, name string) error
	Logs(ctx context.Context, name string, follow bool, w io.Writer) error
	Close() error
}

// Executor is implemented by hosts that can run arbitrary shell commands
type Executor interface {
	Exec(ctx context.Context, command string) (*Output, error)
}

// Networker is implemented by hosts that can create container networks
type Networker interface {
	EnsureNetwork(ctx context.Context, name, subnet, ipRange string) (bool, error)
}

// Docker drives the docker CLI through a Shell
type Docker struct {
	address string
	shell   Shell
}

// NewDocker creates a Docker host reachable through shell
func NewDocker(address string, shell Shell) *Docker {
	return &Docker{address: address, shell: shell}
}

// Address returns the address the host was reached at
func (d *Docker) Address() string {
	return d.address
}

// Pull fetches the latest version of an image
func (d *Docker) Pull(ctx context.Context, image string) error {
	_, err := d.exec(ctx, "docker pull "+Quote(image))
	return err
}

// Run starts a detached container and returns without waiting for it
func (d *Docker) Run(ctx context.Context, spec ContainerSpec) (*Unit, error) {
	out, err := d.exec(ctx, runCommand(spec, true))
	if err != nil {
		return nil, err
	}
	return &Unit{
		Name:    spec.Name,
		ID:      strings.TrimSpace(out),
		Address: d.address,
	}, nil
}

// RunOnce runs a container to completion, removes it and returns its exit status
func (d *Docker) RunOnce(ctx context.Context, spec ContainerSpec) (int, error) {
	out, err := d.shell.Exec(ctx, runCommand(spec, false))
	if err != nil {
		return 0, errors.Wrapf(err, "%s: failed to run container %s", d.address, spec.Name)
	}
	return out.ExitCode, nil
}

// Wait blocks until the container exits and returns its status code
func (d *Docker) Wait(ctx context.Context, unit *Unit) (int, error) {
	out, err := d.exec(ctx, "docker wait "+Quote(unit.Name))
	if err != nil {
		return 0, err
	}
	lines := strings.Fields(out)
	if len(lines) == 0 {
		return 0, errors.Errorf("%s: empty status from docker wait %s", d.address, unit.Name)
	}
	code, err := strconv.Atoi(lines[len(lines)-1])
	if err != nil {
		return 0, errors.Wrapf(err, "%s: unexpected status from docker wait %s", d.address, unit.Name)
	}
	return code, nil
}

// Stop stops a running container, killing it after timeout
func (d *Docker) Stop(ctx context.Context, name string, timeout time.Duration) error {
	secs := int(timeout / time.Second)
	_, err := d.exec(ctx, fmt.Sprintf("docker stop -t %d %s", secs, Quote(name)))
	return err
}

// Status returns the container state such as "running" or "exited"
func (d *Docker) Status(ctx context.Context, name string) (string, error) {
	out, err := d.exec(ctx, "docker inspect -f '{{.State.Status}}' "+Quote(name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Remove force-removes a container. A container that does not exist counts
// as removed.
func (d *Docker) Remove(ctx context.Context, name string) error {
	_, err := d.exec(ctx, "docker rm -f "+Quote(name))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Logs writes the container's logs to w, following them if requested. A
// missing container yields ErrNotFound.
func (d *Docker) Logs(ctx context.Context, name string, follow bool, w io.Writer) error {
	if _, err := d.Status(ctx, name); err != nil {
		return err
	}

	cmd := "docker logs "
	if follow {
		cmd += "-f "
	}
	err := d.shell.Stream(ctx, cmd+Quote(name), w)
	if err != nil && isNotFound(err.Error()) {
		return errors.Wrapf(ErrNotFound, "%s: %v", d.address, err)
	}
	return err
}

// EnsureNetwork creates a bridge network unless one with that name exists.
// It reports whether a new network was created.
func (d *Docker) EnsureNetwork(ctx context.Context, name, subnet, ipRange string) (bool, error) {
	out, err := d.shell.Exec(ctx, "docker network inspect "+Quote(name))
	if err != nil {
		return false, errors.Wrapf(err, "%s: failed to inspect network %s", d.address, name)
	}
	if out.ExitCode == 0 {
		return false, nil
	}

	cmd := fmt.Sprintf("docker network create --driver bridge --subnet %s --ip-range %s %s",
		Quote(subnet), Quote(ipRange), Quote(name))
	if _, err := d.exec(ctx, cmd); err != nil {
		return false, err
	}
	return true, nil
}

// Exec runs a shell command on the machine outside of any container
func (d *Docker) Exec(ctx context.Context, command string) (*Output, error) {
	out, err := d.shell.Exec(ctx, command)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: %s", d.address, command)
	}
	return out, nil
}

// Close releases the underlying shell
func (d *Docker) Close() error {
	return d.shell.Close()
}

// exec runs a docker command and turns a non-zero exit into an error
func (d *Docker) exec(ctx context.Context, command string) (string, error) {
	out, err := d.shell.Exec(ctx, command)
	if err != nil {
		return "", errors.Wrapf(err, "%s: %s", d.address, command)
	}
	if out.ExitCode != 0 {
		text := strings.TrimSpace(out.Text)
		if isNotFound(text) {
			return "", errors.Wrapf(ErrNotFound, "%s: %s", d.address, text)
		}
		return "", errors.Errorf("%s: %s exited with status %d: %s", d.address, command, out.ExitCode, text)
	}
	return out.Text, nil
}

func isNotFound(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "no such container") || strings.Contains(lower, "no such object")
}

// runCommand builds the docker run command line for spec
func runCommand(spec ContainerSpec, detach bool) string {
	args := []string{"docker", "run"}
	if detach {
		args = append(args, "-d")
	} else {
		args = append(args, "--rm")
	}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}
	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
	}
	if spec.IP != "" {
		args = append(args, "--ip", spec.IP)
	}
	for _, m := range spec.Mounts {
		args = append(args, "--mount", fmt.Sprintf("type=bind,source=%s,target=%s", m.Source, m.Target))
	}

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+spec.Env[k])
	}

	args = append(args, spec.Image)
	args = append(args, spec.Command...)
	return QuoteArgs(args)
}
