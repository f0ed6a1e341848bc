// Package coordinator implements the fleet commands: each one derives its
// targets from the topology, connects to them in parallel and fans its
// per-target action out through the fleet package.
package coordinator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-admin/campaign"
	"fleet-admin/config"
	"fleet-admin/fleet"
	"fleet-admin/metrics"
	"fleet-admin/remote"
)

// Options are the settings shared by all commands that come from the
// command line rather than the environment
type Options struct {
	Image  string
	NoPull bool
	Env    map[string]string
}

// Coordinator runs fleet commands against one topology
type Coordinator struct {
	topology *config.Topology
	settings *config.Settings
	dialer   remote.Dialer
	log      logrus.FieldLogger
	metrics  *metrics.Recorder
	opts     Options
	now      func() time.Time
	sleeper  campaign.Sleeper
}

// New creates a coordinator. rec may be nil.
func New(topo *config.Topology, settings *config.Settings, dialer remote.Dialer, log logrus.FieldLogger, rec *metrics.Recorder, opts Options) *Coordinator {
	if opts.Image == "" {
		opts.Image = settings.Image
	}
	return &Coordinator{
		topology: topo,
		settings: settings,
		dialer:   dialer,
		log:      log,
		metrics:  rec,
		opts:     opts,
		now:      time.Now,
		sleeper:  campaign.WallClock,
	}
}

// Topology returns the topology the coordinator works on
func (c *Coordinator) Topology() *config.Topology {
	return c.topology
}

// Connect connects to every target of role. Failed targets are logged and
// left out. The caller must Close the returned targets.
func (c *Coordinator) Connect(ctx context.Context, role fleet.Role) ([]*fleet.Target, []fleet.Result) {
	targets := fleet.Targets(c.topology, role)
	return c.connect(ctx, targets)
}

func (c *Coordinator) connect(ctx context.Context, targets []*fleet.Target) ([]*fleet.Target, []fleet.Result) {
	active, failed := fleet.ConnectAll(ctx, c.log, c.dialer, targets)
	if c.metrics != nil {
		c.metrics.Connections(len(active), failed)
	}
	return active, failed
}

// Close releases the connections of targets
func (c *Coordinator) Close(targets []*fleet.Target) {
	fleet.CloseAll(c.log, targets)
}

// Pull fetches the image once per distinct machine
func (c *Coordinator) Pull(ctx context.Context, targets []*fleet.Target) []fleet.Result {
	if c.opts.NoPull {
		c.log.Infof("Skipped image pulling. Using the local version of %q", c.opts.Image)
		return nil
	}

	results := c.runAll(ctx, "pull", fleet.Hosts(targets), func(ctx context.Context, t *fleet.Target) (string, error) {
		c.log.WithFields(t.Fields()).Infof("%s: Pulling latest docker image %q...", t.Address, c.opts.Image)
		return "", t.Host().Pull(ctx, c.opts.Image)
	})
	return results
}

// runAll fans action out, then logs and records the results under op
func (c *Coordinator) runAll(ctx context.Context, op string, targets []*fleet.Target, action fleet.Action) []fleet.Result {
	results := fleet.RunAll(ctx, targets, action)
	c.record(op, results)
	return results
}

func (c *Coordinator) record(op string, results []fleet.Result) {
	fleet.Report(c.log, op, results)
	if c.metrics != nil {
		c.metrics.Actions(op, results)
	}
}

// cleanup removes a leftover container. Absence counts as success.
func (c *Coordinator) cleanup(ctx context.Context, t *fleet.Target, name string) error {
	if err := t.Host().Remove(ctx, name); err != nil {
		return errors.Wrapf(err, "failed to clean up container %q", name)
	}
	c.log.WithFields(t.Fields()).Debugf("%s: Cleaned up container %q", t.Address, name)
	return nil
}

// dataMount binds the host data directory into the container
func (c *Coordinator) dataMount() []remote.Mount {
	return []remote.Mount{{Source: c.settings.HostDataDir, Target: c.settings.DataDir}}
}

// broadcaster serializes the topology once for all targets of a command
func (c *Coordinator) broadcaster(topo *config.Topology) (*fleet.Broadcaster, error) {
	text, err := topo.Text()
	if err != nil {
		return nil, err
	}
	return fleet.NewBroadcaster(text, c.settings.ConfigPath()), nil
}
