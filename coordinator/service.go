package coordinator

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"fleet-admin/fleet"
	"fleet-admin/remote"
	"fleet-admin/runner"
)

// Start replaces the service container on every service target. Old
// containers are removed fleet-wide before any new one starts so that
// nothing of the previous session is still running.
func (c *Coordinator) Start(ctx context.Context) ([]fleet.Result, error) {
	commands, err := c.serverCommands(fleet.Targets(c.topology, fleet.RoleService))
	if err != nil {
		return nil, err
	}
	b, err := c.broadcaster(c.topology)
	if err != nil {
		return nil, err
	}

	targets, failed := c.Connect(ctx, fleet.RoleService)
	defer c.Close(targets)
	if len(targets) == 0 {
		c.log.Warn("No service targets to start")
		return failed, nil
	}

	results := append(failed, c.Pull(ctx, targets)...)
	results = append(results, c.runAll(ctx, "cleanup", targets, func(ctx context.Context, t *fleet.Target) (string, error) {
		return "", c.cleanup(ctx, t, c.settings.ServiceName)
	})...)

	outcomes := fleet.Broadcast(ctx, b, targets,
		func(t *fleet.Target) string { return commands[t.Key()] },
		func(ctx context.Context, t *fleet.Target, argv []string) (*remote.Unit, error) {
			unit, err := t.Host().Run(ctx, remote.ContainerSpec{
				Name:    c.settings.ServiceName,
				Image:   c.opts.Image,
				Command: argv,
				Env:     c.opts.Env,
				Mounts:  c.dataMount(),
				Network: "host",
			})
			if err != nil {
				return nil, err
			}
			c.log.WithFields(t.Fields()).Infof("%s: Synced config and ran command: %s", t.Address, commands[t.Key()])
			return unit, nil
		})

	started := fleet.Results(outcomes)
	c.record("start", started)
	return append(results, started...), nil
}

// serverCommands builds and checks the service command line of each target
// before anything is dispatched
func (c *Coordinator) serverCommands(targets []*fleet.Target) (map[string]string, error) {
	commands := make(map[string]string, len(targets))
	for _, t := range targets {
		server := runner.NewServer(c.settings.ServiceBinary)
		server.ConfigPath = c.settings.ConfigPath()
		server.Address = t.Address
		server.DataDir = c.settings.DataDir
		if err := server.Validate(); err != nil {
			return nil, err
		}
		commands[t.Key()] = server.BuildCommand()
	}
	return commands, nil
}

// Stop stops the service container on every service target. A target
// without the container counts as stopped.
func (c *Coordinator) Stop(ctx context.Context) []fleet.Result {
	targets, failed := c.Connect(ctx, fleet.RoleService)
	defer c.Close(targets)

	results := c.runAll(ctx, "stop", targets, func(ctx context.Context, t *fleet.Target) (string, error) {
		c.log.WithFields(t.Fields()).Infof("Stopping SLOG on %s...", t.Address)
		return stopContainer(ctx, t, c.settings.ServiceName)
	})
	return append(failed, results...)
}

func stopContainer(ctx context.Context, t *fleet.Target, name string) (string, error) {
	err := t.Host().Stop(ctx, name, 0)
	if errors.Is(err, remote.ErrNotFound) {
		return StatusNotStarted, nil
	}
	if err != nil {
		return "", err
	}
	return "stopped", nil
}

// Status reports the container state of every service partition in topology
// order, including the ones that could not be reached
func (c *Coordinator) Status(ctx context.Context) []StatusEntry {
	all := fleet.Targets(c.topology, fleet.RoleService)
	active, _ := c.connect(ctx, all)
	defer c.Close(active)

	return c.statusOf(ctx, all, active, func(*fleet.Target) string {
		return c.settings.ServiceName
	})
}

// statusOf queries container states of active and fills in every target of
// all, in order
func (c *Coordinator) statusOf(ctx context.Context, all, active []*fleet.Target, container func(*fleet.Target) string) []StatusEntry {
	outcomes := fleet.Map(ctx, active, func(ctx context.Context, t *fleet.Target) (string, error) {
		status, err := t.Host().Status(ctx, container(t))
		if errors.Is(err, remote.ErrNotFound) {
			return StatusNotStarted, nil
		}
		return status, err
	})
	results := fleet.Results(outcomes)
	c.record("status", results)

	byKey := make(map[string]fleet.Outcome[string], len(outcomes))
	for _, o := range outcomes {
		byKey[o.Target.Key()] = o
	}

	entries := make([]StatusEntry, len(all))
	for i, t := range all {
		entries[i] = StatusEntry{Replica: t.Replica, Address: t.Address, Status: StatusUnreachable}
		if t.Partition != nil {
			entries[i].Partition = *t.Partition
		}
		o, ok := byKey[t.Key()]
		switch {
		case !ok:
		case o.Success:
			entries[i].Status = o.Value
		default:
			entries[i].Status = StatusUnknown
		}
	}
	return entries
}

// Logs copies the logs of one container to w, following them if asked
func (c *Coordinator) Logs(ctx context.Context, opts LogsOptions, w io.Writer) error {
	target, err := c.logsTarget(opts)
	if err != nil {
		return err
	}

	active, _ := c.connect(ctx, []*fleet.Target{target})
	defer c.Close(active)
	if len(active) == 0 {
		return errors.Wrapf(ErrUnreachable, "%s", target.Address)
	}

	name := opts.Container
	if name == "" {
		name = c.settings.ServiceName
	}
	err = target.Host().Logs(ctx, name, opts.Follow, w)
	if errors.Is(err, remote.ErrNotFound) {
		c.log.WithFields(target.Fields()).Errorf("Cannot find container %q", name)
		return err
	}
	return errors.Wrapf(err, "failed to read logs of %q on %s", name, target.Address)
}

func (c *Coordinator) logsTarget(opts LogsOptions) (*fleet.Target, error) {
	if opts.Address == "" {
		addr, err := c.topology.AddressAt(opts.Replica, opts.Partition)
		if err != nil {
			return nil, errors.Wrap(ErrUnknownTarget, err.Error())
		}
		return fleet.NewServiceTarget(addr, opts.Replica, opts.Partition), nil
	}

	if !c.topology.HasServiceAddress(opts.Address) {
		c.log.Errorf("Address %q is not specified in the config", opts.Address)
		return nil, errors.Wrapf(ErrUnknownTarget, "address %q", opts.Address)
	}
	var target *fleet.Target
	for _, t := range fleet.Targets(c.topology, fleet.RoleService) {
		if t.Address == opts.Address {
			target = t
			break
		}
	}
	return target, nil
}

// GenData runs the data generator on every service target and waits for all
// of them
func (c *Coordinator) GenData(ctx context.Context, opts GenDataOptions) ([]fleet.Result, error) {
	gen := runner.NewGenData("")
	gen.DataDir = c.settings.DataDir
	gen.NumReplicas = c.topology.NumReplicas()
	gen.NumPartitions = c.topology.NumPartitions
	gen.PartitionBytes = c.topology.HashPartitioning.PartitionKeyNumBytes
	gen.Partition = opts.Partition
	gen.Size = opts.Size
	gen.SizeUnit = opts.SizeUnit
	gen.RecordSize = opts.RecordSize
	gen.MaxJobs = opts.MaxJobs
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	command := gen.BuildCommand()

	targets, failed := c.Connect(ctx, fleet.RoleService)
	defer c.Close(targets)
	if len(targets) == 0 {
		return failed, nil
	}
	results := append(failed, c.Pull(ctx, targets)...)

	name := gen.Name()
	outcomes := fleet.Map(ctx, targets, func(ctx context.Context, t *fleet.Target) (*remote.Unit, error) {
		if err := c.cleanup(ctx, t, name); err != nil {
			return nil, err
		}
		c.log.WithFields(t.Fields()).Infof("%s: Running command: %s", t.Address, command)
		return t.Host().Run(ctx, remote.ContainerSpec{
			Name:    name,
			Image:   c.opts.Image,
			Command: []string{"/bin/sh", "-c", command},
			Mounts:  c.dataMount(),
		})
	})
	launched := fleet.Results(outcomes)
	c.record("gen_data", launched)

	var units []fleet.Launched
	for _, o := range outcomes {
		if o.Success {
			units = append(units, fleet.Launched{Target: o.Target, Unit: o.Value})
		}
	}
	completed := fleet.WaitAll(ctx, c.log, units)
	c.record("wait", completed)

	results = append(results, launched...)
	return append(results, completed...), nil
}
