package coordinator

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/pkg/errors"

	"fleet-admin/config"
	"fleet-admin/fleet"
	"fleet-admin/remote"
)

// Settings of the container network a local cluster runs on
const (
	LocalNetwork = "slog_nw"
	LocalSubnet  = "172.28.0.0/16"
	LocalIPRange = "172.28.5.0/24"
)

// LocalTopology returns a copy of topo whose service addresses are replaced
// by host addresses of LocalIPRange, NumPartitions per replica, handed out in
// replica then partition order
func LocalTopology(topo *config.Topology) (*config.Topology, error) {
	prefix, err := netip.ParsePrefix(LocalIPRange)
	if err != nil {
		return nil, errors.Wrap(err, "invalid local ip range")
	}
	prefix = prefix.Masked()

	local := *topo
	local.Replicas = make([]config.Replica, len(topo.Replicas))
	addr := prefix.Addr().Next()
	for r, rep := range topo.Replicas {
		addrs := make([]string, 0, topo.NumPartitions)
		for p := 0; p < topo.NumPartitions; p++ {
			// the last address of the range is the broadcast address
			if !prefix.Contains(addr.Next()) {
				return nil, errors.Errorf("local ip range %s has no address left for replica %d partition %d", LocalIPRange, r, p)
			}
			addrs = append(addrs, addr.String())
			addr = addr.Next()
		}
		local.Replicas[r] = config.Replica{Addresses: addrs, Clients: rep.Clients}
	}
	return &local, nil
}

func (c *Coordinator) localContainer(t *fleet.Target) string {
	p := 0
	if t.Partition != nil {
		p = *t.Partition
	}
	return fmt.Sprintf("%s_%d_%d", c.settings.ServiceName, t.Replica, p)
}

func (c *Coordinator) connectLocal(ctx context.Context) (*config.Topology, []*fleet.Target, []*fleet.Target, []fleet.Result, error) {
	topo, err := LocalTopology(c.topology)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	all := fleet.Targets(topo, fleet.RoleService)
	active, failed := c.connect(ctx, all)
	return topo, all, active, failed, nil
}

// LocalStart runs every partition of the topology as a container on the
// local Docker daemon, each with its own address on LocalNetwork
func (c *Coordinator) LocalStart(ctx context.Context) ([]fleet.Result, error) {
	topo, all, active, failed, err := c.connectLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close(active)
	if len(active) == 0 {
		return failed, nil
	}

	commands, err := c.serverCommands(all)
	if err != nil {
		return nil, err
	}
	b, err := c.broadcaster(topo)
	if err != nil {
		return nil, err
	}

	// every target shares the one daemon
	daemon := active[:1]
	results := append(failed, c.Pull(ctx, daemon)...)

	nw, ok := daemon[0].Host().(remote.Networker)
	if !ok {
		return results, errors.New("local host cannot create container networks")
	}
	created, err := nw.EnsureNetwork(ctx, LocalNetwork, LocalSubnet, LocalIPRange)
	if err != nil {
		return results, err
	}
	if created {
		c.log.Infof("Created network %q", LocalNetwork)
	} else {
		c.log.Infof("Reused network %q", LocalNetwork)
	}

	results = append(results, c.runAll(ctx, "cleanup", active, func(ctx context.Context, t *fleet.Target) (string, error) {
		return "", c.cleanup(ctx, t, c.localContainer(t))
	})...)

	outcomes := fleet.Broadcast(ctx, b, active,
		func(t *fleet.Target) string { return commands[t.Key()] },
		func(ctx context.Context, t *fleet.Target, argv []string) (*remote.Unit, error) {
			name := c.localContainer(t)
			unit, err := t.Host().Run(ctx, remote.ContainerSpec{
				Name:    name,
				Image:   c.opts.Image,
				Command: argv,
				Env:     c.opts.Env,
				Mounts:  c.dataMount(),
				Network: LocalNetwork,
				IP:      t.Address,
			})
			if err != nil {
				return nil, err
			}
			c.log.WithFields(t.Fields()).Infof("Started %q with address %s", name, t.Address)
			return unit, nil
		})

	started := fleet.Results(outcomes)
	c.record("start", started)
	return append(results, started...), nil
}

// LocalStop stops every local partition container
func (c *Coordinator) LocalStop(ctx context.Context) ([]fleet.Result, error) {
	_, _, active, failed, err := c.connectLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close(active)

	results := c.runAll(ctx, "stop", active, func(ctx context.Context, t *fleet.Target) (string, error) {
		name := c.localContainer(t)
		c.log.WithFields(t.Fields()).Infof("Stopping %q", name)
		return stopContainer(ctx, t, name)
	})
	return append(failed, results...), nil
}

// LocalRemove removes every local partition container
func (c *Coordinator) LocalRemove(ctx context.Context) ([]fleet.Result, error) {
	_, _, active, failed, err := c.connectLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close(active)

	results := c.runAll(ctx, "remove", active, func(ctx context.Context, t *fleet.Target) (string, error) {
		name := c.localContainer(t)
		c.log.WithFields(t.Fields()).Infof("Removing %q", name)
		return "", c.cleanup(ctx, t, name)
	})
	return append(failed, results...), nil
}

// LocalStatus reports the state of every local partition container
func (c *Coordinator) LocalStatus(ctx context.Context) ([]StatusEntry, error) {
	_, all, active, _, err := c.connectLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close(active)

	return c.statusOf(ctx, all, active, c.localContainer), nil
}
