package coordinator

import (
	"context"

	"github.com/pkg/errors"

	"fleet-admin/fleet"
	"fleet-admin/hostinfo"
	"fleet-admin/remote"
)

// Info collects host facts from every distinct machine of the topology,
// service machines first. modules restricts the collection; empty means all.
func (c *Coordinator) Info(ctx context.Context, modules []string) (*InfoResult, error) {
	registry, err := hostinfo.DefaultRegistry(c.log, c.settings.HostDataDir)
	if err != nil {
		return nil, err
	}
	collector := hostinfo.NewCollector(registry, modules, c.log)

	targets := distinctAddresses(append(
		fleet.Targets(c.topology, fleet.RoleService),
		fleet.Targets(c.topology, fleet.RoleBenchmark)...,
	))
	active, failed := c.connect(ctx, targets)
	defer c.Close(active)

	outcomes := fleet.Map(ctx, active, func(ctx context.Context, t *fleet.Target) (*hostinfo.Report, error) {
		exec, ok := t.Host().(remote.Executor)
		if !ok {
			return nil, errors.Errorf("%s: host cannot run commands", t.Address)
		}
		return collector.Collect(ctx, t.Address, hostinfo.NewHostExecutor(exec)), nil
	})
	results := fleet.Results(outcomes)
	c.record("info", results)

	res := &InfoResult{Failed: append(failed, fleet.Failed(results)...)}
	for _, o := range outcomes {
		if o.Success {
			res.Reports = append(res.Reports, o.Value)
		}
	}
	return res, nil
}

// distinctAddresses keeps the first target of every address
func distinctAddresses(targets []*fleet.Target) []*fleet.Target {
	seen := make(map[string]bool, len(targets))
	var out []*fleet.Target
	for _, t := range targets {
		if !seen[t.Address] {
			seen[t.Address] = true
			out = append(out, t)
		}
	}
	return out
}
