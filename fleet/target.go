// Package fleet fans operations out to the machines of a deployment: it
// derives targets from a topology, connects to them in parallel, runs one
// action per target concurrently and gathers a result for each.
package fleet

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"fleet-admin/config"
	"fleet-admin/remote"
)

// Role selects which machines of a topology take part in an operation
type Role int

const (
	// RoleService targets the machines running the service, one per partition
	RoleService Role = iota
	// RoleBenchmark targets benchmark client processes
	RoleBenchmark
)

func (r Role) String() string {
	switch r {
	case RoleService:
		return "service"
	case RoleBenchmark:
		return "benchmark"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Target is one endpoint of a fleet operation. Everything but the host is
// fixed at construction; the host is attached once by ConnectAll.
type Target struct {
	Address   string
	Replica   int
	Partition *int // nil for benchmark clients
	ProcNum   *int // nil when the address runs a single process

	host remote.Host
}

// NewServiceTarget creates the target of one service partition
func NewServiceTarget(address string, replica, partition int) *Target {
	return &Target{Address: address, Replica: replica, Partition: &partition}
}

// NewClientTarget creates the target of one benchmark client process
func NewClientTarget(address string, replica, procNum int) *Target {
	return &Target{Address: address, Replica: replica, ProcNum: &procNum}
}

// Host returns the connection handle, or nil before a successful connect
func (t *Target) Host() remote.Host {
	return t.host
}

// Connected reports whether a host is attached
func (t *Target) Connected() bool {
	return t.host != nil
}

// Key identifies the target within one operation
func (t *Target) Key() string {
	switch {
	case t.Partition != nil:
		return fmt.Sprintf("%s/r%d/p%d", t.Address, t.Replica, *t.Partition)
	case t.ProcNum != nil:
		return fmt.Sprintf("%s/r%d/proc%d", t.Address, t.Replica, *t.ProcNum)
	default:
		return fmt.Sprintf("%s/r%d", t.Address, t.Replica)
	}
}

func (t *Target) String() string {
	return t.Key()
}

// Fields returns structured logging fields describing the target
func (t *Target) Fields() logrus.Fields {
	f := logrus.Fields{
		"address": t.Address,
		"replica": t.Replica,
	}
	if t.Partition != nil {
		f["partition"] = *t.Partition
	}
	if t.ProcNum != nil {
		f["proc"] = *t.ProcNum
	}
	return f
}

// Targets derives the ordered targets of role from a topology. Service targets
// follow replica then partition order. Benchmark client processes are
// interleaved across addresses, so any prefix of the list spreads over as many
// machines as possible.
func Targets(topo *config.Topology, role Role) []*Target {
	switch role {
	case RoleService:
		var targets []*Target
		for rep, r := range topo.Replicas {
			for part, addr := range r.Addresses {
				targets = append(targets, NewServiceTarget(addr, rep, part))
			}
		}
		return targets

	case RoleBenchmark:
		var perAddress [][]*Target
		for rep, r := range topo.Replicas {
			for _, c := range r.Clients {
				procs := make([]*Target, c.Procs)
				for p := range procs {
					procs[p] = NewClientTarget(c.Address, rep, p)
				}
				perAddress = append(perAddress, procs)
			}
		}
		return Interleave(perAddress)
	}
	return nil
}

// Interleave emits the k-th element of every group in group order, for
// k = 0, 1, ..., skipping groups that have run out.
func Interleave(groups [][]*Target) []*Target {
	longest, total := 0, 0
	for _, g := range groups {
		total += len(g)
		if len(g) > longest {
			longest = len(g)
		}
	}

	out := make([]*Target, 0, total)
	for k := 0; k < longest; k++ {
		for _, g := range groups {
			if k < len(g) {
				out = append(out, g[k])
			}
		}
	}
	return out
}
