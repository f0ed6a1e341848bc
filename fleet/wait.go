package fleet

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-admin/remote"
)

// Launched pairs a target with the unit started on it
type Launched struct {
	Target *Target
	Unit   *remote.Unit
}

// WaitAll blocks until every launched unit has exited. A zero status is
// logged as done; anything else is logged with the status and where to look,
// and waiting continues for the others.
func WaitAll(ctx context.Context, log logrus.FieldLogger, launched []Launched) []Result {
	targets := make([]*Target, len(launched))
	units := make(map[*Target]*remote.Unit, len(launched))
	for i, l := range launched {
		targets[i] = l.Target
		units[l.Target] = l.Unit
	}

	outcomes := Map(ctx, targets, func(ctx context.Context, t *Target) (int, error) {
		if !t.Connected() {
			return 0, errors.New("target is not connected")
		}
		return t.Host().Wait(ctx, units[t])
	})

	results := make([]Result, len(outcomes))
	for i, o := range outcomes {
		r := o.Result
		entry := log.WithFields(o.Target.Fields())
		unit := units[o.Target]

		switch {
		case !r.Success:
			entry.WithError(r.Err).Errorf("%s: Failed to wait for container %q", o.Target.Address, unit.Name)
		case o.Value != 0:
			r.Success = false
			r.Kind = KindAction
			r.Err = errors.Errorf("exit status %d", o.Value)
			entry.WithField("status", o.Value).Errorf(
				"%s: Finished with non-zero status (%d). Check the logs of the container %q for more details",
				o.Target.Address, o.Value, unit.Name)
		default:
			entry.Infof("%s: Done", o.Target.Address)
		}
		r.Output = fmt.Sprintf("exit status %d", o.Value)
		results[i] = r
	}
	return results
}
