package fleet

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-admin/remote"
)

// ConnectAll dials every target concurrently and attaches the resulting host.
// Targets that fail to connect are logged, classified and left out of active,
// which keeps the input order. An empty active set is not an error.
func ConnectAll(ctx context.Context, log logrus.FieldLogger, dialer remote.Dialer, targets []*Target) (active []*Target, failed []Result) {
	outcomes := Map(ctx, targets, func(ctx context.Context, t *Target) (remote.Host, error) {
		return dialer.Dial(ctx, t.Address)
	})

	for _, o := range outcomes {
		entry := log.WithFields(o.Target.Fields())
		if o.Success && o.Value != nil {
			o.Target.host = o.Value
			active = append(active, o.Target)
			entry.Infof("Connected to %s", o.Target.Address)
			continue
		}

		r := o.Result
		r.Success = false
		if r.Err == nil {
			r.Err = errors.New("dialer returned no host")
		}
		if errors.Is(r.Err, remote.ErrAuthentication) {
			r.Kind = KindAuthentication
			entry.WithError(r.Err).Errorf(
				"Failed to authenticate when trying to connect to %s. Check username or key files", o.Target.Address)
		} else {
			r.Kind = KindConnection
			entry.WithError(r.Err).Errorf("Failed to connect to %s", o.Target.Address)
		}
		failed = append(failed, r)
	}

	return active, failed
}

// CloseAll closes the hosts of all connected targets
func CloseAll(log logrus.FieldLogger, targets []*Target) {
	for _, t := range targets {
		if t.host == nil {
			continue
		}
		if err := t.host.Close(); err != nil {
			log.WithFields(t.Fields()).WithError(err).Warn("Error closing connection")
		}
	}
}

// Hosts returns one connected target per distinct address, in order
func Hosts(targets []*Target) []*Target {
	seen := make(map[string]bool)
	var out []*Target
	for _, t := range targets {
		if seen[t.Address] || !t.Connected() {
			continue
		}
		seen[t.Address] = true
		out = append(out, t)
	}
	return out
}
