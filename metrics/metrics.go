// Package metrics records what one admin command did to the fleet in a
// Prometheus registry scoped to that invocation.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"fleet-admin/campaign"
	"fleet-admin/fleet"
)

const namespace = "fleet_admin"

// Recorder holds the collectors of one invocation
type Recorder struct {
	registry *prometheus.Registry

	connections    *prometheus.CounterVec
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	launched       prometheus.Counter
	steps          prometheus.Counter
	campaignSecs   prometheus.Gauge
	info           *prometheus.GaugeVec
}

// New creates a recorder with a fresh registry
func New(run, command string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connection attempts by outcome.",
		}, []string{"result"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Per-target actions by operation and outcome.",
		}, []string{"op", "result"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of per-target actions.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"op"}),
		launched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "benchmark_clients_launched_total",
			Help:      "Benchmark clients started by the campaign.",
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_steps_total",
			Help:      "Campaign steps dispatched.",
		}),
		campaignSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "campaign_planned_seconds",
			Help:      "Planned wall time of the campaign.",
		}),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_info",
			Help:      "Identifies the invocation that produced these metrics.",
		}, []string{"run", "command"}),
	}

	r.registry.MustRegister(
		r.connections,
		r.actions,
		r.actionDuration,
		r.launched,
		r.steps,
		r.campaignSecs,
		r.info,
	)
	r.info.WithLabelValues(run, command).Set(1)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Connections records the outcome of a connection pool round
func (r *Recorder) Connections(active int, failed []fleet.Result) {
	r.connections.WithLabelValues("ok").Add(float64(active))
	for _, f := range failed {
		r.connections.WithLabelValues(resultLabel(f)).Inc()
	}
}

// Actions records one fan-out
func (r *Recorder) Actions(op string, results []fleet.Result) {
	for _, res := range results {
		r.actions.WithLabelValues(op, resultLabel(res)).Inc()
		r.actionDuration.WithLabelValues(op).Observe(res.Elapsed.Seconds())
	}
}

// Campaign records what a scheduler run dispatched
func (r *Recorder) Campaign(s *campaign.Summary) {
	if s == nil {
		return
	}
	r.launched.Add(float64(len(s.Launched)))
	r.steps.Add(float64(s.StepsDone))
	if s.Plan != nil {
		r.campaignSecs.Set(s.Plan.Elapsed().Seconds())
	}
	r.Actions("launch", s.Dispatched)
	r.Actions("wait", s.Completed)
}

// WriteFile writes the registry in the text exposition format, for the node
// exporter textfile collector
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}

func resultLabel(res fleet.Result) string {
	if res.Success {
		return "ok"
	}
	if res.Kind == fleet.KindNone {
		return string(fleet.KindAction)
	}
	return string(res.Kind)
}
