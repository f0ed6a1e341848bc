package campaign

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fleet-admin/fleet"
	"fleet-admin/remote"
)

// Sleeper pauses between steps. It returns early with the context's error
// when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f(ctx, d)
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WallClock sleeps in real time
var WallClock Sleeper = timerSleeper{}

// Assignment is what one launched client is asked to do
type Assignment struct {
	Step     int
	Duration time.Duration
	NumTxns  int
}

// LaunchFunc starts the benchmark client of one target and returns the unit
// to wait on
type LaunchFunc func(ctx context.Context, t *fleet.Target, a Assignment) (*remote.Unit, error)

// Summary is what a campaign run did
type Summary struct {
	Plan *Plan
	// Launch results in dispatch order across all steps
	Dispatched []fleet.Result
	Launched   []fleet.Launched
	// Wait results of the launched units
	Completed []fleet.Result
	// Number of steps fully dispatched
	StepsDone int
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithSleeper replaces the wall clock used between steps
func WithSleeper(s Sleeper) Option {
	return func(sc *Scheduler) {
		sc.sleeper = s
	}
}

// Scheduler runs a campaign over a list of benchmark targets
type Scheduler struct {
	params  Params
	log     logrus.FieldLogger
	sleeper Sleeper
}

// NewScheduler creates a scheduler for params
func NewScheduler(log logrus.FieldLogger, params Params, opts ...Option) *Scheduler {
	s := &Scheduler{
		params:  params,
		log:     log,
		sleeper: WallClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run launches targets batch by batch, pausing between steps of a duration
// campaign, and then waits for every launched client. Step i+1 is not
// dispatched before all launches of step i have returned. If ctx is done
// between steps, no further step is dispatched and Run returns without
// waiting; clients already launched keep running.
func (s *Scheduler) Run(ctx context.Context, targets []*fleet.Target, launch LaunchFunc) (*Summary, error) {
	plan, err := NewPlan(s.params, len(targets))
	if err != nil {
		return nil, err
	}

	summary := &Summary{Plan: plan}
	if len(plan.Steps) == 0 {
		s.log.Warn("No benchmark clients to launch")
		return summary, nil
	}

	s.log.WithFields(logrus.Fields{
		"clients":       plan.Targets,
		"steps":         len(plan.Steps),
		"step_duration": plan.StepDuration,
	}).Debug("Planned campaign")

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return summary, errors.Wrapf(err, "campaign stopped before step %d", i+1)
		}

		a := Assignment{Step: i, Duration: step.Duration, NumTxns: s.params.NumTxns}
		batch := targets[step.Start:step.End]
		outcomes := fleet.Map(ctx, batch, func(ctx context.Context, t *fleet.Target) (*remote.Unit, error) {
			return launch(ctx, t, a)
		})

		results := fleet.Results(outcomes)
		for _, o := range outcomes {
			if o.Success && o.Value != nil {
				summary.Launched = append(summary.Launched, fleet.Launched{Target: o.Target, Unit: o.Value})
			}
		}
		summary.Dispatched = append(summary.Dispatched, results...)
		summary.StepsDone++

		fleet.Report(s.log, "launch", results)
		s.log.WithFields(logrus.Fields{
			"step":     i + 1,
			"batch":    step.Batch.String(),
			"duration": step.Duration,
		}).Infof("Step %d: started %d clients", i+1, len(batch))

		if step.Sleep > 0 {
			if err := s.sleeper.Sleep(ctx, step.Sleep); err != nil {
				return summary, errors.Wrapf(err, "campaign stopped after step %d", i+1)
			}
		}
	}

	summary.Completed = fleet.WaitAll(ctx, s.log, summary.Launched)
	return summary, nil
}
