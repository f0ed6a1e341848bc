// Package campaign launches benchmark clients in staggered steps so that
// the clients of a duration campaign all finish close to the requested
// total duration.
package campaign

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// MinRunDuration is the shortest run any step is assigned. A client told to
// run for zero seconds would never stop.
const MinRunDuration = time.Second

// ErrInvalidParams is returned for campaign parameters that cannot be planned
var ErrInvalidParams = errors.New("invalid campaign parameters")

// Params describes one campaign. Exactly one of Duration and NumTxns is set.
type Params struct {
	Duration     time.Duration
	NumTxns      int
	Steps        int
	Compensation time.Duration
}

// IsDuration reports whether the campaign is bounded by total duration
func (p Params) IsDuration() bool {
	return p.Duration > 0
}

// Validate checks that the parameters describe a campaign that can be planned
func (p Params) Validate() error {
	switch {
	case p.Steps < 1:
		return errors.Wrapf(ErrInvalidParams, "steps must be at least 1, got %d", p.Steps)
	case p.Duration < 0:
		return errors.Wrapf(ErrInvalidParams, "duration must be positive, got %s", p.Duration)
	case p.NumTxns < 0:
		return errors.Wrapf(ErrInvalidParams, "number of transactions must be positive, got %d", p.NumTxns)
	case p.Duration > 0 && p.NumTxns > 0:
		return errors.Wrap(ErrInvalidParams, "duration and number of transactions are mutually exclusive")
	case p.Duration == 0 && p.NumTxns == 0:
		return errors.Wrap(ErrInvalidParams, "either duration or number of transactions is required")
	case p.Compensation < 0:
		return errors.Wrapf(ErrInvalidParams, "step compensation must not be negative, got %s", p.Compensation)
	}
	return nil
}

// Batch is the half-open range [Start, End) of the target list
type Batch struct {
	Start int
	End   int
}

// Len returns the number of targets in the batch
func (b Batch) Len() int {
	return b.End - b.Start
}

func (b Batch) String() string {
	return fmt.Sprintf("[%d, %d)", b.Start, b.End)
}

// Batches splits n targets into exactly steps contiguous batches. Each batch
// takes ceil(remaining / remaining steps) targets, so the first is ceil(n/steps)
// and sizes never grow. Batches are empty only at the tail and only when
// n < steps.
func Batches(n, steps int) []Batch {
	if steps < 1 {
		return nil
	}

	batches := make([]Batch, steps)
	start := 0
	for i := range batches {
		remaining := n - start
		left := steps - i
		size := (remaining + left - 1) / left
		batches[i] = Batch{Start: start, End: start + size}
		start += size
	}
	return batches
}

// Step is one planned launch
type Step struct {
	Batch
	// Duration each client of this step is told to run; zero for a
	// transaction-count campaign
	Duration time.Duration
	// Pause after this step before launching the next one
	Sleep time.Duration
}

// Plan is the schedule of a campaign over a fixed number of targets
type Plan struct {
	Params       Params
	Targets      int
	StepDuration time.Duration
	Steps        []Step
}

// NewPlan computes the steps of a campaign over n targets. Empty batches are
// dropped, so the plan can have fewer steps than requested. For a duration
// campaign over k non-empty steps, step i runs for
// remaining + (k-1-i) * compensation and is followed by a pause of
// Duration/k, except for the last step. remaining starts at Duration and drops
// by Duration/k after each step, never below MinRunDuration.
func NewPlan(p Params, n int) (*Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "negative number of targets %d", n)
	}

	plan := &Plan{Params: p, Targets: n}
	for _, b := range Batches(n, p.Steps) {
		if b.Len() > 0 {
			plan.Steps = append(plan.Steps, Step{Batch: b})
		}
	}
	if !p.IsDuration() || len(plan.Steps) == 0 {
		return plan, nil
	}

	k := len(plan.Steps)
	plan.StepDuration = p.Duration / time.Duration(k)

	remaining := p.Duration
	for i := range plan.Steps {
		run := remaining + time.Duration(k-1-i)*p.Compensation
		if run < MinRunDuration {
			run = MinRunDuration
		}
		plan.Steps[i].Duration = run

		if i < k-1 {
			plan.Steps[i].Sleep = plan.StepDuration
		}

		remaining -= plan.StepDuration
		if remaining < MinRunDuration {
			remaining = MinRunDuration
		}
	}
	return plan, nil
}

// Elapsed is the wall time from the first launch until the clients of the
// last step are due to finish, ignoring launch overhead
func (p *Plan) Elapsed() time.Duration {
	if len(p.Steps) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range p.Steps {
		total += s.Sleep
	}
	return total + p.Steps[len(p.Steps)-1].Duration
}
