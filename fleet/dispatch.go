package fleet

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrorKind classifies why a target did not succeed
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindAuthentication ErrorKind = "AuthenticationFailure"
	KindConnection     ErrorKind = "ConnectionFailure"
	KindAction         ErrorKind = "ActionFailure"
)

// Result is the outcome of one action on one target
type Result struct {
	Target  *Target
	Success bool
	Kind    ErrorKind
	Err     error
	Output  string
	Elapsed time.Duration
}

// Outcome is a Result carrying the value the action produced
type Outcome[T any] struct {
	Result
	Value T
}

// Action is run once per target by RunAll and returns optional output
type Action func(ctx context.Context, t *Target) (string, error)

type indexed[T any] struct {
	i   int
	out Outcome[T]
}

// Map runs fn against every target concurrently, one goroutine per target,
// and returns exactly one outcome per target in input order. An error or a
// panic in one call is recorded in that target's outcome only. Each goroutine
// hands its outcome back over a channel; nothing is written to shared state.
func Map[T any](ctx context.Context, targets []*Target, fn func(ctx context.Context, t *Target) (T, error)) []Outcome[T] {
	if len(targets) == 0 {
		return nil
	}

	ch := make(chan indexed[T], len(targets))
	for i, t := range targets {
		go func(i int, t *Target) {
			ch <- indexed[T]{i: i, out: invoke(ctx, t, fn)}
		}(i, t)
	}

	outcomes := make([]Outcome[T], len(targets))
	for range targets {
		r := <-ch
		outcomes[r.i] = r.out
	}
	return outcomes
}

func invoke[T any](ctx context.Context, t *Target, fn func(ctx context.Context, t *Target) (T, error)) (out Outcome[T]) {
	start := time.Now()
	out.Target = t

	defer func() {
		if p := recover(); p != nil {
			out.Success = false
			out.Kind = KindAction
			out.Err = errors.Errorf("panic: %v", p)
		}
		out.Elapsed = time.Since(start)
	}()

	value, err := fn(ctx, t)
	out.Value = value
	if err != nil {
		out.Kind = KindAction
		out.Err = err
		return out
	}
	out.Success = true
	return out
}

// RunAll runs action against every target concurrently and returns one
// Result per target
func RunAll(ctx context.Context, targets []*Target, action Action) []Result {
	outcomes := Map(ctx, targets, func(ctx context.Context, t *Target) (string, error) {
		return action(ctx, t)
	})

	results := make([]Result, len(outcomes))
	for i, o := range outcomes {
		results[i] = o.Result
		results[i].Output = o.Value
	}
	return results
}

// Results strips the values from a list of outcomes
func Results[T any](outcomes []Outcome[T]) []Result {
	results := make([]Result, len(outcomes))
	for i, o := range outcomes {
		results[i] = o.Result
	}
	return results
}

// ByKey indexes results by target identity
func ByKey(results []Result) map[string]Result {
	m := make(map[string]Result, len(results))
	for _, r := range results {
		m[r.Target.Key()] = r
	}
	return m
}

// Failed returns the results that did not succeed
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// Report logs every failed result of op with the target's fields
func Report(log logrus.FieldLogger, op string, results []Result) {
	for _, r := range Failed(results) {
		log.WithFields(r.Target.Fields()).
			WithField("op", op).
			WithField("kind", string(r.Kind)).
			WithError(r.Err).
			Errorf("%s failed on %s", op, r.Target.Address)
	}
}
