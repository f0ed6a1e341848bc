package output

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"fleet-admin/fleet"
)

// Failure is one target that did not succeed
type Failure struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// Latency summarizes how long per-target actions took
type Latency struct {
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P99 time.Duration `json:"p99"`
	Max time.Duration `json:"max"`
}

// Summary aggregates the results of one command
type Summary struct {
	Command   string         `json:"command"`
	Duration  time.Duration  `json:"duration"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByKind    map[string]int `json:"by_kind,omitempty"`
	Latency   *Latency       `json:"latency,omitempty"`
	Failures  []Failure      `json:"failures,omitempty"`
}

// maxLatency bounds the histogram: 1us to 1h, 3 significant figures
var maxLatency = int64(time.Hour / time.Microsecond)

// Summarize counts results by outcome and computes the latency quantiles of
// the actions that ran
func Summarize(command string, results []fleet.Result, duration time.Duration) *Summary {
	s := &Summary{Command: command, Duration: duration, Total: len(results)}
	hist := hdrhistogram.New(1, maxLatency, 3)

	for _, r := range results {
		if r.Elapsed > 0 {
			us := int64(r.Elapsed / time.Microsecond)
			if us < 1 {
				us = 1
			}
			if us > maxLatency {
				us = maxLatency
			}
			_ = hist.RecordValue(us)
		}

		if r.Success {
			s.Succeeded++
			continue
		}
		s.Failed++
		kind := string(r.Kind)
		if kind == "" {
			kind = string(fleet.KindAction)
		}
		if s.ByKind == nil {
			s.ByKind = make(map[string]int)
		}
		s.ByKind[kind]++

		f := Failure{Kind: kind}
		if r.Target != nil {
			f.Target = r.Target.Key()
		}
		if r.Err != nil {
			f.Error = r.Err.Error()
		}
		s.Failures = append(s.Failures, f)
	}

	if hist.TotalCount() > 0 {
		s.Latency = &Latency{
			P50: micros(hist.ValueAtQuantile(50)),
			P90: micros(hist.ValueAtQuantile(90)),
			P99: micros(hist.ValueAtQuantile(99)),
			Max: micros(hist.Max()),
		}
	}
	return s
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
