package coordinator

import (
	"time"

	"github.com/pkg/errors"

	"fleet-admin/campaign"
	"fleet-admin/fleet"
	"fleet-admin/hostinfo"
)

// Status values reported for targets that have no container state
const (
	StatusUnreachable = "network unavailable"
	StatusNotStarted  = "container not started"
	StatusUnknown     = "unknown"
)

// TagFormat names benchmark runs that were not given a tag
const TagFormat = "2006-01-02-15-04-05"

var (
	// ErrUnknownTarget is returned when a command names a target that is not
	// part of the topology
	ErrUnknownTarget = errors.New("target is not specified in the config")
	// ErrUnreachable is returned when the single target of a command cannot
	// be connected to
	ErrUnreachable = errors.New("target is unreachable")
)

// StatusEntry is the container state of one service partition
type StatusEntry struct {
	Replica   int    `json:"replica"`
	Partition int    `json:"partition"`
	Address   string `json:"address"`
	Status    string `json:"status"`
}

// LogsOptions selects the container whose logs are printed. The target is
// chosen by Address when set, otherwise by Replica and Partition.
type LogsOptions struct {
	Address   string
	Replica   int
	Partition int
	Container string
	Follow    bool
}

// BenchmarkOptions describes one benchmark campaign
type BenchmarkOptions struct {
	Duration time.Duration
	NumTxns  int
	Steps    int
	// Tag names the output directory; the current time is used when empty
	Tag string

	Workload string
	Params   string
	Rate     int
	Workers  int
	Sample   int

	// Cleanup stops after removing old containers and output directories
	Cleanup bool
}

// BenchmarkResult is what a benchmark command did
type BenchmarkResult struct {
	Tag    string `json:"tag"`
	OutDir string `json:"out_dir"`
	// Connection and cleanup failures
	Failed  []fleet.Result    `json:"-"`
	Summary *campaign.Summary `json:"-"`
}

// Results returns every per-target result of the run in the order the
// phases happened
func (r *BenchmarkResult) Results() []fleet.Result {
	results := append([]fleet.Result(nil), r.Failed...)
	if r.Summary != nil {
		results = append(results, r.Summary.Dispatched...)
		results = append(results, r.Summary.Completed...)
	}
	return results
}

// GenDataOptions sizes the generated data set
type GenDataOptions struct {
	Partition  int
	Size       int
	SizeUnit   string
	RecordSize int
	MaxJobs    int
}

// InfoResult holds the host facts of every reachable machine
type InfoResult struct {
	Reports []*hostinfo.Report `json:"hosts"`
	Failed  []fleet.Result     `json:"-"`
}
