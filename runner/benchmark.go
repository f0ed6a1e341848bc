package runner

import (
	"path"
	"strconv"
	"time"
)

// Benchmark runs one benchmark client process
type Benchmark struct {
	executablePath string

	ConfigPath string
	Replica    int
	DataDir    string
	// OutDir is the run directory; each process writes to OutDir/<ProcNum>
	OutDir  string
	ProcNum int

	Workload string
	Params   string
	Rate     int
	Workers  int
	Sample   int

	// Exactly one of NumTxns and Duration is set. A duration is turned into
	// a transaction count at the configured rate.
	NumTxns  int
	Duration time.Duration
}

// NewBenchmark creates a benchmark runner with the default workload settings
func NewBenchmark(executablePath string) *Benchmark {
	if executablePath == "" {
		executablePath = "benchmark"
	}
	return &Benchmark{
		executablePath: executablePath,
		Workload:       "basic",
		Rate:           1000,
		Workers:        1,
		Sample:         10,
	}
}

// Name returns the name of the runner
func (r *Benchmark) Name() string {
	return "benchmark"
}

// SetExecutablePath sets the custom executable path for this runner
func (r *Benchmark) SetExecutablePath(path string) {
	r.executablePath = path
}

// Validate checks the client parameters
func (r *Benchmark) Validate() error {
	switch {
	case r.ConfigPath == "" || r.DataDir == "" || r.OutDir == "":
		return invalid("benchmark: config path, data dir and output dir are required")
	case r.Replica < 0:
		return invalid("benchmark: negative replica %d", r.Replica)
	case r.ProcNum < 0:
		return invalid("benchmark: negative process number %d", r.ProcNum)
	case r.Workload == "":
		return invalid("benchmark: workload is required")
	case r.Rate <= 0:
		return invalid("benchmark: rate must be positive, got %d", r.Rate)
	case r.Workers <= 0:
		return invalid("benchmark: workers must be positive, got %d", r.Workers)
	case r.Sample < 0 || r.Sample > 100:
		return invalid("benchmark: sample must be a percentage, got %d", r.Sample)
	case r.NumTxns > 0 && r.Duration > 0:
		return invalid("benchmark: number of transactions and duration are mutually exclusive")
	case r.NumTxns <= 0 && r.Duration <= 0:
		return invalid("benchmark: either number of transactions or duration is required")
	}
	return nil
}

// Txns returns the number of transactions the client sends
func (r *Benchmark) Txns() int64 {
	if r.NumTxns > 0 {
		return int64(r.NumTxns)
	}
	return int64(r.Rate) * Seconds(r.Duration)
}

// ProcOutDir is the directory this process writes its results to
func (r *Benchmark) ProcOutDir() string {
	return path.Join(r.OutDir, strconv.Itoa(r.ProcNum))
}

// BuildCommand constructs the client command line
func (r *Benchmark) BuildCommand() string {
	return newCommandLine(r.executablePath).
		flag("--config", r.ConfigPath).
		intFlag("--r", int64(r.Replica)).
		flag("--data-dir", r.DataDir).
		flag("--out-dir", r.ProcOutDir()).
		flag("--wl", r.Workload).
		flag("--params", r.Params).
		intFlag("--rate", int64(r.Rate)).
		intFlag("--txns", r.Txns()).
		intFlag("--workers", int64(r.Workers)).
		intFlag("--sample", int64(r.Sample)).
		bare("--txn_profiles").
		String()
}

// MkdirCommand creates the output directory of this process
func (r *Benchmark) MkdirCommand() string {
	return newCommandLine("mkdir").arg("-p", r.ProcOutDir()).String()
}
