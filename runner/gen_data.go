package runner

// GenData runs the data generation tool on one machine
type GenData struct {
	executablePath string

	DataDir        string
	NumReplicas    int
	NumPartitions  int
	PartitionBytes int

	// Partition to generate, -1 for all
	Partition  int
	Size       int
	SizeUnit   string
	RecordSize int
	MaxJobs    int
}

var sizeUnits = map[string]bool{"": true, "K": true, "M": true, "B": true}

// NewGenData creates a data generation runner with default sizes
func NewGenData(executablePath string) *GenData {
	if executablePath == "" {
		executablePath = "tools/gen_data.py"
	}
	return &GenData{
		executablePath: executablePath,
		Partition:      -1,
		Size:           100,
		SizeUnit:       "M",
		RecordSize:     100,
		MaxJobs:        8,
	}
}

// Name returns the name of the runner
func (r *GenData) Name() string {
	return "gen_data"
}

// SetExecutablePath sets the custom executable path for this runner
func (r *GenData) SetExecutablePath(path string) {
	r.executablePath = path
}

// Validate checks the generation parameters against the topology sizes
func (r *GenData) Validate() error {
	switch {
	case r.DataDir == "":
		return invalid("gen_data: data dir is required")
	case r.NumReplicas < 1 || r.NumPartitions < 1:
		return invalid("gen_data: need at least one replica and one partition")
	case r.Partition < -1 || r.Partition >= r.NumPartitions:
		return invalid("gen_data: partition %d out of range [-1, %d)", r.Partition, r.NumPartitions)
	case r.Size <= 0 || r.RecordSize <= 0:
		return invalid("gen_data: size and record size must be positive")
	case !sizeUnits[r.SizeUnit]:
		return invalid("gen_data: unknown size unit %q", r.SizeUnit)
	case r.MaxJobs <= 0:
		return invalid("gen_data: max jobs must be positive, got %d", r.MaxJobs)
	}
	return nil
}

// BuildCommand constructs the generator command line
func (r *GenData) BuildCommand() string {
	return newCommandLine(r.executablePath).
		arg(r.DataDir).
		intFlag("--num-replicas", int64(r.NumReplicas)).
		intFlag("--num-partitions", int64(r.NumPartitions)).
		intFlag("--partition-bytes", int64(r.PartitionBytes)).
		intFlag("--partition", int64(r.Partition)).
		intFlag("--size", int64(r.Size)).
		flag("--size-unit", r.SizeUnit).
		intFlag("--record-size", int64(r.RecordSize)).
		intFlag("--max-jobs", int64(r.MaxJobs)).
		String()
}
