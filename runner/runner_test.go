package runner

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunner_Names(t *testing.T) {
	runners := []struct {
		runner Runner
		name   string
	}{
		{NewServer(""), "server"},
		{NewBenchmark(""), "benchmark"},
		{NewGenData(""), "gen_data"},
	}

	for _, tt := range runners {
		if name := tt.runner.Name(); name != tt.name {
			t.Errorf("Expected name %q, got %q", tt.name, name)
		}
	}
}

func TestServer_BuildCommand(t *testing.T) {
	r := NewServer("")
	r.ConfigPath = "/var/tmp/slog.conf"
	r.Address = "10.0.0.1"
	r.DataDir = "/var/tmp"

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	expected := "slog --config /var/tmp/slog.conf --address 10.0.0.1 --data-dir /var/tmp"
	if cmd := r.BuildCommand(); cmd != expected {
		t.Errorf("BuildCommand() = %q, expected %q", cmd, expected)
	}

	r.SetExecutablePath("/opt/slog/bin/slog")
	if cmd := r.BuildCommand(); !strings.HasPrefix(cmd, "/opt/slog/bin/slog --config") {
		t.Errorf("BuildCommand() should use custom path, got %q", cmd)
	}
}

func TestServer_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Server)
	}{
		{"missing config", func(r *Server) { r.ConfigPath = "" }},
		{"missing address", func(r *Server) { r.Address = "" }},
		{"missing data dir", func(r *Server) { r.DataDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewServer("")
			r.ConfigPath, r.Address, r.DataDir = "/c", "a", "/d"
			tt.modify(r)

			err := r.Validate()
			if err == nil {
				t.Fatal("Validate() expected error but got none")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error %v should wrap ErrInvalidConfig", err)
			}
		})
	}
}

func newTestBenchmark() *Benchmark {
	r := NewBenchmark("")
	r.ConfigPath = "/var/tmp/slog.conf"
	r.Replica = 1
	r.DataDir = "/var/tmp"
	r.OutDir = "/var/tmp/slog-benchmark-2024-01-02-03-04-05"
	r.ProcNum = 2
	return r
}

func TestBenchmark_BuildCommand(t *testing.T) {
	r := newTestBenchmark()
	r.NumTxns = 5000
	r.Params = "mh=50,mp=50"

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	expected := "benchmark --config /var/tmp/slog.conf --r 1 --data-dir /var/tmp " +
		"--out-dir /var/tmp/slog-benchmark-2024-01-02-03-04-05/2 --wl basic --params mh=50,mp=50 " +
		"--rate 1000 --txns 5000 --workers 1 --sample 10 --txn_profiles"
	if cmd := r.BuildCommand(); cmd != expected {
		t.Errorf("BuildCommand() =\n%q\nexpected\n%q", cmd, expected)
	}

	mkdir := "mkdir -p /var/tmp/slog-benchmark-2024-01-02-03-04-05/2"
	if cmd := r.MkdirCommand(); cmd != mkdir {
		t.Errorf("MkdirCommand() = %q, expected %q", cmd, mkdir)
	}
}

func TestBenchmark_EmptyParamsAreQuoted(t *testing.T) {
	r := newTestBenchmark()
	r.NumTxns = 10

	if cmd := r.BuildCommand(); !strings.Contains(cmd, "--params '' ") {
		t.Errorf("BuildCommand() should pass empty params as one word, got %q", cmd)
	}
}

func TestBenchmark_Txns(t *testing.T) {
	tests := []struct {
		name     string
		numTxns  int
		duration time.Duration
		rate     int
		expected int64
	}{
		{"fixed count", 300, 0, 1000, 300},
		{"duration", 0, 62 * time.Second, 1000, 62000},
		{"fractional seconds round up", 0, 1500 * time.Millisecond, 100, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestBenchmark()
			r.NumTxns = tt.numTxns
			r.Duration = tt.duration
			r.Rate = tt.rate

			if got := r.Txns(); got != tt.expected {
				t.Errorf("Txns() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestBenchmark_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Benchmark)
		wantErr bool
	}{
		{"valid txns", func(r *Benchmark) { r.NumTxns = 1 }, false},
		{"valid duration", func(r *Benchmark) { r.Duration = time.Second }, false},
		{"neither", func(r *Benchmark) {}, true},
		{"both", func(r *Benchmark) { r.NumTxns = 1; r.Duration = time.Second }, true},
		{"zero rate", func(r *Benchmark) { r.NumTxns = 1; r.Rate = 0 }, true},
		{"zero workers", func(r *Benchmark) { r.NumTxns = 1; r.Workers = 0 }, true},
		{"sample over 100", func(r *Benchmark) { r.NumTxns = 1; r.Sample = 101 }, true},
		{"no out dir", func(r *Benchmark) { r.NumTxns = 1; r.OutDir = "" }, true},
		{"no workload", func(r *Benchmark) { r.NumTxns = 1; r.Workload = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestBenchmark()
			tt.modify(r)

			err := r.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Validate() expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestGenData_BuildCommand(t *testing.T) {
	r := NewGenData("")
	r.DataDir = "/var/tmp"
	r.NumReplicas = 2
	r.NumPartitions = 4
	r.PartitionBytes = 1

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	expected := "tools/gen_data.py /var/tmp --num-replicas 2 --num-partitions 4 --partition-bytes 1 " +
		"--partition -1 --size 100 --size-unit M --record-size 100 --max-jobs 8"
	if cmd := r.BuildCommand(); cmd != expected {
		t.Errorf("BuildCommand() =\n%q\nexpected\n%q", cmd, expected)
	}
}

func TestGenData_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*GenData)
		wantErr bool
	}{
		{"defaults", func(r *GenData) {}, false},
		{"single partition", func(r *GenData) { r.Partition = 3 }, false},
		{"partition out of range", func(r *GenData) { r.Partition = 4 }, true},
		{"bad unit", func(r *GenData) { r.SizeUnit = "G" }, true},
		{"no data dir", func(r *GenData) { r.DataDir = "" }, true},
		{"zero jobs", func(r *GenData) { r.MaxJobs = 0 }, true},
		{"zero partitions", func(r *GenData) { r.NumPartitions = 0; r.Partition = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewGenData("")
			r.DataDir = "/var/tmp"
			r.NumReplicas = 1
			r.NumPartitions = 4
			tt.modify(r)

			err := r.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Validate() expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in       time.Duration
		expected int64
	}{
		{0, 0},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{20 * time.Second, 20},
	}

	for _, tt := range tests {
		if got := Seconds(tt.in); got != tt.expected {
			t.Errorf("Seconds(%s) = %d, expected %d", tt.in, got, tt.expected)
		}
	}
}
