package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTopology = `
num_partitions: 2
hash_partitioning:
  partition_key_num_bytes: 4
broker_ports: [2020, 2021]
replicas:
  - addresses: ["10.0.0.1", "10.0.0.2"]
    clients:
      - address: "10.0.1.1"
        procs: 2
      - address: "10.0.1.2"
        procs: 3
  - addresses: ["10.0.0.3", "10.0.0.4"]
    clients:
      - address: "10.0.1.3"
        procs: 2
`

func writeTopology(t *testing.T, content string) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	configFile := filepath.Join(tmpDir, "topology.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configFile
}

func TestLoadTopology(t *testing.T) {
	topo, err := LoadTopology(writeTopology(t, sampleTopology))
	if err != nil {
		t.Fatalf("Failed to load topology: %v", err)
	}

	if topo.NumPartitions != 2 {
		t.Errorf("Expected 2 partitions, got %d", topo.NumPartitions)
	}
	if topo.HashPartitioning.PartitionKeyNumBytes != 4 {
		t.Errorf("Expected partition key bytes 4, got %d", topo.HashPartitioning.PartitionKeyNumBytes)
	}
	if topo.NumReplicas() != 2 {
		t.Fatalf("Expected 2 replicas, got %d", topo.NumReplicas())
	}

	rep := topo.Replicas[0]
	if len(rep.Addresses) != 2 || rep.Addresses[1] != "10.0.0.2" {
		t.Errorf("Unexpected addresses for replica 0: %v", rep.Addresses)
	}
	if len(rep.Clients) != 2 || rep.Clients[1].Procs != 3 {
		t.Errorf("Unexpected clients for replica 0: %+v", rep.Clients)
	}

	if _, exists := topo.Extra["broker_ports"]; !exists {
		t.Error("Unknown key broker_ports should be preserved")
	}
}

func TestLoadTopology_FileNotFound(t *testing.T) {
	_, err := LoadTopology("nonexistent_file.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file")
	}
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Errorf("Expected ErrConfigurationMissing, got %v", err)
	}
}

func TestLoadTopology_InvalidYAML(t *testing.T) {
	invalidContent := `
invalid: yaml: content:
  - missing
    - brackets
`
	_, err := LoadTopology(writeTopology(t, invalidContent))
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
	if errors.Is(err, ErrConfigurationMissing) {
		t.Error("Invalid YAML must not be reported as a missing file")
	}
}

func TestTopology_TextIsCanonical(t *testing.T) {
	first, err := ParseTopology([]byte(sampleTopology))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	text, err := first.Text()
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	second, err := ParseTopology([]byte(text))
	if err != nil {
		t.Fatalf("Failed to parse serialized text: %v", err)
	}
	again, err := second.Text()
	if err != nil {
		t.Fatalf("Failed to serialize again: %v", err)
	}

	if text != again {
		t.Errorf("Serialized text is not stable:\n%s\n---\n%s", text, again)
	}
	if !strings.Contains(text, "broker_ports") {
		t.Error("Serialized text should keep unknown keys")
	}
}

func TestTopology_AddressAt(t *testing.T) {
	topo, err := ParseTopology([]byte(sampleTopology))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	tests := []struct {
		name      string
		replica   int
		partition int
		expected  string
		wantErr   bool
	}{
		{name: "first", replica: 0, partition: 0, expected: "10.0.0.1"},
		{name: "last", replica: 1, partition: 1, expected: "10.0.0.4"},
		{name: "replica out of range", replica: 2, partition: 0, wantErr: true},
		{name: "partition out of range", replica: 0, partition: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := topo.AddressAt(tt.replica, tt.partition)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got address %q", addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if addr != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, addr)
			}
		})
	}

	if !topo.HasServiceAddress("10.0.0.3") {
		t.Error("10.0.0.3 should be a service address")
	}
	if topo.HasServiceAddress("10.0.1.1") {
		t.Error("10.0.1.1 is a client address, not a service address")
	}
}

func TestParseEnvs(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected map[string]string
		wantErr  bool
	}{
		{
			name:     "two variables",
			input:    []string{"GLOG_v=1", "FOO=bar"},
			expected: map[string]string{"GLOG_v": "1", "FOO": "bar"},
		},
		{
			name:     "value containing equals",
			input:    []string{"OPTS=a=b"},
			expected: map[string]string{"OPTS": "a=b"},
		},
		{
			name:     "empty value",
			input:    []string{"EMPTY="},
			expected: map[string]string{"EMPTY": ""},
		},
		{
			name:     "nil input",
			input:    nil,
			expected: map[string]string{},
		},
		{
			name:    "missing equals",
			input:   []string{"BAD"},
			wantErr: true,
		},
		{
			name:    "empty key",
			input:   []string{"=value"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnvs(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d entries, got %d (%v)", len(tt.expected), len(got), got)
			}
			for k, v := range tt.expected {
				if got[k] != v {
					t.Errorf("Expected %s=%q, got %q", k, v, got[k])
				}
			}
		})
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if s.Port == 0 {
		t.Error("Port should have a default")
	}
	if s.ConfigPath() != filepath.ToSlash(filepath.Join(s.DataDir, s.ConfigFileName)) {
		t.Errorf("Unexpected config path %q", s.ConfigPath())
	}
}

func TestLoadSettings_Environment(t *testing.T) {
	t.Setenv("ADMIN_USER", "alice")
	t.Setenv("ADMIN_STEP_COMPENSATION", "2s")
	t.Setenv("ADMIN_CONTAINER_DATA_DIR", "/data")
	t.Setenv("ADMIN_OUTPUT_PREFIX", "svc")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if s.User != "alice" {
		t.Errorf("Expected user alice, got %q", s.User)
	}
	if s.StepCompensation.Seconds() != 2 {
		t.Errorf("Expected 2s compensation, got %v", s.StepCompensation)
	}
	if got := s.BenchmarkDir("2024-01-02-03-04-05"); got != "/data/svc-benchmark-2024-01-02-03-04-05" {
		t.Errorf("Unexpected benchmark dir %q", got)
	}
}
