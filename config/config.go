package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrConfigurationMissing is returned when the topology file does not exist.
var ErrConfigurationMissing = errors.New("configuration file missing")

// Topology describes the machines of one deployment
type Topology struct {
	NumPartitions    int              `yaml:"num_partitions" validate:"min=1"`
	HashPartitioning HashPartitioning `yaml:"hash_partitioning"`
	Replicas         []Replica        `yaml:"replicas" validate:"required,min=1,dive"`

	// Settings only the service understands are carried through untouched
	Extra map[string]interface{} `yaml:",inline"`
}

// HashPartitioning holds the key-space partitioning parameters
type HashPartitioning struct {
	PartitionKeyNumBytes int `yaml:"partition_key_num_bytes" validate:"min=0"`
}

// Replica is one region of the deployment
type Replica struct {
	Addresses []string `yaml:"addresses" validate:"dive,required"`
	Clients   []Client `yaml:"clients,omitempty" validate:"dive"`
}

// Client is a machine that runs benchmark processes against its replica
type Client struct {
	Address string `yaml:"address" validate:"required"`
	Procs   int    `yaml:"procs" validate:"min=1"`
}

// LoadTopology loads a topology from a YAML file
func LoadTopology(filename string) (*Topology, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrConfigurationMissing, "config file does not exist: %q", filename)
		}
		return nil, errors.Wrapf(err, "failed to read config file %s", filename)
	}

	topo, err := ParseTopology(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", filename)
	}
	return topo, nil
}

// ParseTopology decodes and validates a topology document
func ParseTopology(data []byte) (*Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, errors.Wrap(err, "failed to parse topology")
	}

	if err := NewValidator().ValidateTopology(&topo); err != nil {
		return nil, errors.Wrap(err, "topology validation failed")
	}

	return &topo, nil
}

// Text returns the canonical serialized form that is written to every machine.
// Map keys are emitted in sorted order, so equal topologies give equal text.
func (t *Topology) Text() (string, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal topology")
	}
	return string(data), nil
}

// NumReplicas returns the number of replicas
func (t *Topology) NumReplicas() int {
	return len(t.Replicas)
}

// AddressAt returns the service address of a replica/partition pair
func (t *Topology) AddressAt(replica, partition int) (string, error) {
	if replica < 0 || replica >= len(t.Replicas) {
		return "", errors.Errorf("replica %d out of range [0, %d)", replica, len(t.Replicas))
	}
	addrs := t.Replicas[replica].Addresses
	if partition < 0 || partition >= len(addrs) {
		return "", errors.Errorf("partition %d out of range [0, %d) in replica %d", partition, len(addrs), replica)
	}
	return addrs[partition], nil
}

// HasServiceAddress reports whether addr is a service address of any replica
func (t *Topology) HasServiceAddress(addr string) bool {
	for _, rep := range t.Replicas {
		for _, a := range rep.Addresses {
			if a == addr {
				return true
			}
		}
	}
	return false
}
