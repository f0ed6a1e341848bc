package hostinfo

import (
	"context"
	"strings"
)

// NetworkInterface is one interface of a host with its IPv4 addresses
type NetworkInterface struct {
	Name        string   `json:"name"`
	IPAddresses []string `json:"ip_addresses"`
}

// NetworkInfo represents all network information
type NetworkInfo struct {
	Interfaces []NetworkInterface `json:"interfaces"`
}

// NetworkModule lists interfaces and addresses, which shows whether a
// topology address is actually bound on the machine
type NetworkModule struct{}

// NewNetworkModule creates a new network information module
func NewNetworkModule() *NetworkModule {
	return &NetworkModule{}
}

// Name returns the module name
func (m *NetworkModule) Name() string {
	return "network"
}

// Description returns the module description
func (m *NetworkModule) Description() string {
	return "Collects network interfaces and their IPv4 addresses"
}

// IsAvailable checks that the ip tool is installed
func (m *NetworkModule) IsAvailable(ctx context.Context, executor CommandExecutor) bool {
	_, err := executor.Execute(ctx, "command -v ip")
	return err == nil
}

// Collect parses `ip -o -4 addr show`
func (m *NetworkModule) Collect(ctx context.Context, executor CommandExecutor) (interface{}, error) {
	out, err := executor.Execute(ctx, "ip -o -4 addr show")
	if err != nil {
		return nil, err
	}
	return parseIPAddr(out), nil
}

// parseIPAddr reads lines such as
// "2: eth0    inet 10.0.0.5/24 brd 10.0.0.255 scope global eth0"
func parseIPAddr(text string) *NetworkInfo {
	info := &NetworkInfo{}
	index := map[string]int{}

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[2] != "inet" {
			continue
		}
		name := fields[1]
		i, ok := index[name]
		if !ok {
			i = len(info.Interfaces)
			index[name] = i
			info.Interfaces = append(info.Interfaces, NetworkInterface{Name: name})
		}
		info.Interfaces[i].IPAddresses = append(info.Interfaces[i].IPAddresses, fields[3])
	}
	return info
}
