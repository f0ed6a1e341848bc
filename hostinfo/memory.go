package hostinfo

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MemoryInfo represents memory information in kB
type MemoryInfo struct {
	TotalKB     int64 `json:"total_kb"`
	AvailableKB int64 `json:"available_kb"`
	UsedKB      int64 `json:"used_kb"`
	FreeKB      int64 `json:"free_kb"`
	BuffersKB   int64 `json:"buffers_kb,omitempty"`
	CachedKB    int64 `json:"cached_kb,omitempty"`
}

// MemoryModule collects memory information
type MemoryModule struct{}

// NewMemoryModule creates a new memory information module
func NewMemoryModule() *MemoryModule {
	return &MemoryModule{}
}

// Name returns the module name
func (m *MemoryModule) Name() string {
	return "memory"
}

// Description returns the module description
func (m *MemoryModule) Description() string {
	return "Collects memory information (total, available, used, buffers, cached)"
}

// IsAvailable checks if /proc/meminfo exists
func (m *MemoryModule) IsAvailable(ctx context.Context, executor CommandExecutor) bool {
	_, err := executor.Execute(ctx, "test -f /proc/meminfo")
	return err == nil
}

// Collect reads /proc/meminfo in one round trip
func (m *MemoryModule) Collect(ctx context.Context, executor CommandExecutor) (interface{}, error) {
	out, err := executor.Execute(ctx, "cat /proc/meminfo")
	if err != nil {
		return nil, err
	}
	return parseMeminfo(out)
}

func parseMeminfo(text string) (*MemoryInfo, error) {
	fields := map[string]*int64{}
	info := &MemoryInfo{}
	fields["MemTotal"] = &info.TotalKB
	fields["MemAvailable"] = &info.AvailableKB
	fields["MemFree"] = &info.FreeKB
	fields["Buffers"] = &info.BuffersKB
	fields["Cached"] = &info.CachedKB

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		target, wanted := fields[key]
		if !wanted {
			continue
		}
		value := strings.Fields(rest)
		if len(value) == 0 {
			continue
		}
		n, err := strconv.ParseInt(value[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad meminfo value for %s", key)
		}
		*target = n
	}
	if info.TotalKB == 0 {
		return nil, errors.New("meminfo has no MemTotal")
	}
	if info.AvailableKB > 0 {
		info.UsedKB = info.TotalKB - info.AvailableKB
	}
	return info, nil
}
