package hostinfo

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Report is what was collected from one host
type Report struct {
	Address        string                 `json:"address"`
	CollectionTime time.Time              `json:"collection_time"`
	Modules        map[string]interface{} `json:"modules"`
}

// Collector runs a registry against hosts
type Collector struct {
	registry *ModuleRegistry
	enabled  []string
	log      logrus.FieldLogger
}

// NewCollector creates a collector; an empty enabled list runs every module
func NewCollector(registry *ModuleRegistry, enabled []string, log logrus.FieldLogger) *Collector {
	return &Collector{registry: registry, enabled: enabled, log: log}
}

// Collect gathers the report of one host
func (c *Collector) Collect(ctx context.Context, address string, executor CommandExecutor) *Report {
	modules := c.registry.CollectFromModules(ctx, executor, c.enabled)
	c.log.WithField("address", address).Debugf("Collected %d host modules", len(modules))
	return &Report{
		Address:        address,
		CollectionTime: time.Now(),
		Modules:        modules,
	}
}
