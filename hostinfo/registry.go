package hostinfo

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ModuleRegistry manages the modules run against each host
type ModuleRegistry struct {
	modules map[string]Module
	log     logrus.FieldLogger
}

// NewModuleRegistry creates an empty registry
func NewModuleRegistry(log logrus.FieldLogger) *ModuleRegistry {
	return &ModuleRegistry{
		modules: make(map[string]Module),
		log:     log,
	}
}

// DefaultRegistry creates a registry with every built-in module. dataDir is
// the host directory whose filesystem the storage module reports.
func DefaultRegistry(log logrus.FieldLogger, dataDir string) (*ModuleRegistry, error) {
	r := NewModuleRegistry(log)
	for _, m := range []Module{
		NewSystemModule(),
		NewCPUModule(),
		NewMemoryModule(),
		NewStorageModule(dataDir),
		NewNetworkModule(),
		NewDockerModule(),
	} {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a module to the registry
func (r *ModuleRegistry) Register(module Module) error {
	name := module.Name()
	if name == "" {
		return errors.New("module name cannot be empty")
	}

	if _, exists := r.modules[name]; exists {
		return errors.Errorf("module %s already registered", name)
	}

	r.modules[name] = module
	r.log.WithField("module", name).Debugf("Registered host module: %s", module.Description())
	return nil
}

// GetModule returns a module by name
func (r *ModuleRegistry) GetModule(name string) (Module, bool) {
	module, exists := r.modules[name]
	return module, exists
}

// ListModules returns all registered module names in sorted order
func (r *ModuleRegistry) ListModules() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectFromModules runs the enabled modules, or all of them when enabled
// is empty. Unknown, unavailable and failing modules are skipped.
func (r *ModuleRegistry) CollectFromModules(ctx context.Context, executor CommandExecutor, enabled []string) map[string]interface{} {
	results := make(map[string]interface{})

	if len(enabled) == 0 {
		enabled = r.ListModules()
	}

	for _, name := range enabled {
		log := r.log.WithField("module", name)
		module, exists := r.modules[name]
		if !exists {
			log.Warn("Requested module not found")
			continue
		}

		if !module.IsAvailable(ctx, executor) {
			log.Debug("Skipping module: not available on this host")
			continue
		}

		data, err := module.Collect(ctx, executor)
		if err != nil {
			log.WithError(err).Warn("Module failed to collect data")
			continue
		}

		results[name] = data
	}

	return results
}
