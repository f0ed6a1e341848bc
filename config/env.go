package config

import (
	"strings"

	"github.com/pkg/errors"
)

// ParseEnvs converts ["KEY=VALUE", ...] into a map. Only the first '=' splits,
// so values may themselves contain '='.
func ParseEnvs(envs []string) (map[string]string, error) {
	result := make(map[string]string, len(envs))
	for _, env := range envs {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			return nil, errors.Errorf("malformed environment variable %q: expected KEY=VALUE", env)
		}
		if key == "" {
			return nil, errors.Errorf("malformed environment variable %q: empty key", env)
		}
		result[key] = value
	}
	return result, nil
}
