package config

import (
	"os"
	"path"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Settings holds machine-independent options of the admin tool. Every field
// can be set from the environment; command-line flags override them.
type Settings struct {
	User           string        `env:"ADMIN_USER" envDefault:"ubuntu"`
	Port           int           `env:"ADMIN_SSH_PORT" envDefault:"22"`
	KeyPath        string        `env:"ADMIN_SSH_KEY" envDefault:"~/.ssh/id_rsa"`
	Password       string        `env:"ADMIN_SSH_PASSWORD"`
	KnownHosts     string        `env:"ADMIN_KNOWN_HOSTS"`
	UseAgent       bool          `env:"ADMIN_SSH_AGENT" envDefault:"true"`
	ConnectTimeout time.Duration `env:"ADMIN_CONNECT_TIMEOUT" envDefault:"30s"`

	Image          string `env:"ADMIN_IMAGE" envDefault:"ctring/slog"`
	HostDataDir    string `env:"ADMIN_HOST_DATA_DIR" envDefault:"/var/tmp"`
	DataDir        string `env:"ADMIN_CONTAINER_DATA_DIR" envDefault:"/var/tmp"`
	ConfigFileName string `env:"ADMIN_CONFIG_FILE_NAME" envDefault:"slog.conf"`
	ServiceBinary  string `env:"ADMIN_SERVICE_BINARY" envDefault:"slog"`
	ServiceName    string `env:"ADMIN_SERVICE_CONTAINER" envDefault:"slog"`
	BenchmarkName  string `env:"ADMIN_BENCHMARK_CONTAINER" envDefault:"benchmark"`
	OutputPrefix   string `env:"ADMIN_OUTPUT_PREFIX" envDefault:"slog"`

	// Added to every staggered step but the last to offset launch overhead
	StepCompensation time.Duration `env:"ADMIN_STEP_COMPENSATION" envDefault:"1s"`
}

// LoadSettings reads settings from the process environment after loading any
// of the given dotenv files that exist. Variables already set win over files.
func LoadSettings(envFiles ...string) (*Settings, error) {
	existing := make([]string, 0, len(envFiles))
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, errors.Wrap(err, "failed to load env files")
		}
	}

	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, errors.Wrap(err, "failed to parse settings from environment")
	}
	return &s, nil
}

// ConfigPath is where the broadcast config lands inside containers
func (s *Settings) ConfigPath() string {
	return path.Join(s.DataDir, s.ConfigFileName)
}

// BenchmarkDir is the per-run output directory inside containers
func (s *Settings) BenchmarkDir(tag string) string {
	return path.Join(s.DataDir, s.OutputPrefix+"-benchmark-"+tag)
}
