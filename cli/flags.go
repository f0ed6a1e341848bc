package cli

import (
	"time"

	"github.com/spf13/cobra"

	"fleet-admin/config"
	"fleet-admin/ssh"
)

const defaultEnvFile = ".env"

// Flags holds the options shared by every command
type Flags struct {
	EnvFile     string
	User        string
	KeyPath     string
	KnownHosts  string
	Image       string
	NoPull      bool
	Timeout     time.Duration
	Verbose     bool
	JSONOutput  bool
	MetricsFile string
}

// bind registers the flags on the root command
func (f *Flags) bind(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.EnvFile, "env-file", defaultEnvFile, "Dotenv file with settings, ignored if missing")
	pf.StringVarP(&f.User, "user", "u", "", "Username of the target machines")
	pf.StringVar(&f.KeyPath, "key", "", "Private key used to log in to the target machines")
	pf.StringVar(&f.KnownHosts, "known-hosts", "", "known_hosts file used to verify the target machines")
	pf.StringVar(&f.Image, "image", "", "Name of the Docker image to use")
	pf.BoolVar(&f.NoPull, "no-pull", false, "Do not pull the latest version of the Docker image")
	pf.DurationVar(&f.Timeout, "timeout", 0, "Give up on the command after this long (0 means no limit)")
	pf.BoolVarP(&f.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&f.JSONOutput, "json", false, "Output results in JSON format")
	pf.StringVar(&f.MetricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this file")
}

// apply overrides environment settings with the flags that were given
func (f *Flags) apply(s *config.Settings) {
	if f.User != "" {
		s.User = f.User
	}
	if f.KeyPath != "" {
		s.KeyPath = f.KeyPath
	}
	if f.KnownHosts != "" {
		s.KnownHosts = f.KnownHosts
	}
	if f.Image != "" {
		s.Image = f.Image
	}
}

// sshConfig is the connection template for every target
func sshConfig(s *config.Settings) ssh.Config {
	return ssh.Config{
		Port:           s.Port,
		User:           s.User,
		KeyPath:        s.KeyPath,
		Password:       s.Password,
		KnownHostsPath: s.KnownHosts,
		UseAgent:       s.UseAgent,
		ConnectTimeout: s.ConnectTimeout,
	}
}
