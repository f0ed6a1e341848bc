// Package cli wires the admin commands to the coordinator.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fleet-admin/config"
	"fleet-admin/coordinator"
	"fleet-admin/fleet"
	"fleet-admin/metrics"
	"fleet-admin/output"
	"fleet-admin/remote"
)

const appVersion = "1.0.0"

// ErrSomeFailed is returned when a command finished but not every target
// succeeded
var ErrSomeFailed = errors.New("some targets failed")

// App represents the main application
type App struct {
	flags  *Flags
	logger *logrus.Logger
	out    io.Writer
	runID  string

	// dialer returns the dialer for remote commands; replaced in tests
	dialer func(s *config.Settings) remote.Dialer
}

// NewApp creates a new application instance
func NewApp() *App {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &App{
		flags:  &Flags{},
		logger: logger,
		out:    os.Stdout,
		runID:  uuid.NewString(),
		dialer: func(s *config.Settings) remote.Dialer {
			return remote.NewSSHDialer(sshConfig(s))
		},
	}
}

// Run parses args and executes the selected command
func (a *App) Run(args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	return root.Execute()
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Control a fleet of service machines and benchmark clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.flags.Verbose {
				a.logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	a.flags.bind(root)

	root.AddCommand(
		a.startCommand(),
		a.stopCommand(),
		a.statusCommand(),
		a.logsCommand(),
		a.benchmarkCommand(),
		a.genDataCommand(),
		a.localCommand(),
		a.infoCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *App) log() logrus.FieldLogger {
	return a.logger.WithField("run", a.runID)
}

// session is everything a fleet command needs
type session struct {
	coord     *coordinator.Coordinator
	formatter *output.Formatter
	metrics   *metrics.Recorder
	start     time.Time
}

// execute loads the topology and settings, runs fn with a coordinator and
// writes the metrics file afterwards
func (a *App) execute(cmd *cobra.Command, configFile string, local bool, opts coordinator.Options, fn func(ctx context.Context, s *session) error) error {
	log := a.log().WithField("command", cmd.Name())

	settings, err := config.LoadSettings(a.flags.EnvFile)
	if err != nil {
		return err
	}
	a.flags.apply(settings)

	log.Debugf("Loading configuration from %s", configFile)
	topo, err := config.LoadTopology(configFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if a.flags.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, a.flags.Timeout)
		defer cancel()
	}
	stop := a.setupSignalHandling(cancel)
	defer stop()

	var dialer remote.Dialer = remote.LocalDialer{}
	if !local {
		dialer = a.dialer(settings)
	}

	opts.NoPull = a.flags.NoPull
	rec := metrics.New(a.runID, cmd.Name())
	s := &session{
		coord:     coordinator.New(topo, settings, dialer, log, rec, opts),
		formatter: output.NewFormatter(a.flags.JSONOutput, a.out),
		metrics:   rec,
		start:     time.Now(),
	}

	err = fn(ctx, s)
	log.Debugf("Command finished in %v", time.Since(s.start))

	if a.flags.MetricsFile != "" {
		if werr := rec.WriteFile(a.flags.MetricsFile); werr != nil {
			log.WithError(werr).Warn("Failed to write metrics")
		}
	}
	return err
}

// report prints results and turns partial failure into ErrSomeFailed
func (a *App) report(s *session, command string, results []fleet.Result) error {
	if err := s.formatter.OutputResults(command, results, time.Since(s.start)); err != nil {
		return err
	}
	return calculateExitError(results)
}

// setupSignalHandling cancels the command on SIGINT or SIGTERM. The returned
// function stops listening.
func (a *App) setupSignalHandling(cancel context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			a.log().Warnf("Received signal %v, shutting down...", sig)
			cancel()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func calculateExitError(results []fleet.Result) error {
	if n := len(fleet.Failed(results)); n > 0 {
		return errors.Wrapf(ErrSomeFailed, "%d of %d", n, len(results))
	}
	return nil
}
