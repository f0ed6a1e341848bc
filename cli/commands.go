package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"fleet-admin/config"
	"fleet-admin/coordinator"
)

func (a *App) startCommand() *cobra.Command {
	var envs []string
	cmd := &cobra.Command{
		Use:   "start <config>",
		Short: "Start the service on every machine of the topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.ParseEnvs(envs)
			if err != nil {
				return err
			}
			return a.execute(cmd, args[0], false, coordinator.Options{Env: env}, func(ctx context.Context, s *session) error {
				results, err := s.coord.Start(ctx)
				if err != nil {
					return err
				}
				return a.report(s, "start", results)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&envs, "env", "e", nil, "Environment variable for the service container, e.g. -e GLOG_v=1")
	return cmd
}

func (a *App) stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <config>",
		Short: "Stop the service on every machine of the topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, args[0], false, coordinator.Options{}, func(ctx context.Context, s *session) error {
				return a.report(s, "stop", s.coord.Stop(ctx))
			})
		},
	}
}

func (a *App) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <config>",
		Short: "Show the state of the service on every partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, args[0], false, coordinator.Options{}, func(ctx context.Context, s *session) error {
				return s.formatter.OutputStatus(s.coord.Status(ctx))
			})
		},
	}
}

func (a *App) logsCommand() *cobra.Command {
	var (
		opts coordinator.LogsOptions
		rp   []int
	)
	cmd := &cobra.Command{
		Use:   "logs <config>",
		Short: "Print the logs of one container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.Address == "" && len(rp) == 0:
				return errors.New("either --address or --rp is required")
			case len(rp) > 0 && len(rp) != 2:
				return errors.Errorf("--rp takes a replica and a partition, got %v", rp)
			case len(rp) == 2:
				opts.Replica, opts.Partition = rp[0], rp[1]
			}
			return a.execute(cmd, args[0], false, coordinator.Options{}, func(ctx context.Context, s *session) error {
				return s.coord.Logs(ctx, opts, a.out)
			})
		},
	}
	cmd.Flags().StringVarP(&opts.Address, "address", "a", "", "Address of the machine")
	cmd.Flags().IntSliceVar(&rp, "rp", nil, "Replica and partition of the machine, e.g. --rp 0,1")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep following the logs")
	cmd.Flags().StringVar(&opts.Container, "container", "", "Container to print the logs of (default the service container)")
	cmd.MarkFlagsMutuallyExclusive("address", "rp")
	return cmd
}

func (a *App) benchmarkCommand() *cobra.Command {
	var (
		opts     coordinator.BenchmarkOptions
		duration int
		envs     []string
	)
	cmd := &cobra.Command{
		Use:   "benchmark <config>",
		Short: "Run benchmark clients in staggered steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.ParseEnvs(envs)
			if err != nil {
				return err
			}
			opts.Duration = time.Duration(duration) * time.Second
			return a.execute(cmd, args[0], false, coordinator.Options{Env: env}, func(ctx context.Context, s *session) error {
				res, err := s.coord.Benchmark(ctx, opts)
				if res != nil {
					if oerr := s.formatter.OutputBenchmark(res, time.Since(s.start)); oerr != nil {
						return oerr
					}
				}
				if err != nil {
					return err
				}
				return calculateExitError(res.Results())
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.NumTxns, "num-txns", 0, "Number of transactions sent per client")
	f.IntVar(&duration, "duration", 0, "How long the benchmark runs, in seconds")
	f.IntVar(&opts.Steps, "steps", 1, "Step up from no client to all clients in this many steps")
	f.StringVar(&opts.Tag, "tag", "", "Tag of this run, generated from the current time if empty")
	f.StringVarP(&opts.Workload, "workload", "w", "basic", "Workload to run")
	f.StringVar(&opts.Params, "params", "", "Parameters of the workload")
	f.IntVar(&opts.Rate, "rate", 1000, "Transactions per second sent by each client")
	f.IntVar(&opts.Workers, "workers", 1, "Worker threads per client")
	f.IntVar(&opts.Sample, "sample", 10, "Percentage of transactions sampled for statistics")
	f.BoolVar(&opts.Cleanup, "cleanup", false, "Only remove old containers and the output directory")
	f.StringArrayVarP(&envs, "env", "e", nil, "Environment variable for the benchmark containers, e.g. -e GLOG_v=1")
	cmd.MarkFlagsMutuallyExclusive("num-txns", "duration")
	cmd.MarkFlagsOneRequired("num-txns", "duration")
	return cmd
}

func (a *App) genDataCommand() *cobra.Command {
	var opts coordinator.GenDataOptions
	cmd := &cobra.Command{
		Use:   "gen_data <config>",
		Short: "Generate data on every service machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, args[0], false, coordinator.Options{}, func(ctx context.Context, s *session) error {
				results, err := s.coord.GenData(ctx, opts)
				if err != nil {
					return err
				}
				return a.report(s, "gen_data", results)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.Partition, "partition", -1, "Partition to generate data for, -1 for all")
	f.IntVar(&opts.Size, "size", 100, "Size of the generated data, in --size-unit")
	f.StringVar(&opts.SizeUnit, "size-unit", "M", "Unit of --size: K, M or B")
	f.IntVar(&opts.RecordSize, "record-size", 100, "Size of a record in bytes")
	f.IntVar(&opts.MaxJobs, "max-jobs", 8, "Maximum number of generator jobs")
	return cmd
}

func (a *App) localCommand() *cobra.Command {
	var (
		start, stop, remove, status bool
		envs                        []string
	)
	cmd := &cobra.Command{
		Use:   "local <config>",
		Short: "Control a cluster that runs on the local machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.ParseEnvs(envs)
			if err != nil {
				return err
			}
			return a.execute(cmd, args[0], true, coordinator.Options{Env: env}, func(ctx context.Context, s *session) error {
				switch {
				case start:
					results, err := s.coord.LocalStart(ctx)
					if err != nil {
						return err
					}
					return a.report(s, "local start", results)
				case stop:
					results, err := s.coord.LocalStop(ctx)
					if err != nil {
						return err
					}
					return a.report(s, "local stop", results)
				case remove:
					results, err := s.coord.LocalRemove(ctx)
					if err != nil {
						return err
					}
					return a.report(s, "local remove", results)
				default:
					entries, err := s.coord.LocalStatus(ctx)
					if err != nil {
						return err
					}
					return s.formatter.OutputStatus(entries)
				}
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&start, "start", false, "Start the local cluster")
	f.BoolVar(&stop, "stop", false, "Stop the local cluster")
	f.BoolVar(&remove, "remove", false, "Remove all containers of the local cluster")
	f.BoolVar(&status, "status", false, "Show the status of the local cluster")
	f.StringArrayVarP(&envs, "env", "e", nil, "Environment variable for the containers")
	cmd.MarkFlagsMutuallyExclusive("start", "stop", "remove", "status")
	cmd.MarkFlagsOneRequired("start", "stop", "remove", "status")
	return cmd
}

func (a *App) infoCommand() *cobra.Command {
	var modules []string
	cmd := &cobra.Command{
		Use:   "info <config>",
		Short: "Collect host information from every machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, args[0], false, coordinator.Options{}, func(ctx context.Context, s *session) error {
				res, err := s.coord.Info(ctx, modules)
				if err != nil {
					return err
				}
				if err := s.formatter.OutputInfo(res); err != nil {
					return err
				}
				return calculateExitError(res.Failed)
			})
		},
	}
	cmd.Flags().StringSliceVar(&modules, "modules", nil, "Modules to collect (default all)")
	return cmd
}

func (a *App) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "admin version %s\n", appVersion)
		},
	}
}
