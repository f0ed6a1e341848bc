package coordinator

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"fleet-admin/campaign"
	"fleet-admin/fleet"
	"fleet-admin/remote"
	"fleet-admin/runner"
)

// Benchmark runs a staggered benchmark campaign on every client process of
// the topology. Old benchmark containers and the output directory of the
// tag are removed first; with opts.Cleanup nothing else happens.
func (c *Coordinator) Benchmark(ctx context.Context, opts BenchmarkOptions) (*BenchmarkResult, error) {
	params := campaign.Params{
		Duration:     opts.Duration,
		NumTxns:      opts.NumTxns,
		Steps:        opts.Steps,
		Compensation: c.settings.StepCompensation,
	}
	if params.Steps == 0 {
		params.Steps = 1
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	tag := opts.Tag
	if tag == "" {
		tag = c.now().Format(TagFormat)
	}
	res := &BenchmarkResult{Tag: tag, OutDir: c.settings.BenchmarkDir(tag)}

	// Checked once up front so a bad flag fails before anything is dispatched
	if err := c.newBenchmark(opts, res.OutDir, nil, campaign.Assignment{
		Duration: params.Duration,
		NumTxns:  params.NumTxns,
	}).Validate(); err != nil {
		return nil, err
	}

	b, err := c.broadcaster(c.topology)
	if err != nil {
		return nil, err
	}

	targets, failed := c.Connect(ctx, fleet.RoleBenchmark)
	defer c.Close(targets)
	res.Failed = append(res.Failed, failed...)
	if len(targets) == 0 {
		c.log.Warn("No benchmark clients reachable")
		return res, nil
	}
	res.Failed = append(res.Failed, fleet.Failed(c.Pull(ctx, targets))...)

	cleaned := c.runAll(ctx, "cleanup", targets, func(ctx context.Context, t *fleet.Target) (string, error) {
		return "", c.cleanupBenchmark(ctx, t, res.OutDir)
	})
	res.Failed = append(res.Failed, fleet.Failed(cleaned)...)
	if opts.Cleanup {
		return res, nil
	}

	scheduler := campaign.NewScheduler(c.log, params, campaign.WithSleeper(c.sleeper))
	summary, err := scheduler.Run(ctx, targets, func(ctx context.Context, t *fleet.Target, a campaign.Assignment) (*remote.Unit, error) {
		return c.launchBenchmark(ctx, b, t, c.newBenchmark(opts, res.OutDir, t, a))
	})
	res.Summary = summary
	if c.metrics != nil {
		c.metrics.Campaign(summary)
	}
	if err != nil {
		return res, err
	}

	c.log.WithField("tag", tag).Infof("Tag: %s", tag)
	return res, nil
}

func (c *Coordinator) newBenchmark(opts BenchmarkOptions, outDir string, t *fleet.Target, a campaign.Assignment) *runner.Benchmark {
	bm := runner.NewBenchmark("")
	bm.ConfigPath = c.settings.ConfigPath()
	bm.DataDir = c.settings.DataDir
	bm.OutDir = outDir
	if opts.Workload != "" {
		bm.Workload = opts.Workload
	}
	bm.Params = opts.Params
	if opts.Rate > 0 {
		bm.Rate = opts.Rate
	}
	if opts.Workers > 0 {
		bm.Workers = opts.Workers
	}
	if opts.Sample > 0 {
		bm.Sample = opts.Sample
	}
	if t != nil {
		bm.Replica = t.Replica
		if t.ProcNum != nil {
			bm.ProcNum = *t.ProcNum
		}
	}
	if a.NumTxns > 0 {
		bm.NumTxns = a.NumTxns
	} else {
		bm.Duration = a.Duration
	}
	return bm
}

func (c *Coordinator) launchBenchmark(ctx context.Context, b *fleet.Broadcaster, t *fleet.Target, bm *runner.Benchmark) (*remote.Unit, error) {
	if err := bm.Validate(); err != nil {
		return nil, err
	}
	command := bm.MkdirCommand() + " && " + bm.BuildCommand()
	unit, err := t.Host().Run(ctx, remote.ContainerSpec{
		Name:    c.benchmarkContainer(t),
		Image:   c.opts.Image,
		Command: b.Command(command),
		Env:     c.opts.Env,
		Mounts:  c.dataMount(),
		Network: "host",
	})
	if err != nil {
		return nil, err
	}
	c.log.WithFields(t.Fields()).Infof("%s: Synced config and ran command: %s", t.Address, command)
	return unit, nil
}

// cleanupBenchmark removes the container of a client process together with
// the output directory of the run. Running it again finds nothing to remove
// and succeeds.
func (c *Coordinator) cleanupBenchmark(ctx context.Context, t *fleet.Target, outDir string) error {
	name := c.benchmarkContainer(t)
	if err := c.cleanup(ctx, t, name); err != nil {
		return err
	}

	status, err := t.Host().RunOnce(ctx, remote.ContainerSpec{
		Name:    name,
		Image:   c.opts.Image,
		Command: []string{"/bin/sh", "-c", "rm -rf " + remote.Quote(outDir)},
		Mounts:  c.dataMount(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to remove old data directory")
	}
	if status != 0 {
		return errors.Errorf("removing old data directory exited with status %d", status)
	}
	c.log.WithFields(t.Fields()).Infof("%s: Removed old data directory", t.Address)

	return c.cleanup(ctx, t, name)
}

func (c *Coordinator) benchmarkContainer(t *fleet.Target) string {
	if t.ProcNum == nil {
		return c.settings.BenchmarkName
	}
	return c.settings.BenchmarkName + "_" + strconv.Itoa(*t.ProcNum)
}
