package coordinator

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-admin/campaign"
	"fleet-admin/config"
	"fleet-admin/fleet"
	"fleet-admin/hostinfo"
	"fleet-admin/metrics"
	"fleet-admin/remote"
	"fleet-admin/remote/remotetest"
)

func testSettings() *config.Settings {
	return &config.Settings{
		Image:            "ctring/slog",
		HostDataDir:      "/var/tmp",
		DataDir:          "/var/tmp",
		ConfigFileName:   "slog.conf",
		ServiceBinary:    "slog",
		ServiceName:      "slog",
		BenchmarkName:    "benchmark",
		OutputPrefix:     "slog",
		StepCompensation: time.Second,
	}
}

func testTopology() *config.Topology {
	return &config.Topology{
		NumPartitions:    2,
		HashPartitioning: config.HashPartitioning{PartitionKeyNumBytes: 1},
		Replicas: []config.Replica{
			{
				Addresses: []string{"10.0.0.1", "10.0.0.2"},
				Clients:   []config.Client{{Address: "10.0.1.1", Procs: 2}},
			},
			{
				Addresses: []string{"10.0.0.3", "10.0.0.4"},
				Clients:   []config.Client{{Address: "10.0.1.2", Procs: 1}},
			},
		},
	}
}

type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return nil
}

type testEnv struct {
	c       *Coordinator
	dialer  *remotetest.Dialer
	hook    *logtest.Hook
	sleeper *recordingSleeper
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	d := remotetest.NewDialer()
	sleeper := &recordingSleeper{}

	c := New(testTopology(), testSettings(), d, log, metrics.New("test-run", "test"), opts)
	c.now = func() time.Time { return time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC) }
	c.sleeper = sleeper
	return &testEnv{c: c, dialer: d, hook: hook, sleeper: sleeper}
}

func (e *testEnv) messages() []string {
	var msgs []string
	for _, entry := range e.hook.AllEntries() {
		msgs = append(msgs, entry.Message)
	}
	return msgs
}

// lastRun returns the most recent spec started under name on h
func lastRun(t *testing.T, h *remotetest.Host, name string) remote.ContainerSpec {
	t.Helper()
	runs := h.Runs()
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Name == name {
			return runs[i]
		}
	}
	t.Fatalf("%s: no container %q was started", h.Addr, name)
	return remote.ContainerSpec{}
}

func configText(t *testing.T, topo *config.Topology) string {
	t.Helper()
	text, err := topo.Text()
	require.NoError(t, err)
	return text
}

func TestStart_ReplacesServiceEverywhere(t *testing.T) {
	env := newTestEnv(t, Options{Env: map[string]string{"GLOG_v": "1"}})
	env.dialer.Host("10.0.0.1").AddContainer("slog", "exited")

	results, err := env.c.Start(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fleet.Failed(results))

	b := fleet.NewBroadcaster(configText(t, testTopology()), "/var/tmp/slog.conf")
	for _, addr := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		h := env.dialer.Host(addr)
		spec := lastRun(t, h, "slog")
		assert.Equal(t, b.Command("slog --config /var/tmp/slog.conf --address "+addr+" --data-dir /var/tmp"), spec.Command)
		assert.Equal(t, "host", spec.Network)
		assert.Equal(t, "ctring/slog", spec.Image)
		assert.Equal(t, map[string]string{"GLOG_v": "1"}, spec.Env)
		assert.Equal(t, []remote.Mount{{Source: "/var/tmp", Target: "/var/tmp"}}, spec.Mounts)
		assert.Equal(t, []string{"ctring/slog"}, h.Pulls())
		assert.True(t, h.Closed(), "%s must be closed after the command", addr)

		c, ok := h.Container("slog")
		require.True(t, ok)
		assert.Equal(t, "running", c.Status)
	}
}

func TestStart_CleanupPrecedesAnyLaunch(t *testing.T) {
	env := newTestEnv(t, Options{NoPull: true})

	_, err := env.c.Start(context.Background())
	require.NoError(t, err)

	calls := env.dialer.Host("10.0.0.1").Calls()
	require.Equal(t, []string{"remove slog", "run slog"}, calls)
	assert.Contains(t, env.messages(), `Skipped image pulling. Using the local version of "ctring/slog"`)
}

func TestStart_UnreachableTargetsAreSkipped(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.dialer.Errs["10.0.0.2"] = remotetest.AuthError("10.0.0.2")
	env.dialer.Errs["10.0.0.4"] = errors.New("connection refused")

	results, err := env.c.Start(context.Background())
	require.NoError(t, err)

	failed := fleet.Failed(results)
	require.Len(t, failed, 2)
	assert.Equal(t, fleet.KindAuthentication, failed[0].Kind)
	assert.Equal(t, fleet.KindConnection, failed[1].Kind)

	_, ok := env.dialer.Host("10.0.0.3").Container("slog")
	assert.True(t, ok)
	assert.Empty(t, env.dialer.Host("10.0.0.2").Runs())
}

func TestStart_NothingReachable(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, addr := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		env.dialer.Errs[addr] = errors.New("no route to host")
	}

	results, err := env.c.Start(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Len(t, fleet.Failed(results), 4)
}

func TestStop_MissingContainerCountsAsStopped(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.dialer.Host("10.0.0.1").AddContainer("slog", "running")

	results := env.c.Stop(context.Background())
	require.Len(t, results, 4)
	assert.Empty(t, fleet.Failed(results))
	assert.Equal(t, "stopped", results[0].Output)
	assert.Equal(t, StatusNotStarted, results[1].Output)

	c, _ := env.dialer.Host("10.0.0.1").Container("slog")
	assert.Equal(t, "exited", c.Status)
	assert.Contains(t, env.dialer.Host("10.0.0.1").Calls(), "stop slog 0s")
	assert.Contains(t, env.messages(), "Stopping SLOG on 10.0.0.1...")
}

func TestStatus_CoversEveryPartition(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.dialer.Host("10.0.0.1").AddContainer("slog", "running")
	env.dialer.Host("10.0.0.4").AddContainer("slog", "exited")
	env.dialer.Errs["10.0.0.3"] = errors.New("timeout")

	entries := env.c.Status(context.Background())
	assert.Equal(t, []StatusEntry{
		{Replica: 0, Partition: 0, Address: "10.0.0.1", Status: "running"},
		{Replica: 0, Partition: 1, Address: "10.0.0.2", Status: StatusNotStarted},
		{Replica: 1, Partition: 0, Address: "10.0.0.3", Status: StatusUnreachable},
		{Replica: 1, Partition: 1, Address: "10.0.0.4", Status: "exited"},
	}, entries)
}

func TestLogs_SelectTarget(t *testing.T) {
	env := newTestEnv(t, Options{})
	h := env.dialer.Host("10.0.0.3")
	h.AddContainer("slog", "running")
	h.LogText = "I0305 server started\n"

	var byAddress bytes.Buffer
	require.NoError(t, env.c.Logs(context.Background(), LogsOptions{Address: "10.0.0.3", Follow: true}, &byAddress))
	assert.Equal(t, "I0305 server started\n", byAddress.String())
	assert.Contains(t, h.Calls(), "logs slog follow=true")

	var byPosition bytes.Buffer
	require.NoError(t, env.c.Logs(context.Background(), LogsOptions{Replica: 1, Partition: 0}, &byPosition))
	assert.Equal(t, "I0305 server started\n", byPosition.String())
}

func TestLogs_Errors(t *testing.T) {
	env := newTestEnv(t, Options{})
	var buf bytes.Buffer

	err := env.c.Logs(context.Background(), LogsOptions{Address: "10.9.9.9"}, &buf)
	assert.True(t, errors.Is(err, ErrUnknownTarget))
	assert.Contains(t, env.messages(), `Address "10.9.9.9" is not specified in the config`)

	err = env.c.Logs(context.Background(), LogsOptions{Replica: 2, Partition: 0}, &buf)
	assert.True(t, errors.Is(err, ErrUnknownTarget))

	err = env.c.Logs(context.Background(), LogsOptions{Address: "10.0.0.1", Container: "benchmark_0"}, &buf)
	assert.True(t, errors.Is(err, remote.ErrNotFound))
	assert.Contains(t, env.messages(), `Cannot find container "benchmark_0"`)

	env.dialer.Errs["10.0.0.2"] = errors.New("refused")
	err = env.c.Logs(context.Background(), LogsOptions{Address: "10.0.0.2"}, &buf)
	assert.True(t, errors.Is(err, ErrUnreachable))
}

func TestGenData_RunsAndWaits(t *testing.T) {
	env := newTestEnv(t, Options{NoPull: true})
	env.dialer.Host("10.0.0.2").ExitCodes = map[string]int{"gen_data": 3}

	results, err := env.c.GenData(context.Background(), GenDataOptions{
		Partition: -1, Size: 10, SizeUnit: "K", RecordSize: 50, MaxJobs: 4,
	})
	require.NoError(t, err)

	failed := fleet.Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "10.0.0.2", failed[0].Target.Address)
	assert.EqualError(t, failed[0].Err, "exit status 3")

	spec := lastRun(t, env.dialer.Host("10.0.0.1"), "gen_data")
	assert.Equal(t, []string{"/bin/sh", "-c",
		"tools/gen_data.py /var/tmp --num-replicas 2 --num-partitions 2 --partition-bytes 1 " +
			"--partition -1 --size 10 --size-unit K --record-size 50 --max-jobs 4"}, spec.Command)
}

func TestGenData_InvalidOptions(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.c.GenData(context.Background(), GenDataOptions{Partition: 5, Size: 1, RecordSize: 1, MaxJobs: 1})
	assert.Error(t, err)
	assert.Zero(t, env.dialer.Dials("10.0.0.1"), "nothing is dialed for invalid options")
}

func TestBenchmark_DurationCampaign(t *testing.T) {
	env := newTestEnv(t, Options{Env: map[string]string{"GLOG_v": "1"}})

	res, err := env.c.Benchmark(context.Background(), BenchmarkOptions{
		Duration: time.Minute,
		Steps:    3,
		Tag:      "run1",
		Workload: "basic",
		Params:   "mh=50",
	})
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/slog-benchmark-run1", res.OutDir)
	assert.Empty(t, fleet.Failed(res.Results()))
	assert.Equal(t, []time.Duration{20 * time.Second, 20 * time.Second}, env.sleeper.sleeps)

	require.NotNil(t, res.Summary)
	assert.Equal(t, 3, res.Summary.StepsDone)
	assert.Len(t, res.Summary.Completed, 3)

	// clients are interleaved: 10.0.1.1/0, 10.0.1.2/0, 10.0.1.1/1
	cases := []struct {
		addr    string
		name    string
		replica string
		txns    string
	}{
		{"10.0.1.1", "benchmark_0", "--r 0", "--txns 62000"},
		{"10.0.1.2", "benchmark_0", "--r 1", "--txns 41000"},
		{"10.0.1.1", "benchmark_1", "--r 0", "--txns 20000"},
	}
	for _, tc := range cases {
		spec := lastRun(t, env.dialer.Host(tc.addr), tc.name)
		require.Len(t, spec.Command, 3)
		cmd := spec.Command[2]
		assert.Contains(t, cmd, tc.replica, tc.addr)
		assert.Contains(t, cmd, tc.txns, tc.addr)
		assert.Contains(t, cmd, "mkdir -p /var/tmp/slog-benchmark-run1/"+strings.TrimPrefix(tc.name, "benchmark_"))
		assert.Contains(t, cmd, "--params mh=50")
		assert.Equal(t, "host", spec.Network)
		assert.Equal(t, map[string]string{"GLOG_v": "1"}, spec.Env, tc.addr)
	}
	assert.Contains(t, env.messages(), "Tag: run1")
}

func TestBenchmark_TxnCampaignDoesNotSleep(t *testing.T) {
	env := newTestEnv(t, Options{NoPull: true})

	res, err := env.c.Benchmark(context.Background(), BenchmarkOptions{NumTxns: 500, Steps: 2})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05-10-20-30", res.Tag)
	assert.Empty(t, env.sleeper.sleeps)

	spec := lastRun(t, env.dialer.Host("10.0.1.2"), "benchmark_0")
	assert.Contains(t, spec.Command[2], "--txns 500")
}

func TestBenchmark_CleanupIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{NoPull: true})
	env.dialer.Host("10.0.1.1").AddContainer("benchmark_1", "exited")

	for i := 0; i < 2; i++ {
		res, err := env.c.Benchmark(context.Background(), BenchmarkOptions{Duration: time.Minute, Tag: "x", Cleanup: true})
		require.NoError(t, err, "run %d", i)
		assert.Empty(t, res.Failed, "run %d", i)
		assert.Nil(t, res.Summary)
	}

	h := env.dialer.Host("10.0.1.1")
	_, ok := h.Container("benchmark_1")
	assert.False(t, ok)
	for _, spec := range h.Runs() {
		assert.Equal(t, []string{"/bin/sh", "-c", "rm -rf /var/tmp/slog-benchmark-x"}, spec.Command)
	}
	assert.Len(t, h.Runs(), 4)
}

func TestBenchmark_CleanupFailureIsReported(t *testing.T) {
	env := newTestEnv(t, Options{NoPull: true})
	env.dialer.Host("10.0.1.2").ExitCodes = map[string]int{"benchmark_0": 1}

	res, err := env.c.Benchmark(context.Background(), BenchmarkOptions{NumTxns: 10, Cleanup: true})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "10.0.1.2", res.Failed[0].Target.Address)
}

func TestBenchmark_InvalidOptions(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, err := env.c.Benchmark(context.Background(), BenchmarkOptions{Duration: time.Minute, NumTxns: 10})
	assert.True(t, errors.Is(err, campaign.ErrInvalidParams))

	_, err = env.c.Benchmark(context.Background(), BenchmarkOptions{NumTxns: 10, Sample: 101})
	assert.Error(t, err)
	assert.Zero(t, env.dialer.Dials("10.0.1.1"))
}

func TestLocalTopology(t *testing.T) {
	topo := testTopology()
	local, err := LocalTopology(topo)
	require.NoError(t, err)

	assert.Equal(t, []string{"172.28.5.1", "172.28.5.2"}, local.Replicas[0].Addresses)
	assert.Equal(t, []string{"172.28.5.3", "172.28.5.4"}, local.Replicas[1].Addresses)
	assert.Equal(t, "10.0.0.1", topo.Replicas[0].Addresses[0], "the original topology is left alone")

	topo.NumPartitions = 128
	_, err = LocalTopology(topo)
	assert.Error(t, err)
}

func TestLocal_Lifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	results, err := env.c.LocalStart(ctx)
	require.NoError(t, err)
	assert.Empty(t, fleet.Failed(results))
	assert.Contains(t, env.messages(), `Created network "slog_nw"`)

	local, err := LocalTopology(testTopology())
	require.NoError(t, err)
	b := fleet.NewBroadcaster(configText(t, local), "/var/tmp/slog.conf")

	h := env.dialer.Host("172.28.5.4")
	spec := lastRun(t, h, "slog_1_1")
	assert.Equal(t, "slog_nw", spec.Network)
	assert.Equal(t, "172.28.5.4", spec.IP)
	assert.Equal(t, b.Command("slog --config /var/tmp/slog.conf --address 172.28.5.4 --data-dir /var/tmp"), spec.Command)

	assert.Equal(t, []string{"ctring/slog"}, env.dialer.Host("172.28.5.1").Pulls())
	assert.Empty(t, h.Pulls(), "the image is pulled once for the local daemon")

	statuses, err := env.c.LocalStatus(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 4)
	assert.Equal(t, StatusEntry{Replica: 1, Partition: 1, Address: "172.28.5.4", Status: "running"}, statuses[3])

	results, err = env.c.LocalStop(ctx)
	require.NoError(t, err)
	assert.Empty(t, fleet.Failed(results))
	assert.Contains(t, env.messages(), `Stopping "slog_0_1"`)

	results, err = env.c.LocalRemove(ctx)
	require.NoError(t, err)
	assert.Empty(t, fleet.Failed(results))

	statuses, err = env.c.LocalStatus(ctx)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.Equal(t, StatusNotStarted, s.Status)
	}

	env.hook.Reset()
	_, err = env.c.LocalStart(ctx)
	require.NoError(t, err)
	assert.Contains(t, env.messages(), `Reused network "slog_nw"`)
}

func TestInfo_OneReportPerMachine(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.c.topology.Replicas[0].Clients = append(env.c.topology.Replicas[0].Clients, config.Client{Address: "10.0.0.1", Procs: 1})
	env.dialer.Host("10.0.0.1").Replies = map[string]string{"hostname": "node-1\n"}
	env.dialer.Errs["10.0.1.2"] = errors.New("unreachable")

	res, err := env.c.Info(context.Background(), []string{"system"})
	require.NoError(t, err)

	var addrs []string
	for _, r := range res.Reports {
		addrs = append(addrs, r.Address)
	}
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.1.1"}, addrs)
	assert.Equal(t, 1, env.dialer.Dials("10.0.0.1"))
	require.Len(t, res.Failed, 1)
	assert.Equal(t, fleet.KindConnection, res.Failed[0].Kind)

	sys := res.Reports[0].Modules["system"].(*hostinfo.SystemInfo)
	assert.Equal(t, "node-1", sys.Hostname)
}
