package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-admin/campaign"
	"fleet-admin/fleet"
)

func TestRecorder_Connections(t *testing.T) {
	r := New("run-1", "start")
	tgt := fleet.NewServiceTarget("10.0.0.2", 0, 1)

	r.Connections(3, []fleet.Result{
		{Target: tgt, Kind: fleet.KindAuthentication, Err: errors.New("denied")},
		{Target: tgt, Kind: fleet.KindConnection, Err: errors.New("refused")},
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(r.connections.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.connections.WithLabelValues("AuthenticationFailure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.connections.WithLabelValues("ConnectionFailure")))
}

func TestRecorder_Campaign(t *testing.T) {
	r := New("run-2", "benchmark")
	tgt := fleet.NewClientTarget("10.0.1.1", 0, 0)

	plan, err := campaign.NewPlan(campaign.Params{Duration: time.Minute, Steps: 2, Compensation: time.Second}, 4)
	require.NoError(t, err)

	r.Campaign(&campaign.Summary{
		Plan:       plan,
		StepsDone:  2,
		Dispatched: []fleet.Result{{Target: tgt, Success: true}, {Target: tgt, Kind: fleet.KindAction}},
		Launched:   []fleet.Launched{{Target: tgt}},
		Completed:  []fleet.Result{{Target: tgt, Success: true}},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.launched))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.steps))
	assert.Equal(t, 60.0, testutil.ToFloat64(r.campaignSecs))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.actions.WithLabelValues("launch", "ActionFailure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.actions.WithLabelValues("wait", "ok")))

	r.Campaign(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.launched))
}

func TestRecorder_WriteFile(t *testing.T) {
	r := New("run-3", "stop")
	r.Actions("stop", []fleet.Result{{Target: fleet.NewServiceTarget("a", 0, 0), Success: true}})

	path := filepath.Join(t.TempDir(), "fleet.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `fleet_admin_actions_total{op="stop",result="ok"} 1`), text)
	assert.True(t, strings.Contains(text, `fleet_admin_run_info{command="stop",run="run-3"} 1`), text)
}

func TestRecorder_WriteFileBadPath(t *testing.T) {
	r := New("run-4", "status")
	assert.Error(t, r.WriteFile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
