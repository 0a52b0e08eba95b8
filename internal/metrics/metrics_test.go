package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

func TestNewCollectorsAreIndependent(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector()
		NewCollector()
	}, "each collector owns its registry")
}

func TestTick(t *testing.T) {
	c := NewCollector()
	c.Tick(nil)
	c.Tick(errors.New("boom"))
	c.Tick(nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tickErrors))
}

func TestObserve(t *testing.T) {
	c := NewCollector()
	c.Observe([]logic.Event{
		{Type: logic.EventProgramBusy},
		{Type: logic.EventStationOn, Station: 2},
		{Type: logic.EventStationOff, Station: 2},
		{Type: logic.EventStationRun, Station: 2, Duration: 90 * time.Second},
		{Type: logic.EventStationRun, Station: 2, Duration: 30 * time.Second},
		{Type: logic.EventStationRun, Station: 5, Duration: time.Minute},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("STATION_ON")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.events.WithLabelValues("STATION_RUN")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.stationRuns.WithLabelValues("2")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.runSeconds.WithLabelValues("2")))
	assert.Equal(t, 60.0, testutil.ToFloat64(c.runSeconds.WithLabelValues("5")))
}

func TestNetwork(t *testing.T) {
	c := NewCollector()
	c.Network(logic.NetworkResult{})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.reinits))

	c.Network(logic.NetworkResult{Checked: true, Fails: 3, ReinitAttempted: true})
	assert.Equal(t, 3.0, testutil.ToFloat64(c.networkFails))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reinits))
}

func TestSetState(t *testing.T) {
	c := NewCollector()
	c.SetState(logic.Snapshot{
		Outputs: []bool{true, false, true, false},
		Status:  logic.ControllerStatus{Enabled: true, ProgramBusy: true, RainSensed: true},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.stationsOn))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.busy))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rain))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.enabled))

	c.SetState(logic.Snapshot{})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.stationsOn))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.busy))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.Tick(nil)
	c.Observe([]logic.Event{{Type: logic.EventStationRun, Station: 1, Duration: time.Minute}})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "irrigation_ticks_total 1")
	assert.Contains(t, string(body), `irrigation_station_runs_total{station="1"} 1`)
}
