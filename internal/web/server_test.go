package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/status"
	"github.com/sweeney/irrigation-controller/internal/storage"
)

var testStart = time.Date(2026, 6, 1, 5, 0, 0, 0, time.UTC)

type fakeRunLog struct {
	entries []storage.Entry
	err     error
	limit   int
}

func (f *fakeRunLog) Recent(_ context.Context, limit int) ([]storage.Entry, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *status.Tracker) {
	t.Helper()
	cfg := status.Config{
		TickMs:          1000,
		RainDebounceMs:  5000,
		HeartbeatMs:     900000,
		Boards:          1,
		Sequential:      true,
		WaterPercentage: 100,
		Broker:          "tcp://192.168.1.200:1883",
		HTTPAddr:        ":80",
	}
	tr := status.NewTracker(testStart, cfg)
	srv := New(":0", tr, opts)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func runningSnapshot() logic.Snapshot {
	start := testStart.Unix()
	return logic.Snapshot{
		Stations: []logic.Station{{ID: 1, Name: "lawn"}, {ID: 2, Name: "beds"}},
		Entries: []logic.ScheduleEntry{
			{Start: start, Stop: start + 600, Program: logic.ScheduledProgram(0)},
			{},
		},
		Outputs: []bool{true, false},
		Status:  logic.ControllerStatus{Enabled: true, ProgramBusy: true},
	}
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == 200 {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode JSON: %v", err)
		}
	}
	return resp
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.Update(runningSnapshot(), true)
	tr.SetMQTTConnected(true)

	var sj status.StatusJSON
	resp := getJSON(t, ts.URL+"/index.json", &sj)

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	if !sj.Status.Busy {
		t.Error("expected Busy=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if len(sj.Status.Stations) != 2 || sj.Status.Stations[0].State != status.StationRunning {
		t.Errorf("Stations: got %+v", sj.Status.Stations)
	}
	if sj.Status.Config.TickMs != 1000 {
		t.Errorf("Config.TickMs: got %d, want 1000", sj.Status.Config.TickMs)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	var sj status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &sj)

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.Update(runningSnapshot(), true)
	tr.SetPrograms([]status.Program{{ID: 0, Name: "morning", Enabled: true}})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"lawn", `class="running"`, "morning", "program:0", "sequential"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	for _, path := range []string{"/nonexistent", "/metrics", "/log.json"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 404 {
			t.Errorf("%s: got %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "irrigation_ticks_total 3\n")
	})
	ts, _ := newTestServer(t, Options{Metrics: metrics})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "irrigation_ticks_total 3") {
		t.Errorf("metrics body: got %q", body)
	}
}

func TestLogEndpoint(t *testing.T) {
	active := true
	rl := &fakeRunLog{entries: []storage.Entry{
		{ID: 2, At: testStart.Add(time.Hour), Event: logic.EventRainSensor, Active: &active},
		{ID: 1, At: testStart, Event: logic.EventStationRun, Station: 3, Program: "program:0", Duration: 10 * time.Minute},
	}}
	ts, _ := newTestServer(t, Options{RunLog: rl})

	var out struct {
		Entries []LogEntryJSON `json:"entries"`
	}
	getJSON(t, ts.URL+"/log.json", &out)

	if rl.limit != defaultLogLimit {
		t.Errorf("limit: got %d, want %d", rl.limit, defaultLogLimit)
	}
	if len(out.Entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(out.Entries))
	}
	if out.Entries[0].Active == nil || !*out.Entries[0].Active {
		t.Error("rain entry should carry active=true")
	}
	run := out.Entries[1]
	if run.Station != 3 || run.DurationSeconds != 600 || run.Program != "program:0" {
		t.Errorf("run entry: got %+v", run)
	}
	if run.Timestamp != "2026-06-01T05:00:00Z" {
		t.Errorf("Timestamp: got %q", run.Timestamp)
	}
}

func TestLogEndpointLimit(t *testing.T) {
	rl := &fakeRunLog{}
	ts, _ := newTestServer(t, Options{RunLog: rl})

	getJSON(t, ts.URL+"/log.json?limit=5000", nil)
	if rl.limit != maxLogLimit {
		t.Errorf("limit: got %d, want %d", rl.limit, maxLogLimit)
	}

	resp := getJSON(t, ts.URL+"/log.json?limit=zero", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit: got %d, want 400", resp.StatusCode)
	}
}

func TestLogEndpointUnavailable(t *testing.T) {
	ts, _ := newTestServer(t, Options{RunLog: &fakeRunLog{err: errors.New("disk gone")}})

	resp := getJSON(t, ts.URL+"/log.json", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, Options{})

	var sj1 status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &sj1)
	if sj1.Status.Busy || sj1.Status.Rain.SensorReady {
		t.Error("expected idle controller with unsettled rain sensor initially")
	}

	tr.Update(runningSnapshot(), true)
	tr.SetMQTTConnected(true)

	var sj2 status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &sj2)
	if !sj2.Status.Busy {
		t.Error("expected Busy=true after update")
	}
	if !sj2.Status.Rain.SensorReady {
		t.Error("expected rain sensor ready after update")
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
