package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

var testStart = time.Date(2026, 6, 1, 5, 0, 0, 0, time.UTC)

// controllerSnapshot builds a two-station snapshot: station 1 running a
// program, station 2 queued behind it, with station 3 as master.
func controllerSnapshot() logic.Snapshot {
	start := testStart.Unix()
	return logic.Snapshot{
		Stations: []logic.Station{
			{ID: 1, Name: "lawn", TriggersMaster: true},
			{ID: 2, Name: "beds", TriggersMaster: true},
			{ID: 3, Name: "master"},
		},
		Entries: []logic.ScheduleEntry{
			{Start: start, Stop: start + 600, Program: logic.ScheduledProgram(0)},
			{Start: start + 600, Stop: start + 900, Program: logic.ScheduledProgram(0)},
			{},
		},
		Outputs: []bool{true, false, true},
		Status: logic.ControllerStatus{
			Enabled:     true,
			ProgramBusy: true,
			Master:      3,
			Sequential:  true,
		},
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{TickMs: 1000, RainDebounceMs: 5000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(testStart, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(testStart) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, testStart)
	}
	if snap.Config.TickMs != 1000 {
		t.Errorf("Config.TickMs: got %d, want 1000", snap.Config.TickMs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.RainBaselined {
		t.Error("expected RainBaselined=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(testStart, Config{})
	tr.Update(controllerSnapshot(), true)

	snap := tr.Snapshot()
	if !snap.Controller.Status.ProgramBusy {
		t.Error("expected ProgramBusy=true")
	}
	if len(snap.Controller.Entries) != 3 {
		t.Errorf("Entries: got %d, want 3", len(snap.Controller.Entries))
	}
	if !snap.RainBaselined {
		t.Error("expected RainBaselined=true")
	}
}

func TestSetProgramsCopies(t *testing.T) {
	tr := NewTracker(testStart, Config{})
	progs := []Program{{ID: 0, Name: "morning", Enabled: true}}
	tr.SetPrograms(progs)
	progs[0].Name = "changed"

	if got := tr.Snapshot().Programs[0].Name; got != "morning" {
		t.Errorf("Programs[0].Name: got %q, want morning", got)
	}
}

func TestSetConfig(t *testing.T) {
	tr := NewTracker(testStart, Config{Boards: 1})
	tr.SetConfig(Config{Boards: 2})
	if got := tr.Snapshot().Config.Boards; got != 2 {
		t.Errorf("Config.Boards: got %d, want 2", got)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(testStart, Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(testStart, Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: testStart, Now: testStart.Add(15 * time.Minute)}
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(testStart, Config{})
	at := testStart.Add(time.Hour)
	tr.now = func() time.Time { return at }

	if got := tr.Snapshot().Now; !got.Equal(at) {
		t.Errorf("Now: got %v, want %v", got, at)
	}
}

func TestStationState(t *testing.T) {
	ctrl := controllerSnapshot()
	tests := []struct {
		i    int
		want string
	}{
		{0, StationRunning},
		{1, StationQueued},
		{2, StationRunning},
		{5, StationIdle},
	}
	for _, tt := range tests {
		if got := StationState(ctrl, tt.i); got != tt.want {
			t.Errorf("StationState(%d): got %q, want %q", tt.i, got, tt.want)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Controller:    controllerSnapshot(),
		Programs:      []Program{{ID: 0, Name: "morning", Enabled: true, NextStart: testStart.Add(24 * time.Hour)}},
		RainBaselined: true,
		StartTime:     testStart,
		Now:           testStart.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{TickMs: 1000, Boards: 1, Sequential: true, WaterPercentage: 100, MasterStation: 3, Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if !s.Enabled || !s.Busy {
		t.Errorf("Enabled/Busy: got %v/%v, want true/true", s.Enabled, s.Busy)
	}
	if !s.Rain.SensorReady {
		t.Error("expected Rain.SensorReady=true")
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if len(s.Stations) != 3 {
		t.Fatalf("Stations: got %d, want 3", len(s.Stations))
	}
	if s.Stations[0].State != StationRunning || s.Stations[0].Program != "program:0" {
		t.Errorf("station 1: got %+v", s.Stations[0])
	}
	if s.Stations[1].Start != "2026-06-01T05:10:00Z" || s.Stations[1].Stop != "2026-06-01T05:15:00Z" {
		t.Errorf("station 2 window: got %s..%s", s.Stations[1].Start, s.Stations[1].Stop)
	}
	if !s.Stations[2].Master {
		t.Error("station 3 should be flagged as master")
	}
	if len(s.Programs) != 1 || s.Programs[0].NextStart != "2026-06-02T05:00:00Z" {
		t.Errorf("Programs: got %+v", s.Programs)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected no event/reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONForeverAndRainDelay(t *testing.T) {
	ctrl := controllerSnapshot()
	ctrl.Entries[0] = logic.ScheduleEntry{Start: testStart.Unix(), Stop: logic.RunForever, Program: logic.ManualRun()}
	ctrl.Status.RainDelayed = true
	ctrl.Status.RainDelayUntil = testStart.Add(24 * time.Hour).Unix()

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(Snapshot{Controller: ctrl, StartTime: testStart, Now: testStart}), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	st := parsed.Status.Stations[0]
	if !st.Forever || st.Stop != "" || st.Program != "manual" {
		t.Errorf("forever station: got %+v", st)
	}
	if parsed.Status.Rain.DelayUntil != "2026-06-02T05:00:00Z" {
		t.Errorf("Rain.DelayUntil: got %q", parsed.Status.Rain.DelayUntil)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Controller: controllerSnapshot(),
		StartTime:  testStart,
		Now:        testStart.Add(15 * time.Minute),
		Config:     Config{Broker: "tcp://localhost:1883"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: testStart, Now: testStart.Add(time.Second)}

	var raw map[string]interface{}
	if err := json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
	if _, exists := status["network"]; exists {
		t.Error("network should be omitted when unknown")
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: testStart,
		Now:       testStart.Add(time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(testStart, Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(controllerSnapshot(), i%2 == 0)
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = FormatJSON(tr.Snapshot())
		}
	}()

	wg.Wait()
}
