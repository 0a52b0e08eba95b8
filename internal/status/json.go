package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// Station states reported in JSON.
const (
	StationIdle    = "idle"
	StationQueued  = "queued"
	StationRunning = "running"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Enabled       bool          `json:"enabled"`
	Busy          bool          `json:"busy"`
	Rain          RainJSON      `json:"rain"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Stations      []StationJSON `json:"stations"`
	Programs      []ProgramJSON `json:"programs"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// RainJSON reports the rain overrides.
type RainJSON struct {
	SensorReady bool   `json:"sensor_ready"`
	Sensed      bool   `json:"sensed"`
	Delayed     bool   `json:"delayed"`
	DelayUntil  string `json:"delay_until,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// StationJSON is one row of the schedule table.
type StationJSON struct {
	ID      int    `json:"id"`
	Name    string `json:"name,omitempty"`
	State   string `json:"state"`
	Master  bool   `json:"master,omitempty"`
	Start   string `json:"start,omitempty"`
	Stop    string `json:"stop,omitempty"`
	Forever bool   `json:"forever,omitempty"`
	Program string `json:"program,omitempty"`
}

// ProgramJSON is one stored program.
type ProgramJSON struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	NextStart string `json:"next_start,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of the controller config.
type ConfigJSON struct {
	TickMs          int64  `json:"tick_ms"`
	RainDebounceMs  int64  `json:"rain_debounce_ms"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	Boards          int    `json:"boards"`
	Sequential      bool   `json:"sequential"`
	WaterPercentage int    `json:"water_percentage"`
	MasterStation   int    `json:"master_station,omitempty"`
	UseRainSensor   bool   `json:"use_rain_sensor"`
	NetworkFails    int    `json:"network_fails"`
	Broker          string `json:"broker"`
	HTTPAddr        string `json:"http_addr"`
}

// StationState classifies entry i of a controller snapshot.
func StationState(ctrl logic.Snapshot, i int) string {
	if i < len(ctrl.Outputs) && ctrl.Outputs[i] {
		return StationRunning
	}
	if i < len(ctrl.Entries) && !ctrl.Entries[i].Idle() {
		return StationQueued
	}
	return StationIdle
}

func epochString(t int64) string {
	if t == 0 {
		return ""
	}
	return time.Unix(t, 0).UTC().Format(time.RFC3339)
}

func buildStations(ctrl logic.Snapshot) []StationJSON {
	out := make([]StationJSON, 0, len(ctrl.Stations))
	for i, st := range ctrl.Stations {
		sj := StationJSON{
			ID:     int(st.ID),
			Name:   st.Name,
			State:  StationState(ctrl, i),
			Master: st.ID == ctrl.Status.Master,
		}
		if i < len(ctrl.Entries) {
			e := ctrl.Entries[i]
			sj.Start = epochString(e.Start)
			if e.Stop == logic.RunForever {
				sj.Forever = true
			} else {
				sj.Stop = epochString(e.Stop)
			}
			if !e.Program.IsNone() {
				sj.Program = e.Program.String()
			}
		}
		out = append(out, sj)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	st := snap.Controller.Status
	inner := StatusInner{
		Enabled: st.Enabled,
		Busy:    st.ProgramBusy,
		Rain: RainJSON{
			SensorReady: snap.RainBaselined,
			Sensed:      st.RainSensed,
			Delayed:     st.RainDelayed,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Stations:      buildStations(snap.Controller),
		Programs:      make([]ProgramJSON, 0, len(snap.Programs)),
		Config: ConfigJSON{
			TickMs:          snap.Config.TickMs,
			RainDebounceMs:  snap.Config.RainDebounceMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Boards:          snap.Config.Boards,
			Sequential:      snap.Config.Sequential,
			WaterPercentage: snap.Config.WaterPercentage,
			MasterStation:   int(snap.Config.MasterStation),
			UseRainSensor:   snap.Config.UseRainSensor,
			NetworkFails:    st.NetworkFails,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
		},
	}
	if st.RainDelayed {
		inner.Rain.DelayUntil = epochString(st.RainDelayUntil)
	}
	for _, p := range snap.Programs {
		pj := ProgramJSON{ID: int(p.ID), Name: p.Name, Enabled: p.Enabled}
		if !p.NextStart.IsZero() {
			pj.NextStart = p.NextStart.UTC().Format(time.RFC3339)
		}
		inner.Programs = append(inner.Programs, pj)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
