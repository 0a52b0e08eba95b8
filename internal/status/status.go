// Package status provides a thread-safe status tracker for the irrigation
// controller. It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// NetworkInfo describes the host network link. This is a local copy to
// avoid importing the network package from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Program describes one stored program for display.
type Program struct {
	ID        logic.ProgramID
	Name      string
	Enabled   bool
	NextStart time.Time // zero when the program never starts again
}

// Config contains the controller configuration for display.
type Config struct {
	TickMs          int64
	RainDebounceMs  int64
	HeartbeatMs     int64
	Boards          int
	Sequential      bool
	WaterPercentage int
	MasterStation   logic.StationID
	UseRainSensor   bool
	Broker          string
	HTTPAddr        string
}

// Snapshot is a point-in-time view of controller state.
// It is a value type: safe to use after the lock is released.
type Snapshot struct {
	Controller    logic.Snapshot
	Programs      []Program
	RainBaselined bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update stores a controller snapshot and the rain sensor baseline status.
// Called from the run loop on every tick.
func (t *Tracker) Update(ctrl logic.Snapshot, rainBaselined bool) {
	t.mu.Lock()
	t.snap.Controller = ctrl
	t.snap.RainBaselined = rainBaselined
	t.mu.Unlock()
}

// SetPrograms replaces the program list.
func (t *Tracker) SetPrograms(programs []Program) {
	cp := append([]Program(nil), programs...)
	t.mu.Lock()
	t.snap.Programs = cp
	t.mu.Unlock()
}

// SetConfig replaces the displayed configuration after a reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
