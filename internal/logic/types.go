// Package logic contains the scheduling and runtime-control core of the
// irrigation controller.
// This package has NO hardware, MQTT or OS dependencies. Outputs, programs and
// the network are reached through the interfaces declared here, and time is
// always passed in by the caller.
package logic

import (
	"fmt"
	"math"
	"time"
)

// StationsPerBoard is the number of stations on one output board.
const StationsPerBoard = 8

// MaxBoards is the largest number of boards a controller can drive.
const MaxBoards = 8

// RunForever is the stop time of a station that runs until it is stopped.
const RunForever int64 = math.MaxInt64

// MasterStopMargin is subtracted from a derived master stop time, in seconds.
const MasterStopMargin = 60

// MaxNetworkFails caps the consecutive probe failure count.
const MaxNetworkFails = 6

// StationID identifies a station. IDs start at 1; 0 means "no station".
type StationID int

// Board returns the zero-based board the station belongs to.
func (s StationID) Board() int {
	return int(s-1) / StationsPerBoard
}

// ProgramID is the zero-based index of a program in the program store.
type ProgramID int

type refKind uint8

const (
	refNone refKind = iota
	refScheduled
	refManual
)

// ProgramRef records what queued a station: nothing, a stored program, or a
// manual (ad-hoc) request. Manual runs are exempt from rain and disable overrides.
type ProgramRef struct {
	kind refKind
	id   ProgramID
}

// NoProgram is the reference held by an idle station.
func NoProgram() ProgramRef { return ProgramRef{} }

// ScheduledProgram refers to a stored program.
func ScheduledProgram(id ProgramID) ProgramRef { return ProgramRef{kind: refScheduled, id: id} }

// ManualRun refers to a manual or run-once request.
func ManualRun() ProgramRef { return ProgramRef{kind: refManual} }

func (r ProgramRef) IsNone() bool      { return r.kind == refNone }
func (r ProgramRef) IsScheduled() bool { return r.kind == refScheduled }
func (r ProgramRef) IsManual() bool    { return r.kind == refManual }

// Program returns the stored program id, if the reference is Scheduled.
func (r ProgramRef) Program() (ProgramID, bool) {
	return r.id, r.kind == refScheduled
}

func (r ProgramRef) String() string {
	switch r.kind {
	case refScheduled:
		return fmt.Sprintf("program:%d", r.id)
	case refManual:
		return "manual"
	default:
		return "none"
	}
}

// Station holds the static attributes of one output.
type Station struct {
	ID             StationID
	Name           string
	TriggersMaster bool
	IgnoresRain    bool
	ActivatesRelay bool
	Disabled       bool
}

// ScheduleEntry is the runtime schedule of one station.
// Start and Stop are epoch seconds; 0 means unset. Between demand collection
// and schedule building, Stop temporarily holds the demanded duration.
type ScheduleEntry struct {
	Start   int64
	Stop    int64
	Program ProgramRef
}

// Idle reports whether the entry carries no schedule at all.
func (e ScheduleEntry) Idle() bool {
	return e.Start == 0 && e.Stop == 0 && e.Program.IsNone()
}

// Pending reports whether the entry holds a finite stop time.
func (e ScheduleEntry) Pending() bool {
	return e.Stop != 0 && e.Stop != RunForever
}

// ControllerStatus is the global controller state.
type ControllerStatus struct {
	Enabled        bool
	RainDelayed    bool
	RainDelayUntil int64
	RainSensed     bool
	ProgramBusy    bool
	NetworkFails   int
	LastStopTime   int64

	// Master and Sequential are latched from Options and only re-read when
	// no program is running.
	Master     StationID
	Sequential bool
}

// NetworkHealth is the state of the network health monitor.
type NetworkHealth struct {
	LastCheckTime int64
	LastRenewTime int64
}

// State is the complete mutable scheduler state.
type State struct {
	Table   *ScheduleTable
	Status  ControllerStatus
	Network NetworkHealth
}

// EventType identifies what happened during a tick.
type EventType string

const (
	EventStationOn   EventType = "STATION_ON"
	EventStationOff  EventType = "STATION_OFF"
	EventStationRun  EventType = "STATION_RUN"
	EventRainSensor  EventType = "RAIN_SENSOR"
	EventRainDelay   EventType = "RAIN_DELAY"
	EventProgramBusy EventType = "PROGRAM_BUSY"
	EventProgramIdle EventType = "PROGRAM_IDLE"
)

// Event is something the caller may want to log, count or publish.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Station   StationID
	Program   ProgramRef
	// Duration is the run length for EventStationRun and the episode length
	// for a rain event that just ended.
	Duration time.Duration
	// Active is the new rain state for rain events.
	Active bool
}

// Loggable reports whether the event belongs in the run log.
func (e Event) Loggable() bool {
	switch e.Type {
	case EventStationRun, EventRainSensor, EventRainDelay:
		return true
	}
	return false
}

// Snapshot is a point-in-time copy of the controller.
type Snapshot struct {
	Stations []Station
	Entries  []ScheduleEntry
	Outputs  []bool
	Status   ControllerStatus
	Network  NetworkHealth
}
