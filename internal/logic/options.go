package logic

import (
	"fmt"
	"time"
)

// Options is the read-only configuration snapshot used by the controller.
type Options struct {
	Boards int
	// Stations is indexed by ID-1 and must cover every board.
	Stations []Station

	// WaterPercentage scales every program duration.
	WaterPercentage int
	Sequential      bool

	// MasterStation is 0 when no master is configured.
	MasterStation   StationID
	MasterOnAdjust  int64
	MasterOffAdjust int64

	// StationDelay is the gap between sequential stations, in seconds.
	StationDelay int64

	UseRainSensor bool

	// RelayPulse > 0 pulses the auxiliary relay instead of holding it.
	RelayPulse time.Duration

	Network NetworkOptions
}

// NetworkOptions configures the network health monitor.
type NetworkOptions struct {
	Gateway       string
	CheckInterval time.Duration
	RenewInterval time.Duration
	ProbeTimeout  time.Duration
	ReinitTimeout time.Duration
	AutoReconnect bool
}

// NumStations returns the size of the station table.
func (o Options) NumStations() int {
	return o.Boards * StationsPerBoard
}

// Station returns the attributes of sid, or a zero Station for an unknown id.
func (o Options) Station(sid StationID) Station {
	if sid < 1 || int(sid) > len(o.Stations) {
		return Station{}
	}
	return o.Stations[sid-1]
}

// Validate checks the shape of the options.
func (o Options) Validate() error {
	if o.Boards < 1 || o.Boards > MaxBoards {
		return fmt.Errorf("%w: boards must be 1..%d, got %d", ErrConfigInvalid, MaxBoards, o.Boards)
	}
	if len(o.Stations) != o.NumStations() {
		return fmt.Errorf("%w: %d boards need %d stations, got %d",
			ErrConfigInvalid, o.Boards, o.NumStations(), len(o.Stations))
	}
	for i, st := range o.Stations {
		if st.ID != StationID(i+1) {
			return fmt.Errorf("%w: station at index %d has id %d", ErrConfigInvalid, i, st.ID)
		}
	}
	if o.MasterStation < 0 || int(o.MasterStation) > o.NumStations() {
		return fmt.Errorf("%w: master station %d out of range", ErrConfigInvalid, o.MasterStation)
	}
	if o.WaterPercentage < 0 {
		return fmt.Errorf("%w: water percentage must be >= 0", ErrConfigInvalid)
	}
	if o.StationDelay < 0 {
		return fmt.Errorf("%w: station delay must be >= 0", ErrConfigInvalid)
	}
	if o.RelayPulse < 0 {
		return fmt.Errorf("%w: relay pulse must be >= 0", ErrConfigInvalid)
	}
	return nil
}

// DefaultStations returns a station list with default attributes for the
// given number of boards.
func DefaultStations(boards int) []Station {
	out := make([]Station, boards*StationsPerBoard)
	for i := range out {
		out[i] = Station{ID: StationID(i + 1), TriggersMaster: true}
	}
	return out
}
