package logic

import (
	"errors"
	"fmt"
	"time"
)

// Controller runs the irrigation schedule. It is not safe for concurrent use:
// one goroutine owns it and serializes ticks, manual commands and option
// changes.
type Controller struct {
	opts     Options
	programs ProgramStore
	out      Outputs
	state    *State

	sleep      func(time.Duration)
	lastMinute int64
	events     []Event

	// onSince holds the epoch second each station's output was switched
	// on, indexed by StationID; 0 while off.
	onSince []int64

	rainSensedSince  int64
	rainDelayedSince int64
}

// NewController creates a controller for the given options. A configuration
// whose shape is invalid is refused with ErrConfigInvalid.
func NewController(opts Options, programs ProgramStore, out Outputs) (*Controller, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		opts:     opts,
		programs: programs,
		out:      out,
		sleep:    time.Sleep,
		onSince:  make([]int64, opts.NumStations()+1),
		state: &State{
			Table: NewScheduleTable(opts.NumStations()),
			Status: ControllerStatus{
				Enabled:    true,
				Master:     opts.MasterStation,
				Sequential: opts.Sequential,
			},
		},
	}
	return c, nil
}

// ApplyOptions replaces the options snapshot. The station table cannot be
// resized at runtime. Master and sequential mode take effect once no program
// is running.
func (c *Controller) ApplyOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if opts.NumStations() != c.state.Table.Len() {
		return fmt.Errorf("%w: station count changed from %d to %d",
			ErrConfigInvalid, c.state.Table.Len(), opts.NumStations())
	}
	c.opts = opts
	if !c.state.Status.ProgramBusy {
		c.latchOptions()
	}
	return nil
}

// Options returns the current options snapshot.
func (c *Controller) Options() Options {
	return c.opts
}

// State returns the scheduler state. Callers outside the owning goroutine
// must use Snapshot instead.
func (c *Controller) State() *State {
	return c.state
}

// Busy reports whether a program is running.
func (c *Controller) Busy() bool {
	return c.state.Status.ProgramBusy
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	n := c.state.Table.Len()
	outputs := make([]bool, n)
	for i := range outputs {
		outputs[i] = c.out.Output(StationID(i + 1))
	}
	stations := make([]Station, len(c.opts.Stations))
	copy(stations, c.opts.Stations)
	return Snapshot{
		Stations: stations,
		Entries:  c.state.Table.Entries(),
		Outputs:  outputs,
		Status:   c.state.Status,
		Network:  c.state.Network,
	}
}

// Tick advances the controller to now. Program matching happens once per
// minute; station transitions and overrides are evaluated on every call.
// Output errors are returned joined; the affected stations keep their entries
// and are retried on the next tick.
func (c *Controller) Tick(now time.Time) ([]Event, error) {
	t, err := epoch(now)
	if err != nil {
		return nil, err
	}

	c.expireRainDelay(t)

	if minute := t / 60; minute != c.lastMinute {
		c.lastMinute = minute
		if c.collectDemand(now) {
			c.buildSchedule(t)
		}
	}

	errs := c.advanceStations(t)
	errs = append(errs, c.processOverrides(t)...)
	errs = append(errs, c.finishTick(t)...)

	return c.drain(), errors.Join(errs...)
}

func (c *Controller) latchOptions() {
	c.state.Status.Master = c.opts.MasterStation
	c.state.Status.Sequential = c.opts.Sequential
}

func (c *Controller) emit(e Event) {
	c.events = append(c.events, e)
}

func (c *Controller) drain() []Event {
	out := c.events
	c.events = nil
	return out
}

func (c *Controller) numStations() StationID {
	return StationID(c.state.Table.Len())
}

func epoch(now time.Time) (int64, error) {
	if now.IsZero() || now.Unix() <= 0 {
		return 0, ErrTimeNotSet
	}
	return now.Unix(), nil
}

func at(t int64) time.Time {
	return time.Unix(t, 0)
}

func seconds(d int64) time.Duration {
	return time.Duration(d) * time.Second
}
