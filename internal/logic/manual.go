package logic

import (
	"errors"
	"fmt"
	"time"
)

// RunStation starts sid manually. A duration of 0 runs the station until it
// is stopped; a partial second is rounded up. The output is switched on by
// the next tick.
func (c *Controller) RunStation(sid StationID, duration time.Duration, now time.Time) error {
	t, err := epoch(now)
	if err != nil {
		return err
	}
	if !c.state.Table.Valid(sid) {
		return fmt.Errorf("%w: %d", ErrUnknownStation, sid)
	}
	if duration < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}
	if sid == c.state.Status.Master {
		return fmt.Errorf("%w: %d", ErrMasterStation, sid)
	}
	if c.opts.Station(sid).Disabled {
		return fmt.Errorf("%w: %d", ErrStationDisabled, sid)
	}
	if !c.state.Table.Entry(sid).Idle() || c.out.Output(sid) {
		return fmt.Errorf("%w: %d", ErrStationBusy, sid)
	}

	stop := RunForever
	if secs := int64((duration + time.Second - 1) / time.Second); secs > 0 {
		stop = t + secs
	}
	c.state.Table.set(sid, ScheduleEntry{Start: t, Stop: stop, Program: ManualRun()})
	if stop != RunForever {
		if !c.state.Status.ProgramBusy {
			c.emit(Event{Timestamp: now, Type: EventProgramBusy})
		}
		c.state.Status.ProgramBusy = true
	}
	return nil
}

// RunProgram queues a stored program once, regardless of its start times.
// The run is manual: rain and disable overrides do not cancel it.
func (c *Controller) RunProgram(pid ProgramID, now time.Time) ([]Event, error) {
	t, err := epoch(now)
	if err != nil {
		return nil, err
	}
	if c.programs == nil || pid < 0 || int(pid) >= c.programs.NumPrograms() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProgram, pid)
	}
	if c.claimStations(pid, ManualRun()) {
		c.buildSchedule(t)
	}
	return c.drain(), nil
}

// StopStation cancels sid, whether queued or running.
func (c *Controller) StopStation(sid StationID, now time.Time) ([]Event, error) {
	t, err := epoch(now)
	if err != nil {
		return nil, err
	}
	if !c.state.Table.Valid(sid) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStation, sid)
	}
	err = c.turnOffStation(sid, t)
	return c.drain(), err
}

// StopAll aborts every queued and running station.
func (c *Controller) StopAll(now time.Time) ([]Event, error) {
	t, err := epoch(now)
	if err != nil {
		return nil, err
	}
	var errs []error
	for sid := StationID(1); sid <= c.numStations(); sid++ {
		if err := c.turnOffStation(sid, t); err != nil {
			errs = append(errs, err)
		}
	}
	return c.drain(), errors.Join(errs...)
}
