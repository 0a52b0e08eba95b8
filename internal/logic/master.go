package logic

import "fmt"

// syncMaster derives the master window from a subordinate that just turned
// on in sequential mode: [start+onAdjust, stop+offAdjust-60). The master is
// switched on in the same tick if the window is already open.
func (c *Controller) syncMaster(sid StationID, t int64) error {
	master := c.state.Status.Master
	sub := c.state.Table.Entry(sid)

	start := sub.Start + c.opts.MasterOnAdjust
	stop := RunForever
	if sub.Stop != RunForever {
		stop = sub.Stop + c.opts.MasterOffAdjust - MasterStopMargin
	}
	if stop <= start {
		return nil
	}
	c.state.Table.set(master, ScheduleEntry{Start: start, Stop: stop, Program: sub.Program})

	if t >= start && t < stop && !c.out.Output(master) {
		if err := c.out.SetOutput(master, true); err != nil {
			return fmt.Errorf("turn on master %d: %w", master, err)
		}
		c.emit(Event{Timestamp: at(t), Type: EventStationOn, Station: master, Program: sub.Program})
		if c.opts.Station(master).ActivatesRelay {
			if err := c.relay(true); err != nil {
				return fmt.Errorf("master %d relay: %w", master, err)
			}
		}
	}
	return nil
}

// retractMaster cuts the master window short when a triggering subordinate
// stops: the master now stops at t+offAdjust. If that is not in the future
// the master is released immediately.
func (c *Controller) retractMaster(t int64) error {
	master := c.state.Status.Master
	me := c.state.Table.Entry(master)
	if me.Program.IsNone() {
		return nil
	}
	stop := t + c.opts.MasterOffAdjust
	if stop > t && stop > me.Start {
		c.state.Table.setStop(master, stop)
		return nil
	}
	return c.turnOffStation(master, t)
}

// followTriggers drives the master in parallel mode: it is on exactly when
// some running non-master station triggers it.
func (c *Controller) followTriggers(t int64) error {
	master := c.state.Status.Master
	if master == 0 || c.state.Status.Sequential {
		return nil
	}
	want := false
	for sid := StationID(1); sid <= c.numStations(); sid++ {
		if sid == master {
			continue
		}
		if c.out.Output(sid) && c.opts.Station(sid).TriggersMaster {
			want = true
			break
		}
	}
	if c.out.Output(master) == want {
		return nil
	}
	if err := c.out.SetOutput(master, want); err != nil {
		return fmt.Errorf("set master %d: %w", master, err)
	}
	typ := EventStationOff
	if want {
		typ = EventStationOn
	}
	c.emit(Event{Timestamp: at(t), Type: typ, Station: master})
	return nil
}
