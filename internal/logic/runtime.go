package logic

import "fmt"

// advanceStations turns off stations whose stop time has passed and turns on
// stations whose window has opened.
func (c *Controller) advanceStations(t int64) []error {
	var errs []error
	for sid := StationID(1); sid <= c.numStations(); sid++ {
		e := c.state.Table.Entry(sid)
		if e.Program.IsNone() {
			continue
		}
		if t >= e.Stop {
			if err := c.turnOffStation(sid, t); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if c.out.Output(sid) || e.Start == 0 {
			continue
		}
		if t >= e.Start && t < e.Stop {
			if err := c.turnOnStation(sid, t); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// turnOnStation asserts the output of sid and handles the master and relay.
func (c *Controller) turnOnStation(sid StationID, t int64) error {
	if err := c.out.SetOutput(sid, true); err != nil {
		return fmt.Errorf("turn on station %d: %w", sid, err)
	}
	c.onSince[sid] = t
	e := c.state.Table.Entry(sid)
	c.emit(Event{Timestamp: at(t), Type: EventStationOn, Station: sid, Program: e.Program})

	st := c.opts.Station(sid)
	master := c.state.Status.Master
	if st.TriggersMaster && c.state.Status.Sequential && master != 0 && master != sid {
		if err := c.syncMaster(sid, t); err != nil {
			return err
		}
	}
	if st.ActivatesRelay {
		if err := c.relay(true); err != nil {
			return fmt.Errorf("station %d relay: %w", sid, err)
		}
	}
	return nil
}

// turnOffStation is the single path that stops a station: schedule expiry,
// override and manual cancellation all go through it. On an idle station it
// only re-deasserts the output.
func (c *Controller) turnOffStation(sid StationID, t int64) error {
	wasOn := c.out.Output(sid)
	if err := c.out.SetOutput(sid, false); err != nil {
		return fmt.Errorf("turn off station %d: %w", sid, err)
	}
	e := c.state.Table.Entry(sid)
	master := c.state.Status.Master
	since := c.onSince[sid]
	c.onSince[sid] = 0

	if wasOn {
		c.emit(Event{Timestamp: at(t), Type: EventStationOff, Station: sid, Program: e.Program})
	}
	if wasOn && sid != master && !e.Program.IsNone() {
		if since == 0 {
			since = e.Start
		}
		end := t
		if e.Stop != RunForever && e.Stop < end {
			end = e.Stop
		}
		if since > 0 && end > since {
			c.emit(Event{
				Timestamp: at(t),
				Type:      EventStationRun,
				Station:   sid,
				Program:   e.Program,
				Duration:  seconds(end - since),
			})
		}
	}

	st := c.opts.Station(sid)
	var err error
	if st.TriggersMaster && c.state.Status.Sequential && master != 0 && master != sid && !e.Program.IsNone() {
		err = c.retractMaster(t)
	}
	if st.ActivatesRelay && wasOn {
		if rerr := c.relay(false); rerr != nil && err == nil {
			err = fmt.Errorf("station %d relay: %w", sid, rerr)
		}
	}

	c.state.Table.reset(sid)
	return err
}

// relay switches the auxiliary relay. A pulsed relay is toggled with a short
// pulse on both activation and deactivation.
func (c *Controller) relay(on bool) error {
	if c.opts.RelayPulse <= 0 {
		return c.out.SetRelay(on)
	}
	if err := c.out.SetRelay(true); err != nil {
		return err
	}
	c.sleep(c.opts.RelayPulse)
	return c.out.SetRelay(false)
}

// finishTick recomputes the last stop time and the busy flag. When the last
// program finishes, every output not held by a run-until-stopped entry is
// forced off and master/sequential are re-read from the options.
func (c *Controller) finishTick(t int64) []error {
	var errs []error
	st := &c.state.Status
	tbl := c.state.Table

	st.LastStopTime = tbl.lastStop()
	busy := tbl.hasPending()

	if st.ProgramBusy && !busy {
		for sid := StationID(1); sid <= c.numStations(); sid++ {
			if tbl.Entry(sid).Stop == RunForever {
				continue
			}
			wasOn := c.out.Output(sid)
			if err := c.out.SetOutput(sid, false); err != nil {
				errs = append(errs, fmt.Errorf("clear station %d: %w", sid, err))
				continue
			}
			c.onSince[sid] = 0
			if wasOn {
				c.emit(Event{Timestamp: at(t), Type: EventStationOff, Station: sid})
			}
		}
		c.latchOptions()
		c.emit(Event{Timestamp: at(t), Type: EventProgramIdle})
	}
	st.ProgramBusy = busy

	if err := c.followTriggers(t); err != nil {
		errs = append(errs, err)
	}
	return errs
}
