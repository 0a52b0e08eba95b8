package logic

import "time"

// processOverrides enforces the safety conditions on every tick. While the
// controller is disabled, or rain is active for a station that does not
// ignore rain, a running station is turned off and a queued one is dropped
// without a log entry. Manual runs and the master are left alone.
func (c *Controller) processOverrides(t int64) []error {
	st := c.state.Status
	rain := st.RainDelayed || (c.opts.UseRainSensor && st.RainSensed)

	var errs []error
	for sid := StationID(1); sid <= c.numStations(); sid++ {
		if sid == st.Master {
			continue
		}
		e := c.state.Table.Entry(sid)
		if e.Program.IsManual() {
			continue
		}
		if st.Enabled && !(rain && !c.opts.Station(sid).IgnoresRain) {
			continue
		}
		if c.out.Output(sid) {
			if err := c.turnOffStation(sid, t); err != nil {
				errs = append(errs, err)
			}
		} else if e.Program.IsScheduled() {
			c.state.Table.reset(sid)
		}
	}
	return errs
}

// SetEnabled switches the controller on or off. While disabled no scheduled
// station runs; manual runs are unaffected.
func (c *Controller) SetEnabled(enabled bool) {
	c.state.Status.Enabled = enabled
}

// SetRainSensed feeds the debounced rain sensor state. A RainSensor event is
// emitted on every change.
func (c *Controller) SetRainSensed(wet bool, now time.Time) []Event {
	st := &c.state.Status
	if st.RainSensed == wet {
		return nil
	}
	t := now.Unix()
	st.RainSensed = wet
	e := Event{Timestamp: now, Type: EventRainSensor, Active: wet}
	if wet {
		c.rainSensedSince = t
	} else if c.rainSensedSince > 0 {
		e.Duration = seconds(t - c.rainSensedSince)
		c.rainSensedSince = 0
	}
	c.emit(e)
	return c.drain()
}

// SetRainDelay delays scheduled watering until the given time. A zero or past
// time cancels the delay.
func (c *Controller) SetRainDelay(until, now time.Time) []Event {
	st := &c.state.Status
	t := now.Unix()
	if !until.IsZero() && until.Unix() > t {
		st.RainDelayUntil = until.Unix()
		if !st.RainDelayed {
			st.RainDelayed = true
			c.rainDelayedSince = t
			c.emit(Event{Timestamp: now, Type: EventRainDelay, Active: true})
		}
		return c.drain()
	}
	c.endRainDelay(t)
	return c.drain()
}

func (c *Controller) expireRainDelay(t int64) {
	st := c.state.Status
	if st.RainDelayed && st.RainDelayUntil != 0 && t >= st.RainDelayUntil {
		c.endRainDelay(t)
	}
}

func (c *Controller) endRainDelay(t int64) {
	st := &c.state.Status
	st.RainDelayUntil = 0
	if !st.RainDelayed {
		return
	}
	st.RainDelayed = false
	e := Event{Timestamp: at(t), Type: EventRainDelay, Active: false}
	if c.rainDelayedSince > 0 {
		e.Duration = seconds(t - c.rainDelayedSince)
		c.rainDelayedSince = 0
	}
	c.emit(e)
}
