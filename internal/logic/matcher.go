package logic

import "time"

// collectDemand records the unscaled demand of every program that starts in
// the current minute. It returns whether any demand was recorded.
func (c *Controller) collectDemand(now time.Time) bool {
	if c.programs == nil {
		return false
	}
	found := false
	for i := 0; i < c.programs.NumPrograms(); i++ {
		pid := ProgramID(i)
		if !c.programs.Enabled(pid) || !c.programs.MatchesNow(pid, now) {
			continue
		}
		if c.claimStations(pid, ScheduledProgram(pid)) {
			found = true
		}
	}
	return found
}

// claimStations records demand for the stations used by pid. A station that
// already holds a pending stop keeps it: the first program to claim it wins.
func (c *Controller) claimStations(pid ProgramID, ref ProgramRef) bool {
	found := false
	for sid := StationID(1); sid <= c.numStations(); sid++ {
		if sid == c.state.Status.Master {
			continue
		}
		if c.out.Output(sid) {
			continue
		}
		if c.opts.Station(sid).Disabled {
			continue
		}
		d := c.programs.Duration(pid, sid)
		if d <= 0 || c.state.Table.Entry(sid).Stop != 0 {
			continue
		}
		demand := d * int64(c.opts.WaterPercentage) / 100
		if c.state.Table.recordDemand(sid, demand, ref) {
			found = true
		}
	}
	return found
}
