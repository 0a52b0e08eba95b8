package logic

// buildSchedule turns recorded durations into absolute windows, in ascending
// station order. In sequential mode windows are chained after the last stop
// time with the station delay in between; in parallel mode every station
// starts on the next second.
func (c *Controller) buildSchedule(t int64) bool {
	st := &c.state.Status
	delay := c.opts.StationDelay

	cursor := t + 1
	if st.Sequential {
		if next := st.LastStopTime + delay; next > cursor {
			cursor = next
		}
	}

	assigned := false
	for sid := StationID(1); sid <= c.numStations(); sid++ {
		if sid == st.Master {
			continue
		}
		e := c.state.Table.Entry(sid)
		if e.Stop == 0 || e.Start != 0 || c.out.Output(sid) {
			continue
		}
		d := e.Stop
		if st.Sequential {
			e.Start = cursor
			e.Stop = cursor + d
			cursor = e.Stop + delay
			if e.Stop > st.LastStopTime {
				st.LastStopTime = e.Stop
			}
		} else {
			e.Start = t + 1
			e.Stop = e.Start + d
		}
		c.state.Table.set(sid, e)
		assigned = true
	}

	if assigned {
		if !st.ProgramBusy {
			c.emit(Event{Timestamp: at(t), Type: EventProgramBusy})
		}
		st.ProgramBusy = true
	}
	return assigned
}
