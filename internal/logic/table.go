package logic

// ScheduleTable owns the schedule entries of every station.
// Entries are only ever handed out by value; all mutation goes through the
// unexported methods used by the controller's tick pass.
type ScheduleTable struct {
	entries []ScheduleEntry
}

// NewScheduleTable creates a table of n idle stations.
func NewScheduleTable(n int) *ScheduleTable {
	return &ScheduleTable{entries: make([]ScheduleEntry, n)}
}

// Len returns the number of stations.
func (t *ScheduleTable) Len() int {
	return len(t.entries)
}

// Valid reports whether sid is inside the table.
func (t *ScheduleTable) Valid(sid StationID) bool {
	return sid >= 1 && int(sid) <= len(t.entries)
}

// Entry returns a copy of the entry of sid. Unknown stations read as idle.
func (t *ScheduleTable) Entry(sid StationID) ScheduleEntry {
	if !t.Valid(sid) {
		return ScheduleEntry{}
	}
	return t.entries[sid-1]
}

// Entries returns a copy of all entries.
func (t *ScheduleTable) Entries() []ScheduleEntry {
	out := make([]ScheduleEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *ScheduleTable) set(sid StationID, e ScheduleEntry) {
	if t.Valid(sid) {
		t.entries[sid-1] = e
	}
}

func (t *ScheduleTable) setStop(sid StationID, stop int64) {
	if t.Valid(sid) {
		t.entries[sid-1].Stop = stop
	}
}

func (t *ScheduleTable) reset(sid StationID) {
	t.set(sid, ScheduleEntry{})
}

// recordDemand stores an unscheduled duration. It refuses to overwrite an
// entry that already holds a stop value.
func (t *ScheduleTable) recordDemand(sid StationID, seconds int64, ref ProgramRef) bool {
	if !t.Valid(sid) || seconds <= 0 || t.entries[sid-1].Stop != 0 {
		return false
	}
	t.entries[sid-1] = ScheduleEntry{Stop: seconds, Program: ref}
	return true
}

// lastStop returns the latest scheduled finite stop time.
func (t *ScheduleTable) lastStop() int64 {
	var last int64
	for _, e := range t.entries {
		if e.Start == 0 || !e.Pending() {
			continue
		}
		if e.Stop > last {
			last = e.Stop
		}
	}
	return last
}

// hasPending reports whether any station holds a finite stop time.
func (t *ScheduleTable) hasPending() bool {
	for _, e := range t.entries {
		if e.Pending() {
			return true
		}
	}
	return false
}
