package logic

import (
	"errors"
	"testing"
)

func TestScheduleTableEntriesAreCopies(t *testing.T) {
	tbl := NewScheduleTable(8)
	tbl.set(2, ScheduleEntry{Start: 10, Stop: 20, Program: ScheduledProgram(1)})

	entries := tbl.Entries()
	entries[1].Stop = 99
	e := tbl.Entry(2)
	e.Stop = 99

	if got := tbl.Entry(2).Stop; got != 20 {
		t.Errorf("table was mutated through a copy: stop %d", got)
	}
}

func TestScheduleTableBounds(t *testing.T) {
	tbl := NewScheduleTable(8)
	for _, sid := range []StationID{0, 9, -1} {
		if tbl.Valid(sid) {
			t.Errorf("station %d should be invalid", sid)
		}
		if !tbl.Entry(sid).Idle() {
			t.Errorf("station %d should read idle", sid)
		}
		tbl.set(sid, ScheduleEntry{Stop: 1})
	}
	if tbl.hasPending() {
		t.Error("out of range writes must be ignored")
	}
}

func TestRecordDemandFirstClaimWins(t *testing.T) {
	tbl := NewScheduleTable(8)
	if !tbl.recordDemand(1, 300, ScheduledProgram(0)) {
		t.Fatal("first claim should succeed")
	}
	if tbl.recordDemand(1, 600, ScheduledProgram(1)) {
		t.Error("second claim must not overwrite")
	}
	if tbl.recordDemand(2, 0, ScheduledProgram(0)) {
		t.Error("zero demand is not recorded")
	}
	e := tbl.Entry(1)
	if e.Stop != 300 || e.Program != ScheduledProgram(0) {
		t.Errorf("got %+v", e)
	}
}

func TestLastStopIgnoresUnscheduledAndForever(t *testing.T) {
	tbl := NewScheduleTable(8)
	tbl.set(1, ScheduleEntry{Start: 100, Stop: 200, Program: ScheduledProgram(0)})
	tbl.set(2, ScheduleEntry{Stop: 900, Program: ScheduledProgram(0)})
	tbl.set(3, ScheduleEntry{Start: 100, Stop: RunForever, Program: ManualRun()})

	if got := tbl.lastStop(); got != 200 {
		t.Errorf("lastStop: got %d, want 200", got)
	}
	tbl.reset(1)
	tbl.reset(2)
	if tbl.hasPending() {
		t.Error("a run-until-stopped entry is not pending")
	}
}

func TestProgramRef(t *testing.T) {
	tests := []struct {
		ref       ProgramRef
		str       string
		scheduled bool
	}{
		{NoProgram(), "none", false},
		{ScheduledProgram(3), "program:3", true},
		{ManualRun(), "manual", false},
	}
	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.str {
			t.Errorf("String: got %q, want %q", got, tt.str)
		}
		if _, ok := tt.ref.Program(); ok != tt.scheduled {
			t.Errorf("%s: Program ok=%v", tt.str, ok)
		}
	}
	if ScheduledProgram(0) == NoProgram() {
		t.Error("program 0 must differ from no program")
	}
}

func TestStationBoard(t *testing.T) {
	tests := map[StationID]int{1: 0, 8: 0, 9: 1, 64: 7}
	for sid, want := range tests {
		if got := sid.Board(); got != want {
			t.Errorf("station %d: board %d, want %d", sid, got, want)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero boards", func(o *Options) { o.Boards = 0 }},
		{"too many boards", func(o *Options) { o.Boards = 9 }},
		{"master out of range", func(o *Options) { o.MasterStation = 9 }},
		{"negative percentage", func(o *Options) { o.WaterPercentage = -1 }},
		{"negative delay", func(o *Options) { o.StationDelay = -1 }},
		{"bad station id", func(o *Options) { o.Stations[3].ID = 7 }},
	}
	if err := testOptions().Validate(); err != nil {
		t.Fatalf("default options should validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(&opts)
			if err := opts.Validate(); !errors.Is(err, ErrConfigInvalid) {
				t.Errorf("got %v, want ErrConfigInvalid", err)
			}
		})
	}
}
