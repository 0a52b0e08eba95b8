package logic

import (
	"context"
	"testing"
	"time"
)

// fakeOutputs mirrors output writes in memory.
type fakeOutputs struct {
	on          map[StationID]bool
	fail        map[StationID]error
	relay       bool
	relayWrites []bool
}

func newFakeOutputs() *fakeOutputs {
	return &fakeOutputs{on: map[StationID]bool{}, fail: map[StationID]error{}}
}

func (f *fakeOutputs) SetOutput(sid StationID, on bool) error {
	if err := f.fail[sid]; err != nil {
		return err
	}
	f.on[sid] = on
	return nil
}

func (f *fakeOutputs) Output(sid StationID) bool {
	return f.on[sid]
}

func (f *fakeOutputs) SetRelay(on bool) error {
	f.relay = on
	f.relayWrites = append(f.relayWrites, on)
	return nil
}

// fakeProgram fires in the minute containing start.
type fakeProgram struct {
	disabled  bool
	start     time.Time
	durations map[StationID]int64
}

type fakePrograms struct {
	progs []fakeProgram
}

func (p *fakePrograms) NumPrograms() int { return len(p.progs) }

func (p *fakePrograms) Enabled(pid ProgramID) bool { return !p.progs[pid].disabled }

func (p *fakePrograms) MatchesNow(pid ProgramID, t time.Time) bool {
	return t.Truncate(time.Minute).Equal(p.progs[pid].start.Truncate(time.Minute))
}

func (p *fakePrograms) Duration(pid ProgramID, sid StationID) int64 {
	return p.progs[pid].durations[sid]
}

// fakeNetwork answers probes from a script; the last answer repeats.
type fakeNetwork struct {
	answers []bool
	reinit  bool
	probes  int
	reinits int
	// hang makes Reinitialize wait for its context to end.
	hang bool
}

func (f *fakeNetwork) Probe(ctx context.Context, gateway string, timeout time.Duration) bool {
	if len(f.answers) == 0 {
		f.probes++
		return false
	}
	i := f.probes
	if i >= len(f.answers) {
		i = len(f.answers) - 1
	}
	f.probes++
	return f.answers[i]
}

func (f *fakeNetwork) Reinitialize(ctx context.Context) bool {
	f.reinits++
	if f.hang {
		<-ctx.Done()
		return false
	}
	return f.reinit
}

var testStart = time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		Boards:          1,
		Stations:        DefaultStations(1),
		WaterPercentage: 100,
		Sequential:      true,
		StationDelay:    5,
	}
}

func newTestController(t *testing.T, opts Options, progs *fakePrograms) (*Controller, *fakeOutputs) {
	t.Helper()
	out := newFakeOutputs()
	if progs == nil {
		progs = &fakePrograms{}
	}
	c, err := NewController(opts, progs, out)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	c.sleep = func(time.Duration) {}
	return c, out
}

func mustTick(t *testing.T, c *Controller, now time.Time) []Event {
	t.Helper()
	events, err := c.Tick(now)
	if err != nil {
		t.Fatalf("tick at %v: %v", now, err)
	}
	return events
}

func sec(n int64) time.Time {
	return testStart.Add(time.Duration(n) * time.Second)
}

func countEvents(events []Event, typ EventType, sid StationID) int {
	n := 0
	for _, e := range events {
		if e.Type == typ && e.Station == sid {
			n++
		}
	}
	return n
}

func findEvent(events []Event, typ EventType, sid StationID) (Event, bool) {
	for _, e := range events {
		if e.Type == typ && e.Station == sid {
			return e, true
		}
	}
	return Event{}, false
}
