// Package programs holds the stored watering programs. Start times are cron
// expressions; durations are per-station nominal run times.
package programs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// Program is one stored program as written in the config file.
type Program struct {
	Name    string   `yaml:"name"`
	Enabled bool     `yaml:"enabled"`
	Starts  []string `yaml:"starts"`
	// Durations maps station IDs to run times in seconds.
	Durations map[int]int64 `yaml:"durations"`
}

type compiled struct {
	name      string
	enabled   bool
	schedules []cron.Schedule
	durations map[logic.StationID]int64
}

// Store is a read-only program store. It implements logic.ProgramStore.
type Store struct {
	loc   *time.Location
	progs []compiled
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewStore compiles programs for a controller with numStations stations.
// Start times are evaluated in loc. Invalid programs are refused with
// logic.ErrConfigInvalid.
func NewStore(programs []Program, numStations int, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Store{loc: loc}
	for i, p := range programs {
		c := compiled{
			name:      p.Name,
			enabled:   p.Enabled,
			durations: make(map[logic.StationID]int64, len(p.Durations)),
		}
		for _, expr := range p.Starts {
			sched, err := parser.Parse(expr)
			if err != nil {
				return nil, fmt.Errorf("%w: program %d (%s): start %q: %v", logic.ErrConfigInvalid, i, p.Name, expr, err)
			}
			c.schedules = append(c.schedules, sched)
		}
		for sid, secs := range p.Durations {
			if sid < 1 || sid > numStations {
				return nil, fmt.Errorf("%w: program %d (%s): station %d out of range", logic.ErrConfigInvalid, i, p.Name, sid)
			}
			if secs < 0 {
				return nil, fmt.Errorf("%w: program %d (%s): negative duration for station %d", logic.ErrConfigInvalid, i, p.Name, sid)
			}
			c.durations[logic.StationID(sid)] = secs
		}
		s.progs = append(s.progs, c)
	}
	return s, nil
}

func (s *Store) NumPrograms() int { return len(s.progs) }

func (s *Store) Enabled(pid logic.ProgramID) bool {
	p, ok := s.get(pid)
	return ok && p.enabled
}

// MatchesNow reports whether one of the program's start times falls in the
// minute containing t.
func (s *Store) MatchesNow(pid logic.ProgramID, t time.Time) bool {
	p, ok := s.get(pid)
	if !ok {
		return false
	}
	minute := t.In(s.loc).Truncate(time.Minute)
	for _, sched := range p.schedules {
		if sched.Next(minute.Add(-time.Second)).Equal(minute) {
			return true
		}
	}
	return false
}

func (s *Store) Duration(pid logic.ProgramID, sid logic.StationID) int64 {
	p, ok := s.get(pid)
	if !ok {
		return 0
	}
	return p.durations[sid]
}

// Name returns the program name.
func (s *Store) Name(pid logic.ProgramID) string {
	p, ok := s.get(pid)
	if !ok {
		return ""
	}
	return p.name
}

// NextStart returns the earliest start of any enabled program after t, and
// the program it belongs to.
func (s *Store) NextStart(t time.Time) (time.Time, logic.ProgramID, bool) {
	var (
		best  time.Time
		bestP logic.ProgramID
		found bool
	)
	for i, p := range s.progs {
		if !p.enabled {
			continue
		}
		next, ok := p.next(t.In(s.loc))
		if ok && (!found || next.Before(best)) {
			best, bestP, found = next, logic.ProgramID(i), true
		}
	}
	return best, bestP, found
}

// ProgramNextStart returns the first start of pid after t, whether or not
// the program is enabled.
func (s *Store) ProgramNextStart(pid logic.ProgramID, t time.Time) (time.Time, bool) {
	p, ok := s.get(pid)
	if !ok {
		return time.Time{}, false
	}
	return p.next(t.In(s.loc))
}

func (p compiled) next(t time.Time) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, sched := range p.schedules {
		next := sched.Next(t)
		if next.IsZero() {
			continue
		}
		if !found || next.Before(best) {
			best, found = next, true
		}
	}
	return best, found
}

func (s *Store) get(pid logic.ProgramID) (compiled, bool) {
	if pid < 0 || int(pid) >= len(s.progs) {
		return compiled{}, false
	}
	return s.progs[pid], true
}
