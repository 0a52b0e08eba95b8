package network

import (
	"context"
	"sync"
	"time"
)

// Fake is a scripted network for tests.
type Fake struct {
	mu sync.Mutex

	// Results are returned by successive probes. Once exhausted, the last
	// result repeats; an empty list answers true.
	Results      []bool
	ReinitResult bool

	Probes   []string
	Reinits  int
	Timeouts []time.Duration
}

// Probe records the gateway and returns the next scripted result.
func (f *Fake) Probe(_ context.Context, gateway string, timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Probes = append(f.Probes, gateway)
	f.Timeouts = append(f.Timeouts, timeout)
	if len(f.Results) == 0 {
		return true
	}
	r := f.Results[0]
	if len(f.Results) > 1 {
		f.Results = f.Results[1:]
	}
	return r
}

// Reinitialize counts the call and returns ReinitResult.
func (f *Fake) Reinitialize(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reinits++
	return f.ReinitResult
}

// ProbeCount returns the number of probes made.
func (f *Fake) ProbeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Probes)
}
