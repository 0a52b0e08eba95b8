package logic

import "time"

// InputState tracks debounce state for a single boolean input.
type InputState struct {
	// Current stable (debounced) state
	Stable bool
	// Pending state during debounce
	Pending bool
	// Whether a pending state is being observed
	HasPending bool
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// RainSensor debounces the rain sensor input and reports stable transitions.
type RainSensor struct {
	debounceDuration time.Duration
	in               InputState
}

// NewRainSensor creates a rain sensor debouncer with the given debounce duration.
func NewRainSensor(debounceDuration time.Duration) *RainSensor {
	return &RainSensor{debounceDuration: debounceDuration}
}

// Process takes a new raw sample and returns the new stable state when a
// debounced transition occurred. No transition is reported until a baseline
// is established; the baseline itself is reported once, as a transition.
func (r *RainSensor) Process(wet bool, now time.Time) (state bool, changed bool) {
	in := &r.in

	// First time seeing this input
	if !in.Baselined {
		if !in.HasPending || in.Pending != wet {
			// Start observing, or state changed during baseline: restart
			in.Pending = wet
			in.HasPending = true
			in.PendingSince = now
			return false, false
		}
		if now.Sub(in.PendingSince) >= r.debounceDuration {
			in.Stable = wet
			in.Baselined = true
			in.HasPending = false
			return wet, true
		}
		return false, false
	}

	if wet == in.Stable {
		in.HasPending = false
		return in.Stable, false
	}

	if !in.HasPending || in.Pending != wet {
		in.Pending = wet
		in.HasPending = true
		in.PendingSince = now
		return in.Stable, false
	}

	if now.Sub(in.PendingSince) >= r.debounceDuration {
		in.Stable = wet
		in.HasPending = false
		return wet, true
	}
	return in.Stable, false
}

// IsBaselined returns whether the sensor has established a baseline.
func (r *RainSensor) IsBaselined() bool {
	return r.in.Baselined
}

// Wet returns the current stable state.
func (r *RainSensor) Wet() bool {
	return r.in.Stable
}

// Heartbeat decides when a periodic status message is due.
type Heartbeat struct {
	startTime time.Time
	last      time.Time
}

// NewHeartbeat creates a heartbeat timer. The startTime is used for uptime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{startTime: startTime, last: startTime}
}

// Check returns the uptime and true if the interval has elapsed since the
// last heartbeat (or startup). An interval <= 0 disables heartbeats.
func (h *Heartbeat) Check(now time.Time, interval time.Duration) (time.Duration, bool) {
	if interval <= 0 {
		return 0, false
	}
	if now.Sub(h.last) < interval {
		return 0, false
	}
	h.last = now
	return now.Sub(h.startTime), true
}
