package logic

import (
	"context"
	"time"
)

// ProgramStore gives read-only access to the stored programs.
type ProgramStore interface {
	NumPrograms() int
	Enabled(pid ProgramID) bool
	// MatchesNow reports whether the program starts in the minute containing t.
	MatchesNow(pid ProgramID, t time.Time) bool
	// Duration returns the nominal run time in seconds, before scaling.
	Duration(pid ProgramID, sid StationID) int64
}

// Outputs drives the physical station outputs and the auxiliary relay.
type Outputs interface {
	SetOutput(sid StationID, on bool) error
	// Output returns the mirrored state of the output.
	Output(sid StationID) bool
	SetRelay(on bool) error
}

// LogSink records run log entries. Writes are best-effort.
type LogSink interface {
	Record(ctx context.Context, e Event) error
}

// Network probes and reinitializes the network link.
type Network interface {
	// Probe pings the gateway and reports whether it answered within timeout.
	Probe(ctx context.Context, gateway string, timeout time.Duration) bool
	// Reinitialize restarts the network link and reports success.
	Reinitialize(ctx context.Context) bool
}
