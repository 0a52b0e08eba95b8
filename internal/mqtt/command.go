package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// ErrBadCommand is returned for command payloads that cannot be applied.
var ErrBadCommand = errors.New("bad command")

// Action names a manual command.
type Action string

const (
	ActionRun        Action = "run"
	ActionStop       Action = "stop"
	ActionStopAll    Action = "stop_all"
	ActionRunProgram Action = "run_program"
	ActionRainDelay  Action = "rain_delay"
	ActionEnable     Action = "enable"
)

// Command is a decoded manual command.
type Command struct {
	Action  Action          `json:"action"`
	Station logic.StationID `json:"station,omitempty"`
	Program logic.ProgramID `json:"program,omitempty"`
	// Seconds is the run time for ActionRun; 0 runs until stopped.
	Seconds int64 `json:"seconds,omitempty"`
	// Hours is the rain delay length; 0 cancels the delay.
	Hours   int64 `json:"hours,omitempty"`
	Enabled bool  `json:"enabled,omitempty"`
}

// Duration returns the manual run time.
func (c Command) Duration() time.Duration {
	return time.Duration(c.Seconds) * time.Second
}

// RainDelayUntil returns the end of the requested rain delay, or the zero
// time when the delay is cancelled.
func (c Command) RainDelayUntil(now time.Time) time.Time {
	if c.Hours <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(c.Hours) * time.Hour)
}

// ParseCommand decodes and checks a command payload.
func ParseCommand(payload []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(payload, &c); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	switch c.Action {
	case ActionRun:
		if c.Station < 1 {
			return Command{}, fmt.Errorf("%w: run needs a station", ErrBadCommand)
		}
		if c.Seconds < 0 {
			return Command{}, fmt.Errorf("%w: negative run time", ErrBadCommand)
		}
	case ActionStop:
		if c.Station < 1 {
			return Command{}, fmt.Errorf("%w: stop needs a station", ErrBadCommand)
		}
	case ActionRunProgram:
		if c.Program < 0 {
			return Command{}, fmt.Errorf("%w: negative program", ErrBadCommand)
		}
	case ActionRainDelay:
		if c.Hours < 0 {
			return Command{}, fmt.Errorf("%w: negative rain delay", ErrBadCommand)
		}
	case ActionStopAll, ActionEnable:
	default:
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrBadCommand, c.Action)
	}
	return c, nil
}

// CommandFilter drops commands arriving faster than the configured rate.
type CommandFilter struct {
	limiter *rate.Limiter
}

// NewCommandFilter allows perSec commands per second with the given burst.
// A non-positive rate disables filtering.
func NewCommandFilter(perSec float64, burst int) *CommandFilter {
	if perSec <= 0 {
		return &CommandFilter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &CommandFilter{limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

// Allow reports whether a command arriving at now may pass.
func (f *CommandFilter) Allow(now time.Time) bool {
	if f == nil || f.limiter == nil {
		return true
	}
	return f.limiter.AllowN(now, 1)
}
