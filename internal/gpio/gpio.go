// Package gpio drives the station outputs, the auxiliary relay and the rain
// sensor input with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/irrigation-controller/internal/logic"

// Bank is the physical I/O of the controller. It satisfies logic.Outputs.
type Bank interface {
	logic.Outputs

	// ReadRain returns the logical rain sensor state (true = wet).
	ReadRain() (bool, error)

	// Close switches every output off and releases GPIO resources.
	Close() error
}

// NoPin marks an optional line that is not wired.
const NoPin = -1

// Pins maps the controller onto GPIO line offsets (BCM numbering).
type Pins struct {
	// Stations holds one offset per station, index = station ID - 1.
	Stations []int
	Relay    int
	Rain     int

	// OutputsActiveLow inverts station and relay lines, as most relay boards
	// switch on a low level.
	OutputsActiveLow bool
	// RainActiveLow treats a low rain input as wet.
	RainActiveLow bool
}

// DefaultPins returns the layout of a single eight-relay board.
func DefaultPins() Pins {
	return Pins{
		Stations:         []int{4, 17, 27, 22, 5, 6, 13, 19},
		Relay:            NoPin,
		Rain:             26,
		OutputsActiveLow: true,
		RainActiveLow:    true,
	}
}

func level(on, activeLow bool) int {
	if on != activeLow {
		return 1
	}
	return 0
}
