//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealBank is not available on non-Linux platforms.
type RealBank struct{}

// NewRealBank returns an error on non-Linux platforms.
func NewRealBank(chipName string, pins Pins) (*RealBank, error) {
	return nil, errUnsupported
}

func (b *RealBank) SetOutput(sid logic.StationID, on bool) error { return errUnsupported }
func (b *RealBank) Output(sid logic.StationID) bool               { return false }
func (b *RealBank) SetRelay(on bool) error                        { return errUnsupported }
func (b *RealBank) ReadRain() (bool, error)                       { return false, errUnsupported }
func (b *RealBank) Close() error                                  { return nil }
