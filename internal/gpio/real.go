//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// RealBank drives actual hardware using Linux GPIO character device.
type RealBank struct {
	pins     Pins
	chip     *gpiocdev.Chip
	stations []*gpiocdev.Line
	relay    *gpiocdev.Line
	rain     *gpiocdev.Line

	// mirror of the last value written to each station line
	state []bool
}

// NewRealBank requests every configured line on the given chip. All outputs
// start switched off.
func NewRealBank(chipName string, pins Pins) (*RealBank, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	b := &RealBank{pins: pins, chip: chip, state: make([]bool, len(pins.Stations))}

	off := level(false, pins.OutputsActiveLow)
	for i, pin := range pins.Stations {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(off))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request station %d pin %d: %w", i+1, pin, err)
		}
		b.stations = append(b.stations, line)
	}

	if pins.Relay != NoPin {
		line, err := chip.RequestLine(pins.Relay, gpiocdev.AsOutput(off))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request relay pin %d: %w", pins.Relay, err)
		}
		b.relay = line
	}

	if pins.Rain != NoPin {
		bias := gpiocdev.WithPullDown
		if pins.RainActiveLow {
			bias = gpiocdev.WithPullUp
		}
		line, err := chip.RequestLine(pins.Rain, gpiocdev.AsInput, bias)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request rain pin %d: %w", pins.Rain, err)
		}
		b.rain = line
	}

	return b, nil
}

// SetOutput drives the line of sid. The mirror is only updated when the
// write succeeded.
func (b *RealBank) SetOutput(sid logic.StationID, on bool) error {
	i := int(sid) - 1
	if i < 0 || i >= len(b.stations) {
		return fmt.Errorf("station %d has no output line", sid)
	}
	if err := b.stations[i].SetValue(level(on, b.pins.OutputsActiveLow)); err != nil {
		return fmt.Errorf("write station %d: %w", sid, err)
	}
	b.state[i] = on
	return nil
}

// Output returns the mirrored state of sid.
func (b *RealBank) Output(sid logic.StationID) bool {
	i := int(sid) - 1
	if i < 0 || i >= len(b.state) {
		return false
	}
	return b.state[i]
}

// SetRelay drives the auxiliary relay. Without a relay line it does nothing.
func (b *RealBank) SetRelay(on bool) error {
	if b.relay == nil {
		return nil
	}
	if err := b.relay.SetValue(level(on, b.pins.OutputsActiveLow)); err != nil {
		return fmt.Errorf("write relay: %w", err)
	}
	return nil
}

// ReadRain returns the logical rain sensor state. Without a sensor line it
// always reads dry.
func (b *RealBank) ReadRain() (bool, error) {
	if b.rain == nil {
		return false, nil
	}
	raw, err := b.rain.Value()
	if err != nil {
		return false, fmt.Errorf("read rain pin: %w", err)
	}
	return (raw == 1) != b.pins.RainActiveLow, nil
}

// Close switches every output off and returns the lines to inputs before
// releasing them, so the valves stay shut across a restart.
func (b *RealBank) Close() error {
	var errs []error
	off := level(false, b.pins.OutputsActiveLow)

	outputs := append([]*gpiocdev.Line(nil), b.stations...)
	if b.relay != nil {
		outputs = append(outputs, b.relay)
	}
	for _, line := range outputs {
		if err := line.SetValue(off); err != nil {
			errs = append(errs, fmt.Errorf("switch off pin %d: %w", line.Offset(), err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", line.Offset(), err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", line.Offset(), err))
		}
	}
	if b.rain != nil {
		if err := b.rain.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rain pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	for i := range b.state {
		b.state[i] = false
	}
	return errors.Join(errs...)
}
