package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// FakeBank is a test double that records output writes and returns
// scripted rain sensor samples.
type FakeBank struct {
	mu sync.Mutex

	outputs map[logic.StationID]bool

	// Writes records every successful SetOutput call in order.
	Writes []Write
	// Relay is the current relay state; RelayWrites records every call.
	Relay       bool
	RelayWrites []bool

	// Rain contains scripted rain sensor samples. Each ReadRain consumes the
	// next sample; the last one repeats.
	Rain  []bool
	index int

	// FailStation, if set, makes SetOutput fail for that station.
	FailStation logic.StationID
	// WriteError is returned for FailStation; ReadError by ReadRain.
	WriteError error
	ReadError  error

	// Closed tracks if Close was called
	Closed bool
}

// Write is one recorded output change.
type Write struct {
	Station logic.StationID
	On      bool
}

// NewFakeBank creates a FakeBank with the given rain samples.
func NewFakeBank(rain []bool) *FakeBank {
	return &FakeBank{outputs: map[logic.StationID]bool{}, Rain: rain}
}

// SetOutput records the write.
func (f *FakeBank) SetOutput(sid logic.StationID, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailStation != 0 && sid == f.FailStation {
		if f.WriteError != nil {
			return f.WriteError
		}
		return errors.New("simulated write failure")
	}
	f.outputs[sid] = on
	f.Writes = append(f.Writes, Write{Station: sid, On: on})
	return nil
}

// Output returns the last value written to sid.
func (f *FakeBank) Output(sid logic.StationID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[sid]
}

// SetRelay records the relay state.
func (f *FakeBank) SetRelay(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Relay = on
	f.RelayWrites = append(f.RelayWrites, on)
	return nil
}

// ReadRain returns the next scripted sample. With no samples it reads dry.
func (f *FakeBank) ReadRain() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Rain) == 0 {
		return false, nil
	}
	wet := f.Rain[f.index]
	if f.index < len(f.Rain)-1 {
		f.index++
	}
	return wet, nil
}

// Close switches every output off and marks the bank as closed.
func (f *FakeBank) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid := range f.outputs {
		f.outputs[sid] = false
	}
	f.Relay = false
	f.Closed = true
	return nil
}

// On returns the stations currently switched on, in ascending order.
func (f *FakeBank) On() []logic.StationID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []logic.StationID
	for sid := logic.StationID(1); sid <= logic.StationID(logic.StationsPerBoard*logic.MaxBoards); sid++ {
		if f.outputs[sid] {
			out = append(out, sid)
		}
	}
	return out
}
