package periph

import (
	"sync"

	"github.com/johnnohj/hostbridge/bridge"
)

// NumAnalogChannels is the number of addressable analog channels.
const NumAnalogChannels = 64

// AnalogMidScale is the 16-bit mid-range value an ADC channel starts at.
const AnalogMidScale = 32768

// AnalogState is the state of one analog channel.
type AnalogState struct {
	Value    uint16 `json:"value"`
	IsOutput bool   `json:"is_output"`
	Enabled  bool   `json:"enabled"`
}

// Analog is the registry of analog channels. A channel is an ADC until it
// is initialized as an output, in which case it acts as a DAC.
type Analog struct {
	mu    sync.Mutex
	state [NumAnalogChannels]AnalogState
}

// NewAnalog creates a registry with every channel disabled.
func NewAnalog() *Analog {
	return &Analog{}
}

func (a *Analog) channel(index int) (*AnalogState, error) {
	if index < 0 || index >= NumAnalogChannels {
		return nil, bridge.ErrInvalidHandle
	}
	return &a.state[index], nil
}

func (a *Analog) liveChannel(index int) (*AnalogState, error) {
	s, err := a.channel(index)
	if err != nil {
		return nil, err
	}
	if !s.Enabled {
		return nil, bridge.ErrInvalidHandle
	}
	return s, nil
}

// Init enables a channel as ADC or DAC. An ADC starts at mid-scale.
func (a *Analog) Init(index int, output bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.channel(index)
	if err != nil {
		return err
	}

	s.IsOutput = output
	s.Enabled = true
	if !output {
		s.Value = AnalogMidScale
	}

	return nil
}

// Deinit disables a channel.
func (a *Analog) Deinit(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.channel(index)
	if err != nil {
		return err
	}

	s.Enabled = false

	return nil
}

// Read samples an enabled channel.
func (a *Analog) Read(index int) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.liveChannel(index)
	if err != nil {
		return 0, err
	}

	return s.Value, nil
}

// Write drives a DAC channel. Writing an ADC channel has no effect.
func (a *Analog) Write(index int, value uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.liveChannel(index)
	if err != nil {
		return err
	}

	if s.IsOutput {
		s.Value = value
	}

	return nil
}

// InjectInput is the host side of an ADC channel: a simulated sensor
// reading. It has no effect on DAC channels.
func (a *Analog) InjectInput(index int, value uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.liveChannel(index)
	if err != nil {
		return err
	}

	if !s.IsOutput {
		s.Value = value
	}

	return nil
}

// OutputValue is the host-side observation of a DAC channel.
func (a *Analog) OutputValue(index int) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.liveChannel(index)
	if err != nil {
		return 0, err
	}

	if !s.IsOutput {
		return 0, nil
	}

	return s.Value, nil
}

// ResetAll disables every channel.
func (a *Analog) ResetAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.state {
		a.state[i] = AnalogState{}
	}
}

// Snapshot returns a copy of every channel's state in index order.
func (a *Analog) Snapshot() []AnalogState {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AnalogState, NumAnalogChannels)
	copy(out, a.state[:])

	return out
}
