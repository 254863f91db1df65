// Package periph holds the shared peripheral-state registries: pins, analog
// channels and buses. Every entry is addressed by a small integer index so
// that state can be referenced across the host boundary without exposing
// memory addresses, and the element layout is stable so a host can mirror
// the arrays directly.
package periph

import (
	"sync"

	"github.com/johnnohj/hostbridge/bridge"
)

// Direction is the signal direction of a digital pin.
type Direction uint8

const (
	// Input reads an externally driven level.
	Input Direction = iota

	// Output drives a level.
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "Output"
	}
	return "Input"
}

// Pull selects the pull resistor of a pin.
type Pull uint8

const (
	// PullNone leaves the pin floating.
	PullNone Pull = iota

	// PullUp biases the pin high.
	PullUp

	// PullDown biases the pin low.
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "Up"
	case PullDown:
		return "Down"
	}
	return "None"
}

// DriveMode selects the output stage of a pin.
type DriveMode uint8

const (
	// PushPull drives both levels actively.
	PushPull DriveMode = iota

	// OpenDrain only drives low; high is released to the pull.
	OpenDrain
)

func (m DriveMode) String() string {
	if m == OpenDrain {
		return "OpenDrain"
	}
	return "PushPull"
}

// NumPins is the number of addressable digital pins.
const NumPins = 64

// PinState is the full state of one pin. Output-written and input-injected
// levels live in distinct fields: Value is only ever written by SetValue on
// an Output pin, InValue only by InjectInput on an Input pin, and the
// injected latch is cleared on every direction change. Switching direction
// therefore never leaks a stale level across roles.
type PinState struct {
	Value      bool      `json:"value"`
	InValue    bool      `json:"in_value"`
	Injected   bool      `json:"injected"`
	Direction  Direction `json:"direction"`
	Pull       Pull      `json:"pull"`
	Drive      DriveMode `json:"drive"`
	Enabled    bool      `json:"enabled"`
	NeverReset bool      `json:"never_reset"`
	Claimed    bool      `json:"claimed"`
}

// Pins is the registry of digital pins. It is a context object; independent
// registries can coexist.
type Pins struct {
	mu    sync.Mutex
	state [NumPins]PinState
}

// NewPins creates a registry with every pin enabled, unclaimed and
// configured as a floating input.
func NewPins() *Pins {
	p := &Pins{}
	for i := range p.state {
		p.state[i].Enabled = true
	}
	return p
}

func (p *Pins) pin(index int) (*PinState, error) {
	if index < 0 || index >= NumPins {
		return nil, bridge.ErrInvalidHandle
	}
	return &p.state[index], nil
}

// livePin is pin plus the enabled check. Disabled pins reject every
// operation except Claim.
func (p *Pins) livePin(index int) (*PinState, error) {
	s, err := p.pin(index)
	if err != nil {
		return nil, err
	}
	if !s.Enabled {
		return nil, bridge.ErrInvalidHandle
	}
	return s, nil
}

// Claim marks a pin in use, re-enabling it if it was deinitialized. It
// fails if the pin is already claimed by someone else.
func (p *Pins) Claim(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.pin(index)
	if err != nil {
		return err
	}
	if s.Claimed {
		return bridge.ErrInvalidHandle
	}

	s.Claimed = true
	s.Enabled = true

	return nil
}

// Release returns a claimed pin to the pool.
func (p *Pins) Release(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.pin(index)
	if err != nil {
		return err
	}

	s.Claimed = false

	return nil
}

// Deinit disables a pin. Disabled is orthogonal to direction; the pin keeps
// its configuration but rejects reads and writes until re-claimed.
func (p *Pins) Deinit(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.pin(index)
	if err != nil {
		return err
	}

	s.Enabled = false
	s.Claimed = false

	return nil
}

// SetDirection switches a pin between input and output and clears the
// injected input latch.
func (p *Pins) SetDirection(index int, d Direction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.livePin(index)
	if err != nil {
		return err
	}

	s.Direction = d
	s.Injected = false
	s.InValue = false

	return nil
}

// Direction returns the pin's direction.
func (p *Pins) Direction(index int) (Direction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.livePin(index)
	if err != nil {
		return Input, err
	}

	return s.Direction, nil
}

// SetValue drives an output pin. On an input pin it has no observable
// effect; the level of an input is the injected or pull-implied one.
func (p *Pins) SetValue(index int, value bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.livePin(index)
	if err != nil {
		return err
	}

	if s.Direction == Output {
		s.Value = value
	}

	return nil
}

// Value samples a pin. Outputs return the last written level. Inputs return
// the injected level when the host has driven one, otherwise the
// pull-implied default (up reads high, down and floating read low).
func (p *Pins) Value(index int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.livePin(index)
	if err != nil {
		return false, err
	}

	if s.Direction == Output {
		return s.Value, nil
	}

	if s.Injected {
		return s.InValue, nil
	}

	return s.Pull == PullUp, nil
}

// InjectInput drives the level an input pin will read. This is the host
// side of the registry: simulated buttons and sensors come in here. It has
// no effect on outputs.
func (p *Pins) InjectInput(index int, value bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.livePin(index)
	if err != nil {
		return err
	}

	if s.Direction == Input {
		s.InValue = value
		s.Injected = true
	}

	return nil
}

// OutputValue is the host-side observation of an output pin, for
// visualizing LEDs and the like. Inputs report false.
func (p *Pins) OutputValue(index int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.livePin(index)
	if err != nil {
		return false, err
	}

	if s.Direction != Output {
		return false, nil
	}

	return s.Value, nil
}

// SetPull configures the pull resistor.
func (p *Pins) SetPull(index int, pull Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.livePin(index)
	if err != nil {
		return err
	}

	s.Pull = pull

	return nil
}

// SetDriveMode configures the output stage.
func (p *Pins) SetDriveMode(index int, mode DriveMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.livePin(index)
	if err != nil {
		return err
	}

	s.Drive = mode

	return nil
}

// MarkNeverReset excludes a pin from bulk reset sweeps, for peripherals
// that must survive a soft restart of the interpreter.
func (p *Pins) MarkNeverReset(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.pin(index)
	if err != nil {
		return err
	}

	s.NeverReset = true

	return nil
}

// ResetAll sweeps every pin not marked never-reset back to defaults:
// enabled, unclaimed, floating input, push-pull, no value.
func (p *Pins) ResetAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.state {
		if p.state[i].NeverReset {
			continue
		}
		p.state[i] = PinState{Enabled: true}
	}
}

// Snapshot returns a copy of every pin's state in index order. This is the
// stable bulk view the host's fast path reads.
func (p *Pins) Snapshot() []PinState {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PinState, NumPins)
	copy(out, p.state[:])

	return out
}
