package bridge

import (
	"errors"
	"sync"
)

// ClockMode selects how the virtual clock advances.
type ClockMode uint8

const (
	// ModeRealTime advances the clock one quantum per external heartbeat.
	ModeRealTime ClockMode = iota

	// ModeManual advances the clock only through explicit Advance calls.
	ModeManual
)

func (m ClockMode) String() string {
	switch m {
	case ModeRealTime:
		return "RealTime"
	case ModeManual:
		return "Manual"
	}
	return "Unknown"
}

const (
	// CrystalHz is the rate of the simulated crystal driving the raw tick
	// counter.
	CrystalHz = 32768

	// TickDivisor converts raw crystal ticks to canonical ticks.
	TickDivisor = 32

	// TicksPerSecond is the canonical tick rate after division.
	TicksPerSecond = CrystalHz / TickDivisor
)

// ErrClockMode is returned when an advance operation does not match the
// clock's current mode.
var ErrClockMode = errors.New("bridge: operation not valid in current clock mode")

// A Clock is the simulated time source behind both wait timeouts and the
// interpreter's own notion of elapsed time. The raw counter models a
// 32768 Hz crystal; a fixed divisor yields the canonical 1024 Hz tick.
//
// The raw counter only ever grows, and a mode switch keeps the current
// count as the baseline for the new mode, so the converted tick value is
// monotonically non-decreasing across any sequence of mode changes.
type Clock struct {
	mu sync.Mutex

	mode        ClockMode
	raw         uint64
	tickEnabled bool

	yields     uint64
	heartbeats uint64
}

// ClockStats is a diagnostic snapshot of the clock.
type ClockStats struct {
	Mode        string `json:"mode"`
	Raw         uint64 `json:"raw"`
	Ticks       uint64 `json:"ticks"`
	Subticks    uint32 `json:"subticks"`
	TickEnabled bool   `json:"tick_enabled"`
	Yields      uint64 `json:"yields"`
	Heartbeats  uint64 `json:"heartbeats"`
}

// NewClock creates a clock in the given mode with timeout evaluation armed.
func NewClock(mode ClockMode) *Clock {
	return &Clock{
		mode:        mode,
		tickEnabled: true,
	}
}

// Mode returns the current mode.
func (c *Clock) Mode() ClockMode {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mode
}

// SetMode switches the advance mode. The raw counter is preserved, so the
// reading never resets and never moves backwards.
func (c *Clock) SetMode(mode ClockMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mode = mode
}

// Advance adds delta raw crystal ticks. It is only valid in Manual mode.
func (c *Clock) Advance(delta uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeManual {
		return ErrClockMode
	}

	c.raw += delta

	return nil
}

// AdvanceMS adds the raw-tick equivalent of ms milliseconds. Manual mode
// only.
func (c *Clock) AdvanceMS(ms uint64) error {
	return c.Advance(ms * CrystalHz / 1000)
}

// TickFromHeartbeat adds one canonical quantum of raw ticks. It is called
// by the external periodic driver and is only valid in RealTime mode.
func (c *Clock) TickFromHeartbeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeRealTime {
		return ErrClockMode
	}

	c.raw += TickDivisor
	c.heartbeats++

	return nil
}

// Raw returns the raw crystal tick count.
func (c *Clock) Raw() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.raw
}

// RawTicks returns the converted tick value together with the fractional
// remainder in raw ticks, for callers that need sub-tick precision.
func (c *Clock) RawTicks() (ticks uint64, subticks uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.raw / TickDivisor, uint32(c.raw % TickDivisor)
}

// Ticks returns the converted tick value. Clock satisfies TimeTeller.
func (c *Clock) Ticks() uint64 {
	ticks, _ := c.RawTicks()
	return ticks
}

// MonotonicMS returns elapsed virtual time in milliseconds.
func (c *Clock) MonotonicMS() uint64 {
	return c.Ticks() * 1000 / TicksPerSecond
}

// EnableTick arms timeout evaluation against this clock.
func (c *Clock) EnableTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickEnabled = true
}

// DisableTick disarms timeout evaluation. While disabled, every bounded
// wait behaves as unbounded.
func (c *Clock) DisableTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickEnabled = false
}

// TickEnabled reports whether timeouts are evaluated against this clock.
func (c *Clock) TickEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tickEnabled
}

func (c *Clock) noteYield() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.yields++
}

// YieldCount returns how many yield passes have been observed.
func (c *Clock) YieldCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.yields
}

// Stats returns a diagnostic snapshot.
func (c *Clock) Stats() ClockStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ClockStats{
		Mode:        c.mode.String(),
		Raw:         c.raw,
		Ticks:       c.raw / TickDivisor,
		Subticks:    uint32(c.raw % TickDivisor),
		TickEnabled: c.tickEnabled,
		Yields:      c.yields,
		Heartbeats:  c.heartbeats,
	}
}
