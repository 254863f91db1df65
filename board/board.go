// Package board assembles the bridge core, the peripheral registries and a
// completer into one virtual board with a documented lifecycle.
package board

import (
	"github.com/johnnohj/hostbridge/bridge"
	"github.com/johnnohj/hostbridge/datarecording"
	"github.com/johnnohj/hostbridge/monitoring"
	"github.com/johnnohj/hostbridge/periph"
)

// A Board is the context object the embedding environment holds: one clock,
// one slot table, one scheduler and one set of peripheral registries.
// Independent boards do not share state, so tests can run many side by
// side.
type Board struct {
	id string

	clock     *bridge.Clock
	table     *bridge.Table
	scheduler *bridge.Scheduler
	completer bridge.Completer

	pins   *periph.Pins
	analog *periph.Analog
	buses  *periph.Buses

	monitor  *monitoring.Monitor
	recorder datarecording.DataRecorder
}

// ID returns the run id of this board instance.
func (b *Board) ID() string { return b.id }

// Clock returns the virtual clock.
func (b *Board) Clock() *bridge.Clock { return b.clock }

// Table returns the request slot table.
func (b *Board) Table() *bridge.Table { return b.table }

// Scheduler returns the yield scheduler.
func (b *Board) Scheduler() *bridge.Scheduler { return b.scheduler }

// Completer returns the host completer bound to this board.
func (b *Board) Completer() bridge.Completer { return b.completer }

// Pins returns the digital pin registry.
func (b *Board) Pins() *periph.Pins { return b.pins }

// Analog returns the analog channel registry.
func (b *Board) Analog() *periph.Analog { return b.analog }

// Buses returns the bus registry.
func (b *Board) Buses() *periph.Buses { return b.buses }

// Monitor returns the diagnostics server, or nil if monitoring is off.
func (b *Board) Monitor() *monitoring.Monitor { return b.monitor }

// Call issues a request and waits for its completion, freeing the slot
// afterwards. It is the synchronous-looking entry point interpreter
// bindings use.
func (b *Board) Call(params bridge.Params) (bridge.Response, error) {
	return b.scheduler.Call(params)
}

// CallFor is Call with a timeout in converted ticks.
func (b *Board) CallFor(
	params bridge.Params,
	timeout uint64,
) (bridge.Response, error) {
	return b.scheduler.CallFor(params, timeout)
}

// Yield is the periodic hook the interpreter's dispatch loop calls between
// bytecodes.
func (b *Board) Yield() {
	b.scheduler.Yield()
}

// SoftReset sweeps every peripheral not marked never-reset back to its
// default state. The clock keeps running across soft resets, like a real
// crystal, so elapsed time stays continuous between interpreter sessions.
func (b *Board) SoftReset() {
	b.pins.ResetAll()
	b.analog.ResetAll()
	b.buses.ResetAll()
}

// Teardown flushes the recorder. The board is not usable afterwards.
func (b *Board) Teardown() {
	if b.recorder != nil {
		b.recorder.Flush()
	}
}
