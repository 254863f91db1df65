package host

import (
	"errors"
	"sync"

	"github.com/johnnohj/hostbridge/bridge"
	"github.com/johnnohj/hostbridge/periph"
)

type queuedRequest struct {
	id     uint32
	kind   bridge.OperationKind
	params bridge.Params
}

// A Loopback is an in-process host completer. It owns no hardware; every
// operation acts on the peripheral registries, and transmit paths loop back
// to their receive side (SPI echoes MISO from MOSI, UART writes feed the
// read buffer).
//
// In immediate mode Send fulfils the request inline, so the first poll of a
// waiting caller already observes the terminal status. In deferred mode
// Send only queues, and the queue drains during yield service passes, which
// exercises the polling loop the way an asynchronous embedder would.
type Loopback struct {
	mu sync.Mutex

	table  *bridge.Table
	clock  *bridge.Clock
	pins   *periph.Pins
	analog *periph.Analog
	buses  *periph.Buses

	deferred bool
	queue    []queuedRequest

	// Active bus per kind. Wire-level bus operations do not carry pin
	// numbers, so the completer resolves them against the most recently
	// initialized bus of the kind.
	i2c, spi, uart periph.Handle
	i2cUp, spiUp   bool
	uartUp         bool

	uartRx []byte

	failCodes map[bridge.OperationKind]int32
}

// NewLoopback creates a loopback completer over a table, a clock and the
// peripheral registries.
func NewLoopback(
	table *bridge.Table,
	clock *bridge.Clock,
	pins *periph.Pins,
	analog *periph.Analog,
	buses *periph.Buses,
) *Loopback {
	return &Loopback{
		table:     table,
		clock:     clock,
		pins:      pins,
		analog:    analog,
		buses:     buses,
		failCodes: make(map[bridge.OperationKind]int32),
	}
}

// SetDeferred switches between inline and queued fulfilment.
func (l *Loopback) SetDeferred(deferred bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.deferred = deferred
}

// FailNext makes the next request of the given kind terminate with the
// given host error code. Tests use this to drive the error path.
func (l *Loopback) FailNext(kind bridge.OperationKind, code int32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failCodes[kind] = code
}

// Send implements bridge.Completer.
func (l *Loopback) Send(
	id uint32,
	kind bridge.OperationKind,
	params bridge.Params,
) error {
	l.mu.Lock()
	if l.deferred {
		l.queue = append(l.queue, queuedRequest{id: id, kind: kind, params: params})
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	l.fulfil(id, kind, params)

	return nil
}

// Retract implements bridge.Completer. A queued request is dropped; a
// request already fulfilled is left alone for the reaper.
func (l *Loopback) Retract(id uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, q := range l.queue {
		if q.id == id {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			break
		}
	}
}

// RunService drains the deferred queue. Loopback satisfies bridge.Service
// so a board can register it on the scheduler's yield pass.
func (l *Loopback) RunService(_ uint64) {
	l.mu.Lock()
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, q := range pending {
		l.fulfil(q.id, q.kind, q.params)
	}
}

func (l *Loopback) fulfil(
	id uint32,
	kind bridge.OperationKind,
	params bridge.Params,
) {
	l.mu.Lock()
	if code, ok := l.failCodes[kind]; ok {
		delete(l.failCodes, kind)
		l.mu.Unlock()
		_ = l.table.Error(id, code)
		return
	}
	l.mu.Unlock()

	rsp, code := l.execute(kind, params)
	if code != 0 {
		_ = l.table.Error(id, code)
		return
	}

	_ = l.table.Complete(id, rsp)
}

func hostCode(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, periph.ErrNoDevice):
		return CodeNoDevice
	case errors.Is(err, bridge.ErrInvalidHandle):
		return CodeInvalid
	case errors.Is(err, periph.ErrNoFreeBus):
		return CodeIO
	case errors.Is(err, periph.ErrBusLocked):
		return CodeIO
	}
	return CodeIO
}

func (l *Loopback) execute(
	kind bridge.OperationKind,
	params bridge.Params,
) (bridge.Response, int32) {
	switch p := params.(type) {
	case bridge.GPIOSetParams:
		if err := l.pins.SetValue(int(p.Pin), p.Value); err != nil {
			return nil, hostCode(err)
		}
		return bridge.EmptyResponse{}, 0

	case bridge.GPIOGetParams:
		v, err := l.pins.Value(int(p.Pin))
		if err != nil {
			return nil, hostCode(err)
		}
		return bridge.GPIOValueResponse{Value: v}, 0

	case bridge.GPIODirectionParams:
		dir := periph.Input
		if p.Output {
			dir = periph.Output
		}
		if err := l.pins.SetDirection(int(p.Pin), dir); err != nil {
			return nil, hostCode(err)
		}
		return bridge.EmptyResponse{}, 0

	case bridge.GPIOPullParams:
		if err := l.pins.SetPull(int(p.Pin), periph.Pull(p.Pull)); err != nil {
			return nil, hostCode(err)
		}
		return bridge.EmptyResponse{}, 0

	case bridge.AnalogInitParams:
		if err := l.analog.Init(int(p.Pin), p.Output); err != nil {
			return nil, hostCode(err)
		}
		return bridge.EmptyResponse{}, 0

	case bridge.AnalogDeinitParams:
		if err := l.analog.Deinit(int(p.Pin)); err != nil {
			return nil, hostCode(err)
		}
		return bridge.EmptyResponse{}, 0

	case bridge.AnalogReadParams:
		v, err := l.analog.Read(int(p.Pin))
		if err != nil {
			return nil, hostCode(err)
		}
		return bridge.AnalogValueResponse{Value: v}, 0

	case bridge.AnalogWriteParams:
		if err := l.analog.Write(int(p.Pin), p.Value); err != nil {
			return nil, hostCode(err)
		}
		return bridge.EmptyResponse{}, 0

	case bridge.I2CInitParams:
		h, err := l.buses.Claim(periph.BusI2C, p.SCL, p.SDA)
		if err != nil {
			return nil, hostCode(err)
		}
		cfg, _ := l.buses.Config(h)
		cfg.Frequency = p.Frequency
		_ = l.buses.Configure(h, cfg)
		l.mu.Lock()
		l.i2c, l.i2cUp = h, true
		l.mu.Unlock()
		return bridge.AckResponse{OK: true}, 0

	case bridge.I2CDeinitParams:
		h, err := l.buses.FindByPin(periph.BusI2C, p.SCL)
		if err != nil {
			return nil, hostCode(err)
		}
		if err := l.buses.Deinit(h); err != nil {
			return nil, hostCode(err)
		}
		l.mu.Lock()
		l.i2cUp = false
		l.mu.Unlock()
		return bridge.EmptyResponse{}, 0

	case bridge.I2CWriteParams:
		h, code := l.activeI2C()
		if code != 0 {
			return nil, code
		}
		if err := l.buses.DeviceWrite(h, p.Address, p.Data); err != nil {
			return nil, hostCode(err)
		}
		return bridge.AckResponse{OK: true}, 0

	case bridge.I2CReadParams:
		h, code := l.activeI2C()
		if code != 0 {
			return nil, code
		}
		data, err := l.buses.DeviceRead(h, p.Address, int(p.Length))
		if err != nil {
			return nil, hostCode(err)
		}
		return bridge.DataResponse{Data: data}, 0

	case bridge.I2CWriteReadParams:
		h, code := l.activeI2C()
		if code != 0 {
			return nil, code
		}
		data, err := l.buses.DeviceWriteRead(
			h, p.Address, p.WriteData, int(p.ReadLength))
		if err != nil {
			return nil, hostCode(err)
		}
		return bridge.DataResponse{Data: data}, 0

	case bridge.I2CProbeParams:
		h, code := l.activeI2C()
		if code != 0 {
			return nil, code
		}
		found, err := l.buses.Probe(h, p.Address)
		if err != nil {
			return nil, hostCode(err)
		}
		return bridge.AckResponse{OK: found}, 0

	case bridge.SPIInitParams:
		h, err := l.buses.Claim(periph.BusSPI, p.Clock, p.MOSI, p.MISO)
		if err != nil {
			return nil, hostCode(err)
		}
		l.mu.Lock()
		l.spi, l.spiUp = h, true
		l.mu.Unlock()
		return bridge.EmptyResponse{}, 0

	case bridge.SPIDeinitParams:
		h, err := l.buses.FindByPin(periph.BusSPI, p.Clock)
		if err != nil {
			return nil, hostCode(err)
		}
		if err := l.buses.Deinit(h); err != nil {
			return nil, hostCode(err)
		}
		l.mu.Lock()
		l.spiUp = false
		l.mu.Unlock()
		return bridge.EmptyResponse{}, 0

	case bridge.SPIConfigureParams:
		h, code := l.activeSPI()
		if code != 0 {
			return nil, code
		}
		cfg, err := l.buses.Config(h)
		if err != nil {
			return nil, hostCode(err)
		}
		cfg.Frequency = p.Baudrate
		cfg.Polarity = p.Polarity
		cfg.Phase = p.Phase
		cfg.Bits = p.Bits
		if err := l.buses.Configure(h, cfg); err != nil {
			return nil, hostCode(err)
		}
		return bridge.EmptyResponse{}, 0

	case bridge.SPITransferParams:
		if _, code := l.activeSPI(); code != 0 {
			return nil, code
		}
		// MOSI looped straight back to MISO.
		echo := append([]byte(nil), p.Data...)
		return bridge.DataResponse{Data: echo}, 0

	case bridge.SPIWriteParams:
		if _, code := l.activeSPI(); code != 0 {
			return nil, code
		}
		return bridge.EmptyResponse{}, 0

	case bridge.SPIReadParams:
		if _, code := l.activeSPI(); code != 0 {
			return nil, code
		}
		data := make([]byte, p.Length)
		for i := range data {
			data[i] = p.WriteValue
		}
		return bridge.DataResponse{Data: data}, 0

	case bridge.TimeSleepParams:
		// In manual mode virtual sleep is a fast-forward: the clock jumps
		// by the requested span. In real-time mode the span passes through
		// heartbeats, so completion is immediate.
		if l.clock.Mode() == bridge.ModeManual {
			_ = l.clock.AdvanceMS(uint64(p.Milliseconds))
		}
		return bridge.EmptyResponse{}, 0

	case bridge.TimeMonotonicParams:
		return bridge.TimeResponse{Milliseconds: l.clock.MonotonicMS()}, 0

	case bridge.UARTInitParams:
		h, err := l.buses.Claim(periph.BusUART, p.TX, p.RX)
		if err != nil {
			return nil, hostCode(err)
		}
		cfg, _ := l.buses.Config(h)
		cfg.Frequency = p.Baudrate
		cfg.Bits = p.Bits
		cfg.Parity = p.Parity
		cfg.StopBits = p.Stop
		_ = l.buses.Configure(h, cfg)
		l.mu.Lock()
		l.uart, l.uartUp = h, true
		l.uartRx = nil
		l.mu.Unlock()
		return bridge.EmptyResponse{}, 0

	case bridge.UARTDeinitParams:
		h, err := l.buses.FindByPin(periph.BusUART, p.TX)
		if err != nil {
			return nil, hostCode(err)
		}
		if err := l.buses.Deinit(h); err != nil {
			return nil, hostCode(err)
		}
		l.mu.Lock()
		l.uartUp = false
		l.uartRx = nil
		l.mu.Unlock()
		return bridge.EmptyResponse{}, 0

	case bridge.UARTWriteParams:
		l.mu.Lock()
		if !l.uartUp {
			l.mu.Unlock()
			return nil, CodeInvalid
		}
		l.uartRx = append(l.uartRx, p.Data...)
		l.mu.Unlock()
		return bridge.EmptyResponse{}, 0

	case bridge.UARTReadParams:
		l.mu.Lock()
		if !l.uartUp {
			l.mu.Unlock()
			return nil, CodeInvalid
		}
		n := int(p.Length)
		if n > len(l.uartRx) {
			n = len(l.uartRx)
		}
		data := append([]byte(nil), l.uartRx[:n]...)
		l.uartRx = l.uartRx[n:]
		l.mu.Unlock()
		return bridge.DataResponse{Data: data}, 0

	case bridge.UARTBaudrateParams:
		l.mu.Lock()
		h, up := l.uart, l.uartUp
		l.mu.Unlock()
		if !up {
			return nil, CodeInvalid
		}
		cfg, err := l.buses.Config(h)
		if err != nil {
			return nil, hostCode(err)
		}
		cfg.Frequency = p.Baudrate
		if err := l.buses.Configure(h, cfg); err != nil {
			return nil, hostCode(err)
		}
		return bridge.EmptyResponse{}, 0

	case bridge.UARTRxAvailableParams:
		l.mu.Lock()
		n := uint32(len(l.uartRx))
		l.mu.Unlock()
		return bridge.CountResponse{Count: n}, 0

	case bridge.UARTClearRxParams:
		l.mu.Lock()
		l.uartRx = nil
		l.mu.Unlock()
		return bridge.EmptyResponse{}, 0

	case bridge.MCUResetParams:
		l.pins.ResetAll()
		l.analog.ResetAll()
		l.buses.ResetAll()
		l.mu.Lock()
		l.i2cUp, l.spiUp, l.uartUp = false, false, false
		l.uartRx = nil
		l.mu.Unlock()
		return bridge.EmptyResponse{}, 0
	}

	return nil, CodeUnsupported
}

func (l *Loopback) activeI2C() (periph.Handle, int32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.i2cUp {
		return periph.Handle{}, CodeInvalid
	}
	return l.i2c, 0
}

func (l *Loopback) activeSPI() (periph.Handle, int32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.spiUp {
		return periph.Handle{}, CodeInvalid
	}
	return l.spi, 0
}
