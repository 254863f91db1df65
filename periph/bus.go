package periph

import (
	"errors"
	"sync"

	"github.com/johnnohj/hostbridge/bridge"
)

// BusKind selects one of the bus families.
type BusKind uint8

const (
	// BusI2C is the two-wire addressable bus.
	BusI2C BusKind = iota

	// BusSPI is the clocked shift bus.
	BusSPI

	// BusUART is the asynchronous serial port.
	BusUART

	numBusKinds
)

func (k BusKind) String() string {
	switch k {
	case BusI2C:
		return "I2C"
	case BusSPI:
		return "SPI"
	case BusUART:
		return "UART"
	}
	return "Unknown"
}

const (
	// NumBusesPerKind is the number of buses of each kind.
	NumBusesPerKind = 8

	// NumDeviceAddresses is the 7-bit device address space of a bus.
	NumDeviceAddresses = 128

	// DeviceRegisterSpace is the register file size of one device.
	DeviceRegisterSpace = 256
)

// ErrNoFreeBus is returned by Claim when every bus of a kind is in use.
var ErrNoFreeBus = errors.New("periph: all buses of this kind in use")

// ErrNoDevice is returned by device operations when nothing answers at the
// address.
var ErrNoDevice = errors.New("periph: no device at address")

// ErrBusLocked is returned when an operation requires the lock and the bus
// is held by someone else, or when Unlock is called on an unlocked bus.
var ErrBusLocked = errors.New("periph: bus lock state mismatch")

// BusConfig is the clocking configuration of a bus. Fields that do not
// apply to a kind are ignored for it.
type BusConfig struct {
	Frequency uint32 `json:"frequency"`
	Polarity  uint8  `json:"polarity"`
	Phase     uint8  `json:"phase"`
	Bits      uint8  `json:"bits"`
	Parity    uint8  `json:"parity"`
	StopBits  uint8  `json:"stop_bits"`
}

// A device simulates one attached peripheral: a register file with an
// auto-incrementing cursor. The first byte of every write positions the
// cursor; subsequent written or read bytes move it.
type device struct {
	regs   [DeviceRegisterSpace]byte
	cursor uint8
}

type busState struct {
	pins       []uint8
	enabled    bool
	locked     bool
	neverReset bool
	config     BusConfig
	gen        uint32
	devices    map[uint8]*device
}

// A Handle references a claimed bus. Handles carry a generation stamp; a
// handle that outlives its bus (deinit or reset sweep) is stale and every
// operation through it reports ErrInvalidHandle.
type Handle struct {
	kind  BusKind
	index uint8
	gen   uint32
}

// Kind returns the bus family of the handle.
func (h Handle) Kind() BusKind { return h.kind }

// Index returns the bus index within its family.
func (h Handle) Index() int { return int(h.index) }

// BusView is a diagnostic snapshot of one bus.
type BusView struct {
	Kind       string    `json:"kind"`
	Index      int       `json:"index"`
	Pins       []uint8   `json:"pins"`
	Enabled    bool      `json:"enabled"`
	Locked     bool      `json:"locked"`
	NeverReset bool      `json:"never_reset"`
	Config     BusConfig `json:"config"`
	Devices    []uint8   `json:"devices"`
}

// Buses is the registry of every bus of every kind.
type Buses struct {
	mu    sync.Mutex
	buses [numBusKinds][NumBusesPerKind]busState
}

// NewBuses creates an empty bus registry.
func NewBuses() *Buses {
	return &Buses{}
}

func defaultConfig(kind BusKind) BusConfig {
	switch kind {
	case BusI2C:
		return BusConfig{Frequency: 100000}
	case BusSPI:
		return BusConfig{Frequency: 250000, Bits: 8}
	case BusUART:
		return BusConfig{Frequency: 115200, Bits: 8, StopBits: 1}
	}
	return BusConfig{}
}

func pinsEqual(a []uint8, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Claim finds the bus of the given kind already bound to the pin set, or
// binds the first free one. It returns ErrNoFreeBus when the family is
// exhausted.
func (b *Buses) Claim(kind BusKind, pins ...uint8) (Handle, error) {
	if kind >= numBusKinds {
		return Handle{}, bridge.ErrInvalidHandle
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	family := &b.buses[kind]

	for i := range family {
		s := &family[i]
		if s.enabled && pinsEqual(s.pins, pins) {
			return Handle{kind: kind, index: uint8(i), gen: s.gen}, nil
		}
	}

	for i := range family {
		s := &family[i]
		if s.enabled {
			continue
		}

		s.pins = append([]uint8(nil), pins...)
		s.enabled = true
		s.locked = false
		s.config = defaultConfig(kind)
		s.devices = make(map[uint8]*device)

		return Handle{kind: kind, index: uint8(i), gen: s.gen}, nil
	}

	return Handle{}, ErrNoFreeBus
}

func (b *Buses) lookup(h Handle) (*busState, error) {
	if h.kind >= numBusKinds || int(h.index) >= NumBusesPerKind {
		return nil, bridge.ErrInvalidHandle
	}

	s := &b.buses[h.kind][h.index]
	if !s.enabled || s.gen != h.gen {
		return nil, bridge.ErrInvalidHandle
	}

	return s, nil
}

// Deinit tears a bus down and invalidates every handle to it.
func (b *Buses) Deinit(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(h)
	if err != nil {
		return err
	}

	s.enabled = false
	s.locked = false
	s.pins = nil
	s.devices = nil
	s.gen++

	return nil
}

// FindByPin returns the handle of the enabled bus of a kind whose first
// assigned pin matches. Wire-level teardown requests identify buses this
// way.
func (b *Buses) FindByPin(kind BusKind, pin uint8) (Handle, error) {
	if kind >= numBusKinds {
		return Handle{}, bridge.ErrInvalidHandle
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	family := &b.buses[kind]
	for i := range family {
		s := &family[i]
		if s.enabled && len(s.pins) > 0 && s.pins[0] == pin {
			return Handle{kind: kind, index: uint8(i), gen: s.gen}, nil
		}
	}

	return Handle{}, bridge.ErrInvalidHandle
}

// TryLock attempts to take the exclusive bus lock without blocking. It
// returns false if the bus is already held.
func (b *Buses) TryLock(h Handle) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(h)
	if err != nil {
		return false, err
	}

	if s.locked {
		return false, nil
	}

	s.locked = true

	return true, nil
}

// Unlock releases the bus lock.
func (b *Buses) Unlock(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(h)
	if err != nil {
		return err
	}

	if !s.locked {
		return ErrBusLocked
	}

	s.locked = false

	return nil
}

// Configure sets the clocking parameters of a bus.
func (b *Buses) Configure(h Handle, cfg BusConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(h)
	if err != nil {
		return err
	}

	s.config = cfg

	return nil
}

// Config returns the current configuration of a bus.
func (b *Buses) Config(h Handle) (BusConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(h)
	if err != nil {
		return BusConfig{}, err
	}

	return s.config, nil
}

// MarkNeverReset excludes a bus from bulk reset sweeps.
func (b *Buses) MarkNeverReset(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(h)
	if err != nil {
		return err
	}

	s.neverReset = true

	return nil
}

// RegisterDevice attaches a simulated device at an address, seeding its
// register file with initial bytes.
func (b *Buses) RegisterDevice(h Handle, addr uint8, initial []byte) error {
	if addr >= NumDeviceAddresses {
		return bridge.ErrInvalidHandle
	}
	if len(initial) > DeviceRegisterSpace {
		return bridge.ErrPayloadOverflow
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(h)
	if err != nil {
		return err
	}

	d := &device{}
	copy(d.regs[:], initial)
	s.devices[addr] = d

	return nil
}

// Probe reports whether a device answers at an address.
func (b *Buses) Probe(h Handle, addr uint8) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(h)
	if err != nil {
		return false, err
	}

	_, ok := s.devices[addr]

	return ok, nil
}

func (b *Buses) deviceAt(h Handle, addr uint8) (*device, error) {
	s, err := b.lookup(h)
	if err != nil {
		return nil, err
	}

	d, ok := s.devices[addr]
	if !ok {
		return nil, ErrNoDevice
	}

	return d, nil
}

// DeviceWrite writes to a device. The first byte positions the register
// cursor; the remaining bytes land at the cursor, which advances past each
// one and wraps at the end of the register space.
func (b *Buses) DeviceWrite(h Handle, addr uint8, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.deviceAt(h, addr)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	d.cursor = data[0]
	for _, v := range data[1:] {
		d.regs[d.cursor] = v
		d.cursor++
	}

	return nil
}

// DeviceRead reads n bytes from a device starting at its cursor, advancing
// the cursor past each byte.
func (b *Buses) DeviceRead(h Handle, addr uint8, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.deviceAt(h, addr)
	if err != nil {
		return nil, err
	}

	out := make([]byte, n)
	for i := range out {
		out[i] = d.regs[d.cursor]
		d.cursor++
	}

	return out, nil
}

// DeviceWriteRead performs a write followed by a read without releasing the
// bus. With a single-byte write this is the classic "address a register,
// then read it back" transaction.
func (b *Buses) DeviceWriteRead(
	h Handle,
	addr uint8,
	w []byte,
	n int,
) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.deviceAt(h, addr)
	if err != nil {
		return nil, err
	}

	if len(w) > 0 {
		d.cursor = w[0]
		for _, v := range w[1:] {
			d.regs[d.cursor] = v
			d.cursor++
		}
	}

	out := make([]byte, n)
	for i := range out {
		out[i] = d.regs[d.cursor]
		d.cursor++
	}

	return out, nil
}

// ResetAll tears down every bus not marked never-reset and invalidates
// their handles.
func (b *Buses) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k := range b.buses {
		for i := range b.buses[k] {
			s := &b.buses[k][i]
			if s.neverReset {
				continue
			}

			gen := s.gen
			*s = busState{gen: gen + 1}
		}
	}
}

// Snapshot returns diagnostic views of every enabled bus.
func (b *Buses) Snapshot() []BusView {
	b.mu.Lock()
	defer b.mu.Unlock()

	var views []BusView
	for k := range b.buses {
		for i := range b.buses[k] {
			s := &b.buses[k][i]
			if !s.enabled {
				continue
			}

			var addrs []uint8
			for a := range s.devices {
				addrs = append(addrs, a)
			}

			views = append(views, BusView{
				Kind:       BusKind(k).String(),
				Index:      i,
				Pins:       append([]uint8(nil), s.pins...),
				Enabled:    s.enabled,
				Locked:     s.locked,
				NeverReset: s.neverReset,
				Config:     s.config,
				Devices:    addrs,
			})
		}
	}

	return views
}
