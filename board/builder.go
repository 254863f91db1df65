package board

import (
	"github.com/rs/xid"

	"github.com/johnnohj/hostbridge/bridge"
	"github.com/johnnohj/hostbridge/datarecording"
	"github.com/johnnohj/hostbridge/host"
	"github.com/johnnohj/hostbridge/monitoring"
	"github.com/johnnohj/hostbridge/periph"
)

// Builder can be used to build a board.
type Builder struct {
	capacity     int
	manualClock  bool
	deferred     bool
	reaperGrace  uint64
	completer    bridge.Completer
	monitorOn    bool
	monitorPort  int
	recorderPath string
}

// MakeBuilder creates a builder with the default configuration: a 32-slot
// table, a real-time clock, an immediate loopback completer, no monitor and
// no recorder.
func MakeBuilder() Builder {
	return Builder{
		capacity: bridge.DefaultCapacity,
	}
}

// WithCapacity sets the slot table capacity.
func (b Builder) WithCapacity(n int) Builder {
	b.capacity = n
	return b
}

// WithManualClock starts the clock in manual mode, for step-by-step
// debugging and tests.
func (b Builder) WithManualClock() Builder {
	b.manualClock = true
	return b
}

// WithDeferredCompleter makes the loopback completer queue requests until
// the next yield service pass instead of fulfilling them inline.
func (b Builder) WithDeferredCompleter() Builder {
	b.deferred = true
	return b
}

// WithCompleter binds an external completer instead of the loopback one.
func (b Builder) WithCompleter(c bridge.Completer) Builder {
	b.completer = c
	return b
}

// WithReaperGrace sets the reaper grace period in converted ticks.
func (b Builder) WithReaperGrace(ticks uint64) Builder {
	b.reaperGrace = ticks
	return b
}

// WithMonitoring enables the diagnostics server on the given port. Port 0
// picks a free one.
func (b Builder) WithMonitoring(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port
	return b
}

// WithRecorderPath enables request-trace recording into the SQLite database
// at the given path.
func (b Builder) WithRecorderPath(path string) Builder {
	b.recorderPath = path
	return b
}

// RequestTrace is one recorded terminal request.
type RequestTrace struct {
	RequestID  uint32
	Kind       string
	Status     string
	ErrCode    int32
	IssuedAt   uint64
	FinishedAt uint64
}

const traceTable = "request_trace"

// Build assembles the board.
func (b Builder) Build() *Board {
	brd := &Board{
		id: xid.New().String(),
	}

	mode := bridge.ModeRealTime
	if b.manualClock {
		mode = bridge.ModeManual
	}
	brd.clock = bridge.NewClock(mode)
	brd.table = bridge.NewTable(b.capacity, brd.clock)

	brd.pins = periph.NewPins()
	brd.analog = periph.NewAnalog()
	brd.buses = periph.NewBuses()

	var loopback *host.Loopback
	if b.completer != nil {
		brd.completer = b.completer
	} else {
		loopback = host.NewLoopback(
			brd.table, brd.clock, brd.pins, brd.analog, brd.buses)
		loopback.SetDeferred(b.deferred)
		brd.completer = loopback
	}

	brd.scheduler = bridge.NewScheduler(brd.clock, brd.table, brd.completer)
	if loopback != nil {
		brd.scheduler.RegisterService(loopback)
	}
	brd.scheduler.RegisterService(bridge.NewReaper(brd.table, b.reaperGrace))

	if b.recorderPath != "" {
		brd.recorder = datarecording.NewDataRecorder(b.recorderPath + "_" + brd.id)
		brd.recorder.CreateTable(traceTable, RequestTrace{})
		brd.table.AcceptHook(&traceHook{recorder: brd.recorder})
	}

	if b.monitorOn {
		brd.monitor = monitoring.NewMonitor().WithPortNumber(b.monitorPort)
		brd.monitor.RegisterClock(brd.clock)
		brd.monitor.RegisterTable(brd.table)
		brd.monitor.RegisterPins(brd.pins)
		brd.monitor.RegisterAnalog(brd.analog)
		brd.monitor.RegisterBuses(brd.buses)
		brd.monitor.StartServer()
	}

	return brd
}

// traceHook records terminal requests into the data recorder.
type traceHook struct {
	recorder datarecording.DataRecorder
}

func (h *traceHook) Func(ctx bridge.HookCtx) {
	if ctx.Pos != bridge.HookPosComplete && ctx.Pos != bridge.HookPosError {
		return
	}

	view, ok := ctx.Item.(bridge.SlotView)
	if !ok {
		return
	}

	h.recorder.InsertData(traceTable, RequestTrace{
		RequestID:  view.ID,
		Kind:       view.KindName,
		Status:     view.Status,
		ErrCode:    view.ErrCode,
		IssuedAt:   view.IssuedAt,
		FinishedAt: view.DoneAt,
	})
}
