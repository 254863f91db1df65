package bridge

import (
	"fmt"
	"sync"
)

// A Completer is the embedding environment that fulfils requests. Send hands
// over an allocated slot; the completer must answer through exactly one call
// to Table.Complete or Table.Error for that id.
//
// The bridge uses the synchronous realization of the contract: a completer
// fulfils every request either inline during Send or during a later yield
// service pass on the same goroutine. BlockingWait is a poll loop around the
// yield hook and never suspends the calling goroutine, so a completer that
// only makes progress on another goroutine without its own synchronization
// is outside the contract.
type Completer interface {
	// Send notifies the completer that a request exists. The params are the
	// caller-owned payload; the completer must not mutate them.
	Send(id uint32, kind OperationKind, params Params) error

	// Retract tells the completer that the waiter timed out and nobody will
	// observe the result. Completers should drop queued work for the id;
	// answering anyway is allowed and is absorbed by the reaper.
	Retract(id uint32)
}

// A Service is a background duty run during yield passes, such as a deferred
// completer pump or the reaper sweep. Services must not block.
type Service interface {
	RunService(now uint64)
}

// ServiceFunc adapts a plain function into a Service.
type ServiceFunc func(now uint64)

// RunService calls f.
func (f ServiceFunc) RunService(now uint64) { f(now) }

// HookPosYield triggers once per yield service pass.
var HookPosYield = &HookPos{Name: "Yield"}

// HookPosRetract triggers after a retract message is sent to the completer.
var HookPosRetract = &HookPos{Name: "Request Retract"}

// A Scheduler owns the cooperative suspension primitive. The interpreter's
// dispatch loop calls Yield unconditionally many times per second; waiting
// callers spin on the same hook. Every chance the completer gets to make
// progress flows through here.
type Scheduler struct {
	HookableBase

	clock     *Clock
	table     *Table
	completer Completer

	mu           sync.Mutex
	services     []Service
	callsPerPass uint32
	callCount    uint32
}

// NewScheduler creates a scheduler over a clock, a table and a completer.
func NewScheduler(clock *Clock, table *Table, completer Completer) *Scheduler {
	return &Scheduler{
		clock:        clock,
		table:        table,
		completer:    completer,
		callsPerPass: 1,
	}
}

// SetCallsPerPass sets how many Yield calls elapse between full service
// passes. The hook itself stays cheap at any setting; only the service work
// is paced.
func (s *Scheduler) SetCallsPerPass(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n == 0 {
		n = 1
	}
	s.callsPerPass = n
}

// RegisterService adds a background duty to the yield pass.
func (s *Scheduler) RegisterService(svc Service) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services = append(s.services, svc)
}

// Yield is the cooperative yield hook. It never blocks: it counts the call,
// and when the pacing interval is reached it runs every registered service
// once and fires the yield hooks. It is safe to call with nothing pending.
func (s *Scheduler) Yield() {
	s.clock.noteYield()

	s.mu.Lock()
	s.callCount++
	if s.callCount < s.callsPerPass {
		s.mu.Unlock()
		return
	}
	s.callCount = 0
	services := make([]Service, len(s.services))
	copy(services, s.services)
	s.mu.Unlock()

	now := s.clock.Ticks()
	for _, svc := range services {
		svc.RunService(now)
	}

	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosYield, Item: now})
}

// Issue allocates a slot, stages the params and hands the request to the
// completer. Allocation failures surface as ErrQueueFull; they are never
// swallowed into a silent no-op.
func (s *Scheduler) Issue(params Params) (uint32, error) {
	kind := params.Kind()

	id, err := s.table.Allocate(kind, params)
	if err != nil {
		return 0, err
	}

	if err := s.completer.Send(id, kind, params); err != nil {
		// The request never reached the host; reclaim the slot so the
		// failure does not leak capacity.
		_ = s.table.Free(id)
		return 0, fmt.Errorf("bridge: send to completer: %w", err)
	}

	return id, nil
}

// Wait blocks, cooperatively, until the slot reaches a terminal status.
// There is no bound; a request the host never answers spins forever unless
// the caller used WaitFor.
func (s *Scheduler) Wait(id uint32) (Response, error) {
	return s.wait(id, 0)
}

// WaitFor is Wait with a timeout in converted ticks. On timeout the slot is
// not freed: it is marked abandoned, a retract message is sent to the
// completer, and the reaper reclaims it after the grace period. When the
// clock's tick is disabled the timeout is not evaluated and the wait is
// unbounded.
func (s *Scheduler) WaitFor(id uint32, timeout uint64) (Response, error) {
	return s.wait(id, timeout)
}

func (s *Scheduler) wait(id uint32, timeout uint64) (Response, error) {
	start := s.clock.Ticks()

	for {
		slot, err := s.table.Get(id)
		if err != nil {
			return nil, err
		}

		switch slot.Status() {
		case StatusComplete:
			return slot.Response(), nil
		case StatusError:
			return nil, &HostError{Code: slot.ErrCode()}
		}

		s.Yield()

		if timeout > 0 && s.clock.TickEnabled() &&
			s.clock.Ticks()-start > timeout {
			_ = s.table.MarkAbandoned(id)
			s.completer.Retract(id)
			s.table.NoteRetracted()
			s.InvokeHook(HookCtx{Domain: s, Pos: HookPosRetract, Item: id})

			return nil, ErrTimeout
		}
	}
}

// Call is the synchronous-looking request path: Issue, Wait, Free. On
// success and on host error the slot is freed before returning; on timeout
// the slot stays allocated for the reaper, matching WaitFor.
func (s *Scheduler) Call(params Params) (Response, error) {
	return s.CallFor(params, 0)
}

// CallFor is Call with a timeout in converted ticks.
func (s *Scheduler) CallFor(params Params, timeout uint64) (Response, error) {
	id, err := s.Issue(params)
	if err != nil {
		return nil, err
	}

	rsp, err := s.wait(id, timeout)
	if err == ErrTimeout {
		return nil, err
	}

	_ = s.table.Free(id)

	return rsp, err
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() *Clock { return s.clock }

// Table returns the scheduler's slot table.
func (s *Scheduler) Table() *Table { return s.table }
