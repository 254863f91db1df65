package bridge

import (
	"sync"
)

// DefaultCapacity is the slot count used when a table is built without an
// explicit capacity.
const DefaultCapacity = 32

// A TimeTeller can report the current converted tick. The virtual clock
// implements it; tables only need this narrow view.
type TimeTeller interface {
	Ticks() uint64
}

// TableStats is a read-only snapshot of the table counters.
type TableStats struct {
	Issued    uint64 `json:"issued"`
	Pending   uint64 `json:"pending"`
	Completed uint64 `json:"completed"`
	Errored   uint64 `json:"errored"`
	QueueFull uint64 `json:"queue_full"`
	Abandoned uint64 `json:"abandoned"`
	Retracted uint64 `json:"retracted"`
	Reaped    uint64 `json:"reaped"`
}

// A Table is the fixed-capacity correlation table for in-flight requests.
// Allocation scans for the first idle slot and fails closed when none is
// found. Ids are monotonically increasing and are never reissued for a
// different request within a run, so a late host completion can never alias
// a newer request that happens to reuse the same slot index.
//
// The table is a context object, not a package-level singleton; independent
// tables can coexist, which tests rely on.
type Table struct {
	HookableBase

	mu     sync.Mutex
	slots  []Slot
	nextID uint32
	stats  TableStats
	tt     TimeTeller
}

// HookPosAllocate triggers after a slot is allocated. Item is the SlotView.
var HookPosAllocate = &HookPos{Name: "Slot Allocate"}

// HookPosComplete triggers after the host completes a slot.
var HookPosComplete = &HookPos{Name: "Slot Complete"}

// HookPosError triggers after the host fails a slot.
var HookPosError = &HookPos{Name: "Slot Error"}

// HookPosFree triggers after a slot returns to Idle.
var HookPosFree = &HookPos{Name: "Slot Free"}

// HookPosReap triggers after the reaper reclaims an abandoned slot.
var HookPosReap = &HookPos{Name: "Slot Reap"}

// NewTable creates a table with the given capacity. The TimeTeller stamps
// issue and completion ticks; it may be nil, in which case stamps stay zero.
func NewTable(capacity int, tt TimeTeller) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	t := &Table{
		slots:  make([]Slot, capacity),
		nextID: 1,
		tt:     tt,
	}

	return t
}

// Capacity returns the fixed slot count.
func (t *Table) Capacity() int {
	return len(t.slots)
}

// Init resets every slot to Idle, zeroes the counters and restarts the id
// generator at 1.
func (t *Table) Init() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		t.slots[i].reset()
	}
	t.nextID = 1
	t.stats = TableStats{}
}

func (t *Table) now() uint64 {
	if t.tt == nil {
		return 0
	}
	return t.tt.Ticks()
}

// Allocate claims the first idle slot for an operation, stages the params
// and moves the slot to Pending. It returns ErrQueueFull when every slot is
// live and ErrPayloadOverflow when the params cannot fit the bounded wire
// payload.
func (t *Table) Allocate(kind OperationKind, params Params) (uint32, error) {
	if err := paramsMustFit(params); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		s := &t.slots[i]
		if s.status != StatusIdle {
			continue
		}

		id := t.nextID
		t.nextID++

		*s = Slot{
			id:       id,
			kind:     kind,
			status:   StatusPending,
			params:   params,
			issuedAt: t.now(),
		}

		t.stats.Issued++
		t.stats.Pending++

		t.invokeLocked(HookPosAllocate, s.view())

		return id, nil
	}

	t.stats.QueueFull++

	return 0, ErrQueueFull
}

// invokeLocked fires a hook without holding the table lock across user code.
func (t *Table) invokeLocked(pos *HookPos, item interface{}) {
	t.mu.Unlock()
	t.InvokeHook(HookCtx{Domain: t, Pos: pos, Item: item})
	t.mu.Lock()
}

func (t *Table) findLocked(id uint32) *Slot {
	if id == 0 {
		return nil
	}

	for i := range t.slots {
		if t.slots[i].id == id && t.slots[i].status != StatusIdle {
			return &t.slots[i]
		}
	}

	return nil
}

// Get returns a copy of the live slot with the given id, or ErrInvalidHandle
// if the id is zero, stale or unknown.
func (t *Table) Get(id uint32) (Slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.findLocked(id)
	if s == nil {
		return Slot{}, ErrInvalidHandle
	}

	return *s, nil
}

// Complete writes the host's response and moves the slot to Complete. Only
// the host side calls this; it is the Pending→Complete edge of the split
// ownership contract.
func (t *Table) Complete(id uint32, response Response) error {
	if err := responseMustFit(response); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.findLocked(id)
	if s == nil {
		return ErrInvalidHandle
	}

	if s.status == StatusPending {
		t.stats.Pending--
	}
	s.response = response
	s.status = StatusComplete
	s.doneAt = t.now()
	t.stats.Completed++

	t.invokeLocked(HookPosComplete, s.view())

	return nil
}

// Error records the host's error code and moves the slot to Error.
func (t *Table) Error(id uint32, code int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.findLocked(id)
	if s == nil {
		return ErrInvalidHandle
	}

	if s.status == StatusPending {
		t.stats.Pending--
	}
	s.errCode = code
	s.status = StatusError
	s.doneAt = t.now()
	t.stats.Errored++

	t.invokeLocked(HookPosError, s.view())

	return nil
}

// Free returns the slot to Idle from any live state. Freeing a slot that is
// still Pending counts as an abandonment.
func (t *Table) Free(id uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.findLocked(id)
	if s == nil {
		return ErrInvalidHandle
	}

	if s.status == StatusPending {
		t.stats.Pending--
		if !s.abandoned {
			t.stats.Abandoned++
		}
	}

	view := s.view()
	s.reset()

	t.invokeLocked(HookPosFree, view)

	return nil
}

// MarkAbandoned tags a Pending slot whose waiter timed out. The slot stays
// Pending and allocated; the reaper frees it once the grace period passes.
func (t *Table) MarkAbandoned(id uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.findLocked(id)
	if s == nil {
		return ErrInvalidHandle
	}

	if !s.abandoned {
		s.abandoned = true
		s.abandonedAt = t.now()
		t.stats.Abandoned++
	}

	return nil
}

// ReapAbandoned frees every abandoned slot whose grace period has elapsed
// and returns how many were reclaimed. Slots the host has since completed
// are reclaimed immediately; nobody is left to observe their result.
func (t *Table) ReapAbandoned(now, grace uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	reaped := 0
	for i := range t.slots {
		s := &t.slots[i]
		if s.status == StatusIdle || !s.abandoned {
			continue
		}

		if !s.status.Terminal() && now-s.abandonedAt < grace {
			continue
		}

		if s.status == StatusPending {
			t.stats.Pending--
		}

		view := s.view()
		s.reset()
		t.stats.Reaped++
		reaped++

		t.invokeLocked(HookPosReap, view)
	}

	return reaped
}

// NoteRetracted counts a retract message sent to the host.
func (t *Table) NoteRetracted() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Retracted++
}

// Stats returns a snapshot of the counters.
func (t *Table) Stats() TableStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stats
}

// PendingIDs returns the ids of all Pending slots in slot order. Deferred
// completers use it to service outstanding work during a yield pass.
func (t *Table) PendingIDs() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []uint32
	for i := range t.slots {
		if t.slots[i].status == StatusPending {
			ids = append(ids, t.slots[i].id)
		}
	}

	return ids
}

// Snapshot returns diagnostic views of all live slots.
func (t *Table) Snapshot() []SlotView {
	t.mu.Lock()
	defer t.mu.Unlock()

	var views []SlotView
	for i := range t.slots {
		if t.slots[i].status != StatusIdle {
			views = append(views, t.slots[i].view())
		}
	}

	return views
}
