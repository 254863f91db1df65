package bridge

// Status is the lifecycle state of a request slot.
type Status uint32

const (
	// StatusIdle marks a slot that holds no request and can be allocated.
	StatusIdle Status = iota

	// StatusPending marks a request that has been handed to the host and
	// not yet answered.
	StatusPending

	// StatusComplete marks a request the host answered with a response.
	StatusComplete

	// StatusError marks a request the host answered with an error code.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusPending:
		return "Pending"
	case StatusComplete:
		return "Complete"
	case StatusError:
		return "Error"
	}
	return "Unknown"
}

// Terminal reports whether the status will not change without a Free.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// A Slot is one in-flight request. Ownership of its fields is split: the
// caller side writes the id, kind and params when the slot is allocated; the
// host side writes the response, error code and the terminal status. Neither
// side touches the other's fields, which is what makes the table safe
// without per-slot locking under a single logical thread of control.
type Slot struct {
	id     uint32
	kind   OperationKind
	status Status

	params   Params
	response Response
	errCode  int32

	issuedAt    uint64
	doneAt      uint64
	abandoned   bool
	abandonedAt uint64
}

// ID returns the correlation id. Zero never identifies a live slot.
func (s *Slot) ID() uint32 { return s.id }

// Kind returns the operation kind staged in the slot.
func (s *Slot) Kind() OperationKind { return s.kind }

// Status returns the lifecycle state.
func (s *Slot) Status() Status { return s.status }

// Params returns the caller-owned request payload.
func (s *Slot) Params() Params { return s.params }

// Response returns the host-owned reply payload. Nil until the slot is
// Complete.
func (s *Slot) Response() Response { return s.response }

// ErrCode returns the host-owned error code. Zero until the slot is Error.
func (s *Slot) ErrCode() int32 { return s.errCode }

// IssuedAt returns the converted tick at which the slot was allocated.
func (s *Slot) IssuedAt() uint64 { return s.issuedAt }

// DoneAt returns the converted tick at which the slot reached a terminal
// status, or zero if it has not.
func (s *Slot) DoneAt() uint64 { return s.doneAt }

// Abandoned reports whether a waiter timed out on this slot and walked away
// without freeing it.
func (s *Slot) Abandoned() bool { return s.abandoned }

func (s *Slot) reset() {
	*s = Slot{}
}

// SlotView is a copyable snapshot of a slot for diagnostics.
type SlotView struct {
	ID        uint32        `json:"id"`
	Kind      OperationKind `json:"kind"`
	KindName  string        `json:"kind_name"`
	Status    string        `json:"status"`
	ErrCode   int32         `json:"err_code"`
	IssuedAt  uint64        `json:"issued_at"`
	DoneAt    uint64        `json:"done_at"`
	Abandoned bool          `json:"abandoned"`
}

func (s *Slot) view() SlotView {
	return SlotView{
		ID:        s.id,
		Kind:      s.kind,
		KindName:  s.kind.String(),
		Status:    s.status.String(),
		ErrCode:   s.errCode,
		IssuedAt:  s.issuedAt,
		DoneAt:    s.doneAt,
		Abandoned: s.abandoned,
	}
}
