package bridge

// DefaultReaperGrace is the reaper grace period in converted ticks. At the
// canonical 1024 Hz tick this is about one second of virtual time.
const DefaultReaperGrace = 1024

// A Reaper is the backstop for abandoned slots. A waiter that times out
// leaves its slot Pending; the retract message asks the completer to drop
// the work, and the reaper frees whatever is still held once the grace
// period passes, restoring table capacity.
type Reaper struct {
	table *Table
	grace uint64
}

// NewReaper creates a reaper over a table. A zero grace selects
// DefaultReaperGrace.
func NewReaper(table *Table, grace uint64) *Reaper {
	if grace == 0 {
		grace = DefaultReaperGrace
	}

	return &Reaper{
		table: table,
		grace: grace,
	}
}

// RunService sweeps the table once. Reaper satisfies Service and is meant
// to be registered on the scheduler.
func (r *Reaper) RunService(now uint64) {
	r.table.ReapAbandoned(now, r.grace)
}
