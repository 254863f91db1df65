package bridge

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Table", func() {
	var (
		clock *Clock
		table *Table
	)

	BeforeEach(func() {
		clock = NewClock(ModeManual)
		table = NewTable(4, clock)
	})

	It("should allocate slots with increasing ids starting at 1", func() {
		id1, err := table.Allocate(OpGPIOSet, GPIOSetParams{Pin: 1, Value: true})
		Expect(err).ToNot(HaveOccurred())
		Expect(id1).To(Equal(uint32(1)))

		id2, err := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 2})
		Expect(err).ToNot(HaveOccurred())
		Expect(id2).To(Equal(uint32(2)))

		stats := table.Stats()
		Expect(stats.Issued).To(Equal(uint64(2)))
		Expect(stats.Pending).To(Equal(uint64(2)))
	})

	It("should carry a request through its lifecycle", func() {
		_ = clock.Advance(5 * TickDivisor)

		id, err := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 7})
		Expect(err).ToNot(HaveOccurred())

		slot, err := table.Get(id)
		Expect(err).ToNot(HaveOccurred())
		Expect(slot.Status()).To(Equal(StatusPending))
		Expect(slot.Kind()).To(Equal(OpGPIOGet))
		Expect(slot.IssuedAt()).To(Equal(uint64(5)))

		_ = clock.Advance(3 * TickDivisor)
		err = table.Complete(id, GPIOValueResponse{Value: true})
		Expect(err).ToNot(HaveOccurred())

		slot, err = table.Get(id)
		Expect(err).ToNot(HaveOccurred())
		Expect(slot.Status()).To(Equal(StatusComplete))
		Expect(slot.Response()).To(Equal(GPIOValueResponse{Value: true}))
		Expect(slot.DoneAt()).To(Equal(uint64(8)))

		err = table.Free(id)
		Expect(err).ToNot(HaveOccurred())

		_, err = table.Get(id)
		Expect(err).To(MatchError(ErrInvalidHandle))
	})

	It("should record host errors", func() {
		id, _ := table.Allocate(OpI2CProbe, I2CProbeParams{Address: 0x50})

		err := table.Error(id, 19)
		Expect(err).ToNot(HaveOccurred())

		slot, err := table.Get(id)
		Expect(err).ToNot(HaveOccurred())
		Expect(slot.Status()).To(Equal(StatusError))
		Expect(slot.ErrCode()).To(Equal(int32(19)))
		Expect(table.Stats().Errored).To(Equal(uint64(1)))
	})

	It("should fail closed when every slot is live", func() {
		for i := 0; i < table.Capacity(); i++ {
			_, err := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: uint8(i)})
			Expect(err).ToNot(HaveOccurred())
		}

		_, err := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 60})
		Expect(err).To(MatchError(ErrQueueFull))
		Expect(table.Stats().QueueFull).To(Equal(uint64(1)))

		err = table.Free(1)
		Expect(err).ToNot(HaveOccurred())

		id, err := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 60})
		Expect(err).ToNot(HaveOccurred())
		Expect(id).To(Equal(uint32(5)))
	})

	It("should never let a reused slot index alias an old id", func() {
		id1, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 1})
		_ = table.Complete(id1, GPIOValueResponse{})
		_ = table.Free(id1)

		// The new request lands in the same slot index but gets a
		// fresh id.
		id2, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 2})
		Expect(id2).ToNot(Equal(id1))

		_, err := table.Get(id1)
		Expect(err).To(MatchError(ErrInvalidHandle))

		err = table.Complete(id1, GPIOValueResponse{})
		Expect(err).To(MatchError(ErrInvalidHandle))

		slot, err := table.Get(id2)
		Expect(err).ToNot(HaveOccurred())
		Expect(slot.Status()).To(Equal(StatusPending))
	})

	It("should reject the zero id", func() {
		_, err := table.Get(0)
		Expect(err).To(MatchError(ErrInvalidHandle))
	})

	It("should reject params that exceed the bounded payload", func() {
		_, err := table.Allocate(OpUARTWrite,
			UARTWriteParams{Data: make([]byte, PayloadCap)})
		Expect(err).To(MatchError(ErrPayloadOverflow))
		Expect(table.Stats().Issued).To(Equal(uint64(0)))
	})

	It("should count freeing a pending slot as abandonment", func() {
		id, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 1})

		err := table.Free(id)
		Expect(err).ToNot(HaveOccurred())
		Expect(table.Stats().Abandoned).To(Equal(uint64(1)))
		Expect(table.Stats().Pending).To(Equal(uint64(0)))
	})

	It("should count one abandonment when a marked slot is freed", func() {
		id, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 1})
		_ = table.MarkAbandoned(id)

		// The timed-out caller frees the slot itself before the reaper
		// gets to it; that is still the same abandonment.
		err := table.Free(id)
		Expect(err).ToNot(HaveOccurred())
		Expect(table.Stats().Abandoned).To(Equal(uint64(1)))
	})

	It("should reap abandoned slots only after the grace period", func() {
		id, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 1})
		_ = table.MarkAbandoned(id)

		Expect(table.ReapAbandoned(clock.Ticks()+10, 100)).To(Equal(0))

		_, err := table.Get(id)
		Expect(err).ToNot(HaveOccurred())

		Expect(table.ReapAbandoned(clock.Ticks()+100, 100)).To(Equal(1))

		_, err = table.Get(id)
		Expect(err).To(MatchError(ErrInvalidHandle))
		Expect(table.Stats().Reaped).To(Equal(uint64(1)))
	})

	It("should reap an abandoned slot immediately once it is terminal", func() {
		id, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 1})
		_ = table.MarkAbandoned(id)

		// The host answered after the waiter walked away; nobody will
		// observe the result.
		_ = table.Complete(id, GPIOValueResponse{Value: true})

		Expect(table.ReapAbandoned(clock.Ticks(), 100)).To(Equal(1))
	})

	It("should restart ids and counters on Init", func() {
		_, _ = table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 1})
		_, _ = table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 2})

		table.Init()

		Expect(table.Stats()).To(Equal(TableStats{}))

		id, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 3})
		Expect(id).To(Equal(uint32(1)))
	})

	It("should invoke hooks on lifecycle edges", func() {
		var positions []*HookPos
		table.AcceptHook(HookFunc(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		id, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 1})
		_ = table.Complete(id, GPIOValueResponse{})
		_ = table.Free(id)

		Expect(positions).To(Equal([]*HookPos{
			HookPosAllocate, HookPosComplete, HookPosFree,
		}))
	})

	It("should list pending ids in slot order", func() {
		id1, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 1})
		id2, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 2})
		id3, _ := table.Allocate(OpGPIOGet, GPIOGetParams{Pin: 3})

		_ = table.Complete(id2, GPIOValueResponse{})
		_ = table.Free(id2)

		Expect(table.PendingIDs()).To(Equal([]uint32{id1, id3}))
	})

	It("should snapshot live slots for diagnostics", func() {
		id, _ := table.Allocate(OpGPIOSet, GPIOSetParams{Pin: 9, Value: true})

		views := table.Snapshot()
		Expect(views).To(HaveLen(1))
		Expect(views[0].ID).To(Equal(id))
		Expect(views[0].KindName).To(Equal("GPIOSet"))
		Expect(views[0].Status).To(Equal("Pending"))
	})
})
