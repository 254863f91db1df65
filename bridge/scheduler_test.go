package bridge

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Scheduler", func() {
	var (
		mockCtrl  *gomock.Controller
		clock     *Clock
		table     *Table
		completer *MockCompleter
		scheduler *Scheduler
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		clock = NewClock(ModeManual)
		table = NewTable(4, clock)
		completer = NewMockCompleter(mockCtrl)
		scheduler = NewScheduler(clock, table, completer)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should hand issued requests to the completer", func() {
		params := GPIOSetParams{Pin: 13, Value: true}
		completer.EXPECT().
			Send(uint32(1), OpGPIOSet, params).
			Return(nil)

		id, err := scheduler.Issue(params)
		Expect(err).ToNot(HaveOccurred())
		Expect(id).To(Equal(uint32(1)))

		slot, err := table.Get(id)
		Expect(err).ToNot(HaveOccurred())
		Expect(slot.Status()).To(Equal(StatusPending))
	})

	It("should reclaim the slot when the completer rejects a send", func() {
		params := GPIOGetParams{Pin: 2}
		completer.EXPECT().
			Send(gomock.Any(), OpGPIOGet, params).
			Return(errors.New("host gone"))

		_, err := scheduler.Issue(params)
		Expect(err).To(HaveOccurred())
		Expect(table.Stats().Pending).To(Equal(uint64(0)))
	})

	It("should surface queue exhaustion instead of dropping requests", func() {
		completer.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil).
			Times(table.Capacity())

		for i := 0; i < table.Capacity(); i++ {
			_, err := scheduler.Issue(GPIOGetParams{Pin: uint8(i)})
			Expect(err).ToNot(HaveOccurred())
		}

		_, err := scheduler.Issue(GPIOGetParams{Pin: 60})
		Expect(err).To(MatchError(ErrQueueFull))
	})

	It("should run services on the paced yield passes", func() {
		runs := 0
		scheduler.RegisterService(ServiceFunc(func(now uint64) {
			runs++
		}))
		scheduler.SetCallsPerPass(4)

		for i := 0; i < 8; i++ {
			scheduler.Yield()
		}

		Expect(runs).To(Equal(2))
	})

	It("should fire the yield hook once per pass", func() {
		passes := 0
		scheduler.AcceptHook(HookFunc(func(ctx HookCtx) {
			if ctx.Pos == HookPosYield {
				passes++
			}
		}))
		scheduler.SetCallsPerPass(2)

		for i := 0; i < 6; i++ {
			scheduler.Yield()
		}

		Expect(passes).To(Equal(3))
	})

	It("should wait until a service pass completes the request", func() {
		params := AnalogReadParams{Pin: 3}
		completer.EXPECT().
			Send(gomock.Any(), OpAnalogRead, params).
			Return(nil)

		// Stand-in for a deferred host: complete on the second pass.
		passes := 0
		scheduler.RegisterService(ServiceFunc(func(now uint64) {
			passes++
			if passes == 2 {
				_ = table.Complete(1, AnalogValueResponse{Value: 512})
			}
		}))

		id, err := scheduler.Issue(params)
		Expect(err).ToNot(HaveOccurred())

		rsp, err := scheduler.Wait(id)
		Expect(err).ToNot(HaveOccurred())
		Expect(rsp).To(Equal(AnalogValueResponse{Value: 512}))
		Expect(passes).To(Equal(2))
	})

	It("should convert a host error into a HostError", func() {
		completer.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil)

		scheduler.RegisterService(ServiceFunc(func(now uint64) {
			_ = table.Error(1, 19)
		}))

		id, _ := scheduler.Issue(I2CProbeParams{Address: 0x70})

		_, err := scheduler.Wait(id)
		he, ok := AsHostError(err)
		Expect(ok).To(BeTrue())
		Expect(he.Code).To(Equal(int32(19)))
	})

	It("should time out, retract and leave the slot for the reaper", func() {
		completer.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil)
		completer.EXPECT().Retract(uint32(1))

		// The host never answers; virtual time passes on every pass.
		scheduler.RegisterService(ServiceFunc(func(now uint64) {
			_ = clock.Advance(10 * TickDivisor)
		}))
		scheduler.RegisterService(NewReaper(table, 100))

		id, _ := scheduler.Issue(GPIOGetParams{Pin: 1})

		_, err := scheduler.WaitFor(id, 25)
		Expect(err).To(MatchError(ErrTimeout))

		// Abandoned, not freed.
		slot, err := table.Get(id)
		Expect(err).ToNot(HaveOccurred())
		Expect(slot.Abandoned()).To(BeTrue())
		Expect(table.Stats().Retracted).To(Equal(uint64(1)))

		// Enough passes for the grace period to elapse.
		for i := 0; i < 12; i++ {
			scheduler.Yield()
		}

		_, err = table.Get(id)
		Expect(err).To(MatchError(ErrInvalidHandle))
		Expect(table.Stats().Reaped).To(Equal(uint64(1)))
	})

	It("should treat bounded waits as unbounded while the tick is disabled", func() {
		completer.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil)

		clock.DisableTick()
		passes := 0
		scheduler.RegisterService(ServiceFunc(func(now uint64) {
			passes++
			clock.EnableTick()
			_ = clock.Advance(1000 * TickDivisor)
			clock.DisableTick()
			if passes == 5 {
				_ = table.Complete(1, GPIOValueResponse{Value: true})
			}
		}))

		id, _ := scheduler.Issue(GPIOGetParams{Pin: 1})

		// Far more virtual time passes than the timeout allows, but the
		// disabled tick suppresses the deadline.
		rsp, err := scheduler.WaitFor(id, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(rsp).To(Equal(GPIOValueResponse{Value: true}))
	})

	It("should free the slot after a successful Call", func() {
		completer.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil)

		scheduler.RegisterService(ServiceFunc(func(now uint64) {
			_ = table.Complete(1, TimeResponse{Milliseconds: 42})
		}))

		rsp, err := scheduler.Call(TimeMonotonicParams{})
		Expect(err).ToNot(HaveOccurred())
		Expect(rsp).To(Equal(TimeResponse{Milliseconds: 42}))
		Expect(table.Stats().Pending).To(Equal(uint64(0)))
		Expect(table.PendingIDs()).To(BeEmpty())
	})
})
