package bridge

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Clock", func() {
	It("should advance by raw ticks in manual mode", func() {
		c := NewClock(ModeManual)

		Expect(c.Advance(50)).To(Succeed())
		Expect(c.Raw()).To(Equal(uint64(50)))

		Expect(c.Advance(50 * TickDivisor)).To(Succeed())
		ticks, subticks := c.RawTicks()
		Expect(ticks).To(Equal(uint64(51)))
		Expect(subticks).To(Equal(uint32(18)))
	})

	It("should convert raw ticks at the fixed divisor", func() {
		c := NewClock(ModeManual)

		Expect(c.Advance(50 * TickDivisor)).To(Succeed())
		Expect(c.Ticks()).To(Equal(uint64(50)))
	})

	It("should reject manual advance in real-time mode", func() {
		c := NewClock(ModeRealTime)

		Expect(c.Advance(1)).To(MatchError(ErrClockMode))
		Expect(c.Raw()).To(Equal(uint64(0)))
	})

	It("should advance one quantum per heartbeat in real-time mode", func() {
		c := NewClock(ModeRealTime)

		for i := 0; i < 3; i++ {
			Expect(c.TickFromHeartbeat()).To(Succeed())
		}

		Expect(c.Raw()).To(Equal(uint64(3 * TickDivisor)))
		Expect(c.Ticks()).To(Equal(uint64(3)))
	})

	It("should reject heartbeats in manual mode", func() {
		c := NewClock(ModeManual)

		Expect(c.TickFromHeartbeat()).To(MatchError(ErrClockMode))
	})

	It("should keep the counter across mode switches", func() {
		c := NewClock(ModeManual)
		_ = c.Advance(100 * TickDivisor)

		c.SetMode(ModeRealTime)
		Expect(c.Ticks()).To(Equal(uint64(100)))

		_ = c.TickFromHeartbeat()
		Expect(c.Ticks()).To(Equal(uint64(101)))

		c.SetMode(ModeManual)
		_ = c.Advance(TickDivisor)
		Expect(c.Ticks()).To(Equal(uint64(102)))
	})

	It("should convert ticks to monotonic milliseconds", func() {
		c := NewClock(ModeManual)

		_ = c.AdvanceMS(250)
		Expect(c.MonotonicMS()).To(Equal(uint64(250)))
	})

	It("should gate timeout evaluation with the tick switch", func() {
		c := NewClock(ModeManual)
		Expect(c.TickEnabled()).To(BeTrue())

		c.DisableTick()
		Expect(c.TickEnabled()).To(BeFalse())

		c.EnableTick()
		Expect(c.TickEnabled()).To(BeTrue())
	})

	It("should count yields and heartbeats for diagnostics", func() {
		c := NewClock(ModeRealTime)
		c.noteYield()
		c.noteYield()
		_ = c.TickFromHeartbeat()

		stats := c.Stats()
		Expect(stats.Yields).To(Equal(uint64(2)))
		Expect(stats.Heartbeats).To(Equal(uint64(1)))
		Expect(stats.Mode).To(Equal("RealTime"))
	})
})
