package timedriver

import "asynchal/hal"

// RTCFlags are the pending interrupt causes of the hardware counter.
type RTCFlags uint8

const (
	// RTCOverflow is raised when the 32-bit counter wraps to zero.
	RTCOverflow RTCFlags = 1 << iota
	// RTCCompare is raised when the counter reaches the comparator value.
	RTCCompare
)

// RTC abstracts the hardware real-time counter register block: a free-running
// 32-bit up-counter, a comparator that raises an interrupt on match, and an
// overflow interrupt that is always enabled.
type RTC interface {
	// Counter reads the live 32-bit counter register.
	Counter() uint32
	// SetCompare programs the comparator and enables the compare interrupt.
	SetCompare(v uint32)
	// DisableCompare masks the compare interrupt.
	DisableCompare()
	// TakeFlags returns and clears the pending interrupt causes.
	TakeFlags() RTCFlags
}

// RTCDriver synthesizes a 64-bit monotonic tick count from the narrow
// hardware counter plus explicit overflow tracking: the high word is the
// number of counter overflows since boot, the low word the live register.
type RTCDriver struct {
	hw   RTC
	line *hal.Line

	// period and lastCounter are guarded by the line's critical section.
	period      uint32
	lastCounter uint32

	table alarmTable
}

// NewRTCDriver builds a driver over the given counter hardware, serviced by
// the given interrupt line. Target wiring must arrange for OnInterrupt to be
// called from that line's handler for both overflow and compare causes.
func NewRTCDriver(hw RTC, line *hal.Line) *RTCDriver {
	if line == nil {
		panic("timedriver: nil interrupt line")
	}
	d := &RTCDriver{hw: hw, line: line}
	d.table.init()
	return d
}

// Now re-derives the composite 64-bit value from the overflow count and the
// live counter register inside one critical section, so it stays monotonic
// even when called concurrently with an overflow interrupt.
func (d *RTCDriver) Now() Tick {
	var t Tick
	d.line.With(func() {
		t = d.now()
	})
	return t
}

// now must run under the line's critical section. A counter value below the
// last observed one means the hardware wrapped before the overflow interrupt
// ran; the overflow is accounted for here, and the interrupt handler's own
// call through this path then sees a non-decreasing counter and does not
// double-count.
func (d *RTCDriver) now() Tick {
	c := d.hw.Counter()
	if c < d.lastCounter {
		d.period++
	}
	d.lastCounter = c
	return Tick(d.period)<<32 | Tick(c)
}

// AllocateAlarm reserves an alarm slot, or fails once the table is full.
func (d *RTCDriver) AllocateAlarm() (AlarmHandle, error) {
	return d.table.allocate()
}

// SetAlarmCallback stores the callback and context for a handle.
func (d *RTCDriver) SetAlarmCallback(h AlarmHandle, fn func(ctx any), ctx any) {
	d.line.With(func() {
		d.table.setCallback(h, fn, ctx)
	})
}

// SetAlarm arms the alarm and reprograms the comparator so the hardware
// produces at least one interrupt at or before the nearest pending deadline.
// It returns false when the timestamp has already passed, including when it
// passes while the comparator is being written; the caller must then treat
// the alarm as elapsed.
//
// SetAlarm takes the line's critical section and must not be called from the
// interrupt handler or an alarm callback; those use SetAlarmFromHandler.
func (d *RTCDriver) SetAlarm(h AlarmHandle, t Tick) bool {
	armed := false
	d.line.With(func() {
		armed = d.armAndReprogram(h, t)
	})
	return armed
}

// SetAlarmFromHandler is SetAlarm for code already running in the clock
// interrupt's handler, alarm callbacks in particular, where the critical
// section is held and must not be re-entered.
func (d *RTCDriver) SetAlarmFromHandler(h AlarmHandle, t Tick) bool {
	return d.armAndReprogram(h, t)
}

// armAndReprogram must run under the line's critical section. A deadline
// that slips behind the counter while the comparator is written is reported
// as already elapsed rather than firing the callback from the caller's
// context.
func (d *RTCDriver) armAndReprogram(h AlarmHandle, t Tick) bool {
	if !d.table.arm(h, t, d.now()) {
		return false
	}
	if !d.reprogram() {
		d.table.disarm(h)
		d.reprogram()
		return false
	}
	return true
}

// OnInterrupt services overflow and compare causes: it recomputes the time
// (folding in a wrap, if one happened), fires due alarms, and reprograms the
// comparator from the minimum of the remaining active deadlines. A deadline
// that slips behind the counter during reprogramming is fired on the spot
// instead of waiting a full wrap for the comparator to come around again.
// OnInterrupt must be called from the line's interrupt handler.
func (d *RTCDriver) OnInterrupt() {
	_ = d.hw.TakeFlags()
	for {
		d.table.fireDue(d.now())
		if d.reprogram() {
			return
		}
	}
}

// reprogram must run under the line's critical section. Deadlines in a later
// period are left to the always-enabled overflow interrupt, which calls back
// into OnInterrupt and re-evaluates.
//
// The counter keeps running while the comparator is written; an exact-match
// comparator that the counter has already passed will not fire until the
// next wrap. reprogram re-reads the clock after arming and returns false
// when the armed deadline has already passed, leaving the caller to fire or
// reject it.
func (d *RTCDriver) reprogram() bool {
	next := d.table.nextDeadline()
	if next == InactiveDeadline || uint32(next>>32) > d.period {
		d.hw.DisableCompare()
		return true
	}
	d.hw.SetCompare(uint32(next))
	return d.now() < next
}
