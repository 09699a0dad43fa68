package timedriver

import (
	"sync/atomic"

	"asynchal/hal"
)

// CountingDriver is the free-running-counter variant: a 64-bit tick count
// advanced by a periodic interrupt (a SysTick-style timer programmed to the
// tick rate). Reading the time is a single atomic load.
type CountingDriver struct {
	ticks atomic.Uint64
	line  *hal.Line
	table alarmTable
}

// NewCountingDriver builds a driver serviced by the given interrupt line.
// Target wiring must arrange for OnTick to be called from that line's
// periodic interrupt handler.
func NewCountingDriver(line *hal.Line) *CountingDriver {
	if line == nil {
		panic("timedriver: nil interrupt line")
	}
	d := &CountingDriver{line: line}
	d.table.init()
	return d
}

// Now returns the current monotonic tick count.
func (d *CountingDriver) Now() Tick {
	return Tick(d.ticks.Load())
}

// AllocateAlarm reserves an alarm slot, or fails once the table is full.
func (d *CountingDriver) AllocateAlarm() (AlarmHandle, error) {
	return d.table.allocate()
}

// SetAlarmCallback stores the callback and context for a handle.
func (d *CountingDriver) SetAlarmCallback(h AlarmHandle, fn func(ctx any), ctx any) {
	d.line.With(func() {
		d.table.setCallback(h, fn, ctx)
	})
}

// SetAlarm arms the alarm for the given timestamp. It returns false when the
// timestamp has already passed; the caller must then treat the alarm as
// elapsed. No hardware comparator exists in this variant: the periodic tick
// interrupt checks deadlines every tick, which already guarantees an
// interrupt at or before the nearest deadline.
//
// SetAlarm takes the line's critical section and must not be called from the
// tick handler or an alarm callback; those use SetAlarmFromHandler.
func (d *CountingDriver) SetAlarm(h AlarmHandle, t Tick) bool {
	armed := false
	d.line.With(func() {
		armed = d.table.arm(h, t, d.Now())
	})
	return armed
}

// SetAlarmFromHandler is SetAlarm for code already running in the tick
// interrupt's handler, alarm callbacks in particular, where the critical
// section is held and must not be re-entered.
func (d *CountingDriver) SetAlarmFromHandler(h AlarmHandle, t Tick) bool {
	return d.table.arm(h, t, d.Now())
}

// OnTick advances the clock by one tick and fires due alarms. It must be
// called from the periodic timer interrupt handler, which runs with the
// line's critical section implicitly held.
func (d *CountingDriver) OnTick() {
	now := Tick(d.ticks.Add(1))
	d.table.fireDue(now)
}
