// Package timedriver provides the monotonic time and alarm drivers consumed
// by an executor's timer queue. A driver produces a 64-bit tick count and
// fires registered alarm callbacks from interrupt context when the count
// reaches their deadline.
package timedriver

import (
	"errors"
	"math"
	"sync/atomic"
)

// Tick is an unsigned 64-bit count of elapsed time units since boot. It is
// monotonically non-decreasing and never wraps at any realistic tick rate.
type Tick uint64

// InactiveDeadline marks an alarm slot that must never fire.
const InactiveDeadline Tick = math.MaxUint64

// AlarmHandle is an opaque index into a driver's alarm table. Handles are
// allocated once, typically at task or driver construction, and never freed.
type AlarmHandle uint8

// AlarmCount is the fixed capacity of each driver's alarm table.
const AlarmCount = 4

// ErrNoFreeAlarms is returned once the alarm table is exhausted.
var ErrNoFreeAlarms = errors.New("timedriver: alarm table exhausted")

// Driver is the time-driver interface consumed by an executor.
//
// SetAlarm returns false when the timestamp is already in the past; the
// caller must treat the deadline as elapsed and re-check immediately, since
// time may pass between its own Now call and SetAlarm completing.
//
// Alarm callbacks run in the clock interrupt's handler with the critical
// section already held; code there must not call SetAlarm, which takes the
// section itself. SetAlarmFromHandler is the re-arm entry point for
// callbacks, with the same timestamp contract as SetAlarm.
type Driver interface {
	Now() Tick
	AllocateAlarm() (AlarmHandle, error)
	SetAlarmCallback(h AlarmHandle, fn func(ctx any), ctx any)
	SetAlarm(h AlarmHandle, t Tick) bool
	SetAlarmFromHandler(h AlarmHandle, t Tick) bool
}

// alarmSlot is one deadline/callback pair. Slots are mutated only under the
// clock interrupt's critical section once allocated.
type alarmSlot struct {
	deadline Tick
	callback func(ctx any)
	ctx      any
}

// alarmTable is the fixed pool of alarm slots shared by both driver
// variants. Allocation is lock-free; everything else requires the caller to
// hold the clock interrupt's critical section.
type alarmTable struct {
	count  atomic.Uint32
	alarms [AlarmCount]alarmSlot
}

func (t *alarmTable) init() {
	for i := range t.alarms {
		t.alarms[i].deadline = InactiveDeadline
	}
}

// allocate reserves the next unused slot via compare-and-increment.
func (t *alarmTable) allocate() (AlarmHandle, error) {
	for {
		n := t.count.Load()
		if n >= AlarmCount {
			return 0, ErrNoFreeAlarms
		}
		if t.count.CompareAndSwap(n, n+1) {
			return AlarmHandle(n), nil
		}
	}
}

// slot returns the slot for a handle, failing loudly on a handle that was
// never allocated.
func (t *alarmTable) slot(h AlarmHandle) *alarmSlot {
	if uint32(h) >= t.count.Load() {
		panic("timedriver: use of unallocated alarm handle")
	}
	return &t.alarms[h]
}

func (t *alarmTable) setCallback(h AlarmHandle, fn func(ctx any), ctx any) {
	s := t.slot(h)
	s.callback = fn
	s.ctx = ctx
}

// arm stores the deadline unless it has already passed.
func (t *alarmTable) arm(h AlarmHandle, deadline, now Tick) bool {
	s := t.slot(h)
	if deadline <= now {
		return false
	}
	s.deadline = deadline
	return true
}

// disarm returns a slot to inactive.
func (t *alarmTable) disarm(h AlarmHandle) {
	t.slot(h).deadline = InactiveDeadline
}

// fireDue invokes every due callback. A slot is returned to inactive before
// its callback runs, so a callback that re-arms the same handle does not race
// with itself. Firing order among simultaneously-due alarms is unspecified.
func (t *alarmTable) fireDue(now Tick) {
	n := t.count.Load()
	for i := uint32(0); i < n; i++ {
		s := &t.alarms[i]
		if s.deadline > now {
			continue
		}
		s.deadline = InactiveDeadline
		if s.callback != nil {
			s.callback(s.ctx)
		}
	}
}

// nextDeadline returns the minimum deadline across all armed slots, or
// InactiveDeadline when none are armed.
func (t *alarmTable) nextDeadline() Tick {
	next := InactiveDeadline
	n := t.count.Load()
	for i := uint32(0); i < n; i++ {
		if d := t.alarms[i].deadline; d < next {
			next = d
		}
	}
	return next
}
