//go:build rp2040

package rp2040

import (
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"device/rp"

	"asynchal/hal"
	"asynchal/timedriver"
)

// RP2040 Timer peripheral memory map. The timer is a 64-bit microsecond
// counter with four 32-bit alarm comparators that match on the low word.
const (
	timerBase     = 0x40054000
	timerALARM0   = timerBase + 0x10
	timerARMED    = timerBase + 0x20
	timerTIMERAWH = timerBase + 0x24
	timerTIMERAWL = timerBase + 0x28
	timerINTR     = timerBase + 0x34
	timerINTE     = timerBase + 0x38
	timerINTF     = timerBase + 0x3C
)

var (
	timerAlarm0 = (*volatile.Register32)(unsafe.Pointer(uintptr(timerALARM0)))
	timerArmed  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerARMED)))
	timerRawH   = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRawL   = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
	timerIntr   = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTR)))
	timerInte   = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTE)))
	timerIntf   = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTF)))
)

// ClockFreq is the timer tick rate. The RP2040 timer counts microseconds.
const ClockFreq = 1_000_000

// Uptime reads the full 64-bit microsecond counter. The high word is read
// before and after the low word; a change means the low word wrapped during
// the read and the whole read is retried.
func Uptime() uint64 {
	for {
		high1 := timerRawH.Get()
		low := timerRawL.Get()
		high2 := timerRawH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// timerRTC exposes ALARM0 and the raw low word as a 32-bit counter with a
// compare interrupt. The RP2040 timer has no overflow interrupt; with the
// comparator idle, ALARM0 is parked at the top of the counter range so the
// driver still gets one interrupt per low-word wrap to keep its overflow
// count current.
type timerRTC struct{}

const wrapSentinel = 0xFFFF_FFFF

func (timerRTC) Counter() uint32 { return timerRawL.Get() }

// armAlarm0 points the comparator at v. The counter keeps running while the
// alarm is written, and ALARM0 matches on exact equality: a target the
// counter has already passed would not fire until the low word wraps. When
// the re-read shows the target behind the counter, the interrupt is forced
// through INTF instead.
func armAlarm0(v uint32) {
	timerArmed.Set(1 << 0) // disarm before rewriting
	timerAlarm0.Set(v)
	timerInte.SetBits(1 << 0)
	if timerRawL.Get() >= v {
		timerIntf.SetBits(1 << 0)
	}
}

func (timerRTC) SetCompare(v uint32) { armAlarm0(v) }

func (timerRTC) DisableCompare() { armAlarm0(wrapSentinel) }

func (timerRTC) TakeFlags() timedriver.RTCFlags {
	timerIntr.Set(1 << 0) // write-1-clear
	timerIntf.ClearBits(1 << 0)
	if timerAlarm0.Get() == wrapSentinel {
		return timedriver.RTCOverflow
	}
	return timedriver.RTCCompare
}

var timeDriver *timedriver.RTCDriver

func handleTimerAlarm(interrupt.Interrupt) {
	timeDriver.OnInterrupt()
}

// TimeDriver wires ALARM0 to a monotonic time driver and returns it. The
// first call claims the alarm; later calls return the same driver.
func TimeDriver() *timedriver.RTCDriver {
	if timeDriver != nil {
		return timeDriver
	}
	intr := interrupt.New(rp.IRQ_TIMER_IRQ_0, handleTimerAlarm)
	line := hal.LineForInterrupt(intr)
	timeDriver = timedriver.NewRTCDriver(timerRTC{}, line)
	timerRTC{}.DisableCompare()
	line.Enable()
	return timeDriver
}
