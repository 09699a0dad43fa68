//go:build tinygo

package hal

import "runtime/interrupt"

// Line is one interrupt line, wrapping a runtime interrupt on TinyGo targets.
// Target wiring creates the interrupt.Interrupt with the hardware handler and
// hands it to LineForInterrupt.
type Line struct {
	intr interrupt.Interrupt
}

// LineForInterrupt wraps a configured runtime interrupt.
func LineForInterrupt(intr interrupt.Interrupt) *Line {
	return &Line{intr: intr}
}

// Enable unmasks the interrupt in the NVIC.
func (l *Line) Enable() {
	l.intr.Enable()
}

// SetPriority sets the interrupt priority.
func (l *Line) SetPriority(p uint8) {
	l.intr.SetPriority(p)
}

// With runs fn with interrupts disabled. The TinyGo runtime only offers a
// global mask, which is a superset of masking this one line.
func (l *Line) With(fn func()) {
	state := interrupt.Disable()
	fn()
	interrupt.Restore(state)
}
