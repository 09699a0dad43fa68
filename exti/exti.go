// Package exti provides edge-triggered waits on external interrupt lines.
//
// A Bank covers the 16 EXTI lines of a GD32/STM32-class part. Waiting for an
// edge arms the line, parks a waker and blocks until the line's interrupt
// fires. The handler disables the line before waking the waiter, so a wait
// is complete exactly when the line is no longer enabled.
package exti

import (
	"context"

	"asynchal/hal"
)

// NumLines is the number of external interrupt lines in a bank.
const NumLines = 16

// Hardware is the register-level interface to an EXTI bank.
type Hardware interface {
	// EnableLine unmasks line n with the given edge sensitivity.
	EnableLine(n int, rising, falling bool)
	// DisableLine masks line n.
	DisableLine(n int)
	// LineEnabled reports whether line n is unmasked.
	LineEnabled(n int) bool
	// ClearPending clears a latched edge on line n.
	ClearPending(n int)
}

// Bank multiplexes edge waits over the lines of one EXTI controller.
// At most one task may wait on a given line at a time.
type Bank struct {
	hw     Hardware
	line   *hal.Line
	wakers [NumLines]hal.WakerSlot
}

// NewBank wires an EXTI register block to its interrupt line.
func NewBank(hw Hardware, line *hal.Line) *Bank {
	if hw == nil || line == nil {
		panic("exti: nil hardware or interrupt line")
	}
	b := &Bank{hw: hw, line: line}
	line.Enable()
	return b
}

func checkLine(n int) {
	if n < 0 || n >= NumLines {
		panic("exti: line number out of range")
	}
}

// ServiceLine runs in the bank's interrupt handler for a pending line n.
// It masks the line so the edge fires the waiter exactly once.
func (b *Bank) ServiceLine(n int) {
	checkLine(n)
	b.hw.DisableLine(n)
	b.hw.ClearPending(n)
	b.wakers[n].Signal()
}

// arm configures the edge sensitivity and unmasks line n. A stale latched
// edge is cleared first so only edges after the call can complete the wait.
func (b *Bank) arm(n int, rising, falling bool) {
	b.line.With(func() {
		b.hw.ClearPending(n)
		b.hw.EnableLine(n, rising, falling)
	})
}

// PollEdge reports whether the armed edge on line n has occurred. While the
// line is still enabled it parks w and returns false. The registration
// happens before the enabled check, so an edge racing with the poll is
// never missed.
func (b *Bank) PollEdge(n int, w *hal.Waker) bool {
	checkLine(n)
	done := false
	b.line.With(func() {
		b.wakers[n].Register(w)
		if !b.hw.LineEnabled(n) {
			b.wakers[n].Clear()
			done = true
		}
	})
	return done
}

func (b *Bank) wait(ctx context.Context, n int, rising, falling bool) error {
	checkLine(n)
	b.arm(n, rising, falling)
	w := hal.NewWaker()
	for {
		if b.PollEdge(n, w) {
			return nil
		}
		select {
		case <-w.Done():
		case <-ctx.Done():
			b.line.With(func() {
				b.hw.DisableLine(n)
				b.wakers[n].Clear()
			})
			return ctx.Err()
		}
	}
}

// WaitForRisingEdge blocks until a rising edge occurs on line n.
func (b *Bank) WaitForRisingEdge(ctx context.Context, n int) error {
	return b.wait(ctx, n, true, false)
}

// WaitForFallingEdge blocks until a falling edge occurs on line n.
func (b *Bank) WaitForFallingEdge(ctx context.Context, n int) error {
	return b.wait(ctx, n, false, true)
}

// WaitForAnyEdge blocks until an edge of either polarity occurs on line n.
func (b *Bank) WaitForAnyEdge(ctx context.Context, n int) error {
	return b.wait(ctx, n, true, true)
}
