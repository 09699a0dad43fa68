// Package dma turns one-shot hardware memory transfers into awaitable
// operations. Each channel couples a waker slot with the controller's
// per-channel status flags; the interrupt handler only wakes the waiting
// task, and the task's poll decides success or failure by re-reading the
// flags (arm-then-check).
package dma

import (
	"context"
	"errors"

	"asynchal/hal"
)

// Direction selects which side of the transfer is the peripheral register.
type Direction uint8

const (
	// PeripheralToMemory reads from a fixed peripheral register into memory.
	PeripheralToMemory Direction = iota
	// MemoryToPeripheral writes memory out to a peripheral register.
	MemoryToPeripheral
)

// Width is the word width of one side of a transfer.
type Width uint8

const (
	Width8 Width = iota
	Width16
	Width32
)

// ErrInvalidWidth is returned by DecodeWidth for a reserved bit pattern.
var ErrInvalidWidth = errors.New("dma: invalid width bit pattern")

// ErrTransfer is the typed error a completion future resolves to when the
// channel's error flag is set (bus error, overrun/underrun).
var ErrTransfer = errors.New("dma: transfer error")

// DecodeWidth maps the raw 2-bit register field to a Width. The hardware
// reserves 0b11; decoding it fails loudly instead of yielding a bogus width.
func DecodeWidth(bits uint8) (Width, error) {
	switch bits {
	case 0b00:
		return Width8, nil
	case 0b01:
		return Width16, nil
	case 0b10:
		return Width32, nil
	}
	return 0, ErrInvalidWidth
}

// Bytes returns the width in bytes.
func (w Width) Bytes() int {
	switch w {
	case Width8:
		return 1
	case Width16:
		return 2
	case Width32:
		return 4
	}
	panic("dma: invalid width")
}

// Flags are the sticky per-channel status flags.
type Flags uint8

const (
	// FlagComplete is set when the transfer count reaches zero.
	FlagComplete Flags = 1 << iota
	// FlagHalfComplete is set at the transfer midpoint. It is reported but
	// does not complete a one-shot transfer.
	FlagHalfComplete
	// FlagError is set on a bus error; the channel is disabled by hardware.
	FlagError
)

const allFlags = FlagComplete | FlagHalfComplete | FlagError

// ChannelConfig programs a channel's address, count and control state.
// The fixed side of the transfer (normally the peripheral register) keeps a
// constant address; the other side increments unless a repeated variant
// cleared its increment bit.
type ChannelConfig struct {
	Direction       Direction
	PeripheralAddr  uintptr
	MemoryAddr      uintptr
	PeripheralWidth Width
	MemoryWidth     Width
	IncrementMemory bool
	Circular        bool
	Count           uint16
}

// Controller is the abstract DMA register block that core code programs.
// Platform wiring (or a test double) implements it over the real peripheral.
type Controller interface {
	// Enable clock-gates the DMA block on. Idempotent.
	Enable()
	// NumChannels returns the number of channels the block provides.
	NumChannels() int
	// Configure programs a disabled channel. The channel must be started
	// with EnableChannel afterwards.
	Configure(ch uint8, cfg ChannelConfig)
	// EnableChannel starts the configured transfer and unmasks the
	// channel's completion and error interrupts.
	EnableChannel(ch uint8)
	// DisableChannel stops the channel immediately.
	DisableChannel(ch uint8)
	// Flags reads the channel's sticky status flags.
	Flags(ch uint8) Flags
	// ClearFlags clears the given status flags.
	ClearFlags(ch uint8, f Flags)
	// AckInterrupt clears the channel's pending interrupt cause without
	// touching the sticky status flags, so the handler does not retrigger
	// while the status stays observable for the poll side.
	AckInterrupt(ch uint8)
}

// Channel binds one hardware channel to its interrupt line and waker slot.
// A channel is a single-consumer resource: at most one transfer may be in
// flight, and at most one task may await it.
type Channel struct {
	ctrl Controller
	num  uint8
	line *hal.Line
	slot hal.WakerSlot
}

// NewChannel claims channel num of the controller, serviced by the given
// interrupt line. Target wiring must arrange for ServiceInterrupt to be
// called from that line's handler.
func NewChannel(ctrl Controller, num uint8, line *hal.Line) *Channel {
	if int(num) >= ctrl.NumChannels() {
		panic("dma: channel number out of range")
	}
	if line == nil {
		panic("dma: nil interrupt line")
	}
	return &Channel{ctrl: ctrl, num: num, line: line}
}

// ServiceInterrupt runs in the channel's interrupt handler. It does not
// decide success or error; it acknowledges the interrupt cause and wakes the
// waiting task, whose next poll re-reads the sticky status flags.
func (c *Channel) ServiceInterrupt() {
	if c.ctrl.Flags(c.num)&FlagError != 0 {
		hal.Warn("dma: channel " + hal.Itoa(int(c.num)) + " error")
	}
	c.ctrl.AckInterrupt(c.num)
	c.slot.Signal()
}

// Read starts a peripheral-to-memory transfer of count words from the
// memory-mapped register at periphAddr into the buffer at memAddr, which
// increments. The caller must not reuse the buffer until the returned
// transfer completes or the channel is disabled with Abort.
func (c *Channel) Read(periphAddr, memAddr uintptr, pw, mw Width, count uint16) *Transfer {
	return c.start(ChannelConfig{
		Direction:       PeripheralToMemory,
		PeripheralAddr:  periphAddr,
		MemoryAddr:      memAddr,
		PeripheralWidth: pw,
		MemoryWidth:     mw,
		IncrementMemory: true,
		Count:           count,
	})
}

// ReadRepeated is Read with a fixed memory address: every word read from the
// peripheral lands on the same destination (draining a register).
func (c *Channel) ReadRepeated(periphAddr, memAddr uintptr, pw, mw Width, count uint16) *Transfer {
	return c.start(ChannelConfig{
		Direction:       PeripheralToMemory,
		PeripheralAddr:  periphAddr,
		MemoryAddr:      memAddr,
		PeripheralWidth: pw,
		MemoryWidth:     mw,
		IncrementMemory: false,
		Count:           count,
	})
}

// Write starts a memory-to-peripheral transfer of count words from the
// buffer at memAddr, which increments, to the memory-mapped register at
// periphAddr. The same buffer-reuse contract as Read applies.
func (c *Channel) Write(memAddr, periphAddr uintptr, mw, pw Width, count uint16) *Transfer {
	return c.start(ChannelConfig{
		Direction:       MemoryToPeripheral,
		PeripheralAddr:  periphAddr,
		MemoryAddr:      memAddr,
		PeripheralWidth: pw,
		MemoryWidth:     mw,
		IncrementMemory: true,
		Count:           count,
	})
}

// WriteRepeated is Write with a fixed memory address: the same word is sent
// count times (filling a FIFO with a constant).
func (c *Channel) WriteRepeated(memAddr, periphAddr uintptr, mw, pw Width, count uint16) *Transfer {
	return c.start(ChannelConfig{
		Direction:       MemoryToPeripheral,
		PeripheralAddr:  periphAddr,
		MemoryAddr:      memAddr,
		PeripheralWidth: pw,
		MemoryWidth:     mw,
		IncrementMemory: false,
		Count:           count,
	})
}

func (c *Channel) start(cfg ChannelConfig) *Transfer {
	c.ctrl.Enable()
	c.line.With(func() {
		c.slot.Clear()
		c.ctrl.ClearFlags(c.num, allFlags)
		c.ctrl.Configure(c.num, cfg)
		c.ctrl.EnableChannel(c.num)
	})
	return &Transfer{ch: c}
}

// Transfer is a pending DMA operation.
type Transfer struct {
	ch *Channel
}

// Poll checks the channel status under the channel's critical section.
// Complete resolves to (true, nil) and error to (true, ErrTransfer), both
// clearing the channel's flags; otherwise w is parked on the channel's waker
// slot and Poll returns (false, nil).
func (t *Transfer) Poll(w *hal.Waker) (done bool, err error) {
	c := t.ch
	c.line.With(func() {
		f := c.ctrl.Flags(c.num)
		switch {
		case f&FlagComplete != 0:
			c.ctrl.ClearFlags(c.num, allFlags)
			done = true
		case f&FlagError != 0:
			c.ctrl.ClearFlags(c.num, allFlags)
			done, err = true, ErrTransfer
		default:
			c.slot.Register(w)
		}
	})
	return done, err
}

// Wait blocks until the transfer completes or ctx is cancelled. Cancelling
// the wait does not stop the hardware: the buffer must not be reused until
// completion is observed or the channel is disabled with Abort.
func (t *Transfer) Wait(ctx context.Context) error {
	w := hal.NewWaker()
	for {
		done, err := t.Poll(w)
		if done {
			return err
		}
		select {
		case <-w.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Abort synchronously disables the channel and clears its flags, after which
// the transfer's buffer may be reused.
func (t *Transfer) Abort() {
	c := t.ch
	c.line.With(func() {
		c.ctrl.DisableChannel(c.num)
		c.ctrl.ClearFlags(c.num, allFlags)
		c.slot.Clear()
	})
}
