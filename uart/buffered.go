package uart

import (
	"context"
	"runtime"

	"asynchal/hal"
)

// Buffered is an interrupt-driven serial port. Received bytes flow from the
// interrupt handler into the RX ring; transmitted bytes flow from tasks into
// the TX ring and are drained one per transmit-ready interrupt. Both
// directions are backpressure-aware: reads pend on an empty RX ring, writes
// pend on a full TX ring.
//
// Invariants:
//   - The interrupt handler is the only writer of the RX ring and the only
//     reader of the TX ring.
//   - The TX-ready interrupt is enabled only while the TX ring is non-empty,
//     so an idle port raises no interrupt storm.
type Buffered struct {
	hw   Hardware
	line *hal.Line

	rx hal.RingBuffer
	tx hal.RingBuffer

	rxWaker hal.WakerSlot
	txWaker hal.WakerSlot
}

// NewBuffered builds a buffered driver over the given hardware, serviced by
// the given interrupt line. Target wiring must arrange for ServiceInterrupt
// to be called from that line's handler. The receive interrupt is enabled
// immediately; the transmit interrupt stays off until there is data to send.
func NewBuffered(hw Hardware, line *hal.Line) *Buffered {
	if line == nil {
		panic("uart: nil interrupt line")
	}
	b := &Buffered{hw: hw, line: line}
	hw.SetTxInterrupt(false)
	hw.SetRxInterrupt(true)
	line.Enable()
	return b
}

// ServiceInterrupt runs in the port's interrupt handler. Line errors are
// reported as warnings and the byte stream continues; data integrity across
// a line error is not guaranteed here and is left to higher protocols.
func (b *Buffered) ServiceInterrupt() {
	st := b.hw.Status()

	if st&StatusOverrun != 0 {
		hal.Warn("uart: overrun error")
	}
	if st&StatusNoise != 0 {
		hal.Warn("uart: noise error")
	}
	if st&StatusFraming != 0 {
		hal.Warn("uart: frame error")
	}
	if st&StatusParity != 0 {
		hal.Warn("uart: parity error")
	}
	if st&statusLineErrors != 0 {
		b.hw.ClearErrors()
	}

	if st&StatusRxNotEmpty != 0 {
		v := b.hw.ReadData()
		if !b.rx.Put(v) {
			hal.Warn("uart: rx buffer full, byte dropped")
		}
		b.rxWaker.Signal()
	}

	if st&StatusTxEmpty != 0 && b.hw.TxInterruptEnabled() {
		if v, ok := b.tx.Get(); ok {
			b.hw.WriteData(v)
		} else {
			// Nothing left to send: stop the TX-ready interrupt from
			// retriggering until a writer enables it again.
			b.hw.SetTxInterrupt(false)
		}
		b.txWaker.Signal()
	}
}

// PollRead copies up to len(p) buffered bytes into p without blocking. When
// at least one byte was available it returns (n, true); when the RX ring is
// empty it parks w on the RX waker slot and returns (0, false). The check
// and the registration share one critical section, so a byte arriving
// in between cannot be missed.
func (b *Buffered) PollRead(p []byte, w *hal.Waker) (int, bool) {
	if len(p) == 0 {
		return 0, true
	}
	var n int
	ready := false
	b.line.With(func() {
		n = b.rx.Pop(p)
		if n > 0 {
			ready = true
		} else {
			b.rxWaker.Register(w)
		}
	})
	return n, ready
}

// Read blocks until at least one byte is available, then returns up to
// len(p) bytes. It never returns 0, nil for a non-empty p.
func (b *Buffered) Read(ctx context.Context, p []byte) (int, error) {
	w := hal.NewWaker()
	for {
		n, ok := b.PollRead(p, w)
		if ok {
			return n, nil
		}
		select {
		case <-w.Done():
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// ReadByte returns a single buffered byte without blocking, or
// ErrBufferEmpty when none is available.
func (b *Buffered) ReadByte() (byte, error) {
	v, ok := b.rx.Get()
	if !ok {
		return 0, ErrBufferEmpty
	}
	return v, nil
}

// Buffered returns the number of bytes waiting in the RX ring.
func (b *Buffered) Buffered() int {
	return b.rx.Used()
}

// PollWrite pushes as much of p as fits into the TX ring without blocking
// and enables the TX-ready interrupt. When at least one byte was accepted it
// returns (n, true); when the ring is full it parks w on the TX waker slot
// and returns (0, false).
func (b *Buffered) PollWrite(p []byte, w *hal.Waker) (int, bool) {
	if len(p) == 0 {
		return 0, true
	}
	var n int
	ready := false
	b.line.With(func() {
		n = b.tx.Push(p)
		if n > 0 {
			b.hw.SetTxInterrupt(true)
			ready = true
		} else {
			b.txWaker.Register(w)
		}
	})
	return n, ready
}

// Write blocks until every byte of p has been accepted into the TX ring.
// Write does not wait for the bytes to reach the wire; use Flush for that.
func (b *Buffered) Write(ctx context.Context, p []byte) (int, error) {
	w := hal.NewWaker()
	sent := 0
	for sent < len(p) {
		n, ok := b.PollWrite(p[sent:], w)
		sent += n
		if ok {
			continue
		}
		select {
		case <-w.Done():
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
	return sent, nil
}

// PollFlush reports whether the TX ring has fully drained, parking w on the
// TX waker slot otherwise.
func (b *Buffered) PollFlush(w *hal.Waker) bool {
	done := false
	b.line.With(func() {
		if b.tx.Used() == 0 {
			done = true
		} else {
			b.txWaker.Register(w)
		}
	})
	return done
}

// Flush blocks until every queued byte has been handed to the hardware.
func (b *Buffered) Flush(ctx context.Context) error {
	w := hal.NewWaker()
	for {
		if b.PollFlush(w) {
			return nil
		}
		select {
		case <-w.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TxFree returns the remaining space in the TX ring in bytes.
func (b *Buffered) TxFree() int {
	return b.tx.Free()
}

// WriteBlocking spins until every byte of p is accepted into the TX ring.
// It is the simple API surface for code that runs outside the executor.
func (b *Buffered) WriteBlocking(p []byte) int {
	sent := 0
	for sent < len(p) {
		var n int
		b.line.With(func() {
			n = b.tx.Push(p[sent:])
			if n > 0 {
				b.hw.SetTxInterrupt(true)
			}
		})
		if n == 0 {
			runtime.Gosched()
			continue
		}
		sent += n
	}
	return sent
}

// FlushBlocking spins until the TX ring is empty.
func (b *Buffered) FlushBlocking() {
	for b.tx.Used() > 0 {
		runtime.Gosched()
	}
}

// ReadByteBlocking spins until a byte is available.
func (b *Buffered) ReadByteBlocking() byte {
	for {
		if v, ok := b.rx.Get(); ok {
			return v
		}
		runtime.Gosched()
	}
}
