// Package uart provides interrupt-driven buffered serial I/O: a pair of
// fixed-capacity ring buffers decouple byte-at-a-time interrupt servicing
// from bulk reads and writes, with waker slots bridging hardware events to
// waiting tasks.
package uart

import "errors"

// ErrBufferEmpty is returned by non-blocking reads when no data is buffered.
var ErrBufferEmpty = errors.New("uart: buffer empty")

// Parity defines the parity setting used for communication.
type Parity uint8

const (
	// ParityNone disables parity generation and checking.
	ParityNone Parity = iota
	// ParityEven sets even parity.
	ParityEven
	// ParityOdd sets odd parity.
	ParityOdd
)

// Status is the set of USART status flags the core inspects. Bit-exact
// register layouts are peripheral-specific; platform wiring maps its status
// register onto these bits.
type Status uint16

const (
	// StatusRxNotEmpty: the receive data register holds a byte.
	StatusRxNotEmpty Status = 1 << iota
	// StatusTxEmpty: the transmit data register can accept a byte.
	StatusTxEmpty
	// StatusOverrun: a received byte was lost before being read.
	StatusOverrun
	// StatusNoise: noise was detected on the line.
	StatusNoise
	// StatusFraming: a framing error (bad stop bit) was detected.
	StatusFraming
	// StatusParity: a parity error was detected.
	StatusParity
)

const statusLineErrors = StatusOverrun | StatusNoise | StatusFraming | StatusParity

// Hardware is the abstract USART register block the buffered driver runs
// over. Platform wiring (or a test double) implements it over the real
// peripheral registers.
type Hardware interface {
	// Status reads the status register.
	Status() Status
	// ReadData reads the receive data register, clearing StatusRxNotEmpty.
	ReadData() byte
	// WriteData writes the transmit data register, clearing StatusTxEmpty
	// until the byte moves out.
	WriteData(b byte)
	// SetTxInterrupt enables or disables the transmit-register-empty
	// interrupt.
	SetTxInterrupt(on bool)
	// TxInterruptEnabled reports whether the TX interrupt is enabled.
	TxInterruptEnabled() bool
	// SetRxInterrupt enables or disables the receive-not-empty interrupt.
	SetRxInterrupt(on bool)
	// ClearErrors clears the sticky line-error flags.
	ClearErrors()
}
