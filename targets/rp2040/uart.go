//go:build rp2040

package rp2040

import (
	"machine"
	"runtime/interrupt"

	"device/rp"

	"asynchal/hal"
	"asynchal/uart"
)

// UARTConfig selects pins and line speed for a PL011 instance.
type UARTConfig struct {
	Baud uint32
	TX   machine.Pin
	RX   machine.Pin
}

// DefaultUARTConfig returns 115200 baud on the board's default UART pins.
func DefaultUARTConfig() UARTConfig {
	return UARTConfig{
		Baud: 115200,
		TX:   machine.UART_TX_PIN,
		RX:   machine.UART_RX_PIN,
	}
}

// pl011 adapts a PL011 register block to the buffered driver's hardware
// interface. The hardware FIFOs are left disabled: the transmit interrupt
// then asserts as soon as the single holding register empties, and the
// software rings provide the buffering.
type pl011 struct {
	bus *rp.UART0_Type
}

func (p *pl011) Status() uart.Status {
	var st uart.Status
	fr := p.bus.UARTFR.Get()
	if fr&rp.UART0_UARTFR_RXFE == 0 {
		st |= uart.StatusRxNotEmpty
	}
	if fr&rp.UART0_UARTFR_TXFF == 0 {
		st |= uart.StatusTxEmpty
	}
	rsr := p.bus.UARTRSR.Get()
	if rsr&rp.UART0_UARTRSR_OE != 0 {
		st |= uart.StatusOverrun
	}
	// A break shows up as a framing error alongside BE.
	if rsr&(rp.UART0_UARTRSR_FE|rp.UART0_UARTRSR_BE) != 0 {
		st |= uart.StatusFraming
	}
	if rsr&rp.UART0_UARTRSR_PE != 0 {
		st |= uart.StatusParity
	}
	return st
}

func (p *pl011) ReadData() byte {
	return byte(p.bus.UARTDR.Get())
}

func (p *pl011) WriteData(b byte) {
	p.bus.UARTDR.Set(uint32(b))
}

func (p *pl011) SetTxInterrupt(on bool) {
	if on {
		p.bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_TXIM)
	} else {
		p.bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_TXIM)
		p.bus.UARTICR.Set(rp.UART0_UARTICR_TXIC)
	}
}

func (p *pl011) TxInterruptEnabled() bool {
	return p.bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_TXIM)
}

func (p *pl011) SetRxInterrupt(on bool) {
	if on {
		p.bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_RXIM)
	} else {
		p.bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_RXIM)
	}
}

func (p *pl011) ClearErrors() {
	p.bus.UARTRSR.Set(0)
	p.bus.UARTICR.Set(rp.UART0_UARTICR_OEIC | rp.UART0_UARTICR_BEIC |
		rp.UART0_UARTICR_PEIC | rp.UART0_UARTICR_FEIC)
}

// ack clears the level interrupt causes after the driver serviced them.
func (p *pl011) ack() {
	p.bus.UARTICR.Set(rp.UART0_UARTICR_RXIC | rp.UART0_UARTICR_TXIC)
}

// setBaudRate programs the integer and fractional divisors. PL011 latches
// them on the next LCR_H write.
func (p *pl011) setBaudRate(br uint32) {
	div := 8 * machine.CPUFrequency() / br

	ibrd := div >> 7
	var fbrd uint32
	switch {
	case ibrd == 0:
		ibrd = 1
	case ibrd >= 65535:
		ibrd = 65535
	default:
		fbrd = ((div & 0x7f) + 1) / 2
	}

	p.bus.UARTIBRD.Set(ibrd)
	p.bus.UARTFBRD.Set(fbrd)
	p.bus.UARTLCR_H.Set(p.bus.UARTLCR_H.Get())
}

// reset pulses the peripheral reset for the selected PL011.
func (p *pl011) reset() {
	var resetVal uint32
	switch p.bus {
	case rp.UART0:
		resetVal = rp.RESETS_RESET_UART0
	case rp.UART1:
		resetVal = rp.RESETS_RESET_UART1
	}
	rp.RESETS.RESET.SetBits(resetVal)
	rp.RESETS.RESET.ClearBits(resetVal)
	for !rp.RESETS.RESET_DONE.HasBits(resetVal) {
	}
}

// configure resets the PL011 and brings it up at the requested baud,
// 8N1, FIFOs disabled, all interrupts masked and cleared.
func (p *pl011) configure(cfg UARTConfig) {
	p.reset()

	p.bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	cfg.TX.Configure(machine.PinConfig{Mode: machine.PinUART})
	cfg.RX.Configure(machine.PinConfig{Mode: machine.PinUART})

	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	p.setBaudRate(cfg.Baud)

	// 8 data bits, 1 stop bit, no parity, FEN off.
	p.bus.UARTLCR_H.Set(3 << rp.UART0_UARTLCR_H_WLEN_Pos)

	p.bus.UARTICR.Set(0x7FF)
	for !p.bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		_ = p.bus.UARTDR.Get()
	}
	p.bus.UARTRSR.Set(0)

	p.bus.UARTCR.Set(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)
}

var (
	uart0   *uart.Buffered
	uart0hw = &pl011{bus: rp.UART0}
)

func handleUART0(interrupt.Interrupt) {
	// A byte can arrive between the line being enabled and the driver
	// pointer being published.
	if uart0 != nil {
		uart0.ServiceInterrupt()
	}
	uart0hw.ack()
}

// UART0 configures the first PL011 and returns its buffered driver. The
// first call claims the peripheral; later calls return the same driver and
// ignore cfg.
func UART0(cfg UARTConfig) *uart.Buffered {
	if uart0 != nil {
		return uart0
	}
	uart0hw.configure(cfg)
	intr := interrupt.New(rp.IRQ_UART0_IRQ, handleUART0)
	intr.SetPriority(0x80)
	line := hal.LineForInterrupt(intr)
	uart0 = uart.NewBuffered(uart0hw, line)
	return uart0
}
