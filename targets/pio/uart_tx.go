//go:build rp2040

// Package pio drives a software UART transmitter on a PIO state machine.
// The state machine shifts the frame out with hardware timing, so the output
// is jitter-free regardless of CPU load, and the 4-deep TX FIFO decouples
// the writer from the bit clock.
package pio

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// 8N1 transmit program. The FIFO word carries the whole frame: a zero start
// bit in bit 0, eight data bits, and a one stop bit in bit 9. OSR shifts
// right, so the start bit leaves first.
//
// Program flow:
//  1. Pull a frame from the FIFO (stalls with the line idle high).
//  2. Preload X with the bit count minus one.
//  3. Shift one bit to the TX pin, 8 PIO cycles per bit.
//
// buildTxProgram assembles the program using AssemblerV0.
func buildTxProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),        // 0: pull block
		asm.Set(rp2pio.SetDestX, 9).Encode(),  // 1: set x, 9 (10 bits)
		// bitloop:
		asm.Out(rp2pio.OutDestPins, 1).Delay(6).Encode(), // 2: out pins, 1 [6]
		asm.Jmp(2, rp2pio.JmpXNZeroDec).Encode(),         // 3: jmp x--, 2
		// .wrap
	}
}

const txPIOOrigin = 0 // Load at offset 0 for correct jump addresses

// cycles per bit: out [6] plus the loop jmp
const cyclesPerBit = 8

// TxUART is a transmit-only UART rendered by one PIO state machine.
type TxUART struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	txPin  machine.Pin
	offset uint8
}

// NewTxUART claims state machine smNum of PIO pioNum and starts an 8N1
// transmitter on txPin at the given baud rate.
func NewTxUART(pioNum, smNum uint8, txPin machine.Pin, baud uint32) (*TxUART, error) {
	if baud == 0 {
		return nil, errors.New("pio: zero baud rate")
	}

	var pioHW *rp2pio.PIO
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
	} else {
		pioHW = rp2pio.PIO1
	}

	u := &TxUART{
		pio:   pioHW,
		sm:    pioHW.StateMachine(smNum),
		txPin: txPin,
	}

	u.sm.TryClaim()

	program := buildTxProgram()
	offset, err := u.pio.AddProgram(program, txPIOOrigin)
	if err != nil {
		return nil, err
	}
	u.offset = offset

	u.txPin.Configure(machine.PinConfig{Mode: u.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(u.txPin, 1)

	// Shift right, autopull disabled (the program pulls explicitly).
	cfg.SetOutShift(true, false, 32)

	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// One bit every cyclesPerBit PIO cycles.
	div := machine.CPUFrequency() / (cyclesPerBit * baud)
	frac := (machine.CPUFrequency() % (cyclesPerBit * baud) * 256) / (cyclesPerBit * baud)
	cfg.SetClkDivIntFrac(uint16(div), uint8(frac))

	u.sm.Init(offset, cfg)

	// TX is an output idling high (must be set before enabling).
	u.sm.SetPindirsConsecutive(u.txPin, 1, true)
	u.sm.SetPinsConsecutive(u.txPin, 1, true)

	u.sm.SetEnabled(true)
	return u, nil
}

// frame builds the 10-bit FIFO word for one byte.
func frame(b byte) uint32 {
	return uint32(b)<<1 | 1<<9
}

// TryWriteByte queues one byte without blocking. It reports false when the
// TX FIFO is full.
func (u *TxUART) TryWriteByte(b byte) bool {
	if u.sm.IsTxFIFOFull() {
		return false
	}
	u.sm.TxPut(frame(b))
	return true
}

// WriteByte queues one byte, spinning while the TX FIFO is full.
func (u *TxUART) WriteByte(b byte) {
	for u.sm.IsTxFIFOFull() {
		// Busy wait - a FIFO slot frees every 10 bit times.
	}
	u.sm.TxPut(frame(b))
}

// Write queues all of p, blocking on FIFO space. It implements io.Writer.
func (u *TxUART) Write(p []byte) (int, error) {
	for _, b := range p {
		u.WriteByte(b)
	}
	return len(p), nil
}

// Stop halts the state machine, discards queued frames and restarts it with
// the line idle.
func (u *TxUART) Stop() {
	u.sm.SetEnabled(false)
	u.sm.ClearFIFOs()
	u.sm.Restart()
	u.sm.SetPinsConsecutive(u.txPin, 1, true)
	u.sm.SetEnabled(true)
}
