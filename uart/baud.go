package uart

import "asynchal/hal"

// Oversample selects the receiver oversampling mode the baud divider is
// computed for.
type Oversample uint8

const (
	// Oversample16 samples each bit sixteen times (the reset default).
	Oversample16 Oversample = iota
	// Oversample8 halves the sampling to double the reachable baud rate.
	Oversample8
)

// CalcBaudDiv computes the BAUD register value for the given bus clock and
// baud rate: a 12-bit integer divider in bits 4..15 and a 4-bit fractional
// divider in bits 0..3.
func CalcBaudDiv(pclk hal.Hertz, baud uint32, os Oversample) uint16 {
	var div uint32
	switch os {
	case Oversample16:
		div = (uint32(pclk) + baud/2) / baud
	case Oversample8:
		div = ((uint32(pclk) + baud/2) << 1) / baud
	default:
		panic("uart: invalid oversample mode")
	}
	intdiv := div & 0xfff0
	fradiv := div & 0xf
	return uint16(intdiv) | uint16(fradiv)
}
