package hal

// Hertz is a clock rate. Peripheral wiring passes bus and kernel clock rates
// to driver math (baud dividers, tick scaling) in this unit.
type Hertz uint32

// Hz returns a rate of n cycles per second.
func Hz(n uint32) Hertz {
	return Hertz(n)
}

// KHz returns a rate of n kilohertz.
func KHz(n uint32) Hertz {
	return Hertz(n * 1_000)
}

// MHz returns a rate of n megahertz.
func MHz(n uint32) Hertz {
	return Hertz(n * 1_000_000)
}

func (h Hertz) String() string {
	switch {
	case h < 1_000:
		return Utoa(uint32(h)) + "Hz"
	case h < 1_000_000:
		return Utoa(uint32(h)/1_000) + "kHz"
	default:
		return Utoa(uint32(h)/1_000_000) + "MHz"
	}
}
