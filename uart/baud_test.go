package uart

import (
	"testing"

	"asynchal/hal"
)

func TestCalcBaudDiv(t *testing.T) {
	cases := []struct {
		name   string
		pclk   hal.Hertz
		baud   uint32
		os     Oversample
		intdiv uint16
		fradiv uint16
	}{
		{"115200 at 32MHz 16x", hal.MHz(32), 115200, Oversample16, 17, 6},
		{"115200 at 32MHz 8x", hal.MHz(32), 115200, Oversample8, 34, 12},
		{"900 at 32MHz 16x", hal.MHz(32), 900, Oversample16, 2222, 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			div := CalcBaudDiv(c.pclk, c.baud, c.os)
			intdiv := div >> 4
			fradiv := div & 0xf
			if intdiv != c.intdiv || fradiv != c.fradiv {
				t.Errorf("Expected intdiv=%d fradiv=%d, got intdiv=%d fradiv=%d",
					c.intdiv, c.fradiv, intdiv, fradiv)
			}
		})
	}
}
