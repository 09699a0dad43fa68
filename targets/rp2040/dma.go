//go:build rp2040

package rp2040

import (
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"device/rp"

	"asynchal/dma"
	"asynchal/hal"
)

// NumDMAChannels is the number of DMA channels on the RP2040.
const NumDMAChannels = 12

// TREQUnpaced runs a channel at full speed with no peripheral pacing.
const TREQUnpaced = 0x3f

// dmaChan is the per-channel register window, 0x40 bytes per channel.
type dmaChan struct {
	READ_ADDR            volatile.Register32
	WRITE_ADDR           volatile.Register32
	TRANS_COUNT          volatile.Register32
	CTRL_TRIG            volatile.Register32
	AL1_CTRL             volatile.Register32
	AL1_READ_ADDR        volatile.Register32
	AL1_WRITE_ADDR       volatile.Register32
	AL1_TRANS_COUNT_TRIG volatile.Register32
	AL2_CTRL             volatile.Register32
	AL2_TRANS_COUNT      volatile.Register32
	AL2_READ_ADDR        volatile.Register32
	AL2_WRITE_ADDR_TRIG  volatile.Register32
	AL3_CTRL             volatile.Register32
	AL3_WRITE_ADDR       volatile.Register32
	AL3_TRANS_COUNT      volatile.Register32
	AL3_READ_ADDR_TRIG   volatile.Register32
}

var dmaChans = unsafe.Slice((*dmaChan)(unsafe.Pointer(&rp.DMA.CH0_READ_ADDR)), NumDMAChannels)

const dmaErrorBits = rp.DMA_CH0_CTRL_TRIG_READ_ERROR |
	rp.DMA_CH0_CTRL_TRIG_WRITE_ERROR |
	rp.DMA_CH0_CTRL_TRIG_AHB_ERROR

// dmaController adapts the RP2040 DMA block to the abstract controller.
//
// The RP2040 keeps one interrupt latch per channel, shared between the raw
// (INTR) and masked (INTS0) views, so acknowledging the interrupt would also
// erase the completion evidence the poll side re-reads. pending is a software
// latch: the ack moves the completion bit there before clearing the hardware
// latch. Error state lives in the channel's CTRL register and is sticky on
// its own.
type dmaController struct {
	treq    [NumDMAChannels]uint32
	pending [NumDMAChannels]dma.Flags
}

func (c *dmaController) Enable() {
	if rp.RESETS.RESET_DONE.HasBits(rp.RESETS_RESET_DMA) {
		return
	}
	rp.RESETS.RESET.ClearBits(rp.RESETS_RESET_DMA)
	for !rp.RESETS.RESET_DONE.HasBits(rp.RESETS_RESET_DMA) {
	}
}

func (c *dmaController) NumChannels() int { return NumDMAChannels }

// SetTREQ selects the transfer request signal pacing channel ch. Peripheral
// transfers must set the peripheral's DREQ before starting; the default is
// unpaced.
func (c *dmaController) SetTREQ(ch uint8, treq uint32) {
	c.treq[ch] = treq
}

func (c *dmaController) Configure(ch uint8, cfg dma.ChannelConfig) {
	regs := &dmaChans[ch]

	switch cfg.Direction {
	case dma.PeripheralToMemory:
		regs.READ_ADDR.Set(uint32(cfg.PeripheralAddr))
		regs.WRITE_ADDR.Set(uint32(cfg.MemoryAddr))
	case dma.MemoryToPeripheral:
		regs.READ_ADDR.Set(uint32(cfg.MemoryAddr))
		regs.WRITE_ADDR.Set(uint32(cfg.PeripheralAddr))
	}
	regs.TRANS_COUNT.Set(uint32(cfg.Count))

	treq := c.treq[ch]
	if treq == 0 {
		treq = TREQUnpaced
	}
	// The RP2040 has a single data size per channel; the peripheral width
	// governs. Circular mode has no direct equivalent and is not mapped.
	ctrl := uint32(cfg.PeripheralWidth)<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos |
		treq<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos
	if cfg.Direction == dma.PeripheralToMemory {
		if cfg.IncrementMemory {
			ctrl |= rp.DMA_CH0_CTRL_TRIG_INCR_WRITE
		}
	} else {
		if cfg.IncrementMemory {
			ctrl |= rp.DMA_CH0_CTRL_TRIG_INCR_READ
		}
	}
	regs.AL1_CTRL.Set(ctrl)
}

func (c *dmaController) EnableChannel(ch uint8) {
	rp.DMA.INTE0.SetBits(1 << ch)
	regs := &dmaChans[ch]
	regs.CTRL_TRIG.Set(regs.AL1_CTRL.Get() | rp.DMA_CH0_CTRL_TRIG_EN)
}

func (c *dmaController) DisableChannel(ch uint8) {
	dmaChans[ch].AL1_CTRL.ClearBits(rp.DMA_CH0_CTRL_TRIG_EN)
	rp.DMA.CHAN_ABORT.Set(1 << ch)
	for rp.DMA.CHAN_ABORT.Get()&(1<<ch) != 0 {
	}
}

func (c *dmaController) Flags(ch uint8) dma.Flags {
	f := c.pending[ch]
	if rp.DMA.INTR.Get()&(1<<ch) != 0 {
		f |= dma.FlagComplete
	}
	if dmaChans[ch].CTRL_TRIG.HasBits(dmaErrorBits) {
		f |= dma.FlagError
	}
	return f
}

func (c *dmaController) ClearFlags(ch uint8, f dma.Flags) {
	c.pending[ch] &^= f
	if f&dma.FlagComplete != 0 {
		rp.DMA.INTR.Set(1 << ch) // write-1-clear
	}
	if f&dma.FlagError != 0 {
		dmaChans[ch].CTRL_TRIG.SetBits(dmaErrorBits)
	}
}

func (c *dmaController) AckInterrupt(ch uint8) {
	if rp.DMA.INTS0.Get()&(1<<ch) != 0 {
		if !dmaChans[ch].CTRL_TRIG.HasBits(dmaErrorBits) {
			c.pending[ch] |= dma.FlagComplete
		}
		rp.DMA.INTS0.Set(1 << ch)
	}
}

var (
	dmaCtl      dmaController
	dmaLine     *hal.Line
	dmaChannels [NumDMAChannels]*dma.Channel
)

func handleDMA(interrupt.Interrupt) {
	ints := rp.DMA.INTS0.Get()
	for ch := uint8(0); ch < NumDMAChannels; ch++ {
		if ints&(1<<ch) != 0 && dmaChannels[ch] != nil {
			dmaChannels[ch].ServiceInterrupt()
		}
	}
}

// SetDMATREQ selects the pacing signal for channel n. It must be called
// before starting a peripheral-paced transfer on that channel.
func SetDMATREQ(n uint8, treq uint32) {
	dmaCtl.SetTREQ(n, treq)
}

// DMAChannel claims channel n on the shared DMA interrupt and returns its
// awaitable wrapper. Claiming the same channel twice returns the same
// wrapper.
func DMAChannel(n uint8) *dma.Channel {
	if dmaLine == nil {
		intr := interrupt.New(rp.IRQ_DMA_IRQ_0, handleDMA)
		intr.SetPriority(0xc0)
		dmaLine = hal.LineForInterrupt(intr)
		dmaLine.Enable()
	}
	if dmaChannels[n] == nil {
		dmaChannels[n] = dma.NewChannel(&dmaCtl, n, dmaLine)
	}
	return dmaChannels[n]
}
