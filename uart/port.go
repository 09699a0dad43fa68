package uart

import "context"

// Port wraps a Buffered driver in the plain blocking surface external driver
// libraries expect (Buffered/ReadByte/Write, the machine.UART shape).
type Port struct {
	b *Buffered
}

// NewPort wraps the given buffered driver.
func NewPort(b *Buffered) *Port {
	return &Port{b: b}
}

// Buffered returns the number of bytes waiting to be read.
func (p *Port) Buffered() int {
	return p.b.Buffered()
}

// ReadByte returns one received byte, or ErrBufferEmpty when none is
// waiting.
func (p *Port) ReadByte() (byte, error) {
	return p.b.ReadByte()
}

// Read copies up to len(buf) received bytes, blocking until at least one is
// available.
func (p *Port) Read(buf []byte) (int, error) {
	return p.b.Read(context.Background(), buf)
}

// Write queues all of buf for transmission, blocking while the TX ring is
// full.
func (p *Port) Write(buf []byte) (int, error) {
	return p.b.Write(context.Background(), buf)
}
