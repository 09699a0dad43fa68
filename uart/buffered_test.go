package uart

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"asynchal/hal"
)

// simUART is a hardware double for the USART register block. The transmit
// register shifts out instantly, so StatusTxEmpty is always set; drained
// bytes are recorded on wire in order.
type simUART struct {
	line *hal.Line

	status Status
	rxData byte
	txIE   bool
	rxIE   bool
	wire   []byte
}

func (s *simUART) Status() Status { return s.status | StatusTxEmpty }

func (s *simUART) ReadData() byte {
	s.status &^= StatusRxNotEmpty
	return s.rxData
}

func (s *simUART) WriteData(b byte) { s.wire = append(s.wire, b) }

func (s *simUART) SetTxInterrupt(on bool) { s.txIE = on }

func (s *simUART) TxInterruptEnabled() bool { return s.txIE }

func (s *simUART) SetRxInterrupt(on bool) { s.rxIE = on }

func (s *simUART) ClearErrors() { s.status &^= statusLineErrors }

// receive simulates a byte arriving on the line: latch it in the data
// register and raise the receive interrupt.
func (s *simUART) receive(b byte) {
	s.rxData = b
	s.status |= StatusRxNotEmpty
	s.line.Pend()
}

// fireTxReady simulates the transmit-ready interrupt, which the hardware
// raises only while the TX interrupt is enabled.
func (s *simUART) fireTxReady() {
	enabled := false
	s.line.With(func() { enabled = s.txIE })
	if enabled {
		s.line.Pend()
	}
}

// raiseError simulates a line-error condition arriving with the interrupt.
func (s *simUART) raiseError(f Status) {
	s.status |= f
	s.line.Pend()
}

func newUARTUnderTest() (*Buffered, *simUART) {
	line := hal.NewController().Line(5)
	sim := &simUART{line: line}
	b := NewBuffered(sim, line)
	line.SetHandler(b.ServiceInterrupt)
	return b, sim
}

func TestReadReturnsBufferedBytes(t *testing.T) {
	b, sim := newUARTUnderTest()

	if !sim.rxIE {
		t.Error("Expected RX interrupt enabled after construction")
	}

	sim.receive('h')
	sim.receive('i')

	if b.Buffered() != 2 {
		t.Errorf("Expected 2 buffered bytes, got %d", b.Buffered())
	}

	p := make([]byte, 8)
	n, err := b.Read(context.Background(), p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 2 || p[0] != 'h' || p[1] != 'i' {
		t.Errorf("Expected \"hi\", got %q", p[:n])
	}
}

func TestReadPendsOnEmptyBufferThenWakes(t *testing.T) {
	b, sim := newUARTUnderTest()

	p := make([]byte, 4)
	w := hal.NewWaker()
	if n, ok := b.PollRead(p, w); ok {
		t.Fatalf("Expected pending read on empty buffer, got %d bytes", n)
	}

	sim.receive('x')

	select {
	case <-w.Done():
	default:
		t.Fatal("Expected RX interrupt to wake the reader")
	}

	n, ok := b.PollRead(p, w)
	if !ok || n != 1 || p[0] != 'x' {
		t.Fatalf("Expected 1 byte 'x' after wake, got n=%d ok=%v", n, ok)
	}
}

func TestWriteDrainsInOrderAndFlushResolvesLast(t *testing.T) {
	b, sim := newUARTUnderTest()

	n, err := b.Write(context.Background(), []byte{0x41, 0x42, 0x43})
	if err != nil || n != 3 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	if !sim.txIE {
		t.Fatal("Expected TX interrupt enabled after write")
	}

	flushed := make(chan error, 1)
	go func() { flushed <- b.Flush(context.Background()) }()

	for i := 0; i < 2; i++ {
		sim.fireTxReady()
		select {
		case <-flushed:
			t.Fatalf("Expected flush still pending after %d of 3 bytes", i+1)
		case <-time.After(5 * time.Millisecond):
		}
	}

	sim.fireTxReady() // drains the third byte

	select {
	case err := <-flushed:
		if err != nil {
			t.Errorf("Flush: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected flush to resolve after the last byte drained")
	}

	if string(sim.wire) != "ABC" {
		t.Errorf("Expected wire bytes \"ABC\", got %q", sim.wire)
	}

	// One more TX-ready with nothing queued must disable the interrupt.
	sim.fireTxReady()
	if sim.txIE {
		t.Error("Expected TX interrupt disabled once the ring emptied")
	}
}

func TestWriteBackpressureWhenRingFull(t *testing.T) {
	b, sim := newUARTUnderTest()

	big := make([]byte, hal.RingSize)
	n, err := b.Write(context.Background(), big)
	if err != nil || n != hal.RingSize {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	if b.TxFree() != 0 {
		t.Fatalf("Expected full TX ring, free=%d", b.TxFree())
	}

	w := hal.NewWaker()
	if n, ok := b.PollWrite([]byte{0xFF}, w); ok {
		t.Fatalf("Expected pending write on full ring, accepted %d", n)
	}

	sim.fireTxReady() // frees one slot and signals the TX waker

	select {
	case <-w.Done():
	default:
		t.Fatal("Expected TX interrupt to wake the blocked writer")
	}

	n, ok := b.PollWrite([]byte{0xFF}, w)
	if !ok || n != 1 {
		t.Fatalf("Expected 1 byte accepted after drain, got n=%d ok=%v", n, ok)
	}
}

func TestLineErrorsAreWarnedAndNonFatal(t *testing.T) {
	var mu sync.Mutex
	var logged []string
	hal.SetDebugWriter(func(s string) {
		mu.Lock()
		logged = append(logged, s)
		mu.Unlock()
	})
	defer hal.SetDebugWriter(func(string) {})

	b, sim := newUARTUnderTest()

	// An overrun arriving together with a data byte: warned, cleared, and
	// the byte still delivered.
	sim.rxData = 'k'
	sim.status |= StatusRxNotEmpty
	sim.raiseError(StatusOverrun | StatusFraming)

	if v, err := b.ReadByte(); err != nil || v != 'k' {
		t.Errorf("Expected byte 'k' despite line errors, got %q err=%v", v, err)
	}
	if sim.status&statusLineErrors != 0 {
		t.Error("Expected sticky error flags cleared by the handler")
	}

	mu.Lock()
	defer mu.Unlock()
	all := strings.Join(logged, "\n")
	if !strings.Contains(all, "overrun") {
		t.Errorf("Expected overrun warning, got %q", all)
	}
	if !strings.Contains(all, "frame") {
		t.Errorf("Expected frame warning, got %q", all)
	}
}

func TestRxOverflowDropsByteWithWarning(t *testing.T) {
	var mu sync.Mutex
	var logged []string
	hal.SetDebugWriter(func(s string) {
		mu.Lock()
		logged = append(logged, s)
		mu.Unlock()
	})
	defer hal.SetDebugWriter(func(string) {})

	b, sim := newUARTUnderTest()

	for i := 0; i < hal.RingSize+1; i++ {
		sim.receive(byte(i))
	}

	if b.Buffered() != hal.RingSize {
		t.Errorf("Expected %d buffered, got %d", hal.RingSize, b.Buffered())
	}

	mu.Lock()
	found := false
	for _, s := range logged {
		if strings.Contains(s, "rx buffer full") {
			found = true
		}
	}
	mu.Unlock()
	if !found {
		t.Error("Expected a warning for the dropped byte")
	}

	// The surviving bytes are intact and in order.
	for i := 0; i < hal.RingSize; i++ {
		v, err := b.ReadByte()
		if err != nil || v != byte(i) {
			t.Fatalf("Expected byte %d, got %d err=%v", byte(i), v, err)
		}
	}
}

func TestBlockingVariants(t *testing.T) {
	b, sim := newUARTUnderTest()

	done := make(chan bool)
	go func() {
		b.WriteBlocking([]byte("ok"))
		b.FlushBlocking()
		done <- true
	}()

	deadline := time.After(time.Second)
	for {
		select {
		case <-done:
			if string(sim.wire) != "ok" {
				t.Errorf("Expected wire \"ok\", got %q", sim.wire)
			}
			return
		case <-deadline:
			t.Fatal("Expected blocking write+flush to finish")
		default:
			sim.fireTxReady()
			time.Sleep(time.Millisecond)
		}
	}
}

func TestReadHonorsContextCancel(t *testing.T) {
	b, _ := newUARTUnderTest()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := b.Read(ctx, make([]byte, 4))
		result <- err
	}()
	cancel()

	select {
	case err := <-result:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected Read to observe cancellation")
	}
}
