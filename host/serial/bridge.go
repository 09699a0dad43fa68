//go:build !tinygo

package serial

import (
	"asynchal/hal"
	"asynchal/uart"
)

// Bridge exposes a host serial port as a uart.Hardware, so the interrupt
// driven buffered driver can be exercised against a real tty during
// development. A reader goroutine plays the part of the receive interrupt:
// it latches one byte in a simulated data register and pends the line. A
// pump goroutine replays the transmit-ready interrupt while the TX interrupt
// is enabled.
//
// All register state is guarded by the line's critical section: the driver
// calls the Hardware methods with the section held, and the goroutines enter
// it explicitly.
type Bridge struct {
	port Port
	line *hal.Line

	rxByte byte
	rxFull bool
	txIE   bool
	rxIE   bool

	txKick chan struct{}
	closed chan struct{}
}

// NewBridge wires a port to an interrupt line. The caller installs the
// driver's handler on the line and then calls Start.
func NewBridge(port Port, line *hal.Line) *Bridge {
	return &Bridge{
		port:   port,
		line:   line,
		txKick: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (b *Bridge) Status() uart.Status {
	// The port accepts writes at any time, so the transmit register is
	// always empty.
	st := uart.StatusTxEmpty
	if b.rxFull {
		st |= uart.StatusRxNotEmpty
	}
	return st
}

func (b *Bridge) ReadData() byte {
	b.rxFull = false
	return b.rxByte
}

func (b *Bridge) WriteData(v byte) {
	// A one-byte write to the tty; short enough to tolerate inside the
	// critical section on a development host.
	b.port.Write([]byte{v})
}

func (b *Bridge) SetTxInterrupt(on bool) {
	b.txIE = on
	if on {
		select {
		case b.txKick <- struct{}{}:
		default:
		}
	}
}

func (b *Bridge) TxInterruptEnabled() bool { return b.txIE }

func (b *Bridge) SetRxInterrupt(on bool) { b.rxIE = on }

func (b *Bridge) ClearErrors() {}

// Start launches the goroutines that stand in for the RX and TX interrupts.
func (b *Bridge) Start() {
	go b.readLoop()
	go b.txPump()
}

// Close stops the interrupt goroutines and closes the port.
func (b *Bridge) Close() error {
	close(b.closed)
	return b.port.Close()
}

// readLoop reads the port one byte at a time. Pend dispatches the handler
// synchronously, so the latched byte has been consumed by the time the next
// read starts.
func (b *Bridge) readLoop() {
	buf := make([]byte, 1)
	for {
		select {
		case <-b.closed:
			return
		default:
		}
		n, err := b.port.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue // read timeout
		}
		b.line.With(func() {
			b.rxByte = buf[0]
			b.rxFull = true
		})
		b.line.Pend()
	}
}

// txPump replays the transmit-ready interrupt until the driver masks it
// again, draining the driver's TX ring one byte per dispatch.
func (b *Bridge) txPump() {
	for {
		select {
		case <-b.closed:
			return
		case <-b.txKick:
		}
		for {
			enabled := false
			b.line.With(func() { enabled = b.txIE })
			if !enabled {
				break
			}
			b.line.Pend()
		}
	}
}

// OpenBuffered opens the configured port and returns a buffered UART driver
// running over it, plus the bridge for shutdown.
func OpenBuffered(cfg *Config) (*uart.Buffered, *Bridge, error) {
	port, err := Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	line := hal.NewController().Line(0)
	br := NewBridge(port, line)
	drv := uart.NewBuffered(br, line)
	line.SetHandler(drv.ServiceInterrupt)
	br.Start()
	return drv, br, nil
}
