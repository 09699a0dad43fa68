//go:build !tinygo

package hal

import "sync"

// NumLines is the number of interrupt lines the simulated controller models.
const NumLines = 64

type lineState struct {
	handler func()
	enabled bool
	pending bool
}

// Controller is a simulated interrupt controller for host builds. Hardware
// doubles raise interrupts with Line.Pend; handlers run synchronously while
// the controller lock is held, so Line.With gives task code the same mutual
// exclusion against handlers that masking the interrupt gives on a target.
type Controller struct {
	mu    sync.Mutex
	lines [NumLines]lineState
}

// NewController returns a controller with all lines disabled.
func NewController() *Controller {
	return &Controller{}
}

// Line is one interrupt line. On host builds it belongs to a simulated
// Controller; on TinyGo builds it wraps the runtime interrupt machinery.
type Line struct {
	ctl *Controller
	num int
}

// Line returns the line with the given number.
func (c *Controller) Line(num int) *Line {
	if num < 0 || num >= NumLines {
		panic("hal: interrupt line out of range")
	}
	return &Line{ctl: c, num: num}
}

// SetHandler installs the interrupt handler for the line.
func (l *Line) SetHandler(fn func()) {
	l.ctl.mu.Lock()
	defer l.ctl.mu.Unlock()
	l.ctl.lines[l.num].handler = fn
}

// Enable unmasks the line. A pend latched while the line was masked is
// dispatched immediately.
func (l *Line) Enable() {
	l.ctl.mu.Lock()
	defer l.ctl.mu.Unlock()
	st := &l.ctl.lines[l.num]
	st.enabled = true
	if st.pending && st.handler != nil {
		st.pending = false
		st.handler()
	}
}

// Disable masks the line. Pends raised while masked are latched and replayed
// on Enable.
func (l *Line) Disable() {
	l.ctl.mu.Lock()
	defer l.ctl.mu.Unlock()
	l.ctl.lines[l.num].enabled = false
}

// With runs fn inside a critical section: no handler on this controller can
// run concurrently with fn. fn must not call With, Pend, Enable or Disable on
// the same controller.
func (l *Line) With(fn func()) {
	l.ctl.mu.Lock()
	defer l.ctl.mu.Unlock()
	fn()
}

// Pend raises the interrupt. If the line is enabled the handler runs
// synchronously in "interrupt context" (holding the controller lock);
// otherwise the pend is latched until Enable.
func (l *Line) Pend() {
	l.ctl.mu.Lock()
	defer l.ctl.mu.Unlock()
	st := &l.ctl.lines[l.num]
	if !st.enabled || st.handler == nil {
		st.pending = true
		return
	}
	st.handler()
}
