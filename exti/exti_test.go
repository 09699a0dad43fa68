package exti

import (
	"context"
	"testing"
	"time"

	"asynchal/hal"
)

type simEXTI struct {
	line    *hal.Line
	enabled [NumLines]bool
	rising  [NumLines]bool
	falling [NumLines]bool
	pending uint16
}

func (s *simEXTI) EnableLine(n int, rising, falling bool) {
	s.enabled[n] = true
	s.rising[n] = rising
	s.falling[n] = falling
}

func (s *simEXTI) DisableLine(n int) { s.enabled[n] = false }

func (s *simEXTI) LineEnabled(n int) bool { return s.enabled[n] }

func (s *simEXTI) ClearPending(n int) { s.pending &^= 1 << n }

// raiseEdge simulates an edge on line n. Edges on masked lines, or of a
// polarity the line is not sensitive to, are dropped like real hardware
// drops them.
func (s *simEXTI) raiseEdge(n int, rising bool) {
	hit := false
	s.line.With(func() {
		if s.enabled[n] && ((rising && s.rising[n]) || (!rising && s.falling[n])) {
			s.pending |= 1 << n
			hit = true
		}
	})
	if hit {
		s.line.Pend()
	}
}

func (s *simEXTI) lineEnabled(n int) bool {
	v := false
	s.line.With(func() { v = s.enabled[n] })
	return v
}

func newBankUnderTest() (*Bank, *simEXTI) {
	line := hal.NewController().Line(7)
	sim := &simEXTI{line: line}
	b := NewBank(sim, line)
	line.SetHandler(func() {
		for n := 0; n < NumLines; n++ {
			if sim.pending&(1<<n) != 0 {
				b.ServiceLine(n)
			}
		}
	})
	return b, sim
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Expected condition within 1s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWaitForRisingEdge(t *testing.T) {
	b, sim := newBankUnderTest()

	done := make(chan error, 1)
	go func() { done <- b.WaitForRisingEdge(context.Background(), 3) }()

	waitUntil(t, func() bool { return sim.lineEnabled(3) })

	sim.raiseEdge(3, true)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForRisingEdge: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected wait to complete after rising edge")
	}

	if sim.lineEnabled(3) {
		t.Error("Expected line masked after the edge fired")
	}
	if sim.pending != 0 {
		t.Errorf("Expected pending flag cleared, got %#x", sim.pending)
	}
}

func TestWrongPolarityDoesNotComplete(t *testing.T) {
	b, sim := newBankUnderTest()

	done := make(chan error, 1)
	go func() { done <- b.WaitForRisingEdge(context.Background(), 0) }()

	waitUntil(t, func() bool { return sim.lineEnabled(0) })

	sim.raiseEdge(0, false)

	select {
	case <-done:
		t.Fatal("Expected falling edge to be ignored by a rising-edge wait")
	case <-time.After(10 * time.Millisecond):
	}

	sim.raiseEdge(0, true)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForRisingEdge: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected wait to complete after rising edge")
	}
}

func TestWaitForAnyEdge(t *testing.T) {
	b, sim := newBankUnderTest()

	for _, rising := range []bool{true, false} {
		done := make(chan error, 1)
		go func() { done <- b.WaitForAnyEdge(context.Background(), 9) }()

		waitUntil(t, func() bool { return sim.lineEnabled(9) })

		sim.raiseEdge(9, rising)

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("WaitForAnyEdge: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("Expected wait to complete (rising=%v)", rising)
		}
	}
}

func TestCancelDisarmsLine(t *testing.T) {
	b, sim := newBankUnderTest()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.WaitForFallingEdge(ctx, 12) }()

	waitUntil(t, func() bool { return sim.lineEnabled(12) })
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected wait to observe cancellation")
	}

	if sim.lineEnabled(12) {
		t.Error("Expected line masked after a cancelled wait")
	}
}

func TestOutOfRangeLinePanics(t *testing.T) {
	b, _ := newBankUnderTest()

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for out-of-range line")
		}
	}()
	b.WaitForRisingEdge(context.Background(), NumLines)
}
