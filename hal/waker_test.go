package hal

import "testing"

func TestWakerCoalesces(t *testing.T) {
	w := NewWaker()
	w.Wake()
	w.Wake()
	w.Wake()

	select {
	case <-w.Done():
	default:
		t.Fatal("Expected a pending wake")
	}

	select {
	case <-w.Done():
		t.Fatal("Expected wakes to coalesce into one")
	default:
	}
}

func TestWakerSlotRegisterIdempotent(t *testing.T) {
	var s WakerSlot
	w := NewWaker()

	s.Register(w)
	s.Register(w) // re-poll with the same waker must be a no-op

	if !s.Registered() {
		t.Fatal("Expected waker to be registered")
	}

	s.Signal()
	if s.Registered() {
		t.Fatal("Expected signal to empty the slot")
	}

	select {
	case <-w.Done():
	default:
		t.Fatal("Expected signal to wake the parked task")
	}
}

func TestWakerSlotSecondTaskPanics(t *testing.T) {
	var s WakerSlot
	s.Register(NewWaker())

	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic when a second task parks on the slot")
		}
	}()
	s.Register(NewWaker())
}

func TestWakerSlotSignalEmptyIsNoop(t *testing.T) {
	var s WakerSlot
	s.Signal() // must not panic or wake anything

	// Signal-then-register in that real-time order: the signal is dropped,
	// but the next poll re-checks the condition after registering, so no
	// wakeup is lost. Model the re-check here by observing the slot state.
	w := NewWaker()
	s.Register(w)
	if !s.Registered() {
		t.Fatal("Expected registration after a dropped signal to succeed")
	}
	s.Signal()
	select {
	case <-w.Done():
	default:
		t.Fatal("Expected the later signal to wake the task")
	}
}

func TestWakerSlotClear(t *testing.T) {
	var s WakerSlot
	w := NewWaker()
	s.Register(w)
	s.Clear()
	if s.Registered() {
		t.Fatal("Expected clear to empty the slot")
	}
	s.Signal()
	select {
	case <-w.Done():
		t.Fatal("Expected no wake after clear")
	default:
	}
}
