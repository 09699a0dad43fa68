package hal

// Waker is an opaque handle that, when woken, schedules a suspended task for
// re-polling. Wakes are level-coalesced: a task that is woken must re-check
// the condition it is waiting on, because multiple hardware events may fold
// into a single wake.
type Waker struct {
	ch chan struct{}
}

// NewWaker returns a fresh waker. Waker identity is pointer identity; a task
// must reuse the same waker across re-polls of one pending operation.
func NewWaker() *Waker {
	return &Waker{ch: make(chan struct{}, 1)}
}

// Wake schedules the owning task for re-polling. It never blocks; a wake
// delivered while one is already pending is coalesced.
func (w *Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Done returns the channel a parked task blocks on until the next wake.
func (w *Waker) Done() <-chan struct{} {
	return w.ch
}

// WakerSlot is a single-slot registration point shared between one task and
// one interrupt handler. The task registers under the critical section of the
// interrupt that signals the slot; the handler signals with that interrupt
// implicitly masked. The two sides therefore never race.
type WakerSlot struct {
	w *Waker
}

// Register parks a task on the slot. The caller must hold the critical
// section for the signalling interrupt.
//
// Registering the waker that is already parked is a no-op (re-poll of the
// same task). Registering a different waker while one is parked means two
// tasks are waiting on a single-consumer resource; that is an unrecoverable
// usage error.
func (s *WakerSlot) Register(w *Waker) {
	if w == nil {
		panic("hal: register of nil waker")
	}
	switch s.w {
	case nil:
		s.w = w
	case w:
		// Idempotent re-poll.
	default:
		panic("hal: waker slot already claimed by another task")
	}
}

// Clear discards any parked waker. The caller must hold the critical section
// for the signalling interrupt. Used when a new operation is armed on a slot
// whose previous operation was abandoned.
func (s *WakerSlot) Clear() {
	s.w = nil
}

// Registered reports whether a task is currently parked on the slot. The
// caller must hold the critical section for the signalling interrupt.
func (s *WakerSlot) Registered() bool {
	return s.w != nil
}

// Signal takes the parked waker, leaving the slot empty, and wakes it. It is
// called from the interrupt handler for the slot, which runs with the
// interrupt masked; the wake itself is a non-blocking operation so it is safe
// regardless of what the woken task does next. Signalling an empty slot is a
// no-op: consumers follow the arm-then-check protocol and re-read the
// hardware condition after registering, so a dropped signal is never a lost
// event.
func (s *WakerSlot) Signal() {
	w := s.w
	s.w = nil
	if w != nil {
		w.Wake()
	}
}
