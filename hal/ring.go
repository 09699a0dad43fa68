package hal

import "sync/atomic"

// RingSize is the capacity of a RingBuffer in bytes. It must be a power of
// two so the free-running indices can wrap with a mask.
const RingSize = 256

// RingBuffer is a fixed-capacity single-producer/single-consumer byte ring.
// The producer only advances head, the consumer only advances tail, and both
// indices are atomic, so one side may run in interrupt context and the other
// in task context without a lock. Indices are free-running; emptiness is
// head == tail and fullness is head-tail == RingSize.
type RingBuffer struct {
	buf  [RingSize]byte
	head atomic.Uint32
	tail atomic.Uint32
}

// Size returns the total capacity of the buffer in bytes.
func (rb *RingBuffer) Size() int {
	return RingSize
}

// Used returns how many bytes are currently buffered.
func (rb *RingBuffer) Used() int {
	return int(rb.head.Load() - rb.tail.Load())
}

// Free returns how many more bytes the buffer can accept.
func (rb *RingBuffer) Free() int {
	return RingSize - rb.Used()
}

// Put stores one byte. It returns false, leaving the buffer untouched, when
// the buffer is full. Producer side only.
func (rb *RingBuffer) Put(v byte) bool {
	h := rb.head.Load()
	if h-rb.tail.Load() == RingSize {
		return false
	}
	rb.buf[h%RingSize] = v // 1) write data
	rb.head.Store(h + 1)   // 2) publish
	return true
}

// Get removes and returns one byte, or (0, false) when empty. Consumer side
// only.
func (rb *RingBuffer) Get() (byte, bool) {
	t := rb.tail.Load()
	if rb.head.Load() == t {
		return 0, false
	}
	v := rb.buf[t%RingSize] // 1) read current element
	rb.tail.Store(t + 1)    // 2) publish consumption
	return v, true
}

// Push copies as much of p as fits and returns the number of bytes accepted.
// Producer side only.
func (rb *RingBuffer) Push(p []byte) int {
	h := rb.head.Load()
	free := RingSize - int(h-rb.tail.Load())
	n := len(p)
	if n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		rb.buf[(h+uint32(i))%RingSize] = p[i]
	}
	rb.head.Store(h + uint32(n))
	return n
}

// Pop copies up to len(p) buffered bytes into p, in FIFO order, and returns
// the number of bytes copied. It never blocks; an empty buffer yields 0.
// Consumer side only.
func (rb *RingBuffer) Pop(p []byte) int {
	t := rb.tail.Load()
	used := int(rb.head.Load() - t)
	n := len(p)
	if n > used {
		n = used
	}
	for i := 0; i < n; i++ {
		p[i] = rb.buf[(t+uint32(i))%RingSize]
	}
	rb.tail.Store(t + uint32(n))
	return n
}

// Clear drops all buffered bytes. Consumer side only.
func (rb *RingBuffer) Clear() {
	rb.tail.Store(rb.head.Load())
}
