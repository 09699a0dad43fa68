package hal

import "testing"

func TestRingBufferFIFOOrder(t *testing.T) {
	var rb RingBuffer
	for i := 0; i < 100; i++ {
		if !rb.Put(byte(i)) {
			t.Fatalf("Put %d failed on non-full buffer", i)
		}
	}
	if rb.Used() != 100 {
		t.Errorf("Expected 100 used, got %d", rb.Used())
	}
	for i := 0; i < 100; i++ {
		v, ok := rb.Get()
		if !ok {
			t.Fatalf("Get %d failed on non-empty buffer", i)
		}
		if v != byte(i) {
			t.Errorf("Expected byte %d, got %d", i, v)
		}
	}
	if _, ok := rb.Get(); ok {
		t.Error("Expected Get on empty buffer to fail")
	}
}

func TestRingBufferFullRejectsWithoutCorruption(t *testing.T) {
	var rb RingBuffer
	for i := 0; i < RingSize; i++ {
		if !rb.Put(byte(i)) {
			t.Fatalf("Put %d failed before capacity", i)
		}
	}
	if rb.Put(0xFF) {
		t.Error("Expected Put on full buffer to fail")
	}
	if rb.Free() != 0 {
		t.Errorf("Expected 0 free, got %d", rb.Free())
	}
	for i := 0; i < RingSize; i++ {
		v, ok := rb.Get()
		if !ok || v != byte(i) {
			t.Fatalf("Expected byte %d intact, got %d (ok=%v)", byte(i), v, ok)
		}
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	var rb RingBuffer
	// Cycle enough data through to wrap the indices several times.
	var next, expect byte
	for round := 0; round < 10; round++ {
		for i := 0; i < RingSize-1; i++ {
			if !rb.Put(next) {
				t.Fatal("Put failed on non-full buffer")
			}
			next++
		}
		for i := 0; i < RingSize-1; i++ {
			v, ok := rb.Get()
			if !ok {
				t.Fatal("Get failed on non-empty buffer")
			}
			if v != expect {
				t.Fatalf("Expected %d, got %d", expect, v)
			}
			expect++
		}
	}
}

func TestRingBufferBulk(t *testing.T) {
	var rb RingBuffer

	src := make([]byte, 300)
	for i := range src {
		src[i] = byte(i)
	}
	n := rb.Push(src)
	if n != RingSize {
		t.Errorf("Expected push to accept %d bytes, got %d", RingSize, n)
	}

	dst := make([]byte, 10)
	n = rb.Pop(dst)
	if n != 10 {
		t.Fatalf("Expected pop of 10, got %d", n)
	}
	for i := 0; i < 10; i++ {
		if dst[i] != byte(i) {
			t.Errorf("Expected byte %d, got %d", i, dst[i])
		}
	}

	// Space freed by the pop is reusable.
	n = rb.Push([]byte{1, 2, 3})
	if n != 3 {
		t.Errorf("Expected push of 3 after pop, got %d", n)
	}

	rest := make([]byte, RingSize)
	n = rb.Pop(rest)
	if n != RingSize-10+3 {
		t.Errorf("Expected %d remaining, got %d", RingSize-10+3, n)
	}

	if n := rb.Pop(dst); n != 0 {
		t.Errorf("Expected pop on empty buffer to return 0, got %d", n)
	}
}

func TestRingBufferConcurrentSPSC(t *testing.T) {
	var rb RingBuffer
	const total = 10000

	done := make(chan bool)
	go func() {
		var v byte
		for i := 0; i < total; {
			if rb.Put(v) {
				v++
				i++
			}
		}
		done <- true
	}()

	var expect byte
	for i := 0; i < total; {
		if v, ok := rb.Get(); ok {
			if v != expect {
				t.Errorf("Expected %d, got %d", expect, v)
				break
			}
			expect++
			i++
		}
	}
	<-done
}
