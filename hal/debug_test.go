package hal

import (
	"strings"
	"sync"
	"testing"
)

func TestWarnAlwaysWrittenDebugGated(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	SetDebugWriter(func(s string) {
		mu.Lock()
		lines = append(lines, s)
		mu.Unlock()
	})
	defer SetDebugWriter(nil)
	defer SetDebugEnabled(false)

	Debug("hidden")
	Warn("trouble")
	SetDebugEnabled(true)
	Debug("visible")

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 2 {
		t.Fatalf("Expected 2 messages, got %d: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "[WARN] ") || !strings.Contains(lines[0], "trouble") {
		t.Errorf("Expected warning with prefix, got %q", lines[0])
	}
	if lines[1] != "visible" {
		t.Errorf("Expected gated debug message after enable, got %q", lines[1])
	}
}

func TestNilWriterDiscardsOutput(t *testing.T) {
	SetDebugWriter(nil)
	SetDebugEnabled(true)
	defer SetDebugEnabled(false)

	// Must not panic with no writer installed.
	Debug("dropped")
	Warn("dropped")
}

// Writers are swapped from task goroutines while interrupt goroutines emit
// warnings; the hooks have to hold up to that concurrently.
func TestDebugHooksConcurrentSwap(t *testing.T) {
	defer SetDebugWriter(nil)
	defer SetDebugEnabled(false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			Warn("spin")
			Debug("spin")
		}
	}()

	for i := 0; i < 1000; i++ {
		SetDebugWriter(func(string) {})
		SetDebugEnabled(i%2 == 0)
		SetDebugWriter(nil)
	}
	<-done
}
