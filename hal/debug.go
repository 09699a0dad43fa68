package hal

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// The hooks are installed from task goroutines while interrupt handlers read
// them, so both live behind atomics.
var (
	debugPrintln atomic.Pointer[DebugWriter]
	debugEnabled atomic.Bool
)

// SetDebugWriter sets the platform-specific debug output function.
// This allows platforms to redirect output to UART, USB, a test log, etc.
// The writer may be called from interrupt context and must not block.
// A nil writer discards all output.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		debugPrintln.Store(nil)
		return
	}
	debugPrintln.Store(&writer)
}

// SetDebugEnabled enables or disables debug output. Warnings are always
// written; only Debug messages are gated.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// Debug writes a debug message using the platform-specific writer.
func Debug(msg string) {
	if !debugEnabled.Load() {
		return
	}
	if w := debugPrintln.Load(); w != nil {
		(*w)(msg)
	}
}

// Warn writes a warning. Used for non-fatal hardware conditions (line errors,
// dropped bytes, DMA error flags) observed in interrupt handlers.
func Warn(msg string) {
	if w := debugPrintln.Load(); w != nil {
		(*w)("[WARN] " + msg)
	}
}
