package fixedbuf

import (
	"runtime"

	"github.com/apex/log"
)

// haltFn is swapped out by OverrideHalt in tests.
var haltFn func(msg string)

// Halt is the single acceptable "crash" path. Components never unwind into
// the host process; a violated internal invariant (a supposedly-fixed buffer
// indexed out of range, a zero address where one was ruled out) logs the
// reason and parks the faulting thread instead of corrupting host state
// further. All host-data failures route through explicit error values — this
// path exists only for logic defects in this module itself.
func Halt(msg string) {
	if haltFn != nil {
		haltFn(msg)
		return
	}
	log.WithField("reason", msg).Error("invariant violated, parking thread")
	// Pin the goroutine so the host thread it happens to be running on is
	// the one that stops making progress.
	runtime.LockOSThread()
	select {}
}

// OverrideHalt installs a replacement halt handler and returns a function
// that restores the previous one. Tests use this to observe the halt path
// without parking the test binary.
func OverrideHalt(f func(msg string)) (restore func()) {
	prev := haltFn
	haltFn = f
	return func() { haltFn = prev }
}
