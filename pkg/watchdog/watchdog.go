// Package watchdog implements the liveness monitor spec.md §4.3 describes:
// a per-thread WatchDog touched from inside the loop it guards, and a
// GuardDog thread that polls every registered WatchDog and aborts the
// process if one (or, for a process-wide deadlock, several at once) goes
// silent for too long.
package watchdog

import (
	"sync"
	"time"
)

// ThreadID identifies the thread (goroutine-equivalent, in this port) a
// WatchDog belongs to. It has no kernel meaning here; it's an opaque handle
// assigned by CreateWatchDog, used for logging and multikill correlation.
type ThreadID uint64

// WatchDog is a per-thread liveness record. Only the owning thread ever
// calls Touch; GuardDog only ever reads the last touch time. The atomic-via-mutex
// pattern here is simpler than lock-free timestamps and the touch rate
// (at most a few Hz) makes the cost irrelevant.
type WatchDog struct {
	mu        sync.Mutex
	threadID  ThreadID
	lastTouch time.Time

	missed     bool // debounce flag for "watchdog_miss"
	megaMissed bool // debounce flag for "watchdog_mega_miss"
}

// ThreadID returns the watchdog's identity.
func (w *WatchDog) ThreadID() ThreadID {
	return w.threadID
}

// Touch records "I am alive" at monotonic now. Must only be called from the
// thread this WatchDog guards.
func (w *WatchDog) Touch() {
	w.mu.Lock()
	w.lastTouch = time.Now()
	w.mu.Unlock()
}

func (w *WatchDog) lastTouchTime() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastTouch
}
