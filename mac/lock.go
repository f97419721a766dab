package mac

import "sync/atomic"

// globalLock implements the two-level coordination of spec.md §5: the
// slot engine is the interrupt-equivalent priority and must never block;
// cooperative (non-slot-engine) code performs all structural mutation
// and must never stall it either. On real hardware, a cooperative
// acquire sets `requested`, busy-waits for the engine to leave its
// current slot, then takes the lock; on the host there is no separate
// interrupt level to wait out, so TryAcquire either succeeds immediately
// or fails — the caller backs off and retries, exactly as spec.md §5
// requires ("acquisition that fails... returns failure").
type globalLock struct {
	held      atomic.Bool
	requested atomic.Bool
}

// TryAcquire attempts to take the lock. It never blocks.
func (l *globalLock) TryAcquire() bool {
	l.requested.Store(true)
	if !l.held.CompareAndSwap(false, true) {
		l.requested.Store(false)
		return false
	}
	l.requested.Store(false)
	return true
}

// Release gives up the lock.
func (l *globalLock) Release() { l.held.Store(false) }

// Held reports whether the lock is currently taken by someone, the way
// tsch_is_locked() gates tsch_queue_add_packet in the original: structural
// queue mutation must fail fast rather than block while the lock is held.
func (l *globalLock) Held() bool { return l.held.Load() }

// Requested reports whether cooperative code is waiting for the lock;
// the slot engine checks this at slot entry and skips the slot instead
// of proceeding (spec.md §4.4 step 1).
func (l *globalLock) Requested() bool { return l.requested.Load() }
