// Package fibersync provides sync.Locker-compatible primitives whose
// blocking implementations cooperate with a fiber.Manager instead of
// blocking an OS thread, for code shared between fiber and non-fiber
// callers of a scheduler-backed data structure.
package fibersync

import (
	"sync/atomic"

	"github.com/fast01/fiber/thisfiber"
)

// Spinlock is a sync.Locker suitable for state shared between fibers
// scheduled on the same Manager. A contending fiber Yields between CAS
// attempts rather than busy-waiting its own goroutine: a plain spin
// would burn the OS thread without giving the fiber holding the lock a
// chance to run and release it, since cooperative scheduling only
// makes progress when a fiber actually gives up control.
//
// Only meaningful when called from inside a fiber (thisfiber.Yield
// panics otherwise); use a plain sync.Mutex for non-fiber callers.
type Spinlock struct {
	locked atomic.Bool
}

// Lock acquires the spinlock, yielding the calling fiber between
// attempts while it's held elsewhere.
func (s *Spinlock) Lock() {
	for !s.locked.CompareAndSwap(false, true) {
		thisfiber.Yield()
	}
}

// TryLock attempts to acquire the spinlock without yielding, reporting
// whether it succeeded.
func (s *Spinlock) TryLock() bool {
	return s.locked.CompareAndSwap(false, true)
}

// Unlock releases the spinlock. Unlocking an already-unlocked Spinlock
// is a programmer error; unlike sync.Mutex it isn't detected.
func (s *Spinlock) Unlock() {
	s.locked.Store(false)
}
