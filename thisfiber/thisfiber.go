// Package thisfiber provides package-level convenience wrappers for
// code running inside a fiber's own entry function, recovering "which
// fiber, and which manager, is this?" from the calling goroutine
// without requiring every helper function down the call stack to
// thread a *fiber.Fiber and *fiber.Manager through its signature.
//
// Every function here that needs the calling fiber panics if called
// from a goroutine that isn't currently running as a fiber (the
// external goroutine driving a Manager via Run/Join has no *fiber.Fiber
// identity to recover); the InterruptionEnabled and
// InterruptionRequested queries report false there instead.
package thisfiber

import (
	"sync"
	"time"

	"github.com/fast01/fiber"
)

// Fiber returns the fiber currently running on the calling goroutine.
// Panics if the calling goroutine isn't a fiber.
func Fiber() *fiber.Fiber {
	f, ok := fiber.CurrentFiber()
	if !ok {
		panic(&fiber.SchedulerError{Op: "thisfiber.Fiber", Err: fiber.ErrInvalidState})
	}
	return f
}

// Manager returns the Manager scheduling the calling fiber.
func Manager() *fiber.Manager {
	return Fiber().ManagerOf()
}

// Yield gives up control of the current fiber, allowing another ready
// fiber (or the current fiber, if it's the only one) to run, then
// returns once this fiber is scheduled again.
func Yield() {
	f := Fiber()
	f.ManagerOf().Yield(f)
}

// WaitUntil parks the current fiber until deadline, an external wake,
// or an interruption, exactly like Manager.WaitUntil.
func WaitUntil(deadline time.Time, lk sync.Locker) bool {
	f := Fiber()
	return f.ManagerOf().WaitUntil(f, deadline, lk)
}

// Wait parks the current fiber indefinitely, until an external wake or
// an interruption.
func Wait(lk sync.Locker) {
	f := Fiber()
	f.ManagerOf().Wait(f, lk)
}

// SleepUntil parks the current fiber until deadline or an interruption,
// with no lock to release; equivalent to WaitUntil(deadline, nil).
func SleepUntil(deadline time.Time) bool {
	return WaitUntil(deadline, nil)
}

// Join blocks the current fiber until target terminates.
func Join(target *fiber.Fiber) error {
	f := Fiber()
	return f.ManagerOf().Join(f, target)
}

// InterruptionPoint panics with the scheduler's internal interruption
// sentinel if the current fiber has a pending interruption that isn't
// currently suppressed by a DisableInterruption guard.
func InterruptionPoint() {
	fiber.InterruptionPoint(Fiber())
}

// InterruptionEnabled reports whether the current fiber would currently
// observe a pending interruption, i.e. no DisableInterruption guard is
// outstanding. Reports false when not called from a fiber.
func InterruptionEnabled() bool {
	f, ok := fiber.CurrentFiber()
	if !ok {
		return false
	}
	return f.InterruptionEnabled()
}

// InterruptionRequested reports whether the current fiber has a
// pending interruption request awaiting delivery. Reports false when
// not called from a fiber.
func InterruptionRequested() bool {
	f, ok := fiber.CurrentFiber()
	if !ok {
		return false
	}
	return f.InterruptionRequested()
}

// DisableInterruption suppresses interruption delivery to the current
// fiber until the returned guard's Restore is called.
func DisableInterruption() *fiber.InterruptionGuard {
	return fiber.DisableInterruption(Fiber())
}

// RestoreInterruption nests inside an active DisableInterruption scope
// (guard) and temporarily re-enables interruption delivery for its own
// inner scope, reimposing guard's suppression once the returned
// RestoreGuard's Restore is called. See fiber.RestoreInterruption.
func RestoreInterruption(guard *fiber.InterruptionGuard) *fiber.RestoreGuard {
	return fiber.RestoreInterruption(guard)
}

// Detach marks the current fiber as detached; see fiber.Fiber.Detach.
func Detach() {
	Fiber().Detach()
}
