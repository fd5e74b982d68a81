package fiber

// RequestInterruption schedules an interruption of f: the next time f
// checks for one (at a Yield, WaitUntil, Wait, or Join boundary, or an
// explicit InterruptionPoint call from inside f's own entry function)
// it panics with an internal sentinel that unwinds to the entry
// function's boundary, terminating f the same way an uncaught panic
// would. Safe to call from any goroutine, including f's own. A no-op
// if f is nil. On an already Terminated f it only sets the flag that
// [Fiber.InterruptionRequested] reports.
func RequestInterruption(f *Fiber) {
	if f == nil {
		return
	}
	f.interruptionRequested.Store(true)
}

// InterruptionPoint panics if f has a pending interruption and
// interruption delivery hasn't been suppressed on f by a
// DisableInterruption guard. Call it from inside a fiber's own entry
// function at a point that doesn't already pass through Yield,
// WaitUntil, or Join (those check on f's behalf once they resume).
func InterruptionPoint(f *Fiber) {
	if f != nil && f.checkInterruption() {
		panic(interruptSignal{})
	}
}

// DisableInterruption suppresses delivery of pending and future
// interruptions to f until every returned guard has had Restore
// called. Calls nest: a second DisableInterruption while the first is
// still active requires two Restores before delivery resumes. Must
// only be called from f's own goroutine; the guarded state isn't
// synchronized across goroutines.
func DisableInterruption(f *Fiber) *InterruptionGuard {
	f.interruptionDepth++
	return &InterruptionGuard{f: f}
}

// InterruptionGuard reverses one DisableInterruption call on the fiber
// that created it.
type InterruptionGuard struct {
	f        *Fiber
	restored bool
}

// Restore re-enables interruption delivery one nesting level. Safe to
// call at most meaningfully once; later calls are no-ops.
func (g *InterruptionGuard) Restore() {
	if g == nil || g.restored {
		return
	}
	g.restored = true
	if g.f.interruptionDepth > 0 {
		g.f.interruptionDepth--
	}
}

// RestoreInterruption nests inside an active DisableInterruption scope
// (guard) and temporarily undoes exactly the one nesting level guard
// established, re-enabling delivery for its own inner scope. Calling
// the returned RestoreGuard's Restore reimposes that level of
// suppression, putting guard's scope back the way it was. Must be
// called, and Restored, before guard itself is Restored.
func RestoreInterruption(guard *InterruptionGuard) *RestoreGuard {
	if guard.f.interruptionDepth > 0 {
		guard.f.interruptionDepth--
	}
	return &RestoreGuard{f: guard.f}
}

// RestoreGuard reverses one RestoreInterruption call, reimposing the
// suppression it temporarily lifted.
type RestoreGuard struct {
	f        *Fiber
	restored bool
}

// Restore reimposes the nesting level of suppression that
// RestoreInterruption temporarily lifted. Safe to call at most
// meaningfully once; later calls are no-ops.
func (g *RestoreGuard) Restore() {
	if g == nil || g.restored {
		return
	}
	g.restored = true
	g.f.interruptionDepth++
}
