// Package fiber implements a cooperative, single-goroutine-at-a-time
// fiber scheduler: a manager runs many lightweight fibers, each backed by
// its own goroutine, one at a time, switching between them only at
// well-defined points (yield, wait, join) rather than preemptively.
//
// A Fiber moves through four states: Ready, Running, Waiting and
// Terminated. At most one fiber managed by a given [Manager] is Running
// at any instant; everything else is Ready (eligible to run next),
// Waiting (parked on a deadline and/or an external wakeup), or
// Terminated. Which Ready fiber runs next is delegated to a
// [SchedulingAlgorithm]; [FIFO] is used unless a [Manager] is
// constructed with [WithAlgorithm].
//
// Fibers cooperate: a fiber keeps the CPU until it calls [Manager.Yield],
// blocks via [Manager.WaitUntil] or [Manager.Join], or returns from its
// entry function. There is no raw stack-switch primitive in Go, so each
// Fiber is backed by its own goroutine; the "context switch" described
// in scheduler theory is realized here as a baton handoff over an
// unbuffered channel, which is why only one fiber's user code ever runs
// concurrently with the scheduler's own bookkeeping.
//
// Cancellation is cooperative too: [thisfiber.InterruptionPoint] (and
// the blocking operations themselves) raise an interruption by
// panicking with an internal sentinel, recovered only at the fiber's
// entry-function boundary, unless interruption has been scoped off with
// [thisfiber.DisableInterruption].
//
// Example:
//
//	mgr, err := fiber.NewManager()
//	if err != nil {
//		return err
//	}
//	f, err := mgr.Spawn(func() {
//		for i := 0; i < 3; i++ {
//			fmt.Println("tick", i)
//			thisfiber.Yield()
//		}
//	})
//	if err != nil {
//		return err
//	}
//	return mgr.Join(nil, f)
package fiber
