package fiber

import (
	"sync/atomic"
	"time"
)

// Fiber is a single lightweight, cooperatively-scheduled unit of work
// managed by a [Manager]. Fibers are created with [Manager.Spawn] and
// never constructed directly.
//
// Most fields are only ever touched while the owning Manager's mutex is
// held, or exclusively by the fiber's own goroutine between hand-offs;
// the exception is interruptionRequested and detached, which can be set
// from arbitrary goroutines (RequestInterruption, Detach) and so use
// atomics. interruptionDepth is touched only by this fiber's own
// goroutine (DisableInterruption/Restore), never from outside.
type Fiber struct {
	id      uint64
	manager *Manager
	entry   func()

	state    State
	deadline time.Time
	// heapIndex tracks this fiber's position in the manager's waitQueue;
	// -1 when not currently queued.
	heapIndex int

	joinList []*Fiber

	// resumedBy is the fiber (nil meaning the Manager's external owner)
	// that most recently switched control to this fiber. If this
	// fiber's own scheduling decision finds nothing else ready, control
	// is handed straight back to resumedBy rather than left to a
	// polling loop, mirroring a stackful coroutine's implicit "return
	// to caller" behaviour.
	resumedBy *Fiber

	// resumeCh is the baton: exactly one send occurs per wake-up, and
	// this fiber's own goroutine is the only reader.
	resumeCh chan struct{}

	detached              atomic.Bool
	interruptionRequested atomic.Bool
	// interruptionDepth counts active DisableInterruption guards; zero
	// means interruption delivery is enabled. Only ever touched by this
	// fiber's own goroutine, so it needs no synchronization of its own.
	interruptionDepth int
	panicValue        any
}

func newFiber(id uint64, mgr *Manager, entry func()) *Fiber {
	return &Fiber{
		id:        id,
		manager:   mgr,
		entry:     entry,
		state:     Ready,
		heapIndex: -1,
		resumeCh:  make(chan struct{}),
	}
}

// ID returns the fiber's manager-unique identifier.
func (f *Fiber) ID() uint64 { return f.id }

// ManagerOf returns the Manager that owns f.
func (f *Fiber) ManagerOf() *Manager { return f.manager }

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() State {
	f.manager.mu.Lock()
	defer f.manager.mu.Unlock()
	return f.state
}

// IsTerminated reports whether the fiber has finished running.
func (f *Fiber) IsTerminated() bool {
	return f.State() == Terminated
}

// Detach marks the fiber as detached: once Terminated, a detached fiber
// is dropped from the manager's live registry as soon as control moves
// away from it, without requiring a Join. Detaching a fiber that has
// nobody waiting to Join it is the normal way to fire-and-forget work.
func (f *Fiber) Detach() {
	f.detached.Store(true)
}

// Detached reports whether Detach has been called.
func (f *Fiber) Detached() bool {
	return f.detached.Load()
}

// InterruptionEnabled reports whether interruption delivery is
// currently enabled for f, i.e. no DisableInterruption guard covering
// it is outstanding.
func (f *Fiber) InterruptionEnabled() bool {
	return f.interruptionDepth == 0
}

// InterruptionRequested reports whether a RequestInterruption call is
// pending delivery, without consuming it the way checkInterruption
// does.
func (f *Fiber) InterruptionRequested() bool {
	return f.interruptionRequested.Load()
}

// Panic returns the value recovered from the fiber's entry function if
// it terminated via an unrecovered panic other than an interruption,
// or nil if it returned normally or was interrupted.
func (f *Fiber) Panic() any {
	f.manager.mu.Lock()
	defer f.manager.mu.Unlock()
	return f.panicValue
}

// checkInterruption reports whether an interruption should fire right
// now, clearing the pending flag first (the request is one-shot: it
// fires at most once per RequestInterruption call).
func (f *Fiber) checkInterruption() bool {
	if f.interruptionDepth > 0 {
		return false
	}
	return f.interruptionRequested.CompareAndSwap(true, false)
}
