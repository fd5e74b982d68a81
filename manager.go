package fiber

import (
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// farFuture stands in for "no deadline" on a fiber parked by Wait or Join:
// far enough out that it never legitimately elapses, but still a concrete
// time.Time so the wait queue's heap ordering and deadline comparisons
// don't need a separate sentinel case.
var farFuture = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

// Manager is a cooperative fiber scheduler: it owns a wait queue, a
// pluggable SchedulingAlgorithm, and the bookkeeping that decides which
// of its fibers runs next. Exactly one fiber's user code (or the
// external goroutine driving the Manager) runs at a time.
//
// A Manager must not be copied after first use.
type Manager struct {
	mu        sync.Mutex
	algorithm SchedulingAlgorithm
	waitQ     *waitQueue
	now       func() time.Time
	waitInterval time.Duration
	logger    *logiface.Logger[logiface.Event]
	metrics   *Metrics

	// active is the fiber currently holding the baton, or nil when the
	// external owner holds it (including whenever no fiber chain is in
	// progress at all).
	active *Fiber

	// rootCh is the external owner's baton: Run() blocks on it after
	// resuming a fiber, and a fiber whose own scheduling decision finds
	// nothing ready and whose resumedBy is nil sends on it.
	rootCh chan struct{}

	nextID uint64
	live   map[uint64]*Fiber
	closed bool
}

// NewManager constructs a Manager ready to accept Spawn calls.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	cfg, err := resolveManagerOptions(opts)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		algorithm:    cfg.algorithm,
		waitQ:        newWaitQueue(),
		now:          cfg.now,
		waitInterval: cfg.waitInterval,
		logger:       cfg.logger,
		rootCh:       make(chan struct{}),
		live:         make(map[uint64]*Fiber),
	}
	if cfg.metricsEnabled {
		m.metrics = newMetrics()
	}
	return m, nil
}

// Metrics returns the Manager's metrics collector, or nil if
// WithMetrics was not enabled at construction.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// NewFiber constructs a fiber bound to m but does not admit it to the
// scheduler or start its goroutine. Pass it to Spawn (immediately) or
// Migrate (after possibly reassigning ownership to a different Manager,
// which is safe as long as nothing has admitted it yet). Its id is
// assigned later, at admission, from whichever Manager ends up owning
// it — not here — so a NewFiber/Migrate pair across two Managers never
// collides with either one's own id space.
func (m *Manager) NewFiber(entry func()) (*Fiber, error) {
	if entry == nil {
		return nil, &SchedulerError{Op: "NewFiber", Err: ErrInvalidState}
	}
	return newFiber(0, m, entry), nil
}

// Spawn constructs a fiber and hands it to the scheduling algorithm,
// starting its backing goroutine. It does not itself run f: the next
// scheduling decision (an explicit Run(), or whatever other fiber next
// yields/waits) picks it up.
func (m *Manager) Spawn(entry func()) (*Fiber, error) {
	f, err := m.NewFiber(entry)
	if err != nil {
		return nil, err
	}
	if err := m.admit(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Migrate admits a fiber that was constructed (via NewFiber) but never
// run — f.State() must be Ready — starts its backing goroutine under m,
// and gives it one scheduling step. Reassigns f's owning Manager to m,
// which is only meaningful before the fiber has ever run.
func (m *Manager) Migrate(f *Fiber) error {
	if f == nil || f.State() != Ready {
		return &SchedulerError{Op: "Migrate", Err: ErrInvalidState}
	}
	if err := m.admit(f); err != nil {
		return err
	}
	m.Run()
	return nil
}

// admit is the shared admission path for Spawn and Migrate: it binds f
// to m, hands it to the scheduling algorithm, and starts its goroutine.
func (m *Manager) admit(f *Fiber) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &SchedulerError{Op: "Spawn", Err: ErrClosed}
	}
	m.nextID++
	f.id = m.nextID
	f.manager = m
	m.live[f.id] = f
	m.algorithm.Awakened(f)
	if m.metrics != nil {
		m.metrics.spawned.Add(1)
	}
	m.mu.Unlock()

	logSpawn(m.logger, f.id)
	go m.runFiberGoroutine(f)
	return nil
}

// runFiberGoroutine is the dedicated goroutine backing f's "stack". It
// parks until f is first resumed, runs f's entry function (recovering
// any panic, including our own interruption sentinel), and then hands
// control onward via finishFiber.
func (m *Manager) runFiberGoroutine(f *Fiber) {
	<-f.resumeCh

	globalRegistry.register(f)
	defer globalRegistry.unregister()

	var panicVal any
	var interrupted bool
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(interruptSignal); ok {
					interrupted = true
					return
				}
				panicVal = r
			}
		}()
		f.entry()
	}()

	m.finishFiber(f, panicVal, interrupted)
}

// sendBaton hands the baton to a fiber's resumeCh, or to the external
// owner's rootCh when to is nil.
func (m *Manager) sendBaton(to *Fiber) {
	if to == nil {
		m.rootCh <- struct{}{}
		return
	}
	to.resumeCh <- struct{}{}
}

// resumeLocked switches control to next, recording resumer as the
// fiber (nil for the external owner) that regains control if next's
// own next scheduling decision finds nothing ready. m.mu must be held
// on entry; it is released before this returns. Does not park the
// caller: that is scheduleAndPark's or Run()'s job.
func (m *Manager) resumeLocked(next, resumer *Fiber) {
	m.active = next
	next.state = Running
	next.resumedBy = resumer
	m.mu.Unlock()
	next.resumeCh <- struct{}{}
}

// dispatchOnce performs one scheduling decision while holding m.mu,
// releasing it before returning. fallback (nil meaning the external
// owner) is who regains control if nothing is ready. self, when
// non-nil, is the calling fiber's own identity: picking self again
// needs no channel round trip, since the caller already is that
// goroutine. It reports whether the caller must now wait on its own
// baton for this decision's winner to eventually hand control back.
func (m *Manager) dispatchOnce(fallback, self *Fiber) (mustWait bool) {
	start := m.now()
	defer func() {
		m.metrics.recordDecision(m.now().Sub(start))
	}()

	m.sweepLocked()
	next, ok := m.algorithm.PickNext()
	if !ok {
		m.active = nil
		m.mu.Unlock()
		m.sendBaton(fallback)
		return self != nil
	}
	if self != nil && next == self {
		m.active = next
		next.state = Running
		m.mu.Unlock()
		return false
	}
	m.resumeLocked(next, fallback)
	return self != nil
}

// scheduleAndPark gives up control on self's behalf: self has already
// been placed into whatever state reflects why it's yielding (Ready,
// Waiting) before this is called. It repeats single scheduling
// decisions, parking between each, until self itself is genuinely
// resumed — picked by the algorithm, or handed the baton with nothing
// else ready — rather than merely woken as a pass-through bounce
// further up the chain of who-resumed-whom. m.mu must be held on
// entry; released before this returns.
//
// dispatchOnce is given self.resumedBy, not self, as the fallback: self
// is mid-call here, not yet parked on its own resumeCh, so it cannot be
// the target of a same-goroutine synchronous send (that would deadlock
// against the receive a few lines below). self doesn't need to be in
// that bounce chain to be found again regardless — a Ready self stays a
// PickNext candidate through ordinary rotation, and a Waiting self is
// handed back to the algorithm by sweepLocked once its deadline or
// interruption fires. The resumedBy chain exists only to keep some
// already-parked ancestor retrying (and ultimately let the external
// owner sleep and recheck) when nothing anywhere is ready yet.
func (m *Manager) scheduleAndPark(self *Fiber) {
	for {
		if m.dispatchOnce(self.resumedBy, self) {
			<-self.resumeCh
		}
		m.mu.Lock()
		if self.state == Running {
			m.mu.Unlock()
			return
		}
		// woken as a pass-through bounce; self's own condition hasn't
		// actually been satisfied yet, so try again.
	}
}

// sweepLocked promotes every waiting fiber whose deadline has elapsed
// or which has a pending interruption into the scheduling algorithm.
// m.mu must be held.
func (m *Manager) sweepLocked() {
	for _, f := range m.waitQ.ScanReady(m.now()) {
		f.state = Ready
		m.algorithm.Awakened(f)
	}
	m.metrics.recordQueueDepth(m.waitQ.Len())
}

// nextWakeupLocked returns how long the external caller should sleep
// before re-checking the wait queue, clamped to [0, waitInterval].
func (m *Manager) nextWakeupLocked() time.Duration {
	f, ok := m.waitQ.Peek()
	if !ok {
		return m.waitInterval
	}
	d := f.deadline.Sub(m.now())
	if d <= 0 {
		return 0
	}
	if d > m.waitInterval {
		return m.waitInterval
	}
	return d
}

// Run performs at most one scheduling decision and returns. It is a
// no-op if a fiber chain is already active or the Manager is closed.
// Looping until some condition holds is the caller's job — see Join's
// externally-driven branch and Close.
func (m *Manager) Run() {
	m.mu.Lock()
	if m.active != nil || m.closed {
		m.mu.Unlock()
		return
	}
	start := m.now()
	defer func() {
		m.metrics.recordDecision(m.now().Sub(start))
	}()
	m.sweepLocked()
	next, ok := m.algorithm.PickNext()
	if !ok {
		d := m.nextWakeupLocked()
		m.mu.Unlock()
		if d > 0 {
			time.Sleep(d)
		}
		return
	}
	m.resumeLocked(next, nil)
	<-m.rootCh
}

// Yield marks self Ready, hands it back to the scheduling algorithm,
// and gives up control until it is picked again.
func (m *Manager) Yield(self *Fiber) {
	if self == nil {
		panic(&SchedulerError{Op: "Yield", Err: ErrInvalidState})
	}
	logTrace(m.logger, logCatYield, self.id)

	m.mu.Lock()
	self.state = Ready
	m.algorithm.Awakened(self)
	m.scheduleAndPark(self)
	if m.metrics != nil {
		m.metrics.yields.Add(1)
	}

	if self.checkInterruption() {
		if m.metrics != nil {
			m.metrics.interruptions.Add(1)
		}
		panic(interruptSignal{})
	}
}

// WaitUntil parks self until deadline elapses, it is woken externally
// (via Awakened, see the fibersync package), or it is interrupted. lk,
// when non-nil, is a held lock protecting the condition self is
// waiting on; it is released only after self's state change is visible
// to a concurrent signaller holding the same lock, so no wakeup can be
// lost between the check and the wait. Returns true unless the
// deadline elapsed (a timeout); panics with the internal interruption
// sentinel if interrupted.
func (m *Manager) WaitUntil(self *Fiber, deadline time.Time, lk sync.Locker) bool {
	if self == nil {
		panic(&SchedulerError{Op: "WaitUntil", Err: ErrInvalidState})
	}
	logTrace(m.logger, logCatWait, self.id)

	m.mu.Lock()
	self.state = Waiting
	if lk != nil {
		lk.Unlock()
	}
	self.deadline = deadline
	m.waitQ.Push(self)
	m.scheduleAndPark(self)
	if m.metrics != nil {
		m.metrics.waits.Add(1)
	}

	if self.checkInterruption() {
		if m.metrics != nil {
			m.metrics.interruptions.Add(1)
		}
		panic(interruptSignal{})
	}
	return m.now().Before(deadline)
}

// Wait parks self indefinitely, until it is woken externally or
// interrupted.
func (m *Manager) Wait(self *Fiber, lk sync.Locker) {
	m.WaitUntil(self, farFuture, lk)
}

// Join blocks self until target terminates. If self is nil, the
// external goroutine drives the scheduler directly (repeated Run()
// calls) until target terminates. Returns ErrInvalidState if target is
// nil or is self; panics with the internal interruption sentinel if
// self is interrupted while waiting.
func (m *Manager) Join(self, target *Fiber) error {
	if target == nil || target == self {
		return &SchedulerError{Op: "Join", Err: ErrInvalidState}
	}
	if self == nil {
		for !target.IsTerminated() {
			m.Run()
		}
		return nil
	}

	logTrace(m.logger, logCatJoin, self.id)

	m.mu.Lock()
	if target.state == Terminated {
		// Joining an already-finished target still costs self a
		// scheduling decision: self goes back through the algorithm as
		// an ordinary Ready fiber rather than cutting in front of
		// whatever else is already waiting its turn.
		self.state = Ready
		m.algorithm.Awakened(self)
		m.scheduleAndPark(self)
		if m.metrics != nil {
			m.metrics.joins.Add(1)
		}
		if self.checkInterruption() {
			if m.metrics != nil {
				m.metrics.interruptions.Add(1)
			}
			panic(interruptSignal{})
		}
		return nil
	}
	self.state = Waiting
	self.deadline = farFuture
	target.joinList = append(target.joinList, self)
	m.waitQ.Push(self)
	m.scheduleAndPark(self)
	if m.metrics != nil {
		m.metrics.joins.Add(1)
	}

	if self.checkInterruption() {
		m.mu.Lock()
		removeJoiner(target, self)
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.interruptions.Add(1)
		}
		panic(interruptSignal{})
	}
	return nil
}

// removeJoiner drops self from target's joinList, if present. m.mu
// must be held.
func removeJoiner(target, self *Fiber) {
	for i, j := range target.joinList {
		if j == self {
			target.joinList = append(target.joinList[:i], target.joinList[i+1:]...)
			return
		}
	}
}

// Awakened marks f Ready and hands it to the scheduling algorithm,
// removing it from the wait queue if it was parked there. Exposed for
// synchronization primitives (see the fibersync package) that need to
// wake a specific fiber outside of the deadline/interruption-driven
// sweep.
func (m *Manager) Awakened(f *Fiber) {
	if f == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.state == Terminated || f.state == Ready || f.state == Running {
		return
	}
	m.waitQ.Remove(f)
	f.state = Ready
	m.algorithm.Awakened(f)
}

// finishFiber runs once f's entry function has returned or panicked.
// It records the panic value (if any), releases every joiner, drops f
// from the live registry if it was detached, and performs one final
// scheduling decision on f's behalf. Control bounces to f's own
// resumer directly — f has nothing further to hand off to, and unlike
// the original single-stack model, that resumer already has its own
// independent goroutine waiting on its own baton, so there's no need
// to replay f's resume chain.
func (m *Manager) finishFiber(f *Fiber, panicVal any, interrupted bool) {
	switch {
	case interrupted:
		logLifecycle(m.logger, logCatInterrupt, f.id)
	case panicVal != nil:
		logPanic(m.logger, f.id, &PanicError{FiberID: f.id, Value: panicVal})
		if m.metrics != nil {
			m.metrics.panics.Add(1)
		}
	default:
		logLifecycle(m.logger, logCatTerminate, f.id)
	}

	m.mu.Lock()
	f.panicValue = panicVal
	f.state = Terminated
	m.waitQ.Remove(f)
	joiners := f.joinList
	f.joinList = nil
	for _, j := range joiners {
		m.waitQ.Remove(j)
		j.state = Ready
		m.algorithm.Awakened(j)
	}
	if f.Detached() {
		delete(m.live, f.id)
	}
	if m.metrics != nil {
		m.metrics.terminated.Add(1)
		if f.Detached() {
			m.metrics.detachedCleaned.Add(1)
		}
	}

	fallback := f.resumedBy
	m.sweepLocked()
	next, ok := m.algorithm.PickNext()
	if !ok {
		m.active = nil
		m.mu.Unlock()
		m.sendBaton(fallback)
		return
	}
	m.resumeLocked(next, fallback)
}

// Close drains any fibers still parked on the wait queue, giving
// scheduled work a final chance to complete, then marks the Manager
// closed to further Spawn/Migrate calls. It does not forcibly
// terminate fibers: a Ready fiber that was never Spawned into the
// queue, or a fiber that never parks, is the caller's responsibility,
// matching the scheduler's general non-goal of protecting against
// uncooperative fibers.
func (m *Manager) Close() error {
	for {
		m.mu.Lock()
		empty := m.waitQ.Len() == 0
		m.mu.Unlock()
		if empty {
			break
		}
		m.Run()
	}
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
