package fibersync

import (
	"sync"

	"github.com/fast01/fiber"
)

// Cond is a fiber-aware condition variable, modeled on sync.Cond:
// callers hold L, call Wait to atomically release L and park the
// calling fiber, and are later woken (with L re-acquired) by a Signal
// or Broadcast call from whatever fiber, or external goroutine,
// changed the condition being waited on.
type Cond struct {
	// L is held by callers around Wait and around the condition check
	// preceding it, exactly as with sync.Cond.
	L sync.Locker

	mu      sync.Mutex
	waiters []*fiber.Fiber
}

// NewCond returns a new Cond guarded by l.
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l}
}

// Wait atomically unlocks c.L and parks the calling fiber, re-locking
// c.L before returning (or before an interruption panic propagates,
// matching sync.Cond's contract that Wait always returns with L held).
// Must be called from inside a fiber.
func (c *Cond) Wait() {
	f, ok := fiber.ActiveFiber()
	if !ok {
		panic("fibersync: Cond.Wait called outside a fiber")
	}
	m := f.ManagerOf()

	c.mu.Lock()
	c.waiters = append(c.waiters, f)
	c.mu.Unlock()

	defer c.L.Lock()
	defer func() {
		if r := recover(); r != nil {
			c.removeWaiter(f)
			panic(r)
		}
	}()
	m.Wait(f, c.L)
}

// Signal wakes one fiber blocked in Wait, if any, in FIFO order.
func (c *Cond) Signal() {
	c.mu.Lock()
	if len(c.waiters) == 0 {
		c.mu.Unlock()
		return
	}
	f := c.waiters[0]
	c.waiters = c.waiters[1:]
	c.mu.Unlock()
	f.ManagerOf().Awakened(f)
}

// Broadcast wakes every fiber currently blocked in Wait.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, f := range waiters {
		f.ManagerOf().Awakened(f)
	}
}

func (c *Cond) removeWaiter(f *fiber.Fiber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == f {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}
