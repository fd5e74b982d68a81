package fiber

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// registry maps the id of a goroutine backing a running fiber to that
// fiber, so package-level helpers (see thisfiber) can recover "the
// fiber running on this goroutine" without threading a *Fiber through
// every call in a fiber's own code. Go has no native goroutine-local
// storage; this is the standard workaround, parsing the goroutine id
// out of runtime.Stack's header line.
//
// Entries are added when a fiber's goroutine first receives the baton
// and removed when that goroutine's entry function returns (including
// via panic/interruption) — see manager.go's runFiberGoroutine.
type registry struct {
	mu   sync.RWMutex
	data map[int64]*Fiber
}

var globalRegistry = newRegistry()

func newRegistry() *registry {
	return &registry{
		data: make(map[int64]*Fiber),
	}
}

func (r *registry) register(f *Fiber) {
	id := currentGoroutineID()
	r.mu.Lock()
	r.data[id] = f
	r.mu.Unlock()
}

func (r *registry) unregister() {
	id := currentGoroutineID()
	r.mu.Lock()
	delete(r.data, id)
	r.mu.Unlock()
}

// lookup returns the fiber registered against the calling goroutine, if
// any.
func (r *registry) lookup() (*Fiber, bool) {
	id := currentGoroutineID()
	r.mu.RLock()
	f, ok := r.data[id]
	r.mu.RUnlock()
	return f, ok
}

// CurrentFiber returns the fiber currently running on the calling
// goroutine, and whether one was found. False when called from the
// external goroutine driving a Manager, or from any goroutine that
// isn't a fiber's own.
func CurrentFiber() (*Fiber, bool) {
	return globalRegistry.lookup()
}

// ActiveFiber is CurrentFiber under the name synchronization primitives
// (fibersync) call it by: the fiber that currently holds the baton on
// the calling goroutine, or false if called from the Manager's external
// owner.
func ActiveFiber() (*Fiber, bool) {
	return globalRegistry.lookup()
}

// currentGoroutineID parses the numeric id out of the calling
// goroutine's own stack trace header ("goroutine 37 [running]:"). It
// allocates a small buffer per call; registry lookups happen only at
// fiber entry/exit and from thisfiber's occasional convenience calls,
// never on a scheduling hot path, so this cost is acceptable.
func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return -1
	}
	line = line[len(prefix):]
	end := bytes.IndexByte(line, ' ')
	if end < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(line[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
