package fiber

import (
	"sync"
	"testing"
	"time"
)

func TestSpawnDoesNotRun(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	ran := false
	f, err := m.Spawn(func() { ran = true })
	if err != nil {
		t.Fatal(err)
	}
	if f.State() != Ready {
		t.Fatalf("state = %v, want Ready", f.State())
	}
	if ran {
		t.Fatal("Spawn must not run the fiber")
	}
}

func TestRunPicksSpawnedFiber(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		_, err := m.Spawn(func() { order = append(order, i) })
		if err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		m.Run()
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("order = %v, want [0 1 2] (FIFO)", order)
	}
}

func TestYieldRoundRobin(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	var trace []string
	spawn := func(name string) *Fiber {
		f, err := m.Spawn(func() {
			self, _ := CurrentFiber()
			for i := 0; i < 2; i++ {
				trace = append(trace, name)
				m.Yield(self)
			}
		})
		if err != nil {
			t.Fatal(err)
		}
		return f
	}
	a := spawn("a")
	b := spawn("b")

	if err := m.Join(nil, a); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(nil, b); err != nil {
		t.Fatal(err)
	}

	if len(trace) != 4 {
		t.Fatalf("trace = %v, want 4 entries", trace)
	}
	for i, want := range []string{"a", "b", "a", "b"} {
		if trace[i] != want {
			t.Fatalf("trace = %v, want [a b a b] (round robin)", trace)
		}
	}
}

func TestWaitUntilTimesOut(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m, err := NewManager(WithNowFunc(clock), WithWaitInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	var woke bool
	var timedOut bool
	f, err := m.Spawn(func() {
		f, _ := CurrentFiber()
		timedOut = !m.WaitUntil(f, now.Add(5*time.Millisecond), nil)
		woke = true
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Run() // parks f in the wait queue

	if f.State() != Waiting {
		t.Fatalf("state = %v, want Waiting", f.State())
	}

	now = now.Add(10 * time.Millisecond)
	if err := m.Join(nil, f); err != nil {
		t.Fatal(err)
	}
	if !woke || !timedOut {
		t.Fatalf("woke=%v timedOut=%v, want true true", woke, timedOut)
	}
}

func TestWaitReleasesLockBeforeParking(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	unlockedWhileWaiting := false

	f, err := m.Spawn(func() {
		self, _ := CurrentFiber()
		mu.Lock()
		m.Wait(self, &mu)
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Run()

	if mu.TryLock() {
		unlockedWhileWaiting = true
		mu.Unlock()
	}
	if !unlockedWhileWaiting {
		t.Fatal("Wait did not release the caller's lock before parking")
	}

	m.Awakened(f)
	if err := m.Join(nil, f); err != nil {
		t.Fatal(err)
	}
}

func TestJoinWaitsForTermination(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	done := false
	f, err := m.Spawn(func() {
		self, _ := CurrentFiber()
		m.Yield(self)
		done = true
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Join(nil, f); err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("Join returned before target terminated")
	}
	if !f.IsTerminated() {
		t.Fatal("target not Terminated after Join")
	}
}

func TestJoinTwoFibers(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	var joined bool
	target, err := m.Spawn(func() {
		self, _ := CurrentFiber()
		m.Yield(self)
	})
	if err != nil {
		t.Fatal(err)
	}
	joiner, err := m.Spawn(func() {
		self, _ := CurrentFiber()
		if err := m.Join(self, target); err != nil {
			t.Error(err)
		}
		joined = true
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Join(nil, target); err != nil {
		t.Fatal(err)
	}
	// the joiner is woken by target's termination but may not yet have
	// run its final statement; drive it to completion too.
	if err := m.Join(nil, joiner); err != nil {
		t.Fatal(err)
	}
	if !joined {
		t.Fatal("joining fiber never observed target's termination")
	}
}

// Joining a target that's already Terminated by the time Join is
// called must still cost the joiner one scheduling round through the
// algorithm, rather than continuing to run in the same turn ahead of
// an already-ready fiber that was waiting its turn.
func TestJoinAlreadyTerminatedYieldsSchedulingRound(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	var order []string

	target, err := m.Spawn(func() {})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Join(nil, target); err != nil {
		t.Fatal(err)
	}

	other, err := m.Spawn(func() {
		self, _ := CurrentFiber()
		m.Yield(self)
		order = append(order, "other")
	})
	if err != nil {
		t.Fatal(err)
	}
	joiner, err := m.Spawn(func() {
		self, _ := CurrentFiber()
		if err := m.Join(self, target); err != nil {
			t.Error(err)
		}
		order = append(order, "joiner")
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Join(nil, other); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(nil, joiner); err != nil {
		t.Fatal(err)
	}

	if len(order) != 2 || order[0] != "other" || order[1] != "joiner" {
		t.Fatalf("order = %v, want [other joiner]", order)
	}
}

func TestJoinRejectsSelf(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	f, err := m.Spawn(func() {})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Join(f, f); err == nil {
		t.Fatal("Join(f, f) should fail")
	}
}

func TestInterruptionTerminatesFiber(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	var reachedEnd bool
	f, err := m.Spawn(func() {
		self, _ := CurrentFiber()
		m.Wait(self, nil)
		reachedEnd = true
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Run()
	if f.State() != Waiting {
		t.Fatalf("state = %v, want Waiting", f.State())
	}

	RequestInterruption(f)
	if err := m.Join(nil, f); err != nil {
		t.Fatal(err)
	}
	if reachedEnd {
		t.Fatal("interrupted fiber should not reach code past the wait")
	}
	if !f.IsTerminated() {
		t.Fatal("interrupted fiber should be Terminated")
	}
	if f.Panic() != nil {
		t.Fatalf("Panic() = %v, want nil for a clean interruption", f.Panic())
	}
}

func TestMigrateAdmitsAndRunsOnce(t *testing.T) {
	m1, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	m2, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	ran := false
	f, err := m1.NewFiber(func() { ran = true })
	if err != nil {
		t.Fatal(err)
	}
	if err := m2.Migrate(f); err != nil {
		t.Fatal(err)
	}
	if f.ManagerOf() != m2 {
		t.Fatal("Migrate did not reassign the owning manager")
	}
	if !ran {
		t.Fatal("Migrate should give the fiber one scheduling step")
	}
}

func TestCloseDrainsWaitQueue(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	deadline := clock().Add(time.Millisecond)
	m, err := NewManager(WithNowFunc(clock), WithWaitInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	finished := false
	_, err = m.Spawn(func() {
		self, _ := CurrentFiber()
		m.WaitUntil(self, deadline, nil)
		finished = true
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Run() // parks it

	go func() {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		now = now.Add(time.Second)
		mu.Unlock()
	}()
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if !finished {
		t.Fatal("Close should drain the wait queue before returning")
	}
	if _, err := m.Spawn(func() {}); err == nil {
		t.Fatal("Spawn after Close should fail")
	}
}

func TestMetricsCountersAdvance(t *testing.T) {
	m, err := NewManager(WithMetrics(true))
	if err != nil {
		t.Fatal(err)
	}
	f, err := m.Spawn(func() {
		self, _ := CurrentFiber()
		m.Yield(self)
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Join(nil, f); err != nil {
		t.Fatal(err)
	}
	snap := m.Metrics().Snapshot()
	if snap.Spawned != 1 || snap.Terminated != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Yields != 1 {
		t.Fatalf("Yields = %d, want 1", snap.Yields)
	}
}
