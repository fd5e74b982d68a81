package fibersync_test

import (
	"testing"

	"github.com/fast01/fiber"
	"github.com/fast01/fiber/fibersync"
	"github.com/fast01/fiber/thisfiber"
)

func TestSpinlockMutualExclusion(t *testing.T) {
	m, err := fiber.NewManager()
	if err != nil {
		t.Fatal(err)
	}
	var lock fibersync.Spinlock
	counter := 0
	var order []string

	spawn := func(name string) *fiber.Fiber {
		f, err := m.Spawn(func() {
			lock.Lock()
			order = append(order, name+":enter")
			counter++
			thisfiber.Yield()
			order = append(order, name+":exit")
			lock.Unlock()
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

	if counter != 2 {
		t.Fatalf("counter = %d, want 2", counter)
	}
	// whichever fiber enters first must also exit before the other
	// enters, proving mutual exclusion held across the Yield inside
	// the critical section.
	if len(order) != 4 {
		t.Fatalf("order = %v, want 4 entries", order)
	}
	first := order[0][:1]
	if order[1] != first+":exit" {
		t.Fatalf("order = %v, want %s to exit before the other enters", order, first)
	}
}

func TestSpinlockTryLock(t *testing.T) {
	var lock fibersync.Spinlock
	if !lock.TryLock() {
		t.Fatal("TryLock on unlocked Spinlock should succeed")
	}
	if lock.TryLock() {
		t.Fatal("TryLock on locked Spinlock should fail")
	}
	lock.Unlock()
	if !lock.TryLock() {
		t.Fatal("TryLock after Unlock should succeed")
	}
}
