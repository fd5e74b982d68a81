//go:build linux

package fiber

import "golang.org/x/sys/unix"

// osThreadID returns the underlying OS thread id the calling goroutine
// happens to be running on right now, for diagnostic logging only —
// goroutines migrate between OS threads, so this is never used as a
// lookup key, only attached to lifecycle log lines as auxiliary
// context alongside the goroutine id from currentGoroutineID.
func osThreadID() int {
	return unix.Gettid()
}
