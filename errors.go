package fiber

import (
	"errors"
	"fmt"
)

// ErrInvalidState indicates an operation was attempted against a fiber
// or manager in a state that makes the operation meaningless: joining
// a fiber to itself, or spawning with a nil entry function. A closed
// Manager reports [ErrClosed] instead.
var ErrInvalidState = errors.New("fiber: invalid state")

// ErrInterrupted names the cooperative-interruption condition. No
// function in this package returns it: fiber-local blocking calls and
// InterruptionPoint deliver interruption by panicking with an
// unexported sentinel, which is not an error value and does not unwrap
// to ErrInterrupted.
var ErrInterrupted = errors.New("fiber: interrupted")

// ErrClosed indicates the Manager has been closed and no longer accepts
// new work.
var ErrClosed = errors.New("fiber: manager closed")

// SchedulerError wraps a scheduler-level failure with the operation
// that produced it (Unwrap returns the underlying sentinel for use
// with [errors.Is]).
type SchedulerError struct {
	Op  string
	Err error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("fiber: %s: %v", e.Op, e.Err)
}

func (e *SchedulerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a fiber's entry function that
// was not our internal interruption sentinel, i.e. a genuine bug in
// user code. The scheduler treats an unwinding entry function as fiber
// termination regardless; it passes a PanicError to the Manager's
// logger, while [Fiber.Panic] returns the raw recovered value.
type PanicError struct {
	FiberID uint64
	Value   any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("fiber %d: panic: %v", e.FiberID, e.Value)
}

// Unwrap returns the underlying error if the recovered panic value was
// itself an error, enabling [errors.Is]/[errors.As] through the chain.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// interruptSignal is the internal sentinel panicked by InterruptionPoint
// and the blocking operations when a cooperative interruption fires. It
// is recovered only at the fiber entry-function boundary in
// [Manager.Spawn]'s goroutine wrapper, where it is translated into a
// normal Terminated transition rather than an unhandled panic.
type interruptSignal struct{}

// WrapError wraps an error with a message, preserving the cause chain
// for [errors.Is]/[errors.As].
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
