package fiber

import (
	"fmt"
	"io"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// log categories, used both as the "op" field on structured events and as
// the catrate category for the trace-level hot path helpers below.
const (
	logCatSpawn     = "spawn"
	logCatYield     = "yield"
	logCatWait      = "wait"
	logCatJoin      = "join"
	logCatTerminate = "terminate"
	logCatPanic     = "panic"
	logCatInterrupt = "interrupt"
	logCatSchedule  = "schedule"
)

// traceLimiter rate limits the highest-frequency scheduling events (every
// yield, wait and join) so that a Manager under WithLogger with
// trace-level logging enabled doesn't spend more time formatting log lines
// than scheduling fibers. Bursty categories still get through; sustained
// hot loops get throttled, dropping the excess rather than queueing it.
var traceLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 200,
	time.Minute: 2000,
})

// logTrace emits a trace-level event for a hot-path scheduling decision,
// subject to traceLimiter. Silently skipped if logger is nil or disabled.
func logTrace(logger *logiface.Logger[logiface.Event], category string, fiberID uint64) {
	if logger == nil {
		return
	}
	b := logger.Trace()
	if !b.Enabled() {
		return
	}
	if _, ok := traceLimiter.Allow(category); !ok {
		return
	}
	b.Str("op", category).Uint64("fiber", fiberID).Log("scheduler trace")
}

// logLifecycle emits an info-level event for a fiber lifecycle transition
// (termination, interruption; spawn goes through logSpawn). These aren't rate limited: they're bounded by the
// number of fibers, not the number of scheduling decisions.
func logLifecycle(logger *logiface.Logger[logiface.Event], category string, fiberID uint64) {
	if logger == nil {
		return
	}
	if b := logger.Info(); b.Enabled() {
		b.Str("op", category).Uint64("fiber", fiberID).Log("fiber lifecycle")
	}
}

// logSpawn emits the spawn lifecycle event, additionally recording the
// OS thread the spawning goroutine happened to be running on (Linux
// only; -1 elsewhere) as diagnostic context — never used as a lookup
// key, just useful when correlating scheduler logs with OS-level
// tooling (strace, perf) during debugging.
func logSpawn(logger *logiface.Logger[logiface.Event], fiberID uint64) {
	if logger == nil {
		return
	}
	if b := logger.Info(); b.Enabled() {
		b.Str("op", logCatSpawn).Uint64("fiber", fiberID).Int("thread", osThreadID()).Log("fiber lifecycle")
	}
}

// logPanic emits an error-level event for a fiber that terminated via an
// unrecovered, non-interruption panic.
func logPanic(logger *logiface.Logger[logiface.Event], fiberID uint64, err error) {
	if logger == nil {
		return
	}
	if b := logger.Err(); b.Enabled() {
		b.Str("op", logCatPanic).Uint64("fiber", fiberID).Err(err).Log("fiber panicked")
	}
}

// logField is one key/value pair recorded against a logEvent, in the
// order AddField was called.
type logField struct {
	key string
	val any
}

// logEvent is this module's logiface.Event implementation: an ordered
// field buffer with a plain text encoding, terminal-friendly and
// requiring no external JSON dependency for basic usage.
type logEvent struct {
	logiface.UnimplementedEvent
	level   logiface.Level
	message string
	err     error
	fields  []logField
}

func (e *logEvent) Level() logiface.Level { return e.level }

func (e *logEvent) AddField(key string, val any) {
	e.fields = append(e.fields, logField{key: key, val: val})
}

func (e *logEvent) AddMessage(msg string) bool {
	e.message = msg
	return true
}

func (e *logEvent) AddError(err error) bool {
	e.err = err
	return true
}

var logEventFactory = logiface.NewEventFactoryFunc(func(level logiface.Level) *logEvent {
	return &logEvent{level: level}
})

func writeLogEvent(w io.Writer, e *logEvent) error {
	if _, err := fmt.Fprintf(w, "[%s] %s", e.level, e.message); err != nil {
		return err
	}
	for _, f := range e.fields {
		if _, err := fmt.Fprintf(w, " %s=%v", f.key, f.val); err != nil {
			return err
		}
	}
	if e.err != nil {
		if _, err := fmt.Fprintf(w, " err=%v", e.err); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// NewTextLogger builds a Manager-compatible logger, suitable for
// [WithLogger], writing one line per event to w. It's the low-overhead
// default for basic usage; wire a different [logiface.Writer] (JSON,
// zerolog, an external sink) via logiface directly for anything more.
func NewTextLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return logiface.New[*logEvent](
		logiface.WithLevel[*logEvent](level),
		logiface.WithEventFactory[*logEvent](logEventFactory),
		logiface.WithWriter[*logEvent](logiface.NewWriterFunc(func(e *logEvent) error {
			return writeLogEvent(w, e)
		})),
	).Logger()
}
