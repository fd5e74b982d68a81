package fiber

import (
	"time"

	"github.com/joeycumines/logiface"
)

// managerOptions holds configuration resolved from a Manager's
// ManagerOption values before construction.
type managerOptions struct {
	algorithm      SchedulingAlgorithm
	waitInterval   time.Duration
	now            func() time.Time
	logger         *logiface.Logger[logiface.Event]
	metricsEnabled bool
}

// ManagerOption configures a Manager at construction time.
type ManagerOption interface {
	applyManager(*managerOptions) error
}

type managerOptionFunc struct {
	fn func(*managerOptions) error
}

func (o *managerOptionFunc) applyManager(opts *managerOptions) error {
	return o.fn(opts)
}

// WithAlgorithm overrides the default [FIFO] scheduling algorithm.
func WithAlgorithm(algo SchedulingAlgorithm) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		if algo == nil {
			return &SchedulerError{Op: "WithAlgorithm", Err: ErrInvalidState}
		}
		opts.algorithm = algo
		return nil
	}}
}

// WithWaitInterval bounds how long the Manager sleeps, when driven
// externally with nothing ready, before re-checking the wait queue.
// It defaults to 10 milliseconds.
func WithWaitInterval(d time.Duration) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		if d <= 0 {
			return &SchedulerError{Op: "WithWaitInterval", Err: ErrInvalidState}
		}
		opts.waitInterval = d
		return nil
	}}
}

// WithNowFunc overrides the Manager's notion of the current time, for
// deterministic tests of deadline-based waits.
func WithNowFunc(now func() time.Time) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		if now == nil {
			return &SchedulerError{Op: "WithNowFunc", Err: ErrInvalidState}
		}
		opts.now = now
		return nil
	}}
}

// WithLogger attaches a structured logger, built via logiface, that the
// Manager uses for lifecycle and error events (spawn, termination,
// panics, interruption). A nil logger (the default) disables logging;
// see logging.go for the rate-limited trace helpers built on top of it.
func WithLogger(logger *logiface.Logger[logiface.Event]) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables latency/throughput/queue-depth metric collection,
// retrievable via [Manager.Metrics]. Disabled by default to keep the
// scheduling hot path allocation-free.
func WithMetrics(enabled bool) ManagerOption {
	return &managerOptionFunc{func(opts *managerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveManagerOptions applies opts over the documented defaults.
func resolveManagerOptions(opts []ManagerOption) (*managerOptions, error) {
	cfg := &managerOptions{
		algorithm:    NewFIFO(),
		waitInterval: 10 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyManager(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
