package fiber

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects runtime statistics for a Manager: lifecycle counters,
// scheduling-decision latency percentiles, and wait-queue depth. Enable
// with WithMetrics(true) and retrieve with Manager.Metrics(); a Manager
// built without WithMetrics has a nil Metrics and records nothing.
type Metrics struct {
	spawned         atomic.Int64
	terminated      atomic.Int64
	detachedCleaned atomic.Int64
	yields          atomic.Int64
	waits           atomic.Int64
	joins           atomic.Int64
	interruptions   atomic.Int64
	panics          atomic.Int64

	decisions decisionLatency
	depth     queueDepth
}

func newMetrics() *Metrics {
	return &Metrics{
		decisions: newDecisionLatency(),
	}
}

// Snapshot is a point-in-time copy of a Metrics' counters, safe to read
// without further synchronization.
type Snapshot struct {
	Spawned         int64
	Terminated      int64
	DetachedCleaned int64
	Yields          int64
	Waits           int64
	Joins           int64
	Interruptions   int64
	Panics          int64

	DecisionCount int64
	DecisionP50   time.Duration
	DecisionP90   time.Duration
	DecisionP99   time.Duration

	QueueDepthCurrent int64
	QueueDepthMax     int64
}

// Snapshot reads every counter and returns an independent copy.
func (mt *Metrics) Snapshot() Snapshot {
	count, p50, p90, p99 := mt.decisions.snapshot()
	cur, max := mt.depth.snapshot()
	return Snapshot{
		Spawned:           mt.spawned.Load(),
		Terminated:        mt.terminated.Load(),
		DetachedCleaned:   mt.detachedCleaned.Load(),
		Yields:            mt.yields.Load(),
		Waits:             mt.waits.Load(),
		Joins:             mt.joins.Load(),
		Interruptions:     mt.interruptions.Load(),
		Panics:            mt.panics.Load(),
		DecisionCount:     count,
		DecisionP50:       p50,
		DecisionP90:       p90,
		DecisionP99:       p99,
		QueueDepthCurrent: cur,
		QueueDepthMax:     max,
	}
}

// recordDecision folds the wall-clock duration of one scheduling
// decision (a single dispatchOnce or Run call) into the latency
// percentiles.
func (mt *Metrics) recordDecision(d time.Duration) {
	if mt == nil {
		return
	}
	mt.decisions.observe(d)
}

// recordQueueDepth folds a wait-queue length observation, taken while
// m.mu is held, into the queue-depth tracker.
func (mt *Metrics) recordQueueDepth(n int) {
	if mt == nil {
		return
	}
	mt.depth.observe(n)
}

// decisionLatency tracks scheduling-decision latency via three
// independent P² estimators, one per percentile of interest. A single
// estimator only tracks one quantile at a time (that's the nature of
// the P² algorithm), so P50/P90/P99 each get their own streaming state.
type decisionLatency struct {
	mu    sync.Mutex
	count int64
	p50   *quantileEstimator
	p90   *quantileEstimator
	p99   *quantileEstimator
}

func newDecisionLatency() decisionLatency {
	return decisionLatency{
		p50: newQuantileEstimator(0.50),
		p90: newQuantileEstimator(0.90),
		p99: newQuantileEstimator(0.99),
	}
}

func (d *decisionLatency) observe(dur time.Duration) {
	ns := float64(dur.Nanoseconds())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	d.p50.Observe(ns)
	d.p90.Observe(ns)
	d.p99.Observe(ns)
}

func (d *decisionLatency) snapshot() (count int64, p50, p90, p99 time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count,
		time.Duration(d.p50.Value()),
		time.Duration(d.p90.Value()),
		time.Duration(d.p99.Value())
}

// queueDepth tracks the wait queue's length over time: its current
// value and the high-water mark since the Manager was created.
type queueDepth struct {
	current atomic.Int64
	max     atomic.Int64
}

func (q *queueDepth) observe(n int) {
	v := int64(n)
	q.current.Store(v)
	for {
		m := q.max.Load()
		if v <= m || q.max.CompareAndSwap(m, v) {
			return
		}
	}
}

func (q *queueDepth) snapshot() (current, max int64) {
	return q.current.Load(), q.max.Load()
}
