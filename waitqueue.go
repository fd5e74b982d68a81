package fiber

import (
	"container/heap"
	"time"
)

// waitQueue is a min-heap of Waiting fibers ordered by deadline, backed
// by container/heap. Each Fiber tracks its own heapIndex so a fiber can
// be removed in O(log n) without a linear scan (needed when a fiber
// is released from a join list or interrupted out of band).
type waitQueue struct {
	items waitQueueItems
}

func newWaitQueue() *waitQueue {
	wq := &waitQueue{}
	heap.Init(&wq.items)
	return wq
}

// Push adds f to the wait queue at its current deadline.
func (wq *waitQueue) Push(f *Fiber) {
	heap.Push(&wq.items, f)
}

// Remove takes f out of the wait queue if it is present. It is a no-op
// if f is not currently tracked (heapIndex == -1).
func (wq *waitQueue) Remove(f *Fiber) {
	if f.heapIndex < 0 || f.heapIndex >= len(wq.items) || wq.items[f.heapIndex] != f {
		return
	}
	heap.Remove(&wq.items, f.heapIndex)
}

// ScanReady removes and returns every fiber whose deadline has elapsed
// relative to now, or whose interruption has been requested. This is a
// full scan rather than a Peek: the wakeup predicate doesn't respect
// heap/deadline order (an interrupted fiber can sit anywhere in the
// heap), so there's no way to stop at the first disqualifying entry.
func (wq *waitQueue) ScanReady(now time.Time) []*Fiber {
	var ready []*Fiber
	for _, f := range wq.items {
		if !now.Before(f.deadline) || f.interruptionRequested.Load() {
			ready = append(ready, f)
		}
	}
	for _, f := range ready {
		wq.Remove(f)
	}
	return ready
}

// Peek returns the fiber with the earliest deadline, if any.
func (wq *waitQueue) Peek() (*Fiber, bool) {
	if len(wq.items) == 0 {
		return nil, false
	}
	return wq.items[0], true
}

// Len reports the number of fibers currently waiting.
func (wq *waitQueue) Len() int {
	return len(wq.items)
}

// waitQueueItems implements heap.Interface over *Fiber by deadline.
type waitQueueItems []*Fiber

func (q waitQueueItems) Len() int { return len(q) }

func (q waitQueueItems) Less(i, j int) bool {
	return q[i].deadline.Before(q[j].deadline)
}

func (q waitQueueItems) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}

func (q *waitQueueItems) Push(x any) {
	f := x.(*Fiber)
	f.heapIndex = len(*q)
	*q = append(*q, f)
}

func (q *waitQueueItems) Pop() any {
	old := *q
	n := len(old)
	f := old[n-1]
	old[n-1] = nil
	f.heapIndex = -1
	*q = old[:n-1]
	return f
}
