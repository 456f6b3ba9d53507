package feed

import (
	"sync"
)

// Queue is a growable FIFO delivery queue. Producers never block: when the
// ring fills, capacity doubles. Consumers block in Pop or poll with
// TryPop/PopBatch. This is the buffering policy behind every attachment: a
// stalled consumer grows its own queue without delaying the producer or
// any other consumer.
type Queue[T any] struct {
	mu     sync.Mutex
	notify *sync.Cond
	ring   []T
	head   int // next Pop position
	tail   int // next Push position
	depth  int
	closed bool

	pushed int64
	popped int64
	grows  int
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](initial int) *Queue[T] {
	if initial < 1 {
		initial = 1
	}
	q := &Queue[T]{ring: make([]T, initial)}
	q.notify = sync.NewCond(&q.mu)
	return q
}

// Push appends an item, doubling capacity when the ring is full.
// Returns false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.depth == len(q.ring) {
		q.grow()
	}

	q.ring[q.tail] = item
	q.tail = (q.tail + 1) % len(q.ring)
	q.depth++
	q.pushed++

	q.notify.Signal()
	return true
}

// Pop removes the oldest item, blocking until one is available or the
// queue is closed. Returns false only when the queue is closed and fully
// drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.depth == 0 && !q.closed {
		q.notify.Wait()
	}
	if q.depth == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.depth == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// PopBatch removes up to max items without blocking; max <= 0 drains
// everything queued. Returns nil when empty.
func (q *Queue[T]) PopBatch(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.depth
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	batch := make([]T, n)
	for i := range batch {
		batch[i] = q.popLocked()
	}
	return batch
}

// Close marks the queue closed and wakes all blocked consumers. Items
// already queued remain poppable; Push returns false afterwards.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notify.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// Cap returns the current ring capacity.
func (q *Queue[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ring)
}

// Stats returns queue counters.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Depth:    q.depth,
		Capacity: len(q.ring),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Grows:    q.grows,
	}
}

// QueueStats is a point-in-time snapshot of queue counters. Grows counts
// capacity doublings; a climbing value means the consumer is not keeping
// up.
type QueueStats struct {
	Depth    int
	Capacity int
	Pushed   int64
	Popped   int64
	Grows    int
}

// popLocked removes and returns the head item. Caller holds mu; depth > 0.
func (q *Queue[T]) popLocked() T {
	item := q.ring[q.head]
	var zero T
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.depth--
	q.popped++
	return item
}

// grow doubles capacity, compacting queued items to the front of the new
// ring. Caller holds mu.
func (q *Queue[T]) grow() {
	next := make([]T, len(q.ring)*2)
	if q.head < q.tail {
		copy(next, q.ring[q.head:q.tail])
	} else if q.depth > 0 {
		n := copy(next, q.ring[q.head:])
		copy(next[n:], q.ring[:q.tail])
	}
	q.ring = next
	q.head = 0
	q.tail = q.depth
	q.grows++
}
