package queue

import "sync"

// FIFO is an unbounded, thread-safe first-in-first-out queue.
//
// Producers (HTTP handlers, the delivery scanner) push without ever blocking
// or observing a capacity error; the drain scheduler consumes with TryPop,
// which never blocks so a tick can share its goroutine with the other drain
// loop. Strict FIFO order is preserved per queue; the two queue instances in
// this service (announce and send) are fully independent.
type FIFO[T any] struct {
	mu    sync.Mutex
	items []T
}

func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{}
}

// Push appends an item to the tail of the queue.
func (q *FIFO[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// TryPop removes and returns the head of the queue.
// It returns (zero, false) immediately when the queue is empty.
func (q *FIFO[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	// Clear the slot before reslicing so the backing array does not pin
	// the popped item for the garbage collector.
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return item, true
}

// Len returns the current number of queued items.
// Used by the metrics handler for the queue-depth snapshot.
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
