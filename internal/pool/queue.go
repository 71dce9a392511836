package pool

import (
	"errors"
	"sync"
)

// ErrClosed is returned when pushing to a closed queue or submitting to a
// stopped pool.
var ErrClosed = errors.New("pool: closed")

// Queue is an unbounded FIFO safe for concurrent use.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends v and wakes one waiting Pop.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.cond.Signal()
	return nil
}

// Pop blocks until an item is available or the queue is closed. ok is false
// once the queue is closed.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return v, false
	}
	v = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return v, true
}

// Close marks the queue closed, wakes every waiter and returns the items
// that were never popped. Later calls return nil.
func (q *Queue[T]) Close() []T {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	rest := append([]T(nil), q.items[q.head:]...)
	q.items = nil
	q.head = 0
	q.mu.Unlock()
	q.cond.Broadcast()
	return rest
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
