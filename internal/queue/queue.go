// Package queue holds pending recorder rows between batch writes.
package queue

import (
	"sync"
)

// Queue is a mutex guarded FIFO shared by the recorder and a writer goroutine.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
	lost  int
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// NewBounded creates a queue that discards the oldest rows once it holds
// limit items. A limit of zero or less means unbounded.
func NewBounded[T any](limit int) *Queue[T] {
	q := New[T]()
	q.limit = limit
	return q
}

// Push appends items, trimming from the front when a limit is set.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.limit > 0 && len(q.items) > q.limit {
		over := len(q.items) - q.limit
		q.lost += over
		q.items = append(q.items[:0], q.items[over:]...)
	}
}

// Requeue puts items back at the front, ahead of anything pushed since
// they were taken. Used when a batch write fails.
func (q *Queue[T]) Requeue(items []T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Lost is how many items a bounded queue has discarded.
func (q *Queue[T]) Lost() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lost
}

// Take removes and returns up to n items from the front. n <= 0 takes all.
func (q *Queue[T]) Take(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || n >= len(q.items) {
		result := q.items
		q.items = make([]T, 0, cap(q.items))
		return result
	}
	result := make([]T, n)
	copy(result, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	return result
}

// Drain returns all items and clears the queue.
func (q *Queue[T]) Drain() []T {
	return q.Take(0)
}
