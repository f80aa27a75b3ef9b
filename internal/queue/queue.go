package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue on a closed queue and by Dequeue once a
// closed queue has been drained.
var ErrClosed = errors.New("queue is closed")

// Queue is a bounded FIFO shared between goroutines.
//
// Enqueue blocks while the queue is full, Dequeue blocks while it is empty
// and still open. Both give up when their context ends. The zero value is
// not usable; create queues with New.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items []T
	head  int
	count int

	closed   bool
	closeErr error
}

// New creates a queue holding at most capacity items. Capacities below one
// are raised to one.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{items: make([]T, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item at the tail, waiting for a free slot if needed.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.count == len(q.items) {
		stop := q.wakeOnDone(ctx, q.notFull)
		defer stop()
	}
	for q.count == len(q.items) && !q.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	tail := (q.head + q.count) % len(q.items)
	q.items[tail] = item
	q.count++
	q.notEmpty.Broadcast()
	return nil
}

// Dequeue removes and returns the head item, waiting while the queue is
// empty and open. A closed, drained queue yields ErrClosed, or the error
// passed to CloseWithError.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if q.count == 0 && !q.closed {
		stop := q.wakeOnDone(ctx, q.notEmpty)
		defer stop()
	}
	for q.count == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		if q.closeErr != nil {
			return zero, q.closeErr
		}
		return zero, ErrClosed
	}
	return q.pop(), nil
}

// TryDequeue removes the head item without blocking.
func (q *Queue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// Close marks the queue closed. Items already queued stay available to
// Dequeue. Closing twice is a no-op.
func (q *Queue[T]) Close() {
	q.CloseWithError(nil)
}

// CloseWithError closes the queue and makes Dequeue report err instead of
// ErrClosed once the remaining items are drained. Only the first close
// takes effect.
func (q *Queue[T]) CloseWithError(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.closeErr = err
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// IsEmpty reports whether the queue currently holds no items. The answer
// can be stale by the time the caller sees it.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.items)
}

// pop must be called with q.mu held and q.count > 0.
func (q *Queue[T]) pop() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.notFull.Broadcast()
	return item
}

// wakeOnDone broadcasts on cond when ctx ends so waiters can observe the
// cancellation. Must be called with q.mu held.
func (q *Queue[T]) wakeOnDone(ctx context.Context, cond *sync.Cond) func() bool {
	return context.AfterFunc(ctx, func() {
		q.mu.Lock()
		cond.Broadcast()
		q.mu.Unlock()
	})
}
