package queue

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

type Queue[T any] interface {
	Push(item T) error
	Pop(ctx context.Context) (T, error)
	TryPop() (T, error)
	Size() int
	Close() error
}

// InMemoryQueue is an unbounded FIFO. Pop blocks until an item arrives, the
// queue is closed, or ctx is done. Items pushed before Close are still
// handed out after it.
type InMemoryQueue[T any] struct {
	items  []T
	mu     sync.Mutex
	notify chan struct{}
	done   chan struct{}
	closed bool
}

func NewInMemoryQueue[T any]() *InMemoryQueue[T] {
	return &InMemoryQueue[T]{
		items:  make([]T, 0),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *InMemoryQueue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, item)

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return nil
}

func (q *InMemoryQueue[T]) Pop(ctx context.Context) (T, error) {
	for {
		item, err := q.TryPop()
		if !errors.Is(err, ErrQueueEmpty) {
			return item, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.notify:
		case <-q.done:
		}
	}
}

// TryPop never blocks. It returns ErrQueueEmpty when nothing is queued and
// ErrQueueClosed once the queue is closed and drained.
func (q *InMemoryQueue[T]) TryPop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		if q.closed {
			return zero, ErrQueueClosed
		}
		return zero, ErrQueueEmpty
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	// Wake another waiter if work remains.
	if len(q.items) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}

	return item, nil
}

func (q *InMemoryQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)

	return nil
}

// Drain pops everything currently queued without blocking.
func Drain[T any](q Queue[T]) []T {
	var out []T
	for {
		item, err := q.TryPop()
		if err != nil {
			return out
		}
		out = append(out, item)
	}
}
