package ringer

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrClosed is returned by Queue operations after Close has been called
var ErrClosed = eris.New("queue is closed")

// QueueOption configures a Queue
type QueueOption func(*queueConfig)

type queueConfig struct {
	growth bool
}

// WithGrowth makes Push grow the storage instead of waiting when the queue is full
func WithGrowth() QueueOption {
	return func(cfg *queueConfig) {
		cfg.growth = true
	}
}

// Queue wraps a Ringer for use by multiple goroutines. Push and Pop block until they can make
// progress or the passed context is done.
type Queue[T any] struct {
	lock   sync.Mutex
	rg     *Ringer[T]
	growth bool
	closed bool

	// changed is closed and replaced whenever the queue content changes
	changed chan struct{}
}

// NewQueue creates a queue with room for size items
func NewQueue[T any](size int, opts ...QueueOption) (*Queue[T], error) {
	cfg := queueConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	rg, err := New[T](size)
	if err != nil {
		return nil, err
	}

	return &Queue[T]{
		rg:      rg,
		growth:  cfg.growth,
		changed: make(chan struct{}),
	}, nil
}

// notify wakes up all waiters. Must be called with the lock held.
func (q *Queue[T]) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// TryPush adds item without blocking. Returns false if the queue is full.
func (q *Queue[T]) TryPush(item T) (bool, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return false, ErrClosed
	}

	if q.growth {
		q.rg.Ram(item)
	} else if !q.rg.Put(item) {
		return false, nil
	}

	q.notify()
	return true, nil
}

// Push adds item and waits for a free slot if necessary
func (q *Queue[T]) Push(ctx context.Context, item T) error {
	for {
		q.lock.Lock()
		if q.closed {
			q.lock.Unlock()
			return ErrClosed
		}

		if q.growth {
			q.rg.Ram(item)
			q.notify()
			q.lock.Unlock()
			return nil
		}

		if q.rg.Put(item) {
			q.notify()
			q.lock.Unlock()
			return nil
		}

		wait := q.changed
		q.lock.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// TryPop removes the oldest item without blocking. The bool result is false if the queue was empty.
func (q *Queue[T]) TryPop() (T, bool, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	item, ok := q.rg.Get()
	if ok {
		q.notify()
		return item, true, nil
	}

	if q.closed {
		return item, false, ErrClosed
	}
	return item, false, nil
}

// Pop removes the oldest item and waits for one if the queue is empty. Items pushed before
// Close are still returned, afterwards Pop fails with ErrClosed.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.lock.Lock()
		item, ok := q.rg.Get()
		if ok {
			q.notify()
			q.lock.Unlock()
			return item, nil
		}

		if q.closed {
			q.lock.Unlock()
			return item, ErrClosed
		}

		wait := q.changed
		q.lock.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-wait:
		}
	}
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.rg.Count()
}

// Close rejects further pushes and wakes up all waiting goroutines
func (q *Queue[T]) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()

	if !q.closed {
		q.closed = true
		q.notify()
	}
}
