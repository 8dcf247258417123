// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Next once the queue is closed and
// drained.
var ErrQueueClosed = errors.New("peer: event queue closed")

// Queue is an unbounded FIFO. Push never blocks, so a worker can emit
// events regardless of how slowly the caller polls. The notify channel
// (capacity 1) wakes a waiting Next.
//
// Thread-safe: all methods may be called concurrently.
type Queue[T any] struct {
	mu      sync.Mutex
	entries []T
	closed  bool
	notify  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

// Push appends value. Pushing to a closed queue drops the value and
// reports false.
func (q *Queue[T]) Push(value T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.entries = append(q.entries, value)
	q.signal()
	return true
}

// signal must be called with q.mu held.
func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryNext removes and returns the oldest value without waiting.
func (q *Queue[T]) TryNext() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.entries) == 0 {
		return zero, false
	}
	value := q.entries[0]
	q.entries[0] = zero
	q.entries = q.entries[1:]
	if len(q.entries) > 0 {
		q.signal()
	}
	return value, true
}

// Next waits for a value. After Close it keeps returning queued values
// until none remain, then ErrQueueClosed.
func (q *Queue[T]) Next(ctx context.Context) (T, error) {
	for {
		if value, ok := q.TryNext(); ok {
			return value, nil
		}
		q.mu.Lock()
		closed := q.closed
		if closed {
			// Pass the wakeup on to any other waiter.
			q.signal()
		}
		q.mu.Unlock()
		if closed {
			if value, ok := q.TryNext(); ok {
				return value, nil
			}
			var zero T
			return zero, ErrQueueClosed
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close stops further pushes and wakes waiters.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.signal()
}
