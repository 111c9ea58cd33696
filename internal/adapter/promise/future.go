package promise

import (
	"context"
	"sync"
)

// Future is the eventual result of one asynchronous operation. It settles
// exactly once, either resolved with a value or rejected with a
// [*domain.Error], and is never reused.
//
// Dropping a Future, or giving up on [Future.Await], does not cancel the
// operation: it still runs to completion and its result is discarded.
type Future[T any] struct {
	mu      sync.Mutex
	settled bool
	done    chan struct{}
	value   T
	err     error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// settle stores the result. It returns false if the future had already
// settled, in which case nothing changes.
func (f *Future[T]) settle(value T, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return false
	}
	f.settled = true
	f.value, f.err = value, err
	close(f.done)
	return true
}

// Await blocks until the future settles or ctx is done. In the latter case
// it returns the context error and the operation keeps running.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future is resolved or rejected.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error without blocking. Before
// settlement it returns the zero value and [ErrPending].
func (f *Future[T]) Result() (T, error) {
	if !f.Settled() {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}
