// Package promise turns callback-last engine operations into functions
// returning a [Future].
package promise

import (
	"errors"
	"fmt"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/adapter/errnorm"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/metrics"
	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/logger"
)

var (
	// ErrPending is returned by [Future.Result] before settlement.
	ErrPending = errors.New("future is not settled")
	// ErrPanicked is the cause of the rejection of an operation that
	// panicked while being started.
	ErrPanicked = errors.New("operation panicked")
)

// Call creates a future and starts the operation with a callback settling
// it. A non-nil callback error rejects the future with its normalized form
// and the payload is discarded. Later invocations of the callback are
// ignored. A panic in start rejects the future instead of propagating.
func Call[T any](start func(domain.Callback[T])) (f *Future[T]) {
	f = newFuture[T]()
	cb := func(err error, value T) {
		var settled bool
		if err != nil {
			var zero T
			settled = f.settle(zero, errnorm.Normalize(err))
		} else {
			settled = f.settle(value, nil)
		}
		if !settled {
			metrics.ProtocolViolation()
			logger.Default().Debug("ignoring repeated callback invocation", "error", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			var zero T
			f.settle(zero, errnorm.Normalize(fmt.Errorf("%w: %v", ErrPanicked, r)))
		}
	}()
	start(cb)
	return f
}

// Promisify0 returns a function starting op and returning its future.
func Promisify0[T any](op func(domain.Callback[T])) func() *Future[T] {
	return func() *Future[T] {
		return Call(op)
	}
}

// Promisify1 is [Promisify0] for operations with one leading parameter.
func Promisify1[A, T any](op func(A, domain.Callback[T])) func(A) *Future[T] {
	return func(a A) *Future[T] {
		return Call(func(cb domain.Callback[T]) { op(a, cb) })
	}
}

// Promisify2 is [Promisify0] for operations with two leading parameters.
func Promisify2[A, B, T any](op func(A, B, domain.Callback[T])) func(A, B) *Future[T] {
	return func(a A, b B) *Future[T] {
		return Call(func(cb domain.Callback[T]) { op(a, b, cb) })
	}
}

// Promisify3 is [Promisify0] for operations with three leading parameters.
func Promisify3[A, B, C, T any](op func(A, B, C, domain.Callback[T])) func(A, B, C) *Future[T] {
	return func(a A, b B, c C) *Future[T] {
		return Call(func(cb domain.Callback[T]) { op(a, b, c, cb) })
	}
}

// Void adapts cb to operations whose callback only reports completion.
func Void(cb domain.Callback[struct{}]) func(error) {
	return func(err error) {
		cb(err, struct{}{})
	}
}

// Pair adapts cb to callbacks reporting two values, merged by combine.
func Pair[A, B, T any](combine func(A, B) T, cb domain.Callback[T]) func(error, A, B) {
	return func(err error, a A, b B) {
		if err != nil {
			var zero T
			cb(err, zero)
			return
		}
		cb(nil, combine(a, b))
	}
}

// Triple adapts cb to callbacks reporting three values, merged by combine.
func Triple[A, B, C, T any](combine func(A, B, C) T, cb domain.Callback[T]) func(error, A, B, C) {
	return func(err error, a A, b B, c C) {
		if err != nil {
			var zero T
			cb(err, zero)
			return
		}
		cb(nil, combine(a, b, c))
	}
}

// Erase adapts a callback taking any value to an operation reporting T.
func Erase[T any](cb domain.Callback[any]) domain.Callback[T] {
	return func(err error, value T) {
		if err != nil {
			cb(err, nil)
			return
		}
		cb(nil, value)
	}
}
