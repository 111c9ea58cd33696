// Package cursor wraps engine cursors so that their modifiers stay
// synchronous and chainable while Exec returns a [promise.Future].
package cursor

import (
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/adapter/promise"
)

// Cursor owns an engine cursor. Configuring the same Cursor from two
// goroutines is not safe, but distinct cursors may run concurrently.
type Cursor[T any] struct {
	engine domain.Cursor[T]
	exec   func() *promise.Future[T]
}

// Wrap returns the wrapper of c. Wrapping the value returned by
// [Cursor.Engine] returns the wrapper it came from.
func Wrap[T any](c domain.Cursor[T]) *Cursor[T] {
	if v, ok := c.(view[T]); ok {
		return v.c
	}
	w := &Cursor[T]{engine: c}
	w.exec = promise.Promisify0(func(cb domain.Callback[T]) { w.engine.Exec(cb) })
	return w
}

// Engine returns a [domain.Cursor] backed by the same engine cursor.
func (c *Cursor[T]) Engine() domain.Cursor[T] {
	return view[T]{c: c}
}

// Sort replaces the sort criteria.
func (c *Cursor[T]) Sort(s domain.Sort) *Cursor[T] {
	c.engine = c.engine.Sort(s)
	return c
}

// Projection replaces the projection.
func (c *Cursor[T]) Projection(p any) *Cursor[T] {
	c.engine = c.engine.Projection(p)
	return c
}

// Limit replaces the limit.
func (c *Cursor[T]) Limit(l int64) *Cursor[T] {
	c.engine = c.engine.Limit(l)
	return c
}

// Skip replaces the number of skipped documents.
func (c *Cursor[T]) Skip(s int64) *Cursor[T] {
	c.engine = c.engine.Skip(s)
	return c
}

// Exec runs the query against the current state of the store. Every call
// runs it again.
func (c *Cursor[T]) Exec() *promise.Future[T] {
	return c.exec()
}

// view exposes a wrapper through the engine cursor interface.
type view[T any] struct {
	c *Cursor[T]
}

func (v view[T]) Sort(s domain.Sort) domain.Cursor[T] {
	v.c.Sort(s)
	return v
}

func (v view[T]) Projection(p any) domain.Cursor[T] {
	v.c.Projection(p)
	return v
}

func (v view[T]) Limit(l int64) domain.Cursor[T] {
	v.c.Limit(l)
	return v
}

func (v view[T]) Skip(s int64) domain.Cursor[T] {
	v.c.Skip(s)
	return v
}

func (v view[T]) Exec(cb domain.Callback[T]) {
	v.c.engine.Exec(cb)
}
