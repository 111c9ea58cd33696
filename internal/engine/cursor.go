package engine

import (
	"slices"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

// cursorQuery is the state of a cursor at the time it was executed.
type cursorQuery struct {
	query      any
	projection any
	sort       domain.Sort
	limit      int64
	skip       int64
}

// Cursor implements [domain.Cursor]. The modifiers are not concurrency safe,
// but each Exec works on a snapshot of the cursor state.
type Cursor[T any] struct {
	engine *Engine
	q      cursorQuery
	exec   func([]domain.Document) T
}

// FindCursor implements [domain.Engine].
func (e *Engine) FindCursor(query any, projection any) domain.Cursor[[]domain.Document] {
	return &Cursor[[]domain.Document]{
		engine: e,
		q:      cursorQuery{query: query, projection: projection},
		exec: func(docs []domain.Document) []domain.Document {
			if docs == nil {
				return []domain.Document{}
			}
			return docs
		},
	}
}

// FindOneCursor implements [domain.Engine]. Its result is nil when nothing
// matches.
func (e *Engine) FindOneCursor(query any, projection any) domain.Cursor[domain.Document] {
	return &Cursor[domain.Document]{
		engine: e,
		q:      cursorQuery{query: query, projection: projection, limit: 1},
		exec: func(docs []domain.Document) domain.Document {
			if len(docs) == 0 {
				return nil
			}
			return docs[0]
		},
	}
}

// CountCursor implements [domain.Engine].
func (e *Engine) CountCursor(query any) domain.Cursor[int64] {
	return &Cursor[int64]{
		engine: e,
		q:      cursorQuery{query: query},
		exec: func(docs []domain.Document) int64 {
			return int64(len(docs))
		},
	}
}

// Sort implements [domain.Cursor].
func (c *Cursor[T]) Sort(s domain.Sort) domain.Cursor[T] {
	c.q.sort = slices.Clone(s)
	return c
}

// Projection implements [domain.Cursor].
func (c *Cursor[T]) Projection(p any) domain.Cursor[T] {
	c.q.projection = p
	return c
}

// Limit implements [domain.Cursor].
func (c *Cursor[T]) Limit(l int64) domain.Cursor[T] {
	c.q.limit = l
	return c
}

// Skip implements [domain.Cursor].
func (c *Cursor[T]) Skip(s int64) domain.Cursor[T] {
	c.q.skip = s
	return c
}

// Exec implements [domain.Cursor].
func (c *Cursor[T]) Exec(cb domain.Callback[T]) {
	q := c.q
	c.engine.push(func() {
		docs, err := c.engine.find(q, false)
		if err != nil {
			var zero T
			cb(err, zero)
			return
		}
		cb(nil, c.exec(docs))
	}, func(err error) {
		var zero T
		cb(err, zero)
	})
}
