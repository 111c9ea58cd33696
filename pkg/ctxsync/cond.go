// Package ctxsync contains synchronization primitives whose blocking
// operations accept a [context.Context].
package ctxsync

import (
	"context"
	"sync"
)

// Cond is a condition variable whose Wait can be abandoned by cancelling a
// context. Broadcast closes the channel the current waiters are blocked on
// and replaces it, so every waiter registered before the call wakes up.
//
// L is optional. When set, it must be held when calling
// [Cond.WaitWithContext]; it is released while waiting and reacquired before
// returning.
//
// A Cond must not be copied after first use.
type Cond struct {
	noCopy noCopy

	L sync.Locker

	mu     sync.Mutex
	notify chan struct{}
}

// NewCond returns a new Cond with Locker l, which may be nil.
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l, notify: make(chan struct{})}
}

// WaitWithContext blocks until the next call to Broadcast or until ctx is
// done, in which case the context error is returned.
func (c *Cond) WaitWithContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	ch := c.notify
	c.mu.Unlock()

	if c.L != nil {
		c.L.Unlock()
		defer c.L.Lock()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// Wait is WaitWithContext with a background context.
func (c *Cond) Wait() {
	_ = c.WaitWithContext(context.Background())
}

// Broadcast wakes every goroutine currently waiting on c. The caller does not
// need to hold c.L.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	close(c.notify)
	c.notify = make(chan struct{})
	c.mu.Unlock()
}

// noCopy may be added to structs which must not be copied after the first
// use. It is only read by the -copylocks checker of go vet.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
