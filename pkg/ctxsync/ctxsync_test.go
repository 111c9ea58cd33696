package ctxsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type CtxSyncTestSuite struct {
	suite.Suite
}

func (s *CtxSyncTestSuite) TestCondBroadcast() {
	c := NewCond(nil)
	const n = 3

	var ready, done sync.WaitGroup
	ready.Add(n)
	done.Add(n)
	for range n {
		go func() {
			defer done.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ready.Done()
			s.NoError(c.WaitWithContext(ctx))
		}()
	}
	ready.Wait()

	finished := make(chan struct{})
	go func() {
		done.Wait()
		close(finished)
	}()
	// a waiter may not be blocked yet, so keep broadcasting until all return
	for {
		c.Broadcast()
		select {
		case <-finished:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (s *CtxSyncTestSuite) TestCondCancel() {
	c := NewCond(nil)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- c.WaitWithContext(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	s.ErrorIs(<-errs, context.Canceled)

	s.ErrorIs(c.WaitWithContext(ctx), context.Canceled)
}

func (s *CtxSyncTestSuite) TestCondReacquiresLocker() {
	var mu sync.Mutex
	c := NewCond(&mu)

	mu.Lock()
	go func() {
		mu.Lock()
		c.Broadcast()
		mu.Unlock()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(c.WaitWithContext(ctx))
	s.False(mu.TryLock())
	mu.Unlock()
}

func (s *CtxSyncTestSuite) TestMutex() {
	m := NewMutex()
	s.True(m.TryLock())
	s.False(m.TryLock())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	s.ErrorIs(m.LockWithContext(ctx), context.DeadlineExceeded)

	m.Unlock()
	m.Lock()
	m.Unlock()
	s.Panics(m.Unlock)
}

func TestCtxSyncTestSuite(t *testing.T) {
	suite.Run(t, new(CtxSyncTestSuite))
}
