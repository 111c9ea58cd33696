// Package executor runs engine operations one at a time, in the order they
// were pushed.
package executor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/ctxsync"
)

// ErrTaskPanicked is reported to a task that panicked while running.
var ErrTaskPanicked = errors.New("task panicked")

type task struct {
	run  func()
	fail func(error)
}

// Executor is a FIFO task queue consumed by a single goroutine. Until
// [Executor.ProcessBuffer] is called, tasks that are not force-queued are
// kept in a buffer, so operations issued before the datafile is loaded only
// run after the load.
type Executor struct {
	mu     sync.Mutex
	cond   *ctxsync.Cond
	queue  []task
	buffer []task
	ready  bool
	closed bool
	done   chan struct{}
}

// NewExecutor starts a new Executor. A ready executor runs every task as
// soon as the previous ones are done.
func NewExecutor(ready bool) *Executor {
	e := &Executor{
		ready: ready,
		done:  make(chan struct{}),
	}
	e.cond = ctxsync.NewCond(&e.mu)
	go e.loop()
	return e
}

func (e *Executor) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		t := e.queue[0]
		e.queue[0] = task{}
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.run(t)
	}
}

func (e *Executor) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			t.fail(fmt.Errorf("%w: %v", ErrTaskPanicked, r))
		}
	}()
	t.run()
}

// Push queues run. When forceQueuing is false and the executor is not ready,
// the task waits in the buffer instead. If the task is dropped, fail is
// called with the reason ([domain.ErrClosed] or [domain.ErrBufferReset]).
func (e *Executor) Push(run func(), fail func(error), forceQueuing bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		fail(domain.ErrClosed)
		return
	}
	t := task{run: run, fail: fail}
	if forceQueuing || e.ready {
		e.queue = append(e.queue, t)
	} else {
		e.buffer = append(e.buffer, t)
	}
	e.mu.Unlock()
	e.cond.Broadcast()
}

// ProcessBuffer marks the executor as ready and moves the buffered tasks to
// the end of the queue.
func (e *Executor) ProcessBuffer() {
	e.mu.Lock()
	e.ready = true
	e.queue = append(e.queue, e.buffer...)
	e.buffer = nil
	e.mu.Unlock()
	e.cond.Broadcast()
}

// ResetBuffer drops the buffered tasks, failing them with
// [domain.ErrBufferReset]. The executor stays in its current state.
func (e *Executor) ResetBuffer() {
	e.mu.Lock()
	dropped := e.buffer
	e.buffer = nil
	e.mu.Unlock()

	for _, t := range dropped {
		t.fail(domain.ErrBufferReset)
	}
}

// Ready reports whether tasks run without being buffered.
func (e *Executor) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Close stops the executor once the running task returns. Queued and
// buffered tasks fail with [domain.ErrClosed], as does every later Push.
// Close must not be called from a task.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	dropped := append(e.queue, e.buffer...)
	e.queue = nil
	e.buffer = nil
	e.mu.Unlock()
	e.cond.Broadcast()

	<-e.done
	for _, t := range dropped {
		t.fail(domain.ErrClosed)
	}
}
