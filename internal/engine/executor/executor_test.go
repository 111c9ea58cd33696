package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

type ExecutorTestSuite struct {
	suite.Suite
}

// recorder collects the order in which tasks ran or failed.
type recorder struct {
	mu     sync.Mutex
	ran    []int
	failed map[int]error
	wg     sync.WaitGroup
}

func newRecorder() *recorder {
	return &recorder{failed: make(map[int]error)}
}

func (r *recorder) push(e *Executor, n int, force bool) {
	r.wg.Add(1)
	e.Push(func() {
		defer r.wg.Done()
		r.mu.Lock()
		r.ran = append(r.ran, n)
		r.mu.Unlock()
	}, func(err error) {
		defer r.wg.Done()
		r.mu.Lock()
		r.failed[n] = err
		r.mu.Unlock()
	}, force)
}

func (s *ExecutorTestSuite) wait(r *recorder) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.FailNow("tasks did not finish")
	}
}

func (s *ExecutorTestSuite) TestOrder() {
	e := NewExecutor(true)
	defer e.Close()

	r := newRecorder()
	for n := range 100 {
		r.push(e, n, false)
	}
	s.wait(r)

	s.Len(r.ran, 100)
	for n, v := range r.ran {
		s.Equal(n, v)
	}
}

// Tasks never run concurrently.
func (s *ExecutorTestSuite) TestSequential() {
	e := NewExecutor(true)
	defer e.Close()

	var running, maxRunning int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		e.Push(func() {
			defer wg.Done()
			mu.Lock()
			running++
			maxRunning = max(maxRunning, running)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
		}, func(error) { wg.Done() }, false)
	}
	wg.Wait()
	s.Equal(1, maxRunning)
}

func (s *ExecutorTestSuite) TestBuffer() {
	e := NewExecutor(false)
	defer e.Close()
	s.False(e.Ready())

	r := newRecorder()
	r.push(e, 1, false)
	r.push(e, 2, false)
	r.push(e, 0, true)

	time.Sleep(10 * time.Millisecond)
	r.mu.Lock()
	s.Equal([]int{0}, r.ran)
	r.mu.Unlock()

	e.ProcessBuffer()
	s.True(e.Ready())
	r.push(e, 3, false)
	s.wait(r)
	s.Equal([]int{0, 1, 2, 3}, r.ran)
}

func (s *ExecutorTestSuite) TestResetBuffer() {
	e := NewExecutor(false)
	defer e.Close()

	r := newRecorder()
	r.push(e, 1, false)
	r.push(e, 2, false)
	e.ResetBuffer()
	r.push(e, 3, false)
	e.ProcessBuffer()
	s.wait(r)

	s.Equal([]int{3}, r.ran)
	s.Equal(map[int]error{1: domain.ErrBufferReset, 2: domain.ErrBufferReset}, r.failed)
}

func (s *ExecutorTestSuite) TestPanic() {
	e := NewExecutor(true)
	defer e.Close()

	errs := make(chan error, 1)
	e.Push(func() { panic("boom") }, func(err error) { errs <- err }, false)
	s.ErrorIs(<-errs, ErrTaskPanicked)

	// the queue keeps running
	r := newRecorder()
	r.push(e, 1, false)
	s.wait(r)
	s.Equal([]int{1}, r.ran)
}

func (s *ExecutorTestSuite) TestClose() {
	e := NewExecutor(false)

	r := newRecorder()
	r.push(e, 1, false)
	e.Close()
	r.push(e, 2, true)
	s.wait(r)

	s.Empty(r.ran)
	s.Equal(map[int]error{1: domain.ErrClosed, 2: domain.ErrClosed}, r.failed)

	// closing twice is harmless
	e.Close()
}

func TestExecutorTestSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}
