package promise

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/metrics"
)

type operationMock struct{ mock.Mock }

func (o *operationMock) Insert(doc string, n int, cb domain.Callback[string]) {
	call := o.Called(doc, n)
	go cb(call.Error(1), call.String(0))
}

type PromiseTestSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *PromiseTestSuite) SetupTest() {
	var cancel context.CancelFunc
	s.ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	s.T().Cleanup(cancel)
}

func (s *PromiseTestSuite) TestResolve() {
	f := Call(func(cb domain.Callback[int]) { go cb(nil, 3) })
	v, err := f.Await(s.ctx)
	s.NoError(err)
	s.Equal(3, v)
	s.True(f.Settled())

	v, err = f.Result()
	s.NoError(err)
	s.Equal(3, v)
}

func (s *PromiseTestSuite) TestReject() {
	f := Call(func(cb domain.Callback[int]) { cb(fmt.Errorf("%w: x", domain.ErrConstraintViolated), 3) })
	v, err := f.Await(s.ctx)
	s.Zero(v)
	var normalized *domain.Error
	s.Require().ErrorAs(err, &normalized)
	s.True(normalized.DuplicateKey())
	s.True(domain.IsDuplicateKey(err))
}

func (s *PromiseTestSuite) TestSettlesOnce() {
	before := metrics.ProtocolViolations()

	f := Call(func(cb domain.Callback[int]) {
		cb(nil, 1)
		cb(nil, 2)
		cb(errors.New("late"), 0)
	})
	v, err := f.Await(s.ctx)
	s.NoError(err)
	s.Equal(1, v)
	s.Equal(before+2, metrics.ProtocolViolations())
}

func (s *PromiseTestSuite) TestPending() {
	var cb domain.Callback[string]
	f := Call(func(c domain.Callback[string]) { cb = c })
	s.False(f.Settled())
	_, err := f.Result()
	s.ErrorIs(err, ErrPending)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err = f.Await(ctx)
	s.ErrorIs(err, context.Canceled)

	// abandoning the wait does not cancel the operation
	cb(nil, "late")
	<-f.Done()
	v, err := f.Await(s.ctx)
	s.NoError(err)
	s.Equal("late", v)
}

func (s *PromiseTestSuite) TestPanic() {
	f := Call(func(domain.Callback[int]) { panic("boom") })
	_, err := f.Await(s.ctx)
	s.ErrorIs(err, ErrPanicked)
	s.Contains(err.Error(), "boom")
}

func (s *PromiseTestSuite) TestPromisify() {
	op := new(operationMock)
	op.On("Insert", "a", 1).Return("ok", nil).Once()
	op.On("Insert", "b", 2).Return("", errors.New("failed")).Once()
	defer op.AssertExpectations(s.T())

	insert := Promisify2(op.Insert)

	v, err := insert("a", 1).Await(s.ctx)
	s.NoError(err)
	s.Equal("ok", v)

	_, err = insert("b", 2).Await(s.ctx)
	s.EqualError(err, "failed")

	f0 := Promisify0(func(cb domain.Callback[int]) { cb(nil, 0) })
	f1 := Promisify1(func(a int, cb domain.Callback[int]) { cb(nil, a) })
	f3 := Promisify3(func(a, b, c int, cb domain.Callback[int]) { cb(nil, a+b+c) })
	v0, _ := f0().Await(s.ctx)
	v1, _ := f1(1).Await(s.ctx)
	v3, _ := f3(1, 2, 3).Await(s.ctx)
	s.Equal([]int{0, 1, 6}, []int{v0, v1, v3})
}

func (s *PromiseTestSuite) TestPolicies() {
	_, err := Call(func(cb domain.Callback[struct{}]) { Void(cb)(nil) }).Await(s.ctx)
	s.NoError(err)

	sum := func(a, b int) int { return a + b }
	v, err := Call(func(cb domain.Callback[int]) { Pair(sum, cb)(nil, 1, 2) }).Await(s.ctx)
	s.NoError(err)
	s.Equal(3, v)

	_, err = Call(func(cb domain.Callback[int]) { Pair(sum, cb)(errors.New("x"), 1, 2) }).Await(s.ctx)
	s.EqualError(err, "x")

	join := func(a string, b int, c bool) string { return fmt.Sprint(a, b, c) }
	str, err := Call(func(cb domain.Callback[string]) { Triple(join, cb)(nil, "a", 1, true) }).Await(s.ctx)
	s.NoError(err)
	s.Equal("a1 true", str)
}

func TestPromiseTestSuite(t *testing.T) {
	suite.Run(t, new(PromiseTestSuite))
}
