package cursor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

type cursorMock struct{ mock.Mock }

func (c *cursorMock) Sort(s domain.Sort) domain.Cursor[int64] {
	c.Called(s)
	return c
}

func (c *cursorMock) Projection(p any) domain.Cursor[int64] {
	c.Called(p)
	return c
}

func (c *cursorMock) Limit(l int64) domain.Cursor[int64] {
	c.Called(l)
	return c
}

func (c *cursorMock) Skip(n int64) domain.Cursor[int64] {
	c.Called(n)
	return c
}

func (c *cursorMock) Exec(cb domain.Callback[int64]) {
	call := c.Called()
	count, _ := call.Get(0).(int64)
	go cb(call.Error(1), count)
}

type CursorTestSuite struct {
	suite.Suite
	ctx context.Context
	c   *cursorMock
}

func (s *CursorTestSuite) SetupTest() {
	var cancel context.CancelFunc
	s.ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	s.T().Cleanup(cancel)
	s.c = new(cursorMock)
}

func (s *CursorTestSuite) TestChainIdentity() {
	sort := domain.Sort{{Key: "a", Order: -1}}
	s.c.On("Sort", sort).Return().Once()
	s.c.On("Projection", map[string]any{"a": 1}).Return().Once()
	s.c.On("Limit", int64(2)).Return().Once()
	s.c.On("Limit", int64(3)).Return().Once()
	s.c.On("Skip", int64(1)).Return().Once()
	defer s.c.AssertExpectations(s.T())

	w := Wrap[int64](s.c)
	s.Same(w, w.Sort(sort))
	s.Same(w, w.Projection(map[string]any{"a": 1}))
	s.Same(w, w.Limit(2).Skip(1).Limit(3))
}

func (s *CursorTestSuite) TestExec() {
	s.c.On("Exec").Return(int64(2), nil).Once()
	s.c.On("Exec").Return(int64(3), nil).Once()
	s.c.On("Exec").Return(nil, errors.New("failed")).Once()
	defer s.c.AssertExpectations(s.T())

	w := Wrap[int64](s.c)
	n, err := w.Exec().Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(2), n)

	// not cached
	n, err = w.Exec().Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(3), n)

	_, err = w.Exec().Await(s.ctx)
	var normalized *domain.Error
	s.ErrorAs(err, &normalized)
	s.Equal("failed", normalized.Message())
}

func (s *CursorTestSuite) TestWrapIsIdempotent() {
	s.c.On("Skip", int64(4)).Return().Once()
	s.c.On("Exec").Return(int64(1), nil).Once()
	defer s.c.AssertExpectations(s.T())

	w := Wrap[int64](s.c)
	again := Wrap(w.Engine())
	s.Same(w, again)

	// the engine view drives the same wrapper
	view := w.Engine().Skip(4)
	s.Same(w, Wrap(view))

	n, err := again.Exec().Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(1), n)
}

func TestCursorTestSuite(t *testing.T) {
	suite.Run(t, new(CursorTestSuite))
}
