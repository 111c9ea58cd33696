package projector

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
)

type M = data.M

type ProjectorTestSuite struct {
	suite.Suite
	proj domain.Projector
	docs []domain.Document
}

func (s *ProjectorTestSuite) SetupTest() {
	s.proj = NewProjector()
	s.docs = []domain.Document{
		M{"_id": "1", "name": "a", "age": 5, "addr": M{"city": "x", "zip": "1"}},
		M{"_id": "2", "name": "b", "planets": []any{M{"n": "Earth"}, M{"n": "Mars"}}},
	}
}

func (s *ProjectorTestSuite) project(p map[string]uint8) []domain.Document {
	res, err := s.proj.Project(s.docs, p)
	s.Require().NoError(err)
	return res
}

func (s *ProjectorTestSuite) TestEmptyProjection() {
	s.Equal(s.docs, s.project(nil))
	s.Equal(s.docs, s.project(map[string]uint8{}))
}

func (s *ProjectorTestSuite) TestKeep() {
	res := s.project(map[string]uint8{"name": 1})
	s.Equal([]domain.Document{M{"_id": "1", "name": "a"}, M{"_id": "2", "name": "b"}}, res)

	res = s.project(map[string]uint8{"name": 1, "_id": 0})
	s.Equal([]domain.Document{M{"name": "a"}, M{"name": "b"}}, res)

	res = s.project(map[string]uint8{"addr.city": 1, "age": 1})
	s.Equal(M{"_id": "1", "age": 5, "addr": M{"city": "x"}}, res[0])
	s.Equal(M{"_id": "2"}, res[1])

	res = s.project(map[string]uint8{"planets.n": 1})
	s.Equal(M{"_id": "2", "planets": M{"n": []any{"Earth", "Mars"}}}, res[1])
}

func (s *ProjectorTestSuite) TestOmit() {
	res := s.project(map[string]uint8{"name": 0, "addr.zip": 0})
	s.Equal(M{"_id": "1", "age": 5, "addr": M{"city": "x"}}, res[0])
	s.Equal(M{"_id": "2", "planets": []any{M{"n": "Earth"}, M{"n": "Mars"}}}, res[1])

	res = s.project(map[string]uint8{"_id": 0})
	s.False(res[0].Has("_id"))
	s.Equal("a", res[0].Get("name"))

	// source documents are untouched
	s.Equal("a", s.docs[0].Get("name"))
	s.True(s.docs[0].Has("_id"))
}

func (s *ProjectorTestSuite) TestMixedProjection() {
	_, err := s.proj.Project(s.docs, map[string]uint8{"name": 1, "age": 0})
	s.Error(err)

	_, err = s.proj.Project(s.docs, map[string]uint8{"name": 1, "_id": 1})
	s.NoError(err)

	_, err = s.proj.Project(s.docs, map[string]uint8{"a..b": 1})
	s.Error(err)
}

func TestProjectorTestSuite(t *testing.T) {
	suite.Run(t, new(ProjectorTestSuite))
}
