package modifier

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/comparer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/matcher"
)

type M = data.M

type A = []any

type ModifierTestSuite struct {
	suite.Suite
	mod domain.Modifier
}

func (s *ModifierTestSuite) SetupTest() {
	comp := comparer.NewComparer()
	fn := fieldnavigator.NewFieldNavigator(data.NewDocument)
	s.mod = NewModifier(data.NewDocument, comp, fn, matcher.NewMatcher(comp, fn))
}

func (s *ModifierTestSuite) modify(doc, query M) domain.Document {
	res, err := s.mod.Modify(doc, query)
	s.Require().NoError(err)
	return res
}

func (s *ModifierTestSuite) TestReplace() {
	doc := M{"_id": "id1", "a": 1, "b": 2}
	res := s.modify(doc, M{"c": 3})
	s.Equal(M{"_id": "id1", "c": 3}, res)
	s.Equal(M{"_id": "id1", "a": 1, "b": 2}, doc)

	res = s.modify(doc, M{"_id": "id1", "a": 5})
	s.Equal(M{"_id": "id1", "a": 5}, res)

	_, err := s.mod.Modify(doc, M{"_id": "other"})
	s.Error(err)
}

func (s *ModifierTestSuite) TestMixedModifiers() {
	_, err := s.mod.Modify(M{"_id": "1"}, M{"$set": M{"a": 1}, "b": 2})
	s.Error(err)
	_, err = s.mod.Modify(M{"_id": "1"}, M{"$unknown": M{"a": 1}})
	s.Error(err)
	_, err = s.mod.Modify(M{"_id": "1"}, M{"$set": 1})
	s.Error(err)
	_, err = s.mod.Modify(M{"_id": "1"}, M{"$set": M{"_id": "2"}})
	s.Error(err)
}

func (s *ModifierTestSuite) TestSetAndUnset() {
	doc := M{"_id": "1", "a": M{"b": 1}, "c": 2}
	s.Equal(M{"_id": "1", "a": M{"b": 1, "x": M{"y": 5}}, "c": 2}, s.modify(doc, M{"$set": M{"a.x.y": 5}}))
	s.Equal(M{"_id": "1", "a": M{}, "c": 2}, s.modify(doc, M{"$unset": M{"a.b": true}}))
	s.Equal(M{"_id": "1", "a": M{"b": 1}}, s.modify(doc, M{"$unset": M{"c": true, "missing.path": true}}))
	s.Equal(M{"_id": "1", "a": M{"b": 1}, "c": 2}, doc)
}

func (s *ModifierTestSuite) TestInc() {
	doc := M{"_id": "1", "n": 5, "s": "x"}
	s.Equal(M{"_id": "1", "n": 7.5, "s": "x"}, s.modify(doc, M{"$inc": M{"n": 2.5}}))
	s.Equal(M{"_id": "1", "n": 5, "s": "x", "new": 3}, s.modify(doc, M{"$inc": M{"new": 3}}))

	_, err := s.mod.Modify(doc, M{"$inc": M{"s": 1}})
	s.Error(err)
	_, err = s.mod.Modify(doc, M{"$inc": M{"n": "1"}})
	s.Error(err)
}

func (s *ModifierTestSuite) TestPush() {
	doc := M{"_id": "1", "l": A{1, 2}, "s": "x"}
	s.Equal(A{1, 2, 3}, s.modify(doc, M{"$push": M{"l": 3}}).Get("l"))
	s.Equal(A{"a"}, s.modify(doc, M{"$push": M{"new": "a"}}).Get("new"))
	s.Equal(A{1, 2, 3, 4}, s.modify(doc, M{"$push": M{"l": M{"$each": A{3, 4}}}}).Get("l"))
	s.Equal(A{1, 2}, s.modify(doc, M{"$push": M{"l": M{"$each": A{3, 4}, "$slice": 2}}}).Get("l"))
	s.Equal(A{3, 4}, s.modify(doc, M{"$push": M{"l": M{"$each": A{3, 4}, "$slice": -2}}}).Get("l"))
	s.Equal(A{}, s.modify(doc, M{"$push": M{"l": M{"$each": A{3}, "$slice": 0}}}).Get("l"))
	s.Equal(A{M{"a": 1}}, s.modify(doc, M{"$push": M{"new": M{"a": 1}}}).Get("new"))

	_, err := s.mod.Modify(doc, M{"$push": M{"s": 1}})
	s.Error(err)
	_, err = s.mod.Modify(doc, M{"$push": M{"l": M{"$each": 1}}})
	s.Error(err)
	_, err = s.mod.Modify(doc, M{"$push": M{"l": M{"$each": A{1}, "other": 1}}})
	s.Error(err)
}

func (s *ModifierTestSuite) TestAddToSet() {
	doc := M{"_id": "1", "l": A{"a", "b"}}
	s.Equal(A{"a", "b"}, s.modify(doc, M{"$addToSet": M{"l": "a"}}).Get("l"))
	s.Equal(A{"a", "b", "c"}, s.modify(doc, M{"$addToSet": M{"l": "c"}}).Get("l"))
	s.Equal(A{"a", "b", "c"}, s.modify(doc, M{"$addToSet": M{"l": M{"$each": A{"a", "c", "c"}}}}).Get("l"))
	s.Equal(A{M{"x": 1}}, s.modify(M{"_id": "1", "l": A{M{"x": 1}}}, M{"$addToSet": M{"l": M{"x": 1}}}).Get("l"))

	_, err := s.mod.Modify(doc, M{"$addToSet": M{"l": M{"$each": A{"a"}, "x": 1}}})
	s.Error(err)
}

func (s *ModifierTestSuite) TestPop() {
	doc := M{"_id": "1", "l": A{1, 2, 3}, "s": "x"}
	s.Equal(A{1, 2}, s.modify(doc, M{"$pop": M{"l": 1}}).Get("l"))
	s.Equal(A{2, 3}, s.modify(doc, M{"$pop": M{"l": -1}}).Get("l"))
	s.Equal(A{1, 2, 3}, s.modify(doc, M{"$pop": M{"l": 0}}).Get("l"))

	_, err := s.mod.Modify(doc, M{"$pop": M{"s": 1}})
	s.Error(err)
	_, err = s.mod.Modify(doc, M{"$pop": M{"missing": 1}})
	s.Error(err)
	_, err = s.mod.Modify(doc, M{"$pop": M{"l": 1.5}})
	s.Error(err)
}

func (s *ModifierTestSuite) TestPull() {
	doc := M{"_id": "1", "l": A{1, 5, 2, 8}}
	s.Equal(A{1, 2, 8}, s.modify(doc, M{"$pull": M{"l": 5}}).Get("l"))
	s.Equal(A{1, 2}, s.modify(doc, M{"$pull": M{"l": M{"$gte": 5}}}).Get("l"))

	_, err := s.mod.Modify(doc, M{"$pull": M{"missing": 1}})
	s.Error(err)
}

func (s *ModifierTestSuite) TestMinMax() {
	doc := M{"_id": "1", "n": 5}
	s.Equal(3, s.modify(doc, M{"$min": M{"n": 3}}).Get("n"))
	s.Equal(5, s.modify(doc, M{"$min": M{"n": 7}}).Get("n"))
	s.Equal(7, s.modify(doc, M{"$max": M{"n": 7}}).Get("n"))
	s.Equal(5, s.modify(doc, M{"$max": M{"n": 3}}).Get("n"))
	s.Equal(1, s.modify(doc, M{"$max": M{"other": 1}}).Get("other"))
}

func TestModifierTestSuite(t *testing.T) {
	suite.Run(t, new(ModifierTestSuite))
}
