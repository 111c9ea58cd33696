package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/metrics"
	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/logger"
)

type DatastoreTestSuite struct {
	suite.Suite
	ctx context.Context
	d   *Datastore
}

func (s *DatastoreTestSuite) SetupTest() {
	var cancel context.CancelFunc
	s.ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	s.T().Cleanup(cancel)

	e, err := engine.New(domain.WithLogger(logger.NewNop()))
	s.Require().NoError(err)
	s.d = NewDatastore(e, WithLogger(logger.NewNop()))
	s.T().Cleanup(func() { s.NoError(s.d.Close()) })
}

func (s *DatastoreTestSuite) seed() {
	_, err := s.d.Insert(
		data.M{"num": 1, "alpha": "a"},
		data.M{"num": 2, "alpha": "b"},
		data.M{"num": 3, "alpha": "c"},
	).Await(s.ctx)
	s.Require().NoError(err)
}

func (s *DatastoreTestSuite) TestInsertFind() {
	before := metrics.Operations(OpInsert)

	docs, err := s.d.Insert(data.M{"a": 1}).Await(s.ctx)
	s.NoError(err)
	s.Require().Len(docs, 1)
	s.NotNil(docs[0].ID())
	s.Equal(before+1, metrics.Operations(OpInsert))

	found, err := s.d.Find(nil, nil).Await(s.ctx)
	s.NoError(err)
	s.Equal(docs, found)

	doc, err := s.d.FindOne(data.M{"a": 2}, nil).Await(s.ctx)
	s.NoError(err)
	s.Nil(doc)
}

func (s *DatastoreTestSuite) TestInsertSlice() {
	docs, err := s.d.Insert([]data.M{{"num": 1}, {"num": 2}}).Await(s.ctx)
	s.NoError(err)
	s.Len(docs, 2)

	docs, err = s.d.Insert([]domain.Document{data.M{"num": 3}}).Await(s.ctx)
	s.NoError(err)
	s.Len(docs, 1)

	docs, err = s.d.Insert([]any{}).Await(s.ctx)
	s.NoError(err)
	s.Empty(docs)

	n, err := s.d.Count(nil).Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(3), n)
}

func (s *DatastoreTestSuite) TestAsDocs() {
	s.Equal([]any{data.M{"a": 1}}, asDocs(data.M{"a": 1}))
	s.Equal([]any{data.M{"a": 1}, data.M{"a": 2}}, asDocs([]data.M{{"a": 1}, {"a": 2}}))
	s.Equal([]any{map[string]any{"a": 1}}, asDocs([]map[string]any{{"a": 1}}))
	s.Equal([]any{1, "x"}, asDocs([]any{1, "x"}))
}

func (s *DatastoreTestSuite) TestDuplicateKey() {
	_, err := s.d.EnsureIndex(domain.EnsureIndexOptions{FieldName: "a", Unique: true}).Await(s.ctx)
	s.NoError(err)

	before := metrics.Failures(OpInsert)
	_, err = s.d.Insert(data.M{"a": 1}, data.M{"a": 1}).Await(s.ctx)
	s.True(domain.IsDuplicateKey(err))
	s.Equal(before+1, metrics.Failures(OpInsert))

	_, err = s.d.RemoveIndex("a").Await(s.ctx)
	s.NoError(err)
	_, err = s.d.Insert(data.M{"a": 1}, data.M{"a": 1}).Await(s.ctx)
	s.NoError(err)
}

func (s *DatastoreTestSuite) TestUpdateAndRemove() {
	s.seed()

	res, err := s.d.Update(data.M{"num": 3}, data.M{"$set": data.M{"updated": true}}, domain.UpdateOptions{}).Await(s.ctx)
	s.NoError(err)
	s.Equal(domain.UpdateResult{NumReplaced: 1}, res)

	res, err = s.d.Update(data.M{"num": 6}, data.M{"num": 6, "alpha": "f"}, domain.UpdateOptions{Upsert: true}).Await(s.ctx)
	s.NoError(err)
	s.True(res.Upsert)
	s.Equal(int64(1), res.NumReplaced)
	s.Require().NotNil(res.NewDoc)
	s.Equal("f", res.NewDoc.Get("alpha"))

	n, err := s.d.Count(nil).Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(4), n)

	n, err = s.d.Remove(nil, domain.RemoveOptions{Multi: true}).Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(4), n)
}

func (s *DatastoreTestSuite) TestCursors() {
	s.seed()

	docs, err := s.d.CursorFind(data.M{"num": 3}, nil).Projection(map[string]any{"num": 1, "_id": 0}).Exec().Await(s.ctx)
	s.NoError(err)
	s.Equal([]domain.Document{data.M{"num": 3}}, docs)

	doc, err := s.d.CursorFindOne(nil, nil).Sort(domain.Sort{{Key: "num", Order: -1}}).Exec().Await(s.ctx)
	s.NoError(err)
	s.Equal(3, doc.Get("num"))

	cur := s.d.CursorCount(data.M{"num": data.M{"$gt": 1}})
	n, err := cur.Exec().Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(2), n)

	_, err = s.d.Insert(data.M{"num": 4}).Await(s.ctx)
	s.NoError(err)
	n, err = cur.Exec().Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(3), n)
}

func (s *DatastoreTestSuite) TestOperations() {
	names := make([]string, 0, 9)
	for _, op := range s.d.Operations() {
		names = append(names, op.Name)
	}
	s.Equal([]string{
		OpCount, OpEnsureIndex, OpFind, OpFindOne, OpInsert,
		OpLoadDatabase, OpRemove, OpRemoveIndex, OpUpdate,
	}, names)
}

func (s *DatastoreTestSuite) TestCall() {
	v, err := s.d.Call(OpInsert, []any{data.M{"num": 1}, data.M{"num": 2}}).Await(s.ctx)
	s.NoError(err)
	s.Len(v, 2)

	v, err = s.d.Call(OpInsert, map[string]any{"num": 3}).Await(s.ctx)
	s.NoError(err)
	s.Len(v, 1)

	v, err = s.d.Call(OpCount).Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(3), v)

	v, err = s.d.Call(OpUpdate, data.M{}, data.M{"$set": data.M{"x": 1}}, map[string]any{"multi": true, "returnUpdatedDocs": true}).Await(s.ctx)
	s.NoError(err)
	res, ok := v.(domain.UpdateResult)
	s.Require().True(ok)
	s.Equal(int64(3), res.NumReplaced)
	s.Len(res.NewDocs, 3)

	v, err = s.d.Call(OpFindOne, data.M{"num": 1}).Await(s.ctx)
	s.NoError(err)
	s.Equal(1, v.(domain.Document).Get("x"))

	_, err = s.d.Call(OpEnsureIndex, domain.EnsureIndexOptions{FieldName: "num"}).Await(s.ctx)
	s.NoError(err)
	_, err = s.d.Call(OpRemoveIndex, "num").Await(s.ctx)
	s.NoError(err)

	v, err = s.d.Call(OpRemove, data.M{}, &domain.RemoveOptions{Multi: true}).Await(s.ctx)
	s.NoError(err)
	s.Equal(int64(3), v)

	_, err = s.d.Call(OpLoadDatabase).Await(s.ctx)
	s.NoError(err)
}

func (s *DatastoreTestSuite) TestCallErrors() {
	_, err := s.d.Call("compactDataFile").Await(s.ctx)
	s.ErrorIs(err, ErrUnknownOperation)

	_, err = s.d.Call(OpInsert).Await(s.ctx)
	s.ErrorIs(err, ErrInvalidArgument)

	_, err = s.d.Call(OpCount, nil, nil).Await(s.ctx)
	s.ErrorIs(err, ErrInvalidArgument)

	_, err = s.d.Call(OpRemoveIndex, 1).Await(s.ctx)
	s.ErrorIs(err, ErrInvalidArgument)

	_, err = s.d.Call(OpUpdate, nil, nil, "multi").Await(s.ctx)
	s.ErrorIs(err, ErrInvalidArgument)
}

func (s *DatastoreTestSuite) TestUpdateResult() {
	docs := []domain.Document{data.M{"_id": "1"}, data.M{"_id": "2"}}

	s.Equal(domain.UpdateResult{NumReplaced: 1, NewDoc: docs[0], Upsert: true},
		updateResult(domain.UpdateOptions{Upsert: true})(1, docs[:1], true))
	s.Equal(domain.UpdateResult{NumReplaced: 2},
		updateResult(domain.UpdateOptions{Multi: true})(2, nil, false))
	s.Equal(domain.UpdateResult{NumReplaced: 2, NewDocs: docs},
		updateResult(domain.UpdateOptions{Multi: true, ReturnUpdatedDocs: true})(2, docs, false))
	s.Equal(domain.UpdateResult{NumReplaced: 1, NewDoc: docs[0]},
		updateResult(domain.UpdateOptions{ReturnUpdatedDocs: true})(1, docs[:1], false))
	s.Equal(domain.UpdateResult{NewDocs: []domain.Document{}},
		updateResult(domain.UpdateOptions{Multi: true, ReturnUpdatedDocs: true})(0, nil, false))
}

func (s *DatastoreTestSuite) TestPersistenceControls() {
	s.d.SetAutoCompactionInterval(1)
	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	s.d.CompactDataFile()
	// the explicit compaction or the ticker settles the wait
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.d.CompactDataFile()
	}()
	s.NoError(s.d.WaitCompaction(ctx))
	s.d.StopAutoCompaction()
}

func (s *DatastoreTestSuite) TestClosed() {
	e, err := engine.New()
	s.Require().NoError(err)
	d := NewDatastore(e)
	s.NoError(d.Close())

	_, err = d.Count(nil).Await(s.ctx)
	s.ErrorIs(err, domain.ErrClosed)
}

func TestDatastoreTestSuite(t *testing.T) {
	suite.Run(t, new(DatastoreTestSuite))
}
