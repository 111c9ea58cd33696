// Package datastore exposes a [domain.Engine] through operations returning
// [promise.Future] values and cursors returning them on Exec.
package datastore

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/adapter/cursor"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/adapter/promise"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/metrics"
	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/logger"
)

// Option configures a [Datastore].
type Option func(*Datastore)

// WithLogger sets the logger used for operation diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(d *Datastore) {
		d.log = l
	}
}

// Datastore is the asynchronous handle over one engine, which it owns.
// Operations are issued to the engine in call order.
type Datastore struct {
	engine   domain.Engine
	log      logger.Logger
	registry *xsync.MapOf[string, Operation]

	loadDatabase func() *promise.Future[struct{}]
	insert       func([]any) *promise.Future[[]domain.Document]
	find         func(any, any) *promise.Future[[]domain.Document]
	findOne      func(any, any) *promise.Future[domain.Document]
	count        func(any) *promise.Future[int64]
	update       func(any, any, domain.UpdateOptions) *promise.Future[domain.UpdateResult]
	remove       func(any, domain.RemoveOptions) *promise.Future[int64]
	ensureIndex  func(domain.EnsureIndexOptions) *promise.Future[struct{}]
	removeIndex  func(string) *promise.Future[struct{}]
}

// NewDatastore returns a handle over e.
func NewDatastore(e domain.Engine, options ...Option) *Datastore {
	d := &Datastore{
		engine: e,
		log:    logger.Default(),
	}
	for _, option := range options {
		option(d)
	}
	d.log = d.log.With("component", "datastore")

	d.loadDatabase = promise.Promisify0(d.loadDatabaseOp)
	d.insert = promise.Promisify1(d.insertOp)
	d.find = promise.Promisify2(d.findOp)
	d.findOne = promise.Promisify2(d.findOneOp)
	d.count = promise.Promisify1(d.countOp)
	d.update = promise.Promisify3(d.updateOp)
	d.remove = promise.Promisify2(d.removeOp)
	d.ensureIndex = promise.Promisify1(d.ensureIndexOp)
	d.removeIndex = promise.Promisify1(d.removeIndexOp)

	d.registry = d.newRegistry()
	return d
}

// track wraps cb to record the first settlement of operation.
func track[T any](d *Datastore, operation string, cb domain.Callback[T]) domain.Callback[T] {
	start := time.Now()
	var once sync.Once
	return func(err error, value T) {
		once.Do(func() {
			metrics.ObserveOperation(operation, start, err)
			if err != nil {
				d.log.Debug("operation failed", "operation", operation, "error", err)
			}
		})
		cb(err, value)
	}
}

func (d *Datastore) loadDatabaseOp(cb domain.Callback[struct{}]) {
	d.engine.LoadDatabase(promise.Void(track(d, OpLoadDatabase, cb)))
}

func (d *Datastore) insertOp(docs []any, cb domain.Callback[[]domain.Document]) {
	d.engine.Insert(docs, track(d, OpInsert, cb))
}

func (d *Datastore) findOp(query any, projection any, cb domain.Callback[[]domain.Document]) {
	d.engine.Find(query, projection, track(d, OpFind, cb))
}

func (d *Datastore) findOneOp(query any, projection any, cb domain.Callback[domain.Document]) {
	d.engine.FindOne(query, projection, track(d, OpFindOne, cb))
}

func (d *Datastore) countOp(query any, cb domain.Callback[int64]) {
	d.engine.Count(query, track(d, OpCount, cb))
}

func (d *Datastore) updateOp(query any, update any, options domain.UpdateOptions, cb domain.Callback[domain.UpdateResult]) {
	d.engine.Update(query, update, options, promise.Triple(updateResult(options), track(d, OpUpdate, cb)))
}

func (d *Datastore) removeOp(query any, options domain.RemoveOptions, cb domain.Callback[int64]) {
	d.engine.Remove(query, options, track(d, OpRemove, cb))
}

func (d *Datastore) ensureIndexOp(options domain.EnsureIndexOptions, cb domain.Callback[struct{}]) {
	d.engine.EnsureIndex(options, promise.Void(track(d, OpEnsureIndex, cb)))
}

func (d *Datastore) removeIndexOp(fieldName string, cb domain.Callback[struct{}]) {
	d.engine.RemoveIndex(fieldName, promise.Void(track(d, OpRemoveIndex, cb)))
}

// updateResult builds the resolved value of an update. NewDoc holds the
// upserted document, or the updated one when options ask for it. NewDocs is
// only set for multi updates returning their documents.
func updateResult(options domain.UpdateOptions) func(int64, []domain.Document, bool) domain.UpdateResult {
	return func(n int64, docs []domain.Document, upsert bool) domain.UpdateResult {
		res := domain.UpdateResult{NumReplaced: n, Upsert: upsert}
		switch {
		case upsert:
			if len(docs) > 0 {
				res.NewDoc = docs[0]
			}
		case !options.ReturnUpdatedDocs:
		case options.Multi:
			res.NewDocs = docs
			if res.NewDocs == nil {
				res.NewDocs = []domain.Document{}
			}
		case len(docs) > 0:
			res.NewDoc = docs[0]
		}
		return res
	}
}

// LoadDatabase loads the datafile. Operations issued before it on a
// persistent datastore wait for it to complete.
func (d *Datastore) LoadDatabase() *promise.Future[struct{}] {
	return d.loadDatabase()
}

// Insert inserts docs and resolves with the stored documents, including
// their generated _id. A single slice argument is inserted as a batch.
func (d *Datastore) Insert(docs ...any) *promise.Future[[]domain.Document] {
	if len(docs) == 1 {
		docs = asDocs(docs[0])
	}
	return d.insert(docs)
}

// Find resolves with the documents matching query. projection may be nil.
func (d *Datastore) Find(query any, projection any) *promise.Future[[]domain.Document] {
	return d.find(query, projection)
}

// FindOne resolves with the first document matching query, or nil.
func (d *Datastore) FindOne(query any, projection any) *promise.Future[domain.Document] {
	return d.findOne(query, projection)
}

// Count resolves with the number of documents matching query.
func (d *Datastore) Count(query any) *promise.Future[int64] {
	return d.count(query)
}

// Update modifies the documents matching query.
func (d *Datastore) Update(query any, update any, options domain.UpdateOptions) *promise.Future[domain.UpdateResult] {
	return d.update(query, update, options)
}

// Remove resolves with the number of removed documents.
func (d *Datastore) Remove(query any, options domain.RemoveOptions) *promise.Future[int64] {
	return d.remove(query, options)
}

// EnsureIndex creates an index, unless it already exists.
func (d *Datastore) EnsureIndex(options domain.EnsureIndexOptions) *promise.Future[struct{}] {
	return d.ensureIndex(options)
}

// RemoveIndex removes the index over fieldName.
func (d *Datastore) RemoveIndex(fieldName string) *promise.Future[struct{}] {
	return d.removeIndex(fieldName)
}

// CursorFind returns a cursor over the documents matching query.
func (d *Datastore) CursorFind(query any, projection any) *cursor.Cursor[[]domain.Document] {
	return cursor.Wrap(d.engine.FindCursor(query, projection))
}

// CursorFindOne returns a cursor over the first document matching query.
func (d *Datastore) CursorFindOne(query any, projection any) *cursor.Cursor[domain.Document] {
	return cursor.Wrap(d.engine.FindOneCursor(query, projection))
}

// CursorCount returns a cursor counting the documents matching query.
func (d *Datastore) CursorCount(query any) *cursor.Cursor[int64] {
	return cursor.Wrap(d.engine.CountCursor(query))
}

// CompactDataFile queues a rewrite of the datafile.
func (d *Datastore) CompactDataFile() {
	d.engine.CompactDataFile()
}

// SetAutoCompactionInterval compacts the datafile every ms milliseconds.
func (d *Datastore) SetAutoCompactionInterval(ms int64) {
	d.engine.SetAutoCompactionInterval(time.Duration(ms) * time.Millisecond)
}

// StopAutoCompaction stops the periodic compaction.
func (d *Datastore) StopAutoCompaction() {
	d.engine.StopAutoCompaction()
}

// WaitCompaction blocks until the next compaction completes or ctx is done.
func (d *Datastore) WaitCompaction(ctx context.Context) error {
	return d.engine.WaitCompaction(ctx)
}

// Close stops the engine. Pending operations are rejected.
func (d *Datastore) Close() error {
	return d.engine.Close()
}
