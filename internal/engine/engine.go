// Package engine contains the callback-driven embedded document store. Every
// operation is queued on an [executor.Executor] and reports its result to the
// callback given as last parameter, exactly once, from the executor
// goroutine. Callbacks must not block waiting for another operation of the
// same engine.
package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/comparer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/decoder"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/executor"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/hasher"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/idgenerator"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/index"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/matcher"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/modifier"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/persistence"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/querier"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/serializer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/storage"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/timegetter"
	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/logger"
)

const (
	// MinAutoCompactionInterval is the shortest accepted interval between
	// two automatic compactions.
	MinAutoCompactionInterval = 5 * time.Second

	idLength = 16
)

var (
	// ErrMissingFieldName is reported when creating an index without a
	// field name.
	ErrMissingFieldName = errors.New("cannot create an index without a fieldName")
	// ErrRemoveIDIndex is reported when trying to remove the _id index.
	ErrRemoveIDIndex = errors.New("cannot remove the _id index")
)

// Engine implements [domain.Engine].
type Engine struct {
	inMemoryOnly  bool
	timestampData bool
	extra         map[string]any
	log           logger.Logger

	executor    *executor.Executor
	persistence domain.Persistence

	// only accessed by executor tasks
	indexes    map[string]domain.Index
	ttlIndexes map[string]time.Duration

	indexFactory    domain.IndexFactory
	documentFactory domain.DocumentFactory
	comparer        domain.Comparer
	matcher         domain.Matcher
	modifier        domain.Modifier
	querier         domain.Querier
	decoder         domain.Decoder
	hasher          domain.Hasher
	idGenerator     domain.IDGenerator
	timeGetter      domain.TimeGetter
	fieldNavigator  domain.FieldNavigator

	autocompaction struct {
		mu   sync.Mutex
		stop chan struct{}
		done chan struct{}
	}
}

var _ domain.Engine = (*Engine)(nil)

// New returns a new Engine. Persistent engines buffer every operation until
// the database is loaded, either by [Engine.LoadDatabase] or by the
// autoload option. Construction fails when the persistence options are
// invalid.
func New(options ...domain.DatastoreOption) (*Engine, error) {
	opts := domain.DatastoreOptions{
		CorruptAlertThreshold: persistence.DefaultCorruptAlertThreshold,
		FileMode:              persistence.DefaultFileMode,
		DirMode:               persistence.DefaultDirMode,
	}
	for _, option := range options {
		option(&opts)
	}
	fillDefaults(&opts)

	inMemoryOnly := opts.InMemoryOnly || opts.Filename == ""

	if opts.Persistence == nil {
		p, err := persistence.NewPersistence(
			domain.WithPersistenceFilename(opts.Filename),
			domain.WithPersistenceInMemoryOnly(inMemoryOnly),
			domain.WithPersistenceCorruptAlertThreshold(opts.CorruptAlertThreshold),
			domain.WithPersistenceFileMode(opts.FileMode),
			domain.WithPersistenceDirMode(opts.DirMode),
			domain.WithPersistenceSerializationHooks(opts.Hooks),
			domain.WithPersistenceStorage(opts.Storage),
			domain.WithPersistenceDocumentFactory(opts.DocumentFactory),
			func(po *domain.PersistenceOptions) {
				po.Comparer = opts.Comparer
				po.Decoder = opts.Decoder
				po.Hasher = opts.Hasher
				po.IDGenerator = opts.IDGenerator
			},
		)
		if err != nil {
			return nil, err
		}
		opts.Persistence = p
	}

	e := &Engine{
		inMemoryOnly:    inMemoryOnly,
		timestampData:   opts.TimestampData,
		extra:           opts.Extra,
		log:             opts.Logger.With("component", "engine"),
		persistence:     opts.Persistence,
		ttlIndexes:      make(map[string]time.Duration),
		indexFactory:    opts.IndexFactory,
		documentFactory: opts.DocumentFactory,
		comparer:        opts.Comparer,
		matcher:         opts.Matcher,
		modifier:        opts.Modifier,
		querier:         opts.Querier,
		decoder:         opts.Decoder,
		hasher:          opts.Hasher,
		idGenerator:     opts.IDGenerator,
		timeGetter:      opts.TimeGetter,
		fieldNavigator:  opts.FieldNavigator,
	}

	idIndex, err := e.newIndex(domain.IndexCreated{FieldName: "_id", Unique: true})
	if err != nil {
		return nil, err
	}
	e.indexes = map[string]domain.Index{"_id": idIndex}

	if len(e.extra) > 0 {
		e.log.Debug("ignoring unrecognized options", "options", slices.Sorted(maps.Keys(e.extra)))
	}

	e.executor = executor.NewExecutor(inMemoryOnly)

	if opts.Autoload {
		onLoad := opts.OnLoad
		e.LoadDatabase(func(err error) {
			if onLoad != nil {
				onLoad(err)
				return
			}
			if err != nil {
				e.log.Warn("autoload failed", "error", err)
			}
		})
	}

	return e, nil
}

func fillDefaults(opts *domain.DatastoreOptions) {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.DocumentFactory == nil {
		opts.DocumentFactory = data.NewDocument
	}
	if opts.Comparer == nil {
		opts.Comparer = comparer.NewComparer()
	}
	if opts.FieldNavigator == nil {
		opts.FieldNavigator = fieldnavigator.NewFieldNavigator(opts.DocumentFactory)
	}
	if opts.Matcher == nil {
		opts.Matcher = matcher.NewMatcher(opts.Comparer, opts.FieldNavigator)
	}
	if opts.Modifier == nil {
		opts.Modifier = modifier.NewModifier(opts.DocumentFactory, opts.Comparer, opts.FieldNavigator, opts.Matcher)
	}
	if opts.Querier == nil {
		opts.Querier = querier.NewQuerier(
			querier.WithMatcher(opts.Matcher),
			querier.WithComparer(opts.Comparer),
			querier.WithFieldNavigator(opts.FieldNavigator),
			querier.WithDocumentFactory(opts.DocumentFactory),
		)
	}
	if opts.Decoder == nil {
		opts.Decoder = decoder.NewDecoder()
	}
	if opts.Hasher == nil {
		opts.Hasher = hasher.NewHasher()
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = idgenerator.NewIDGenerator()
	}
	if opts.TimeGetter == nil {
		opts.TimeGetter = timegetter.NewTimeGetter()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewStorage()
	}
	if opts.IndexFactory == nil {
		opts.IndexFactory = index.NewIndex
	}
}

// Extra returns the options the engine did not recognize.
func (e *Engine) Extra() map[string]any {
	return maps.Clone(e.extra)
}

// push queues run. If the task is dropped, fail receives the reason.
func (e *Engine) push(run func(), fail func(error)) {
	e.executor.Push(run, fail, false)
}

func (e *Engine) newIndex(dto domain.IndexCreated) (domain.Index, error) {
	return e.indexFactory(
		domain.WithIndexFieldName(dto.FieldName),
		domain.WithIndexUnique(dto.Unique),
		domain.WithIndexSparse(dto.Sparse),
		domain.WithIndexExpireAfter(time.Duration(dto.ExpireAfter*float64(time.Second))),
		domain.WithIndexComparer(e.comparer),
		domain.WithIndexHasher(e.hasher),
		domain.WithIndexFieldNavigator(e.fieldNavigator),
	)
}

// indexNames returns the index names with _id first, so documents are
// always checked against the _id index before the others.
func (e *Engine) indexNames() []string {
	names := slices.Collect(maps.Keys(e.indexes))
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "_id":
			return -1
		case b == "_id":
			return 1
		}
		return cmp.Compare(a, b)
	})
	return names
}

func (e *Engine) getAllData() []domain.Document {
	return e.indexes["_id"].GetAll()
}

func (e *Engine) getIndexDTOs() map[string]domain.IndexDTO {
	res := make(map[string]domain.IndexDTO, len(e.indexes))
	for name, idx := range e.indexes {
		res[name] = domain.IndexDTO{IndexCreated: domain.IndexCreated{
			FieldName:   idx.FieldName(),
			Unique:      idx.Unique(),
			Sparse:      idx.Sparse(),
			ExpireAfter: idx.ExpireAfter().Seconds(),
		}}
	}
	return res
}

func (e *Engine) resetIndexes(docs ...domain.Document) error {
	for _, name := range e.indexNames() {
		if err := e.indexes[name].Reset(docs...); err != nil {
			return err
		}
	}
	return nil
}

// LoadDatabase implements [domain.Engine]. It jumps the buffer of pending
// operations, which run once the load succeeds. If it fails, the pending
// operations fail with [domain.ErrBufferReset] and later ones run against the
// empty store.
func (e *Engine) LoadDatabase(cb func(error)) {
	e.executor.Push(func() {
		err := e.loadDatabase()
		if err != nil {
			e.executor.ResetBuffer()
			e.executor.ProcessBuffer()
			e.log.Warn("loading database failed", "error", err)
		} else {
			e.executor.ProcessBuffer()
			e.log.Debug("database loaded", "documents", e.indexes["_id"].GetNumberOfKeys())
		}
		cb(err)
	}, cb, true)
}

func (e *Engine) loadDatabase() error {
	if err := e.resetIndexes(); err != nil {
		return err
	}
	if e.inMemoryOnly {
		return nil
	}

	docs, indexes, err := e.persistence.LoadDatabase(context.Background())
	if err != nil {
		return err
	}

	for name, dto := range indexes {
		if name == "_id" {
			continue
		}
		idx, err := e.newIndex(dto.IndexCreated)
		if err != nil {
			return err
		}
		e.indexes[name] = idx
		if dto.IndexCreated.ExpireAfter > 0 {
			e.ttlIndexes[name] = idx.ExpireAfter()
		}
	}

	if err := e.resetIndexes(docs...); err != nil {
		return errors.Join(err, e.resetIndexes())
	}
	return nil
}

// Insert implements [domain.Engine]. Every document is inserted or none is.
func (e *Engine) Insert(docs []any, cb domain.Callback[[]domain.Document]) {
	e.push(func() {
		res, err := e.insert(docs)
		if err != nil {
			cb(err, nil)
			return
		}
		cb(nil, data.CloneDocs(res))
	}, func(err error) { cb(err, nil) })
}

func (e *Engine) insert(newDocs []any) ([]domain.Document, error) {
	prepared, err := e.prepareDocumentsForInsertion(newDocs)
	if err != nil {
		return nil, err
	}
	if err := e.insertInCache(prepared); err != nil {
		return nil, err
	}
	if err := e.persistence.PersistNewState(context.Background(), prepared...); err != nil {
		return nil, err
	}
	return prepared, nil
}

func (e *Engine) prepareDocumentsForInsertion(newDocs []any) ([]domain.Document, error) {
	res := make([]domain.Document, len(newDocs))
	for n, newDoc := range newDocs {
		doc, err := e.documentFactory(newDoc)
		if err != nil {
			return nil, err
		}
		if doc.ID() == nil {
			id, err := e.createNewID()
			if err != nil {
				return nil, err
			}
			doc.Set("_id", id)
		}
		if e.timestampData {
			now := e.timeGetter.GetTime()
			if !doc.Has("createdAt") {
				doc.Set("createdAt", now)
			}
			if !doc.Has("updatedAt") {
				doc.Set("updatedAt", now)
			}
		}
		if err := checkObject(doc); err != nil {
			return nil, err
		}
		res[n] = doc
	}
	return res, nil
}

// checkObject validates every key of v, recursively.
func checkObject(v any) error {
	switch t := v.(type) {
	case domain.Document:
		for k, v := range t.Iter() {
			if err := serializer.CheckKey(k, v); err != nil {
				return err
			}
			if err := checkObject(v); err != nil {
				return err
			}
		}
	case []any:
		for _, v := range t {
			if err := checkObject(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) createNewID() (string, error) {
	for {
		id, err := e.idGenerator.GenerateID(idLength)
		if err != nil {
			return "", err
		}
		found, err := e.indexes["_id"].GetMatching(id)
		if err != nil {
			return "", err
		}
		if len(found) == 0 {
			return id, nil
		}
	}
}

func (e *Engine) insertInCache(docs []domain.Document) error {
	for n, doc := range docs {
		if err := e.addToIndexes(doc); err != nil {
			for _, inserted := range docs[:n] {
				if rmErr := e.removeFromIndexes(inserted); rmErr != nil {
					return errors.Join(err, rmErr)
				}
			}
			return err
		}
	}
	return nil
}

func (e *Engine) addToIndexes(doc domain.Document) error {
	names := e.indexNames()
	for n, name := range names {
		if err := e.indexes[name].Insert(doc); err != nil {
			for _, inserted := range names[:n] {
				if rmErr := e.indexes[inserted].Remove(doc); rmErr != nil {
					return errors.Join(err, rmErr)
				}
			}
			return err
		}
	}
	return nil
}

func (e *Engine) removeFromIndexes(doc domain.Document) error {
	var errs []error
	for _, name := range e.indexNames() {
		if err := e.indexes[name].Remove(doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) updateIndexes(mods []domain.Update) error {
	names := e.indexNames()
	for n, name := range names {
		if err := e.indexes[name].Update(mods...); err != nil {
			for _, updated := range names[:n] {
				if rvErr := e.indexes[updated].RevertUpdate(mods...); rvErr != nil {
					return errors.Join(err, rvErr)
				}
			}
			return err
		}
	}
	return nil
}

// Find implements [domain.Engine].
func (e *Engine) Find(query any, projection any, cb domain.Callback[[]domain.Document]) {
	e.FindCursor(query, projection).Exec(cb)
}

// FindOne implements [domain.Engine].
func (e *Engine) FindOne(query any, projection any, cb domain.Callback[domain.Document]) {
	e.FindOneCursor(query, projection).Exec(cb)
}

// Count implements [domain.Engine].
func (e *Engine) Count(query any, cb domain.Callback[int64]) {
	e.CountCursor(query).Exec(cb)
}

// find runs a query against the current data. The returned documents are
// copies.
func (e *Engine) find(q cursorQuery, dontExpireStaleDocs bool) ([]domain.Document, error) {
	queryDoc, err := e.documentFactory(q.query)
	if err != nil {
		return nil, err
	}

	proj := make(map[string]uint8)
	if q.projection != nil {
		if err := e.decoder.Decode(q.projection, &proj); err != nil {
			return nil, fmt.Errorf("invalid projection: %w", err)
		}
	}

	candidates, err := e.getCandidates(queryDoc, dontExpireStaleDocs)
	if err != nil {
		return nil, err
	}

	res, err := e.querier.Query(candidates,
		domain.WithQuery(queryDoc),
		domain.WithQueryLimit(q.limit),
		domain.WithQuerySkip(q.skip),
		domain.WithQuerySort(q.sort),
		domain.WithQueryProjection(proj),
	)
	if err != nil {
		return nil, err
	}
	return data.CloneDocs(res), nil
}

// getCandidates returns the documents that may match query, using the first
// usable index. Unless dontExpireStaleDocs is set, documents past the TTL of
// an index are removed and left out.
func (e *Engine) getCandidates(query domain.Document, dontExpireStaleDocs bool) ([]domain.Document, error) {
	docs, err := e.getRawCandidates(query)
	if err != nil {
		return nil, err
	}
	if dontExpireStaleDocs || len(e.ttlIndexes) == 0 {
		return docs, nil
	}

	now := e.timeGetter.GetTime()
	valid := make([]domain.Document, 0, len(docs))
	var expired []domain.Document
DocLoop:
	for _, doc := range docs {
		for name, ttl := range e.ttlIndexes {
			addr, err := e.fieldNavigator.GetAddress(name)
			if err != nil {
				return nil, err
			}
			v, _ := e.fieldNavigator.GetField(doc, addr...)
			if t, ok := v.(time.Time); ok && now.After(t.Add(ttl)) {
				expired = append(expired, doc)
				continue DocLoop
			}
		}
		valid = append(valid, doc)
	}

	if len(expired) > 0 {
		if _, err := e.removeDocs(expired); err != nil {
			return nil, err
		}
	}
	return valid, nil
}

func (e *Engine) getRawCandidates(query domain.Document) ([]domain.Document, error) {
	if query.Len() == 0 {
		return e.getAllData(), nil
	}

	// a field compared to a plain value
	for k, v := range query.Iter() {
		if idx, ok := e.indexes[k]; ok && isIndexable(v) {
			return idx.GetMatching(v)
		}
	}

	// a field with $in
	for k := range query.Iter() {
		idx, ok := e.indexes[k]
		sub := query.D(k)
		if !ok || sub == nil || !sub.Has("$in") {
			continue
		}
		in := sub.Get("$in")
		if l, ok := in.([]any); ok {
			return idx.GetMatching(l...)
		}
		return idx.GetMatching(in)
	}

	// a field with comparison operators
	for k := range query.Iter() {
		idx, ok := e.indexes[k]
		sub := query.D(k)
		if !ok || sub == nil {
			continue
		}
		if sub.Has("$lt") || sub.Has("$lte") || sub.Has("$gt") || sub.Has("$gte") {
			return idx.GetBetweenBounds(sub)
		}
	}

	return e.getAllData(), nil
}

// isIndexable reports whether v can be looked up as an index key. Documents
// hold operators and arrays or regular expressions are matched by the
// matcher.
func isIndexable(v any) bool {
	switch v.(type) {
	case domain.Document, []any, *regexp.Regexp:
		return false
	}
	return true
}

// Update implements [domain.Engine]. On upsert, docs holds the inserted
// document. Otherwise it holds the updated documents when
// ReturnUpdatedDocs is set, or nothing.
func (e *Engine) Update(query any, update any, options domain.UpdateOptions, cb func(err error, numAffected int64, docs []domain.Document, upsert bool)) {
	e.push(func() {
		n, docs, upsert, err := e.update(query, update, options)
		if err != nil {
			cb(err, 0, nil, false)
			return
		}
		cb(nil, n, docs, upsert)
	}, func(err error) { cb(err, 0, nil, false) })
}

func (e *Engine) update(query any, update any, options domain.UpdateOptions) (int64, []domain.Document, bool, error) {
	queryDoc, err := e.documentFactory(query)
	if err != nil {
		return 0, nil, false, err
	}
	updateDoc, err := e.documentFactory(update)
	if err != nil {
		return 0, nil, false, err
	}

	if options.Upsert {
		found, err := e.find(cursorQuery{query: queryDoc, limit: 1}, false)
		if err != nil {
			return 0, nil, false, err
		}
		if len(found) != 1 {
			inserted, err := e.upsert(queryDoc, updateDoc)
			if err != nil {
				return 0, nil, false, err
			}
			return 1, inserted, true, nil
		}
	}

	candidates, err := e.getCandidates(queryDoc, false)
	if err != nil {
		return 0, nil, false, err
	}

	var mods []domain.Update
	for _, candidate := range candidates {
		if !options.Multi && len(mods) > 0 {
			break
		}
		ok, err := e.matcher.Match(candidate, queryDoc)
		if err != nil {
			return 0, nil, false, err
		}
		if !ok {
			continue
		}
		newDoc, err := e.modifier.Modify(candidate, updateDoc)
		if err != nil {
			return 0, nil, false, err
		}
		if e.timestampData {
			if candidate.Has("createdAt") {
				newDoc.Set("createdAt", candidate.Get("createdAt"))
			}
			newDoc.Set("updatedAt", e.timeGetter.GetTime())
		}
		mods = append(mods, domain.Update{OldDoc: candidate, NewDoc: newDoc})
	}

	if err := e.updateIndexes(mods); err != nil {
		return 0, nil, false, err
	}

	updated := make([]domain.Document, len(mods))
	for n, mod := range mods {
		updated[n] = mod.NewDoc
	}
	if err := e.persistence.PersistNewState(context.Background(), updated...); err != nil {
		return 0, nil, false, err
	}

	if !options.ReturnUpdatedDocs {
		return int64(len(mods)), nil, false, nil
	}
	return int64(len(mods)), data.CloneDocs(updated), false, nil
}

// upsert inserts update when it is a plain document, or the query stripped
// of its operators and modified by update otherwise.
func (e *Engine) upsert(query domain.Document, update domain.Document) ([]domain.Document, error) {
	toInsert := update
	if checkObject(update) != nil {
		base, err := e.documentFactory(stripOperators(query))
		if err != nil {
			return nil, err
		}
		if toInsert, err = e.modifier.Modify(base, update); err != nil {
			return nil, err
		}
	}
	inserted, err := e.insert([]any{toInsert})
	if err != nil {
		return nil, err
	}
	return data.CloneDocs(inserted), nil
}

// stripOperators deep copies v leaving out every key starting with "$".
func stripOperators(v any) any {
	switch t := v.(type) {
	case domain.Document:
		res := make(data.M, t.Len())
		for k, v := range t.Iter() {
			if len(k) > 0 && k[0] == '$' {
				continue
			}
			res[k] = stripOperators(v)
		}
		return res
	case []any:
		res := make([]any, len(t))
		for n, v := range t {
			res[n] = stripOperators(v)
		}
		return res
	default:
		return t
	}
}

// Remove implements [domain.Engine].
func (e *Engine) Remove(query any, options domain.RemoveOptions, cb domain.Callback[int64]) {
	e.push(func() {
		n, err := e.remove(query, options)
		cb(err, n)
	}, func(err error) { cb(err, 0) })
}

func (e *Engine) remove(query any, options domain.RemoveOptions) (int64, error) {
	queryDoc, err := e.documentFactory(query)
	if err != nil {
		return 0, err
	}
	candidates, err := e.getCandidates(queryDoc, true)
	if err != nil {
		return 0, err
	}

	var toRemove []domain.Document
	for _, candidate := range candidates {
		if !options.Multi && len(toRemove) > 0 {
			break
		}
		ok, err := e.matcher.Match(candidate, queryDoc)
		if err != nil {
			return 0, err
		}
		if ok {
			toRemove = append(toRemove, candidate)
		}
	}
	return e.removeDocs(toRemove)
}

func (e *Engine) removeDocs(docs []domain.Document) (int64, error) {
	markers := make([]domain.Document, len(docs))
	for n, doc := range docs {
		if err := e.removeFromIndexes(doc); err != nil {
			return 0, err
		}
		markers[n] = data.M{"_id": doc.ID(), "$$deleted": true}
	}
	if err := e.persistence.PersistNewState(context.Background(), markers...); err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// EnsureIndex implements [domain.Engine]. Creating an index that already
// exists does nothing.
func (e *Engine) EnsureIndex(options domain.EnsureIndexOptions, cb func(error)) {
	e.push(func() { cb(e.ensureIndex(options)) }, cb)
}

func (e *Engine) ensureIndex(options domain.EnsureIndexOptions) error {
	if options.FieldName == "" {
		return ErrMissingFieldName
	}
	if _, ok := e.indexes[options.FieldName]; ok {
		return nil
	}

	dto := domain.IndexCreated{
		FieldName:   options.FieldName,
		Unique:      options.Unique,
		Sparse:      options.Sparse,
		ExpireAfter: options.ExpireAfterSeconds,
	}
	idx, err := e.newIndex(dto)
	if err != nil {
		return err
	}
	if err := idx.Insert(e.getAllData()...); err != nil {
		return err
	}

	e.indexes[options.FieldName] = idx
	if options.ExpireAfterSeconds > 0 {
		e.ttlIndexes[options.FieldName] = idx.ExpireAfter()
	}

	doc, err := e.documentFactory(domain.IndexDTO{IndexCreated: dto})
	if err != nil {
		return err
	}
	return e.persistence.PersistNewState(context.Background(), doc)
}

// RemoveIndex implements [domain.Engine].
func (e *Engine) RemoveIndex(fieldName string, cb func(error)) {
	e.push(func() { cb(e.removeIndex(fieldName)) }, cb)
}

func (e *Engine) removeIndex(fieldName string) error {
	if fieldName == "_id" {
		return ErrRemoveIDIndex
	}
	delete(e.indexes, fieldName)
	delete(e.ttlIndexes, fieldName)
	return e.persistence.PersistNewState(context.Background(), data.M{"$$indexRemoved": fieldName})
}

// CompactDataFile implements [domain.Engine].
func (e *Engine) CompactDataFile() {
	e.push(func() {
		if err := e.persistence.PersistCachedDatabase(context.Background(), e.getAllData(), e.getIndexDTOs()); err != nil {
			e.log.Warn("compaction failed", "error", err)
		}
	}, func(error) {})
}

// SetAutoCompactionInterval implements [domain.Engine]. Intervals shorter
// than [MinAutoCompactionInterval] are raised to it.
func (e *Engine) SetAutoCompactionInterval(interval time.Duration) {
	interval = max(interval, MinAutoCompactionInterval)

	e.StopAutoCompaction()

	e.autocompaction.mu.Lock()
	defer e.autocompaction.mu.Unlock()
	stop, done := make(chan struct{}), make(chan struct{})
	e.autocompaction.stop, e.autocompaction.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.CompactDataFile()
			}
		}
	}()
}

// StopAutoCompaction implements [domain.Engine].
func (e *Engine) StopAutoCompaction() {
	e.autocompaction.mu.Lock()
	defer e.autocompaction.mu.Unlock()
	if e.autocompaction.stop == nil {
		return
	}
	close(e.autocompaction.stop)
	<-e.autocompaction.done
	e.autocompaction.stop, e.autocompaction.done = nil, nil
}

// WaitCompaction implements [domain.Engine].
func (e *Engine) WaitCompaction(ctx context.Context) error {
	return e.persistence.WaitCompaction(ctx)
}

// Close implements [domain.Engine].
func (e *Engine) Close() error {
	e.StopAutoCompaction()
	e.executor.Close()
	return nil
}
