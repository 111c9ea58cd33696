// Package persistence contains the default [domain.Persistence]
// implementation. The datafile holds one JSON object per line: documents,
// deletion markers ({"_id": ..., "$$deleted": true}) and index records
// ({"$$indexCreated": {...}} and {"$$indexRemoved": "field"}). Later lines
// override earlier ones, and a compaction rewrites the file with the current
// state only.
package persistence

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/dolmen-go/contextio"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/comparer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/decoder"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/deserializer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/hasher"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/idgenerator"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/serializer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/storage"
	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/ctxsync"
	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/uncomparable"
)

const (
	DefaultDirMode  os.FileMode = 0o755
	DefaultFileMode os.FileMode = 0o644

	// DefaultCorruptAlertThreshold is the share of unreadable lines
	// accepted when loading.
	DefaultCorruptAlertThreshold = 0.1

	maxLineSize = 64 << 20
)

// Persistence implements domain.Persistence.
type Persistence struct {
	inMemoryOnly          bool
	filename              string
	corruptAlertThreshold float64
	fileMode              os.FileMode
	dirMode               os.FileMode
	afterSerialization    func(string) string
	beforeDeserialization func(string) string
	serializer            domain.Serializer
	deserializer          domain.Deserializer
	broadcaster           *ctxsync.Cond
	mu                    *ctxsync.Mutex
	storage               domain.Storage
	decoder               domain.Decoder
	comparer              domain.Comparer
	documentFactory       domain.DocumentFactory
	hasher                domain.Hasher
}

// NewPersistence returns a new implementation of domain.Persistence. It fails
// with [domain.ErrDatafileName] when the datafile name ends with "~" and with
// [domain.ErrSerializationHooks] when only one hook is set or when the hooks
// do not revert each other.
func NewPersistence(options ...domain.PersistenceOption) (domain.Persistence, error) {
	opts := domain.PersistenceOptions{
		CorruptAlertThreshold: DefaultCorruptAlertThreshold,
		FileMode:              DefaultFileMode,
		DirMode:               DefaultDirMode,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Comparer == nil {
		opts.Comparer = comparer.NewComparer()
	}
	if opts.DocumentFactory == nil {
		opts.DocumentFactory = data.NewDocument
	}
	if opts.Decoder == nil {
		opts.Decoder = decoder.NewDecoder()
	}
	if opts.Serializer == nil {
		opts.Serializer = serializer.NewSerializer(opts.DocumentFactory)
	}
	if opts.Deserializer == nil {
		opts.Deserializer = deserializer.NewDeserializer(opts.Decoder)
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewStorage()
	}
	if opts.Hasher == nil {
		opts.Hasher = hasher.NewHasher()
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = idgenerator.NewIDGenerator()
	}

	inMemoryOnly := opts.InMemoryOnly || opts.Filename == ""
	if !inMemoryOnly && strings.HasSuffix(opts.Filename, "~") {
		return nil, domain.ErrDatafileName
	}

	after, before, err := checkHooks(opts.Hooks, opts.IDGenerator)
	if err != nil {
		return nil, err
	}

	return &Persistence{
		inMemoryOnly:          inMemoryOnly,
		filename:              opts.Filename,
		corruptAlertThreshold: opts.CorruptAlertThreshold,
		fileMode:              opts.FileMode,
		dirMode:               opts.DirMode,
		afterSerialization:    after,
		beforeDeserialization: before,
		serializer:            opts.Serializer,
		deserializer:          opts.Deserializer,
		broadcaster:           ctxsync.NewCond(nil),
		mu:                    ctxsync.NewMutex(),
		storage:               opts.Storage,
		decoder:               opts.Decoder,
		comparer:              opts.Comparer,
		documentFactory:       opts.DocumentFactory,
		hasher:                opts.Hasher,
	}, nil
}

// checkHooks fills missing hooks with the identity and makes sure
// BeforeDeserialization reverts AfterSerialization on random strings.
func checkHooks(h domain.SerializationHooks, gen domain.IDGenerator) (after, before func(string) string, err error) {
	if (h.AfterSerialization == nil) != (h.BeforeDeserialization == nil) {
		return nil, nil, fmt.Errorf("%w: both hooks must be set", domain.ErrSerializationHooks)
	}
	if h.AfterSerialization == nil {
		identity := func(s string) string { return s }
		return identity, identity, nil
	}

	for l := 1; l < 30; l++ {
		for range 10 {
			s, err := gen.GenerateID(l)
			if err != nil {
				return nil, nil, err
			}
			if h.BeforeDeserialization(h.AfterSerialization(s)) != s {
				return nil, nil, domain.ErrSerializationHooks
			}
		}
	}
	return h.AfterSerialization, h.BeforeDeserialization, nil
}

// InMemoryOnly reports whether every file operation is skipped.
func (p *Persistence) InMemoryOnly() bool {
	return p.inMemoryOnly
}

func (p *Persistence) serialize(ctx context.Context, v any) ([]byte, error) {
	b, err := p.serializer.Serialize(ctx, v)
	if err != nil {
		return nil, err
	}
	return []byte(p.afterSerialization(string(b))), nil
}

// PersistNewState implements domain.Persistence.
func (p *Persistence) PersistNewState(ctx context.Context, newDocs ...domain.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.inMemoryOnly {
		return nil
	}

	toPersist := new(bytes.Buffer)
	wr := contextio.NewWriter(ctx, toPersist)
	for _, doc := range newDocs {
		b, err := p.serialize(ctx, doc)
		if err != nil {
			return err
		}
		if _, err = wr.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	if toPersist.Len() == 0 {
		return nil
	}

	if err := p.mu.LockWithContext(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()

	_, err := p.storage.AppendFile(p.filename, p.fileMode, toPersist.Bytes())
	return err
}

// TreatRawStream implements domain.Persistence. Documents are returned in
// the order their _id first appeared in the stream.
func (p *Persistence) TreatRawStream(ctx context.Context, rawStream io.Reader) ([]domain.Document, map[string]domain.IndexDTO, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	dataByID := uncomparable.New[domain.Document](p.hasher, p.comparer)
	indexes := make(map[string]domain.IndexDTO)

	corruptItems := 0
	dataLength := 0

	lineStream := bufio.NewScanner(contextio.NewReader(ctx, rawStream))
	lineStream.Buffer(nil, maxLineSize)

	for lineStream.Scan() {
		line := lineStream.Bytes()
		if len(line) == 0 {
			continue
		}
		dataLength++
		if err := p.treatLine(ctx, line, dataByID, indexes); err != nil {
			corruptItems++
		}
	}
	if err := lineStream.Err(); err != nil {
		return nil, nil, err
	}

	if dataLength > 0 {
		corruptionRate := float64(corruptItems) / float64(dataLength)
		if corruptionRate > p.corruptAlertThreshold {
			return nil, nil, domain.ErrCorruptFiles{
				CorruptionRate:        corruptionRate,
				CorruptItems:          corruptItems,
				DataLength:            dataLength,
				CorruptAlertThreshold: p.corruptAlertThreshold,
			}
		}
	}

	return slices.Collect(dataByID.Values()), indexes, nil
}

func (p *Persistence) treatLine(ctx context.Context, line []byte, dataByID *uncomparable.Map[domain.Document], indexes map[string]domain.IndexDTO) error {
	var doc domain.Document
	raw := p.beforeDeserialization(string(line))
	if err := p.deserializer.Deserialize(ctx, []byte(raw), &doc); err != nil {
		return err
	}

	if doc.Has("_id") {
		if doc.Get("$$deleted") == true {
			return dataByID.Delete(doc.ID())
		}
		return dataByID.Set(doc.ID(), doc)
	}

	if d := doc.D("$$indexCreated"); d != nil && d.Get("fieldName") != nil {
		var dto domain.IndexDTO
		if err := p.decoder.Decode(doc, &dto); err != nil {
			return err
		}
		indexes[dto.IndexCreated.FieldName] = dto
		return nil
	}

	if removed, ok := doc.Get("$$indexRemoved").(string); ok {
		delete(indexes, removed)
	}
	return nil
}

// LoadDatabase implements domain.Persistence. The datafile is compacted
// after being read. Resetting the indexes with the returned data is up to
// the caller.
func (p *Persistence) LoadDatabase(ctx context.Context) ([]domain.Document, map[string]domain.IndexDTO, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}
	if p.inMemoryOnly {
		return nil, nil, nil
	}

	docs, indexes, err := p.readDatafile(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err = p.PersistCachedDatabase(ctx, docs, indexes); err != nil {
		return nil, nil, err
	}

	return docs, indexes, nil
}

func (p *Persistence) readDatafile(ctx context.Context) ([]domain.Document, map[string]domain.IndexDTO, error) {
	if err := p.mu.LockWithContext(ctx); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	if err := p.storage.EnsureParentDirectoryExists(p.filename, p.dirMode); err != nil {
		return nil, nil, err
	}
	if err := p.storage.EnsureDatafileIntegrity(p.filename, p.fileMode); err != nil {
		return nil, nil, err
	}

	fileStream, err := p.storage.ReadFileStream(p.filename, p.fileMode)
	if err != nil {
		return nil, nil, err
	}
	defer fileStream.Close()

	return p.TreatRawStream(ctx, fileStream)
}

// DropDatabase implements domain.Persistence.
func (p *Persistence) DropDatabase(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.inMemoryOnly {
		return nil
	}

	if err := p.mu.LockWithContext(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()

	return p.storage.Remove(p.filename)
}

// PersistCachedDatabase implements domain.Persistence. Index records are
// written after the documents, sorted by field name. The _id index is never
// written. Waiters of [Persistence.WaitCompaction] are released once the
// file is rewritten.
func (p *Persistence) PersistCachedDatabase(ctx context.Context, allData []domain.Document, indexes map[string]domain.IndexDTO) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.inMemoryOnly {
		p.broadcaster.Broadcast()
		return nil
	}

	lines := make([][]byte, 0, len(allData)+len(indexes))
	for _, doc := range allData {
		b, err := p.serialize(ctx, doc)
		if err != nil {
			return err
		}
		lines = append(lines, b)
	}

	for _, fieldName := range slices.Sorted(maps.Keys(indexes)) {
		if fieldName == "_id" {
			continue
		}
		doc, err := p.documentFactory(domain.IndexDTO{IndexCreated: indexes[fieldName].IndexCreated})
		if err != nil {
			return err
		}
		b, err := p.serialize(ctx, doc)
		if err != nil {
			return err
		}
		lines = append(lines, b)
	}

	if err := p.mu.LockWithContext(ctx); err != nil {
		return err
	}
	err := p.storage.CrashSafeWriteFileLines(p.filename, lines, p.dirMode, p.fileMode)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	p.broadcaster.Broadcast()
	return nil
}

// WaitCompaction implements domain.Persistence.
func (p *Persistence) WaitCompaction(ctx context.Context) error {
	return p.broadcaster.WaitWithContext(ctx)
}
