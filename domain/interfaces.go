// Package domain contains the interfaces, entities and option types shared by
// the embedded engine and the asynchronous adapter layer.
//
// The engine packages under internal/engine implement the storage-facing
// interfaces (Storage, Persistence, Index, Matcher...), while the adapter
// packages under internal/adapter only depend on [Engine] and [Cursor].
package domain

import (
	"context"
	"io"
	"iter"
	"os"
	"time"
)

// Callback is the completion callback of an engine operation. It is invoked
// with a non-nil error or with the operation result, never with both.
type Callback[T any] func(err error, result T)

// Serializer converts documents to bytes for storage.
type Serializer interface {
	// Serialize converts a document to bytes for persistence.
	Serialize(context.Context, any) ([]byte, error)
}

// Deserializer converts bytes back to documents.
type Deserializer interface {
	// Deserialize converts bytes back to a document.
	Deserialize(context.Context, []byte, any) error
}

// Storage provides low-level file operations with crash-safety guarantees.
type Storage interface {
	// AppendFile appends data to a file, creating it if necessary.
	AppendFile(string, os.FileMode, []byte) (int, error)
	// Exists checks if a file exists.
	Exists(string) (bool, error)
	// EnsureParentDirectoryExists creates parent directories if needed.
	EnsureParentDirectoryExists(string, os.FileMode) error
	// EnsureDatafileIntegrity verifies or repairs file integrity.
	EnsureDatafileIntegrity(string, os.FileMode) error
	// CrashSafeWriteFileLines atomically writes multiple lines to a file.
	CrashSafeWriteFileLines(string, [][]byte, os.FileMode, os.FileMode) error
	// ReadFileStream opens a file for streaming reads.
	ReadFileStream(string, os.FileMode) (io.ReadCloser, error)
	// Remove deletes a file.
	Remove(string) error
}

// Decoder converts between different data representations.
type Decoder interface {
	// Decode converts from one data format to another.
	Decode(any, any) error
}

// Comparer provides ordering and comparison operations for different data types.
type Comparer interface {
	// Compare returns -1, 0, or 1 based on the comparison of two values.
	Compare(any, any) (int, error)
	// Comparable returns true if two values can be compared with $lt, $gt
	// and friends.
	Comparable(any, any) bool
}

// TimeGetter provides current time for timestamping operations.
type TimeGetter interface {
	// GetTime returns the current time.
	GetTime() time.Time
}

// IDGenerator generates random document identifiers.
type IDGenerator interface {
	// GenerateID returns a random alphanumeric string of length l.
	GenerateID(l int) (string, error)
}

// Getter represents a value that can be treated as undefined.
type Getter interface {
	// Get returns the value for the given address and a bool that indicates
	// whether the value counts as defined or not.
	Get() (value any, defined bool)
}

// GetSetter represents an addressable value in a [Document], as returned by
// [FieldNavigator.EnsureField]. It is not concurrency safe.
type GetSetter interface {
	Getter
	// Set will set a new value for the address.
	Set(any)
	// Unset removes the given value from the parent item (object or array).
	Unset()
}

// FieldNavigator provides field access operations with dot notation support.
type FieldNavigator interface {
	// GetAddress splits a dotted field name into its path parts.
	GetAddress(field string) ([]string, error)
	// GetField follows addr inside obj. When a path part crosses an array
	// and is not a numeric index, the remaining path is applied to every
	// element and the defined results are returned as a []any.
	GetField(obj any, addr ...string) (value any, defined bool)
	// EnsureField returns a [GetSetter] for addr. If create is true, missing
	// intermediate documents are created, otherwise a nil GetSetter is
	// returned when the parent does not exist.
	EnsureField(obj any, create bool, addr ...string) (GetSetter, error)
}

// Hasher generates hash values for data deduplication and indexing.
type Hasher interface {
	// Hash generates a hash value for the given data.
	Hash(any) (uint64, error)
}

// Document represents a record in the datastore. Documents handed to callers
// are copies, so mutating them never affects the stored data. Document is read
// by one goroutine at a time and doesn't need to be concurrency safe.
type Document interface {
	// ID returns the document ID, if any, or nil.
	ID() any
	// D returns the subdocument for the given key, if any.
	D(string) Document
	// Get returns the value under the given key, or nil if unset.
	Get(string) any
	// Set sets the value under the given key.
	Set(string, any)
	// Unset unsets the value under the given key.
	Unset(string)
	// Iter returns an unordered sequence of key-value pairs in the
	// document.
	Iter() iter.Seq2[string, any]
	// Keys returns an unordered sequence of keys in the document.
	Keys() iter.Seq[string]
	// Has reports whether a value is set under the given key.
	Has(string) bool
	// Len returns the number of set fields in the document.
	Len() int
}

// Undefined is the value used in place of an unset field when ordering
// documents. It sorts before nil.
type Undefined struct{}

// Matcher evaluates whether values match query criteria.
type Matcher interface {
	// Match returns true if the value matches the query.
	Match(any, any) (bool, error)
}

// Modifier applies update operations to documents.
type Modifier interface {
	// Modify applies an update query to a document and returns the result.
	// The given document is never mutated.
	Modify(Document, Document) (Document, error)
}

// Projector applies a field projection to documents.
type Projector interface {
	// Project returns projected copies of docs.
	Project(docs []Document, projection map[string]uint8) ([]Document, error)
}

// Querier runs a query over a candidate set of documents.
type Querier interface {
	// Query filters, sorts, paginates and projects docs.
	Query(docs []Document, options ...QueryOption) ([]Document, error)
}

// Persistence manages database serialization and file operations.
type Persistence interface {
	// DropDatabase permanently deletes all persisted data.
	DropDatabase(ctx context.Context) error
	// LoadDatabase reads the database from storage and returns documents
	// and indexes.
	LoadDatabase(ctx context.Context) ([]Document, map[string]IndexDTO, error)
	// PersistNewState appends new documents to the persistence layer.
	PersistNewState(ctx context.Context, newDocs ...Document) error
	// TreatRawStream parses a raw data stream and extracts documents and
	// indexes.
	TreatRawStream(ctx context.Context, rawStream io.Reader) ([]Document, map[string]IndexDTO, error)
	// PersistCachedDatabase rewrites the whole datafile in one operation.
	PersistCachedDatabase(ctx context.Context, allData []Document, indexes map[string]IndexDTO) error
	// WaitCompaction blocks until the next datafile rewrite completes.
	WaitCompaction(ctx context.Context) error
}

// Index provides fast document lookups based on field values.
type Index interface {
	// GetAll returns all documents in the index.
	GetAll() []Document
	// GetBetweenBounds returns documents matching a $lt/$lte/$gt/$gte query.
	GetBetweenBounds(query Document) ([]Document, error)
	// GetMatching returns documents with any of the given field values.
	GetMatching(value ...any) ([]Document, error)
	// Insert adds documents to the index. Either all docs are inserted or
	// none is.
	Insert(docs ...Document) error
	// Remove removes documents from the index.
	Remove(docs ...Document) error
	// Reset clears the index and re-inserts the provided documents.
	Reset(newData ...Document) error
	// Update replaces every OldDoc with its NewDoc, rolling back on error.
	Update(pairs ...Update) error
	// RevertUpdate undoes a previous successful Update.
	RevertUpdate(pairs ...Update) error
	// GetNumberOfKeys returns the number of unique keys in the index.
	GetNumberOfKeys() int
	// FieldName returns the field name this index covers.
	FieldName() string
	// Unique returns true if this is a unique index.
	Unique() bool
	// Sparse returns true if this index excludes undefined values.
	Sparse() bool
	// ExpireAfter returns the TTL of the index, or zero.
	ExpireAfter() time.Duration
}

// Cursor is a lazy, chainable query descriptor produced by an [Engine]. The
// modifiers return the receiver so calls can be chained; Exec runs the query
// against the current state of the store and can be called more than once.
type Cursor[T any] interface {
	// Sort sets the sort criteria, replacing previous ones.
	Sort(Sort) Cursor[T]
	// Projection sets the field projection, replacing the previous one.
	Projection(any) Cursor[T]
	// Limit sets the maximum number of returned documents.
	Limit(int64) Cursor[T]
	// Skip sets the number of matching documents to skip.
	Skip(int64) Cursor[T]
	// Exec runs the query and reports the result to cb.
	Exec(cb Callback[T])
}

// Engine is the callback-driven embedded document store consumed by the
// adapter layer. Every asynchronous operation takes its completion callback
// as last parameter and invokes it exactly once.
type Engine interface {
	LoadDatabase(cb func(error))
	Insert(docs []any, cb Callback[[]Document])
	Find(query any, projection any, cb Callback[[]Document])
	FindOne(query any, projection any, cb Callback[Document])
	Count(query any, cb Callback[int64])
	Update(query any, update any, options UpdateOptions, cb func(err error, numAffected int64, docs []Document, upsert bool))
	Remove(query any, options RemoveOptions, cb Callback[int64])
	EnsureIndex(options EnsureIndexOptions, cb func(error))
	RemoveIndex(fieldName string, cb func(error))

	FindCursor(query any, projection any) Cursor[[]Document]
	FindOneCursor(query any, projection any) Cursor[Document]
	CountCursor(query any) Cursor[int64]

	// CompactDataFile queues a rewrite of the datafile.
	CompactDataFile()
	// SetAutoCompactionInterval queues a compaction every interval.
	SetAutoCompactionInterval(interval time.Duration)
	// StopAutoCompaction stops the periodic compaction, if any.
	StopAutoCompaction()
	// WaitCompaction blocks until the next compaction completes.
	WaitCompaction(ctx context.Context) error
	// Close stops the engine goroutines. Queued operations fail with
	// [ErrClosed].
	Close() error
}
