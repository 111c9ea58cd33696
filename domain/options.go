package domain

import (
	"os"
	"time"

	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/logger"
)

// UpdateOptions contains parameters for customizing update operations.
type UpdateOptions struct {
	// Multi enables updating multiple documents that match the query.
	Multi bool `yaml:"multi" mapstructure:"multi"`
	// Upsert enables inserting a document if no matches are found.
	Upsert bool `yaml:"upsert" mapstructure:"upsert"`
	// ReturnUpdatedDocs makes the update report the modified documents.
	ReturnUpdatedDocs bool `yaml:"returnUpdatedDocs" mapstructure:"returnUpdatedDocs"`
}

// RemoveOptions contains parameters for customizing remove operations.
type RemoveOptions struct {
	// Multi enables removing multiple documents that match the query.
	Multi bool `yaml:"multi" mapstructure:"multi"`
}

// EnsureIndexOptions contains parameters for customizing index creation.
type EnsureIndexOptions struct {
	// FieldName is the (possibly dotted) field to index.
	FieldName string `mapstructure:"fieldName"`
	// Unique prevents duplicate values in the indexed field.
	Unique bool `mapstructure:"unique"`
	// Sparse excludes documents without the field from the index.
	Sparse bool `mapstructure:"sparse"`
	// ExpireAfterSeconds makes the index a TTL index over a date field.
	ExpireAfterSeconds float64 `mapstructure:"expireAfterSeconds"`
}

// QueryOption configures querier behavior through the functional options
// pattern.
type QueryOption func(*QueryOptions)

// QueryOptions contains the parameters of a single query execution.
type QueryOptions struct {
	Query      Document
	Limit      int64
	Skip       int64
	Sort       Sort
	Projection map[string]uint8
}

// WithQuery sets the query documents must match.
func WithQuery(q Document) QueryOption {
	return func(qo *QueryOptions) {
		qo.Query = q
	}
}

// WithQueryLimit sets the maximum number of returned documents. Zero means no
// limit.
func WithQueryLimit(l int64) QueryOption {
	return func(qo *QueryOptions) {
		qo.Limit = l
	}
}

// WithQuerySkip sets the number of matching documents to skip.
func WithQuerySkip(s int64) QueryOption {
	return func(qo *QueryOptions) {
		qo.Skip = s
	}
}

// WithQuerySort sets the sort criteria.
func WithQuerySort(s Sort) QueryOption {
	return func(qo *QueryOptions) {
		qo.Sort = s
	}
}

// WithQueryProjection sets the projection applied to results.
func WithQueryProjection(p map[string]uint8) QueryOption {
	return func(qo *QueryOptions) {
		qo.Projection = p
	}
}

// IndexOption configures index creation through the functional options
// pattern.
type IndexOption func(*IndexOptions)

// IndexOptions contains parameters for customizing index creation.
type IndexOptions struct {
	FieldName      string
	Unique         bool
	Sparse         bool
	ExpireAfter    time.Duration
	Comparer       Comparer
	Hasher         Hasher
	FieldNavigator FieldNavigator
}

// WithIndexFieldName sets the indexed field.
func WithIndexFieldName(f string) IndexOption {
	return func(io *IndexOptions) {
		io.FieldName = f
	}
}

// WithIndexUnique makes the index reject duplicate keys.
func WithIndexUnique(u bool) IndexOption {
	return func(io *IndexOptions) {
		io.Unique = u
	}
}

// WithIndexSparse makes the index skip documents without the field.
func WithIndexSparse(s bool) IndexOption {
	return func(io *IndexOptions) {
		io.Sparse = s
	}
}

// WithIndexExpireAfter sets the TTL of the index.
func WithIndexExpireAfter(e time.Duration) IndexOption {
	return func(io *IndexOptions) {
		io.ExpireAfter = e
	}
}

// WithIndexComparer sets the comparer used to order keys.
func WithIndexComparer(c Comparer) IndexOption {
	return func(io *IndexOptions) {
		io.Comparer = c
	}
}

// WithIndexHasher sets the hasher used to deduplicate results.
func WithIndexHasher(h Hasher) IndexOption {
	return func(io *IndexOptions) {
		io.Hasher = h
	}
}

// WithIndexFieldNavigator sets the navigator used to read keys.
func WithIndexFieldNavigator(fn FieldNavigator) IndexOption {
	return func(io *IndexOptions) {
		io.FieldNavigator = fn
	}
}

// SerializationHooks transform every datafile line after serialization and
// before deserialization. Both must be set, and BeforeDeserialization must
// undo AfterSerialization.
type SerializationHooks struct {
	AfterSerialization    func(string) string
	BeforeDeserialization func(string) string
}

// PersistenceOption configures persistence through the functional options
// pattern.
type PersistenceOption func(*PersistenceOptions)

// PersistenceOptions contains parameters for customizing persistence.
type PersistenceOptions struct {
	Filename              string
	InMemoryOnly          bool
	CorruptAlertThreshold float64
	FileMode              os.FileMode
	DirMode               os.FileMode
	Hooks                 SerializationHooks
	Serializer            Serializer
	Deserializer          Deserializer
	Storage               Storage
	Decoder               Decoder
	Comparer              Comparer
	Hasher                Hasher
	IDGenerator           IDGenerator
	DocumentFactory       DocumentFactory
}

// WithPersistenceFilename sets the datafile path.
func WithPersistenceFilename(f string) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Filename = f
	}
}

// WithPersistenceInMemoryOnly disables every file operation.
func WithPersistenceInMemoryOnly(i bool) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.InMemoryOnly = i
	}
}

// WithPersistenceCorruptAlertThreshold sets the accepted share of corrupt
// lines, between 0 and 1.
func WithPersistenceCorruptAlertThreshold(t float64) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.CorruptAlertThreshold = t
	}
}

// WithPersistenceFileMode sets the datafile permissions.
func WithPersistenceFileMode(m os.FileMode) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.FileMode = m
	}
}

// WithPersistenceDirMode sets the permissions of created directories.
func WithPersistenceDirMode(m os.FileMode) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.DirMode = m
	}
}

// WithPersistenceSerializationHooks sets the line transformation hooks.
func WithPersistenceSerializationHooks(h SerializationHooks) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Hooks = h
	}
}

// WithPersistenceStorage sets the storage implementation.
func WithPersistenceStorage(s Storage) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.Storage = s
	}
}

// WithPersistenceDocumentFactory sets the document factory.
func WithPersistenceDocumentFactory(df DocumentFactory) PersistenceOption {
	return func(po *PersistenceOptions) {
		po.DocumentFactory = df
	}
}

// DatastoreOption configures the engine through the functional options
// pattern.
type DatastoreOption func(*DatastoreOptions)

// DatastoreOptions contains every parameter recognized by the engine.
type DatastoreOptions struct {
	Filename              string
	InMemoryOnly          bool
	TimestampData         bool
	Autoload              bool
	OnLoad                func(error)
	CorruptAlertThreshold float64
	FileMode              os.FileMode
	DirMode               os.FileMode
	Hooks                 SerializationHooks
	// Extra holds options the engine does not recognize. They are kept
	// as-is and otherwise ignored.
	Extra map[string]any
	// Logger receives the engine diagnostics. Defaults to
	// [logger.Default].
	Logger logger.Logger

	Persistence     Persistence
	Storage         Storage
	IndexFactory    IndexFactory
	DocumentFactory DocumentFactory
	Comparer        Comparer
	Matcher         Matcher
	Modifier        Modifier
	Querier         Querier
	Decoder         Decoder
	Hasher          Hasher
	IDGenerator     IDGenerator
	TimeGetter      TimeGetter
	FieldNavigator  FieldNavigator
}

// WithFilename sets the datafile path. An empty name means in-memory only.
func WithFilename(f string) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.Filename = f
	}
}

// WithInMemoryOnly disables persistence.
func WithInMemoryOnly(i bool) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.InMemoryOnly = i
	}
}

// WithTimestampData adds createdAt and updatedAt fields to documents.
func WithTimestampData(t bool) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.TimestampData = t
	}
}

// WithAutoload queues a database load at construction time. onLoad, if not
// nil, is called with the load result.
func WithAutoload(a bool, onLoad func(error)) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.Autoload = a
		do.OnLoad = onLoad
	}
}

// WithCorruptAlertThreshold sets the accepted share of corrupt lines.
func WithCorruptAlertThreshold(t float64) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.CorruptAlertThreshold = t
	}
}

// WithFileMode sets the datafile permissions.
func WithFileMode(m os.FileMode) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.FileMode = m
	}
}

// WithDirMode sets the permissions of created directories.
func WithDirMode(m os.FileMode) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.DirMode = m
	}
}

// WithSerializationHooks sets the datafile line transformation hooks.
func WithSerializationHooks(h SerializationHooks) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.Hooks = h
	}
}

// WithExtra passes options the engine does not recognize.
func WithExtra(e map[string]any) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.Extra = e
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.Logger = l
	}
}

// WithPersistence replaces the persistence implementation.
func WithPersistence(p Persistence) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.Persistence = p
	}
}

// WithStorage replaces the storage implementation.
func WithStorage(s Storage) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.Storage = s
	}
}

// WithTimeGetter replaces the clock.
func WithTimeGetter(t TimeGetter) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.TimeGetter = t
	}
}

// WithIDGenerator replaces the identifier generator.
func WithIDGenerator(g IDGenerator) DatastoreOption {
	return func(do *DatastoreOptions) {
		do.IDGenerator = g
	}
}
