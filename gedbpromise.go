// Package gedbpromise provides an embedded MongoDB-like database whose
// operations return futures instead of taking callbacks.
//
// The store is a Go implementation of nedb: documents are kept in memory and,
// unless the datastore is in-memory only, appended to a line-delimited JSON
// datafile that is compacted on load.
//
// A datastore is created with [New]. Every operation returns a [Future]
// settled exactly once, and the cursor helpers return a [Cursor] whose
// modifiers can be chained before calling Exec:
//
//	db, err := gedbpromise.New(gedbpromise.Config{Filename: "data.db", Autoload: true})
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	docs, err := db.CursorFind(gedbpromise.M{"planet": "Earth"}, nil).
//		Sort(gedbpromise.Sort{{Key: "name", Order: 1}}).
//		Limit(10).
//		Exec().
//		Await(ctx)
package gedbpromise

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/adapter/cursor"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/adapter/datastore"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/adapter/promise"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/metrics"
	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/logger"
)

var (
	// ErrDuplicateKey is matched by errors caused by a unique index
	// violation.
	ErrDuplicateKey = domain.ErrDuplicateKey
	// ErrClosed rejects operations issued on, or pending in, a closed
	// datastore.
	ErrClosed = domain.ErrClosed
	// ErrBufferReset rejects operations that were waiting for a database
	// load that failed.
	ErrBufferReset = domain.ErrBufferReset
	// ErrDatafileName is returned when the datafile name ends with "~",
	// which is reserved for the crash-safe backup file.
	ErrDatafileName = domain.ErrDatafileName
	// ErrSerializationHooks is returned when the serialization hooks are
	// not the inverse of each other.
	ErrSerializationHooks = domain.ErrSerializationHooks
	// ErrNegativeInterval is returned when the autocompaction interval is
	// negative.
	ErrNegativeInterval = errors.New("autocompaction interval cannot be negative")
	// ErrUnknownOperation rejects [Datastore.Call] with an unregistered
	// name.
	ErrUnknownOperation = datastore.ErrUnknownOperation
	// ErrInvalidArgument rejects [Datastore.Call] with malformed arguments.
	ErrInvalidArgument = datastore.ErrInvalidArgument
)

// Datastore is the handle returned by [New].
type Datastore = datastore.Datastore

// Operation describes an operation accepted by [Datastore.Call].
type Operation = datastore.Operation

// Future is the eventual result of an operation.
type Future[T any] = promise.Future[T]

// Cursor is a chainable query whose Exec returns a [Future].
type Cursor[T any] = cursor.Cursor[T]

// Document is a stored document. Documents returned by operations are
// copies.
type Document = domain.Document

// M is the default [Document] implementation, convenient for queries.
type M = data.M

// Sort lists the fields used to order results.
type Sort = domain.Sort

// SortName is one field of a [Sort]. Positive orders are ascending.
type SortName = domain.SortName

// UpdateOptions configures [Datastore.Update].
type UpdateOptions = domain.UpdateOptions

// UpdateResult is the resolved value of [Datastore.Update].
type UpdateResult = domain.UpdateResult

// RemoveOptions configures [Datastore.Remove].
type RemoveOptions = domain.RemoveOptions

// EnsureIndexOptions configures [Datastore.EnsureIndex].
type EnsureIndexOptions = domain.EnsureIndexOptions

// SerializationHooks transform every datafile line.
type SerializationHooks = domain.SerializationHooks

// Error is the value every rejected operation carries.
type Error = domain.Error

// ConstructionError is returned by [New].
type ConstructionError = domain.ConstructionError

// ErrCorruptFiles rejects a load when too many datafile lines are
// unreadable.
type ErrCorruptFiles = domain.ErrCorruptFiles

// IsDuplicateKey reports whether err was caused by a unique index violation.
func IsDuplicateKey(err error) bool {
	return domain.IsDuplicateKey(err)
}

// Config holds the datastore options.
type Config struct {
	// Filename is the datafile path. Empty means in-memory only.
	Filename string `yaml:"filename" mapstructure:"filename"`
	// Autoload queues a database load on creation. Operations issued
	// before the load completes wait for it.
	Autoload bool `yaml:"autoload" mapstructure:"autoload"`
	// OnLoad receives the autoload result. Without it, a failed autoload
	// is only logged.
	OnLoad func(error) `yaml:"-" mapstructure:"-"`
	// InMemoryOnly disables the datafile even when Filename is set.
	InMemoryOnly bool `yaml:"inMemoryOnly" mapstructure:"inMemoryOnly"`
	// TimestampData adds createdAt and updatedAt to documents.
	TimestampData bool `yaml:"timestampData" mapstructure:"timestampData"`
	// SerializationHooks transform datafile lines. Both or none must be
	// set.
	SerializationHooks SerializationHooks `yaml:"-" mapstructure:"-"`
	// CorruptAlertThreshold is the accepted share of unreadable datafile
	// lines, 0.1 when nil.
	CorruptAlertThreshold *float64 `yaml:"corruptAlertThreshold" mapstructure:"corruptAlertThreshold"`
	// FileMode is the datafile permission, 0644 when zero.
	FileMode os.FileMode `yaml:"fileMode" mapstructure:"fileMode"`
	// DirMode is the permission of created directories, 0755 when zero.
	DirMode os.FileMode `yaml:"dirMode" mapstructure:"dirMode"`
	// AutocompactionInterval enables periodic compaction when positive.
	// Values under five seconds are raised to five seconds.
	AutocompactionInterval time.Duration `yaml:"autocompactionInterval" mapstructure:"autocompactionInterval"`
	// Extra holds unrecognized options, passed to the engine as-is.
	Extra map[string]any `yaml:",inline" mapstructure:",remain"`
	// Logger receives diagnostics. Defaults to [logger.Default].
	Logger logger.Logger `yaml:"-" mapstructure:"-"`
}

// New creates a datastore backed by a new engine. It performs no I/O: with
// Autoload set, the load is queued and runs in the background. Invalid
// configurations are reported as a [*ConstructionError].
func New(cfg Config) (*Datastore, error) {
	if cfg.AutocompactionInterval < 0 {
		return nil, &ConstructionError{Err: ErrNegativeInterval}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	options := []domain.DatastoreOption{
		domain.WithFilename(cfg.Filename),
		domain.WithInMemoryOnly(cfg.InMemoryOnly),
		domain.WithTimestampData(cfg.TimestampData),
		domain.WithAutoload(cfg.Autoload, cfg.OnLoad),
		domain.WithSerializationHooks(cfg.SerializationHooks),
		domain.WithExtra(cfg.Extra),
		domain.WithLogger(log),
	}
	if cfg.CorruptAlertThreshold != nil {
		options = append(options, domain.WithCorruptAlertThreshold(*cfg.CorruptAlertThreshold))
	}
	if cfg.FileMode != 0 {
		options = append(options, domain.WithFileMode(cfg.FileMode))
	}
	if cfg.DirMode != 0 {
		options = append(options, domain.WithDirMode(cfg.DirMode))
	}

	e, err := engine.New(options...)
	if err != nil {
		return nil, &ConstructionError{Err: err}
	}
	if cfg.AutocompactionInterval > 0 {
		e.SetAutoCompactionInterval(cfg.AutocompactionInterval)
	}

	log.Debug("datastore created", "filename", cfg.Filename, "autoload", cfg.Autoload)
	return datastore.NewDatastore(e, datastore.WithLogger(log)), nil
}

// WritePrometheus writes the operation metrics of every datastore in the
// Prometheus text format.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w)
}
