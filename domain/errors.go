package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTargetNil is returned when the passed target, which should be a
	// pointer, is passed as a nil value.
	ErrTargetNil = errors.New("target interface is nil")
	// ErrBufferReset is reported to operations that were waiting for the
	// database to load when the executor buffer was reset.
	ErrBufferReset = errors.New("executor buffer was reset")
	// ErrClosed is reported to operations queued on a closed engine.
	ErrClosed = errors.New("datastore is closed")
	// ErrConstraintViolated is the engine-side marker of a unique index
	// violation.
	ErrConstraintViolated = errors.New("unique constraint violated")
	// ErrDuplicateKey is matched by normalized errors carrying the
	// [ConditionDuplicateKey] tag.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrDatafileName is returned when the datafile name ends with "~".
	ErrDatafileName = errors.New("the datafile name can't end with a ~, which is reserved for crash safe backup files")
	// ErrSerializationHooks is returned when the serialization hooks are
	// not the inverse of each other.
	ErrSerializationHooks = errors.New("beforeDeserialization is not the reverse of afterSerialization, cautiously refusing to start to prevent dataloss")
)

// ErrCorruptFiles is returned when the share of unreadable lines in the
// datafile exceeds the configured threshold.
type ErrCorruptFiles struct {
	CorruptionRate        float64
	CorruptItems          int
	DataLength            int
	CorruptAlertThreshold float64
}

func (e ErrCorruptFiles) Error() string {
	return fmt.Sprintf("%v%% of the data file is corrupt, more than given corruptAlertThreshold (%v%%). Cautiously refusing to start to prevent dataloss", math.Floor(100*e.CorruptionRate), math.Floor(100*e.CorruptAlertThreshold))
}

// ErrFlushToStorage is returned when fsync or close fails while writing the
// datafile.
type ErrFlushToStorage struct {
	ErrorOnFsync error
	ErrorOnClose error
}

func (e ErrFlushToStorage) Error() string {
	return "storage flush error: " + e.Unwrap().Error()
}

func (e ErrFlushToStorage) Unwrap() error {
	if e.ErrorOnFsync != nil {
		return e.ErrorOnFsync
	}
	return e.ErrorOnClose
}

// Condition tags a normalized [Error] so callers can branch on it without
// matching messages.
type Condition string

const (
	// ConditionNone is the tag of every failure without a known category.
	ConditionNone Condition = ""
	// ConditionDuplicateKey tags a unique index violation.
	ConditionDuplicateKey Condition = "duplicateKey"
)

// Error is the uniform failure value every asynchronous operation rejects
// with. It is immutable once created.
type Error struct {
	message   string
	condition Condition
	cause     error
}

// NewError returns an [*Error]. Empty messages are replaced so that Error
// never returns an empty string.
func NewError(message string, condition Condition, cause error) *Error {
	if message == "" {
		message = "unknown engine error"
	}
	return &Error{message: message, condition: condition, cause: cause}
}

// Error implements error.
func (e *Error) Error() string { return e.message }

// Message returns the human-readable message of the original failure.
func (e *Error) Message() string { return e.message }

// Condition returns the condition tag.
func (e *Error) Condition() Condition { return e.condition }

// DuplicateKey reports whether e was caused by a unique index violation.
func (e *Error) DuplicateKey() bool { return e.condition == ConditionDuplicateKey }

// Unwrap returns the original engine error, if it was an error value.
func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is(err, ErrDuplicateKey) work for tagged errors.
func (e *Error) Is(target error) bool {
	return target == ErrDuplicateKey && e.DuplicateKey()
}

// IsDuplicateKey reports whether err, or any error it wraps, is a normalized
// duplicate key failure.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// ConstructionError is returned synchronously when a datastore cannot be
// created from its configuration.
type ConstructionError struct {
	Err error
}

func (e *ConstructionError) Error() string {
	return "cannot create datastore: " + e.Err.Error()
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// IsConstructionError reports whether err is a [*ConstructionError].
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}
