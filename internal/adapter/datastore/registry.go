package datastore

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/goccy/go-reflect"
	"github.com/mitchellh/mapstructure"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/adapter/promise"
)

// Operation names, as accepted by [Datastore.Call].
const (
	OpLoadDatabase = "loadDatabase"
	OpInsert       = "insert"
	OpFind         = "find"
	OpFindOne      = "findOne"
	OpCount        = "count"
	OpUpdate       = "update"
	OpRemove       = "remove"
	OpEnsureIndex  = "ensureIndex"
	OpRemoveIndex  = "removeIndex"
)

var (
	// ErrUnknownOperation rejects calls to operations that are not
	// registered.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidArgument rejects calls with arguments of the wrong type
	// or number.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Result tells what a resolved operation carries.
type Result int

const (
	// ResultNone resolves with struct{}.
	ResultNone Result = iota
	// ResultDocuments resolves with []domain.Document.
	ResultDocuments
	// ResultDocument resolves with a domain.Document, nil if nothing matched.
	ResultDocument
	// ResultCount resolves with an int64.
	ResultCount
	// ResultUpdate resolves with a domain.UpdateResult.
	ResultUpdate
)

func (r Result) String() string {
	switch r {
	case ResultDocuments:
		return "documents"
	case ResultDocument:
		return "document"
	case ResultCount:
		return "count"
	case ResultUpdate:
		return "update"
	default:
		return "none"
	}
}

// Operation describes an asynchronous operation of the handle.
type Operation struct {
	Name string
	// Params lists the accepted arguments. Arguments after the first
	// MinArgs are optional.
	Params  []string
	MinArgs int
	Result  Result

	call func(args []any) (func(domain.Callback[any]), error)
}

func (d *Datastore) newRegistry() *xsync.MapOf[string, Operation] {
	ops := []Operation{
		{
			Name: OpLoadDatabase, Result: ResultNone,
			call: func([]any) (func(domain.Callback[any]), error) {
				return func(cb domain.Callback[any]) { d.loadDatabaseOp(promise.Erase[struct{}](cb)) }, nil
			},
		},
		{
			Name: OpInsert, Params: []string{"docs"}, MinArgs: 1, Result: ResultDocuments,
			call: func(args []any) (func(domain.Callback[any]), error) {
				docs := asDocs(args[0])
				return func(cb domain.Callback[any]) { d.insertOp(docs, promise.Erase[[]domain.Document](cb)) }, nil
			},
		},
		{
			Name: OpFind, Params: []string{"query", "projection"}, Result: ResultDocuments,
			call: func(args []any) (func(domain.Callback[any]), error) {
				return func(cb domain.Callback[any]) {
					d.findOp(arg(args, 0), arg(args, 1), promise.Erase[[]domain.Document](cb))
				}, nil
			},
		},
		{
			Name: OpFindOne, Params: []string{"query", "projection"}, Result: ResultDocument,
			call: func(args []any) (func(domain.Callback[any]), error) {
				return func(cb domain.Callback[any]) {
					d.findOneOp(arg(args, 0), arg(args, 1), promise.Erase[domain.Document](cb))
				}, nil
			},
		},
		{
			Name: OpCount, Params: []string{"query"}, Result: ResultCount,
			call: func(args []any) (func(domain.Callback[any]), error) {
				return func(cb domain.Callback[any]) { d.countOp(arg(args, 0), promise.Erase[int64](cb)) }, nil
			},
		},
		{
			Name: OpUpdate, Params: []string{"query", "update", "options"}, MinArgs: 2, Result: ResultUpdate,
			call: func(args []any) (func(domain.Callback[any]), error) {
				var opts domain.UpdateOptions
				if err := decodeOptions(arg(args, 2), &opts); err != nil {
					return nil, err
				}
				return func(cb domain.Callback[any]) {
					d.updateOp(args[0], args[1], opts, promise.Erase[domain.UpdateResult](cb))
				}, nil
			},
		},
		{
			Name: OpRemove, Params: []string{"query", "options"}, MinArgs: 1, Result: ResultCount,
			call: func(args []any) (func(domain.Callback[any]), error) {
				var opts domain.RemoveOptions
				if err := decodeOptions(arg(args, 1), &opts); err != nil {
					return nil, err
				}
				return func(cb domain.Callback[any]) { d.removeOp(args[0], opts, promise.Erase[int64](cb)) }, nil
			},
		},
		{
			Name: OpEnsureIndex, Params: []string{"options"}, MinArgs: 1, Result: ResultNone,
			call: func(args []any) (func(domain.Callback[any]), error) {
				var opts domain.EnsureIndexOptions
				if err := decodeOptions(args[0], &opts); err != nil {
					return nil, err
				}
				return func(cb domain.Callback[any]) { d.ensureIndexOp(opts, promise.Erase[struct{}](cb)) }, nil
			},
		},
		{
			Name: OpRemoveIndex, Params: []string{"fieldName"}, MinArgs: 1, Result: ResultNone,
			call: func(args []any) (func(domain.Callback[any]), error) {
				fieldName, ok := args[0].(string)
				if !ok {
					return nil, fmt.Errorf("%w: fieldName must be a string, got %T", ErrInvalidArgument, args[0])
				}
				return func(cb domain.Callback[any]) { d.removeIndexOp(fieldName, promise.Erase[struct{}](cb)) }, nil
			},
		},
	}

	registry := xsync.NewMapOf[string, Operation]()
	for _, op := range ops {
		registry.Store(op.Name, op)
	}
	return registry
}

// Operations lists the operations accepted by [Datastore.Call], sorted by
// name.
func (d *Datastore) Operations() []Operation {
	res := make([]Operation, 0, d.registry.Size())
	d.registry.Range(func(_ string, op Operation) bool {
		res = append(res, op)
		return true
	})
	slices.SortFunc(res, func(a, b Operation) int { return cmp.Compare(a.Name, b.Name) })
	return res
}

// Call runs the operation registered under name with args. The future
// resolves with the value described by the operation [Result]. Unknown
// names and invalid arguments reject.
func (d *Datastore) Call(name string, args ...any) *promise.Future[any] {
	op, ok := d.registry.Load(name)
	if !ok {
		return rejected(fmt.Errorf("%w: %q", ErrUnknownOperation, name))
	}
	if len(args) < op.MinArgs || len(args) > len(op.Params) {
		return rejected(fmt.Errorf("%w: %s takes %d to %d arguments, got %d", ErrInvalidArgument, name, op.MinArgs, len(op.Params), len(args)))
	}
	start, err := op.call(args)
	if err != nil {
		return rejected(err)
	}
	return promise.Call(start)
}

func rejected(err error) *promise.Future[any] {
	return promise.Call(func(cb domain.Callback[any]) { cb(err, nil) })
}

func arg(args []any, n int) any {
	if n < len(args) {
		return args[n]
	}
	return nil
}

// asDocs accepts a slice of documents of any type, or a single document.
func asDocs(v any) []any {
	if t, ok := v.([]any); ok {
		return t
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []any{v}
	}
	res := make([]any, rv.Len())
	for n := range res {
		res[n] = rv.Index(n).Interface()
	}
	return res
}

// decodeOptions reads an option struct, a pointer to it, or a map with the
// option names as keys into target.
func decodeOptions[T any](v any, target *T) error {
	switch t := v.(type) {
	case nil:
		return nil
	case T:
		*target = t
		return nil
	case *T:
		if t != nil {
			*target = *t
		}
		return nil
	}
	if err := mapstructure.Decode(v, target); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}
