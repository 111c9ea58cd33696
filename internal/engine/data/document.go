// Package data contains the default [domain.Document] implementation and the
// factory used to turn user values into documents.
package data

import (
	"fmt"
	"iter"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	goreflect "github.com/goccy/go-reflect"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

// TagName is the struct tag read when converting structs into documents.
const TagName = "gedb"

var (
	timeTyp   = goreflect.TypeOf(*new(time.Time))
	regexpTyp = goreflect.TypeOf(new(regexp.Regexp))
)

// M implements domain.Document by using a hashed map.
type M map[string]any

// NewDocument returns a new instance of [domain.Document]. Structs, maps and
// documents are converted recursively: nested maps and structs become [M] and
// slices become []any.
func NewDocument(in any) (domain.Document, error) {
	if in == nil {
		return M{}, nil
	}
	if m, ok := in.(map[string]any); ok {
		return parseMap(m)
	}
	if d, ok := in.(domain.Document); ok {
		return parseDoc(d)
	}

	r := goreflect.ValueNoEscapeOf(in)
	for r.Kind() == goreflect.Interface || r.Kind() == reflect.Pointer {
		if r.IsNil() {
			return M{}, nil
		}
		r = r.Elem()
	}
	if r.Kind() != goreflect.Struct && r.Kind() != goreflect.Map || r.Type() == timeTyp {
		return nil, fmt.Errorf("expected map or struct, got %s", r.Type().String())
	}
	v, err := parseReflect(r)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return M{}, nil
	}
	return v.(M), nil
}

// Value converts a single value the way [NewDocument] converts field values.
func Value(in any) (any, error) {
	switch t := in.(type) {
	case nil, string, bool, float64, int, int64, time.Time, *regexp.Regexp:
		return t, nil
	case map[string]any:
		return parseMap(t)
	case domain.Document:
		return parseDoc(t)
	case []any:
		return parseSlice(t)
	}
	return parseReflect(goreflect.ValueNoEscapeOf(in))
}

func parseMap(m map[string]any) (M, error) {
	res := make(M, len(m))
	for k, v := range m {
		var err error
		if res[k], err = Value(v); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func parseDoc(d domain.Document) (M, error) {
	res := make(M, d.Len())
	for k, v := range d.Iter() {
		var err error
		if res[k], err = Value(v); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func parseSlice(l []any) ([]any, error) {
	res := make([]any, len(l))
	for n, v := range l {
		var err error
		if res[n], err = Value(v); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func parseReflect(r goreflect.Value) (any, error) {
	if r.IsValid() && r.Type() == regexpTyp {
		return r.Interface(), nil
	}
	for r.Kind() == reflect.Pointer || r.Kind() == goreflect.Interface {
		if r.IsNil() {
			return nil, nil
		}
		r = r.Elem()
	}
	switch r.Kind() {
	case goreflect.Invalid:
		return nil, nil
	case goreflect.Slice:
		if r.IsNil() {
			return nil, nil
		}
		if r.Type().Elem().Kind() == reflect.Uint8 {
			return r.Interface(), nil
		}
		fallthrough
	case goreflect.Array:
		return parseList(r)
	case goreflect.Struct:
		if r.Type() == timeTyp {
			return r.Interface(), nil
		}
		return parseStruct(r)
	case goreflect.Map:
		if r.IsNil() {
			return nil, nil
		}
		if r.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map keys must be strings, got %s", r.Type().Key().String())
		}
		return parseMapReflect(r)
	case goreflect.Chan, goreflect.Func:
		if r.IsNil() {
			return nil, nil
		}
		return r.Interface(), nil
	default:
		return r.Interface(), nil
	}
}

func parseStruct(r goreflect.Value) (M, error) {
	typ := r.Type()
	res := make(M, r.NumField())
	for n := range r.NumField() {
		field := typ.Field(n)
		if field.PkgPath != "" {
			continue
		}
		name, value, ok, err := parseField(r.Field(n), field)
		if err != nil {
			return nil, err
		}
		if ok {
			res[name] = value
		}
	}
	return res, nil
}

func parseMapReflect(v goreflect.Value) (M, error) {
	res := make(M, v.Len())
	for _, k := range v.MapKeys() {
		var err error
		if res[k.String()], err = parseReflect(v.MapIndex(k)); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func parseField(r goreflect.Value, typ goreflect.StructField) (string, any, bool, error) {
	name := typ.Name
	var tagSegments []string
	if tag, ok := typ.Tag.Lookup(TagName); ok {
		if tag == "-" {
			return "", nil, false, nil
		}
		tagSegments = strings.Split(tag, ",")
		if tagSegments[0] != "" {
			name = tagSegments[0]
		}
		tagSegments = tagSegments[1:]
	}
	if slices.Contains(tagSegments, "omitempty") && isNullable(typ.Type) && r.IsNil() {
		return "", nil, false, nil
	}
	if slices.Contains(tagSegments, "omitzero") && r.IsZero() {
		return "", nil, false, nil
	}

	value, err := parseReflect(r)
	if err != nil {
		return "", nil, false, err
	}
	return name, value, true, nil
}

func parseList(r goreflect.Value) ([]any, error) {
	res := make([]any, r.Len())
	for i := range r.Len() {
		var err error
		if res[i], err = parseReflect(r.Index(i)); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func isNullable(t goreflect.Type) bool {
	k := t.Kind()
	return k == reflect.Pointer ||
		k == reflect.Slice ||
		k == reflect.Map ||
		k == reflect.Interface ||
		k == reflect.Func ||
		k == reflect.Chan
}

// Clone returns a deep copy of v. Documents become [M] and lists are copied
// element by element; every other value is returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case domain.Document:
		res := make(M, t.Len())
		for k, v := range t.Iter() {
			res[k] = Clone(v)
		}
		return res
	case []any:
		res := make([]any, len(t))
		for n, v := range t {
			res[n] = Clone(v)
		}
		return res
	default:
		return t
	}
}

// CloneDocs deep copies every document in docs.
func CloneDocs(docs []domain.Document) []domain.Document {
	res := make([]domain.Document, len(docs))
	for n, doc := range docs {
		res[n] = Clone(doc).(domain.Document)
	}
	return res
}

// ID implements domain.Document
func (d M) ID() any {
	return d["_id"]
}

// Get implements domain.Document
func (d M) Get(key string) any {
	return d[key]
}

// Set implements domain.Document
func (d M) Set(key string, value any) {
	d[key] = value
}

// Unset implements domain.Document
func (d M) Unset(key string) {
	delete(d, key)
}

// D implements domain.Document
func (d M) D(key string) domain.Document {
	if doc, ok := d[key].(domain.Document); ok {
		return doc
	}
	return nil
}

// Iter implements domain.Document.
func (d M) Iter() iter.Seq2[string, any] {
	return maps.All(d)
}

// Keys implements domain.Document.
func (d M) Keys() iter.Seq[string] {
	return maps.Keys(d)
}

// Len implements domain.Document.
func (d M) Len() int {
	return len(d)
}

// Has implements domain.Document.
func (d M) Has(key string) bool {
	_, has := d[key]
	return has
}
