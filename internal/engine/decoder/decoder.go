// Package decoder contains the default [domain.Decoder] implementation.
package decoder

import (
	"fmt"

	"github.com/goccy/go-reflect"
	"github.com/mitchellh/mapstructure"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

// TagName is the struct tag read when decoding documents into structs.
const TagName = "gedb"

var docReflectType = reflect.TypeOf((*domain.Document)(nil)).Elem()

// Decoder implements domain.Decoder.
type Decoder struct {
	tagName string
}

// NewDecoder returns a new implementation of domain.Decoder reading the gedb
// struct tag.
func NewDecoder() domain.Decoder {
	return NewDecoderWithTag(TagName)
}

// NewDecoderWithTag returns a decoder that reads tag instead of the default
// one.
func NewDecoderWithTag(tag string) domain.Decoder {
	return &Decoder{tagName: tag}
}

// Decode implements domain.Decoder.
func (d *Decoder) Decode(source any, target any) error {
	if target == nil {
		return domain.ErrTargetNil
	}

	value := reflect.ValueNoEscapeOf(target)
	if value.Kind() != reflect.Ptr {
		return fmt.Errorf("decode target must be a pointer, got %T", target)
	}

	if !value.Type().Elem().Implements(docReflectType) {
		source = d.adjustDoc(source)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          d.tagName,
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(source); err != nil {
		return fmt.Errorf("decoding %T into %T: %w", source, target, err)
	}
	return nil
}

// adjustDoc turns documents into plain maps so mapstructure can read them.
func (d *Decoder) adjustDoc(value any) any {
	switch t := value.(type) {
	case domain.Document:
		doc := make(map[string]any, t.Len())
		for k, v := range t.Iter() {
			doc[k] = d.adjustDoc(v)
		}
		return doc
	case []any:
		lst := make([]any, len(t))
		for n, v := range t {
			lst[n] = d.adjustDoc(v)
		}
		return lst
	default:
		return value
	}
}
