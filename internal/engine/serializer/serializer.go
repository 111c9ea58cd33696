// Package serializer contains the default [domain.Serializer] implementation,
// writing documents as single line JSON objects.
package serializer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/comparer"
)

// ErrFieldName is returned for keys that cannot be stored.
var ErrFieldName = errors.New("invalid field name")

// Serializer implements domain.Serializer.
type Serializer struct {
	documentFactory domain.DocumentFactory
}

// NewSerializer returns a new implementation of domain.Serializer.
func NewSerializer(documentFactory domain.DocumentFactory) domain.Serializer {
	return &Serializer{
		documentFactory: documentFactory,
	}
}

// Serialize implements domain.Serializer. Dates are written as
// {"$$date": <unix millis>}.
func (s *Serializer) Serialize(ctx context.Context, obj any) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	cp, err := s.copyAny(obj)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cp)
}

func (s *Serializer) copyDoc(doc domain.Document) (domain.Document, error) {
	res, err := s.documentFactory(nil)
	if err != nil {
		return nil, err
	}

	for k, v := range doc.Iter() {
		copied, err := s.copyAny(v)
		if err != nil {
			return nil, err
		}
		if err := checkKey(k, copied); err != nil {
			return nil, err
		}
		res.Set(k, copied)
	}
	return res, nil
}

func (s *Serializer) copyAny(v any) (any, error) {
	switch t := v.(type) {
	case domain.Document:
		return s.copyDoc(t)
	case []any:
		newList := make([]any, len(t))
		for n, itm := range t {
			newV, err := s.copyAny(itm)
			if err != nil {
				return nil, err
			}
			newList[n] = newV
		}
		return newList, nil
	case time.Time:
		return s.documentFactory(map[string]any{"$$date": t.UnixMilli()})
	default:
		return v, nil
	}
}

// CheckKey reports whether k can be stored. Keys cannot contain a dot, and
// only the four reserved "$$" keys may start with a dollar sign.
func CheckKey(k string, v any) error {
	return checkKey(k, v)
}

func checkKey(k string, v any) error {
	if strings.ContainsRune(k, '.') {
		return fmt.Errorf("%w: field names cannot contain a '.'", ErrFieldName)
	}
	if !strings.HasPrefix(k, "$") {
		return nil
	}

	valid := false
	switch k {
	case "$$date":
		_, valid = comparer.AsFloat64(v)
	case "$$deleted":
		valid = v == true
	case "$$indexCreated", "$$indexRemoved":
		valid = true
	}
	if !valid {
		return fmt.Errorf("%w: field names cannot start with the $ character", ErrFieldName)
	}
	return nil
}
