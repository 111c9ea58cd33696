// Package deserializer contains the default [domain.Deserializer]
// implementation.
package deserializer

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/comparer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
)

// NewDeserializer returns a new instance of domain.Deserializer.
func NewDeserializer(decoder domain.Decoder) domain.Deserializer {
	return &Deserializer{
		decoder: decoder,
	}
}

// Deserializer implements [domain.Deserializer].
type Deserializer struct {
	decoder domain.Decoder
}

// Deserialize implements [domain.Deserializer]. Objects holding only a
// numeric "$$date" key are read back as [time.Time].
func (d *Deserializer) Deserialize(ctx context.Context, b []byte, target any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if target == nil {
		return domain.ErrTargetNil
	}

	var raw map[string]any
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&raw); err != nil {
		return err
	}

	doc, ok := revive(raw).(data.M)
	if !ok {
		// a top level {"$$date": n} line is kept as a document
		doc = data.M{}
		for k, v := range raw {
			doc[k] = revive(v)
		}
	}

	switch p := target.(type) {
	case *data.M:
		*p = doc
		return nil
	case *domain.Document:
		*p = doc
		return nil
	case *map[string]any:
		*p = doc
		return nil
	}

	return d.decoder.Decode(doc, target)
}

func revive(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if ms, ok := comparer.AsFloat64(t["$$date"]); ok {
				return time.UnixMilli(int64(ms))
			}
		}
		res := make(data.M, len(t))
		for k, v := range t {
			res[k] = revive(v)
		}
		return res
	case []any:
		res := make([]any, len(t))
		for n, v := range t {
			res[n] = revive(v)
		}
		return res
	default:
		return v
	}
}
