// Package projector contains the default [domain.Projector] implementation.
package projector

import (
	"fmt"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/fieldnavigator"
)

// Option configures a [Projector].
type Option func(*Projector)

// WithDocumentFactory sets the factory used to build projected documents.
func WithDocumentFactory(df domain.DocumentFactory) Option {
	return func(p *Projector) {
		p.docFac = df
	}
}

// WithFieldNavigator sets the navigator used to read and write fields.
func WithFieldNavigator(fn domain.FieldNavigator) Option {
	return func(p *Projector) {
		p.fn = fn
	}
}

// Projector implements [domain.Projector].
type Projector struct {
	fn     domain.FieldNavigator
	docFac domain.DocumentFactory
}

// NewProjector returns a new implementation of [domain.Projector].
func NewProjector(opts ...Option) domain.Projector {
	p := Projector{
		docFac: data.NewDocument,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.fn == nil {
		p.fn = fieldnavigator.NewFieldNavigator(p.docFac)
	}
	return &p
}

// Project implements [domain.Projector].
func (q *Projector) Project(docs []domain.Document, p map[string]uint8) ([]domain.Document, error) {
	if len(p) == 0 {
		return docs, nil
	}

	id, idMentioned := p["_id"]
	keepID := !idMentioned || id != 0
	projection := make([][]string, 0, len(p))

	fields := 0
	oneFields := 0
	for field, value := range p {
		if field == "_id" {
			continue
		}
		fields++
		if value > 0 {
			oneFields++
		}
		addr, err := q.fn.GetAddress(field)
		if err != nil {
			return nil, err
		}
		projection = append(projection, addr)
	}
	if oneFields > 0 && oneFields != fields {
		return nil, fmt.Errorf("can't both keep and omit fields except for _id")
	}

	res := make([]domain.Document, len(docs))
	for n, doc := range docs {
		var (
			projected domain.Document
			err       error
		)
		if oneFields > 0 {
			projected, err = q.keep(doc, projection)
		} else {
			projected, err = q.omit(doc, projection)
		}
		if err != nil {
			return nil, err
		}

		if keepID && doc.Has("_id") {
			projected.Set("_id", doc.ID())
		} else {
			projected.Unset("_id")
		}
		res[n] = projected
	}

	return res, nil
}

func (q *Projector) keep(doc domain.Document, p [][]string) (domain.Document, error) {
	res, err := q.docFac(nil)
	if err != nil {
		return nil, err
	}

	for _, field := range p {
		value, defined := q.fn.GetField(doc, field...)
		if !defined {
			continue
		}
		target, err := q.fn.EnsureField(res, true, field...)
		if err != nil {
			return nil, err
		}
		target.Set(data.Clone(value))
	}
	return res, nil
}

func (q *Projector) omit(doc domain.Document, p [][]string) (domain.Document, error) {
	res, ok := data.Clone(doc).(domain.Document)
	if !ok {
		return nil, fmt.Errorf("cannot copy document of type %T", doc)
	}
	for _, field := range p {
		target, err := q.fn.EnsureField(res, false, field...)
		if err != nil || target == nil {
			// unreachable paths have nothing to omit
			continue
		}
		target.Unset()
	}
	return res, nil
}
