// Package querier contains the default [domain.Querier] implementation.
package querier

import (
	"fmt"
	"slices"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/comparer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/matcher"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/projector"
)

// Option configures a [Querier].
type Option func(*Querier)

// WithMatcher sets the matcher used to filter documents.
func WithMatcher(m domain.Matcher) Option {
	return func(q *Querier) {
		q.mtchr = m
	}
}

// WithComparer sets the comparer used to sort documents.
func WithComparer(c domain.Comparer) Option {
	return func(q *Querier) {
		q.cmpr = c
	}
}

// WithFieldNavigator sets the navigator used to read sort keys.
func WithFieldNavigator(fn domain.FieldNavigator) Option {
	return func(q *Querier) {
		q.fn = fn
	}
}

// WithProjector sets the projector applied to results.
func WithProjector(p domain.Projector) Option {
	return func(q *Querier) {
		q.proj = p
	}
}

// WithDocumentFactory sets the document factory.
func WithDocumentFactory(df domain.DocumentFactory) Option {
	return func(q *Querier) {
		q.docFac = df
	}
}

// Querier implements [domain.Querier].
type Querier struct {
	mtchr  domain.Matcher
	cmpr   domain.Comparer
	fn     domain.FieldNavigator
	proj   domain.Projector
	docFac domain.DocumentFactory
}

// NewQuerier returns a new implementation of [domain.Querier].
func NewQuerier(opts ...Option) domain.Querier {
	q := Querier{
		docFac: data.NewDocument,
		cmpr:   comparer.NewComparer(),
	}
	for _, opt := range opts {
		opt(&q)
	}
	if q.fn == nil {
		q.fn = fieldnavigator.NewFieldNavigator(q.docFac)
	}
	if q.proj == nil {
		q.proj = projector.NewProjector(
			projector.WithDocumentFactory(q.docFac),
			projector.WithFieldNavigator(q.fn),
		)
	}
	if q.mtchr == nil {
		q.mtchr = matcher.NewMatcher(q.cmpr, q.fn)
	}
	return &q
}

// Query implements [domain.Querier].
func (q *Querier) Query(docs []domain.Document, opts ...domain.QueryOption) ([]domain.Document, error) {
	var options domain.QueryOptions
	for _, opt := range opts {
		opt(&options)
	}

	var skipped int64
	res := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if options.Query != nil {
			matches, err := q.mtchr.Match(doc, options.Query)
			if err != nil {
				return nil, fmt.Errorf("matching document: %w", err)
			}
			if !matches {
				continue
			}
		}
		if len(options.Sort) == 0 {
			if skipped < options.Skip {
				skipped++
				continue
			}
			if options.Limit > 0 && int64(len(res)) == options.Limit {
				break
			}
		}
		res = append(res, doc)
	}

	if len(options.Sort) > 0 {
		sorted, err := q.sort(res, options.Sort)
		if err != nil {
			return nil, fmt.Errorf("sorting: %w", err)
		}
		res = q.skipAndLimit(sorted, options.Skip, options.Limit)
	}

	res, err := q.proj.Project(res, options.Projection)
	if err != nil {
		return nil, fmt.Errorf("projecting: %w", err)
	}
	return res, nil
}

func (q *Querier) sort(docs []domain.Document, sort domain.Sort) ([]domain.Document, error) {
	addrs := make([][]string, len(sort))
	for n, crit := range sort {
		addr, err := q.fn.GetAddress(crit.Key)
		if err != nil {
			return nil, fmt.Errorf("getting address: %w", err)
		}
		addrs[n] = addr
	}

	res := slices.Clone(docs)
	var err error
	slices.SortStableFunc(res, func(a, b domain.Document) int {
		if err != nil {
			return 0
		}
		for n, crit := range sort {
			comp, cErr := q.compareByCriterion(a, b, addrs[n], crit.Order)
			if cErr != nil {
				err = cErr
				return 0
			}
			if comp != 0 {
				return comp
			}
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *Querier) compareByCriterion(a, b domain.Document, addr []string, order int64) (int, error) {
	comp, err := q.cmpr.Compare(q.sortKey(a, addr), q.sortKey(b, addr))
	if err != nil {
		return 0, fmt.Errorf("comparing: %w", err)
	}
	if order < 0 {
		return -comp, nil
	}
	return comp, nil
}

func (q *Querier) sortKey(doc domain.Document, addr []string) any {
	value, defined := q.fn.GetField(doc, addr...)
	if !defined {
		return domain.Undefined{}
	}
	return value
}

func (q *Querier) skipAndLimit(docs []domain.Document, skip, limit int64) []domain.Document {
	length := int64(len(docs))

	skip = min(max(skip, 0), length)
	end := length
	if limit > 0 {
		end = min(skip+limit, length)
	}

	return docs[skip:end]
}
