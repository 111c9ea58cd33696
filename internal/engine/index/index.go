// Package index contains the default [domain.Index] implementation, backed by
// an AVL tree.
package index

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/comparer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/hasher"
)

const treeDegree = 8

// Index implements [domain.Index].
type Index struct {
	fieldName   string
	addr        []string
	unique      bool
	sparse      bool
	expireAfter time.Duration
	// Exported to allow testing. Should not be a problem because Index is
	// used as interface.
	Tree           bst.BST[any, domain.Document]
	comparer       domain.Comparer
	bstComparer    bst.Comparer[any, domain.Document]
	hasher         domain.Hasher
	fieldNavigator domain.FieldNavigator
}

// NewIndex returns a new implementation of domain.Index.
func NewIndex(options ...domain.IndexOption) (domain.Index, error) {
	opts := domain.IndexOptions{
		Comparer: comparer.NewComparer(),
		Hasher:   hasher.NewHasher(),
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.FieldNavigator == nil {
		opts.FieldNavigator = fieldnavigator.NewFieldNavigator(data.NewDocument)
	}

	addr, err := opts.FieldNavigator.GetAddress(opts.FieldName)
	if err != nil {
		return nil, err
	}

	bstComparer := NewBSTComparer(opts.Comparer)

	return &Index{
		fieldName:      opts.FieldName,
		addr:           addr,
		unique:         opts.Unique,
		sparse:         opts.Sparse,
		expireAfter:    opts.ExpireAfter,
		Tree:           avl.NewBST(opts.Unique, treeDegree, bstComparer),
		comparer:       opts.Comparer,
		bstComparer:    bstComparer,
		hasher:         opts.Hasher,
		fieldNavigator: opts.FieldNavigator,
	}, nil
}

// FieldName implements [domain.Index].
func (i *Index) FieldName() string {
	return i.fieldName
}

// Sparse implements [domain.Index].
func (i *Index) Sparse() bool {
	return i.sparse
}

// Unique implements [domain.Index].
func (i *Index) Unique() bool {
	return i.unique
}

// ExpireAfter implements [domain.Index].
func (i *Index) ExpireAfter() time.Duration {
	return i.expireAfter
}

// Reset implements [domain.Index].
func (i *Index) Reset(newData ...domain.Document) error {
	i.Tree = avl.NewBST(i.unique, treeDegree, i.bstComparer)
	return i.Insert(newData...)
}

// getKeys returns the distinct keys doc is stored under. Missing fields are
// indexed as [domain.Undefined] unless the index is sparse, and each distinct
// element of an array is a key of its own.
func (i *Index) getKeys(doc domain.Document) []any {
	value, defined := i.fieldNavigator.GetField(doc, i.addr...)
	if !defined {
		if i.sparse {
			return nil
		}
		return []any{domain.Undefined{}}
	}

	l, ok := value.([]any)
	if !ok {
		return []any{value}
	}

	keys := slices.Clone(l)
	slices.SortFunc(keys, i.compareThings)
	return slices.CompactFunc(keys, func(a, b any) bool { return i.compareThings(a, b) == 0 })
}

// Insert implements [domain.Index].
func (i *Index) Insert(docs ...domain.Document) error {
	type kv struct {
		key any
		doc domain.Document
	}

	inserted := make([]kv, 0, len(docs))

	var err error
DocInsertion:
	for _, d := range docs {
		for _, k := range i.getKeys(d) {
			if err = i.Tree.Insert(k, d); err != nil {
				if e := new(bst.ErrUniqueViolated); errors.As(err, e) {
					err = fmt.Errorf("%w: %w", domain.ErrConstraintViolated, err)
				}
				break DocInsertion
			}
			inserted = append(inserted, kv{key: k, doc: d})
		}
	}
	if err == nil {
		return nil
	}

	errs := []error{err}
	for _, v := range inserted {
		if dErr := i.Tree.Delete(v.key, &v.doc); dErr != nil {
			errs = append(errs, dErr)
		}
	}
	return errors.Join(errs...)
}

// Remove implements [domain.Index].
func (i *Index) Remove(docs ...domain.Document) error {
	var errs []error
	for _, d := range docs {
		for _, k := range i.getKeys(d) {
			if err := i.Tree.Delete(k, &d); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Update implements [domain.Index]. Every old document is removed before
// the new ones are inserted, so documents can swap unique keys.
func (i *Index) Update(pairs ...domain.Update) error {
	var err error
	for _, pair := range pairs {
		if err = i.Remove(pair.OldDoc); err != nil {
			break
		}
	}

	failingIndex := len(pairs)
	if err == nil {
		for n, pair := range pairs {
			if err = i.Insert(pair.NewDoc); err != nil {
				failingIndex = n
				break
			}
		}
	}

	if err != nil {
		for n := range failingIndex {
			_ = i.Remove(pairs[n].NewDoc)
		}
		for _, pair := range pairs {
			_ = i.Remove(pair.OldDoc)
			_ = i.Insert(pair.OldDoc)
		}
	}

	return err
}

// RevertUpdate implements [domain.Index].
func (i *Index) RevertUpdate(pairs ...domain.Update) error {
	revert := make([]domain.Update, len(pairs))
	for n, pair := range pairs {
		revert[n] = domain.Update{OldDoc: pair.NewDoc, NewDoc: pair.OldDoc}
	}
	return i.Update(revert...)
}

// GetMatching implements [domain.Index]. Results are deduplicated by _id and
// sorted by it.
func (i *Index) GetMatching(value ...any) ([]domain.Document, error) {
	res := newDocSet(i.hasher)
	for _, v := range value {
		found, err := i.Tree.Search(v)
		if err != nil {
			return nil, err
		}
		if found == nil {
			continue
		}
		for _, d := range found.Values() {
			if err := res.add(d); err != nil {
				return nil, err
			}
		}
	}

	docs := res.docs
	var err error
	slices.SortFunc(docs, func(a, b domain.Document) int {
		if err != nil {
			return 0
		}
		comp, compErr := i.comparer.Compare(a.ID(), b.ID())
		if compErr != nil {
			err = compErr
		}
		return comp
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// GetBetweenBounds implements [domain.Index].
func (i *Index) GetBetweenBounds(query domain.Document) ([]domain.Document, error) {
	var qry bst.Query[any]
	for k, v := range query.Iter() {
		switch k {
		case "$gt":
			qry.GreaterThan = &bst.Bound[any]{Value: v, IncludeEqual: false}
		case "$gte":
			qry.GreaterThan = &bst.Bound[any]{Value: v, IncludeEqual: true}
		case "$lt":
			qry.LowerThan = &bst.Bound[any]{Value: v, IncludeEqual: false}
		case "$lte":
			qry.LowerThan = &bst.Bound[any]{Value: v, IncludeEqual: true}
		}
	}

	res := newDocSet(i.hasher)
	for d, err := range i.Tree.Query(qry) {
		if err != nil {
			return nil, err
		}
		if err := res.add(d); err != nil {
			return nil, err
		}
	}
	return res.docs, nil
}

// GetAll implements [domain.Index].
func (i *Index) GetAll() []domain.Document {
	res := make([]domain.Document, 0, i.Tree.GetNumberOfKeys())
	for d := range i.Tree.GetAll() {
		res = append(res, d)
	}
	return res
}

// GetNumberOfKeys implements [domain.Index].
func (i *Index) GetNumberOfKeys() int {
	return i.Tree.GetNumberOfKeys()
}

func (i *Index) compareThings(a any, b any) int {
	comp, _ := i.comparer.Compare(a, b)
	return comp
}

// docSet keeps the first occurrence of each document, identified by the hash
// of its _id.
type docSet struct {
	hasher domain.Hasher
	seen   map[uint64]struct{}
	docs   []domain.Document
}

func newDocSet(h domain.Hasher) *docSet {
	return &docSet{hasher: h, seen: make(map[uint64]struct{})}
}

func (s *docSet) add(d domain.Document) error {
	h, err := s.hasher.Hash(d.ID())
	if err != nil {
		return err
	}
	if _, ok := s.seen[h]; ok {
		return nil
	}
	s.seen[h] = struct{}{}
	s.docs = append(s.docs, d)
	return nil
}
