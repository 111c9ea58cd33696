package index

import (
	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

type bstComparer struct {
	comparer domain.Comparer
}

// NewBSTComparer adapts comparer to the tree. Keys are ordered by comparer
// and values stored under the same key are told apart by their _id.
func NewBSTComparer(comparer domain.Comparer) bst.Comparer[any, domain.Document] {
	return &bstComparer{
		comparer: comparer,
	}
}

// CompareKeys implements bst.Comparer.
func (bc *bstComparer) CompareKeys(a any, b any) (int, error) {
	return bc.comparer.Compare(a, b)
}

// CompareValues implements bst.Comparer.
func (bc *bstComparer) CompareValues(a domain.Document, b domain.Document) (bool, error) {
	c, err := bc.comparer.Compare(a.ID(), b.ID())
	if err != nil {
		return false, err
	}
	return c == 0, nil
}
