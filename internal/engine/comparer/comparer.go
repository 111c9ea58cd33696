// Package comparer contains the default [domain.Comparer] implementation.
package comparer

import (
	"cmp"
	"fmt"
	"math"
	"math/big"
	"slices"
	"time"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

// rank orders values of different types:
// undefined < nil < numbers < strings < booleans < dates < arrays < documents.
type rank int

const (
	rankUndefined rank = iota
	rankNil
	rankNumber
	rankString
	rankBool
	rankTime
	rankArray
	rankDocument
	rankUnknown
)

// Comparer implements domain.Comparer.
type Comparer struct{}

// NewComparer returns a new implementation of domain.Comparer.
func NewComparer() domain.Comparer {
	return &Comparer{}
}

// Comparable implements domain.Comparer. Only numbers, strings and dates can
// be compared by $lt, $lte, $gt and $gte, and only against the same type.
func (c *Comparer) Comparable(a, b any) bool {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return false
	}
	return ra == rankNumber || ra == rankString || ra == rankTime
}

// Compare implements domain.Comparer.
func (c *Comparer) Compare(a, b any) (int, error) {
	ra, rb := rankOf(a), rankOf(b)
	if ra == rankUnknown || rb == rankUnknown {
		return 0, fmt.Errorf("cannot compare unexpected types %T and %T", a, b)
	}
	if ra != rb {
		return cmp.Compare(ra, rb), nil
	}

	switch ra {
	case rankNumber:
		return compareNumbers(a, b), nil
	case rankString:
		return cmp.Compare(a.(string), b.(string)), nil
	case rankBool:
		return compareBool(a.(bool), b.(bool)), nil
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time)), nil
	case rankArray:
		return c.compareArray(a.([]any), b.([]any))
	case rankDocument:
		return c.compareDoc(a.(domain.Document), b.(domain.Document))
	default:
		// undefined and nil are equal to themselves
		return 0, nil
	}
}

func rankOf(v any) rank {
	switch v.(type) {
	case domain.Undefined:
		return rankUndefined
	case nil:
		return rankNil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return rankNumber
	case string:
		return rankString
	case bool:
		return rankBool
	case time.Time:
		return rankTime
	case []any:
		return rankArray
	case domain.Document:
		return rankDocument
	default:
		return rankUnknown
	}
}

func (c *Comparer) compareArray(a, b []any) (int, error) {
	for i := range min(len(a), len(b)) {
		comp, err := c.Compare(a[i], b[i])
		if err != nil || comp != 0 {
			return comp, err
		}
	}
	// Common section was identical, longest one wins
	return cmp.Compare(len(a), len(b)), nil
}

func (c *Comparer) compareDoc(a, b domain.Document) (int, error) {
	aKeys := slices.Sorted(a.Keys())
	bKeys := slices.Sorted(b.Keys())

	for i := range min(len(aKeys), len(bKeys)) {
		comp, err := c.Compare(a.Get(aKeys[i]), b.Get(bKeys[i]))
		if err != nil || comp != 0 {
			return comp, err
		}
	}
	if comp := cmp.Compare(len(aKeys), len(bKeys)); comp != 0 {
		return comp, nil
	}
	return slices.Compare(aKeys, bKeys), nil
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

// compareNumbers compares any two Go numbers. Integers are compared exactly,
// mixed values go through big.Float so int64 and float64 don't lose precision.
func compareNumbers(a, b any) int {
	ia, aInt := asInt(a)
	ib, bInt := asInt(b)
	if aInt && bInt {
		return cmp.Compare(ia, ib)
	}
	fa, fb := asFloat(a), asFloat(b)
	if fa == nil || fb == nil {
		// NaN sorts before every other number
		return cmp.Compare(asFloat64(a), asFloat64(b))
	}
	return fa.Cmp(fb)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) *big.Float {
	r := new(big.Float)
	switch n := v.(type) {
	case uint:
		return r.SetUint64(uint64(n))
	case uint64:
		return r.SetUint64(n)
	case float32, float64:
		f := asFloat64(n)
		if math.IsNaN(f) {
			return nil
		}
		return r.SetFloat64(f)
	default:
		i, _ := asInt(n)
		return r.SetInt64(i)
	}
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		i, _ := asInt(n)
		return float64(i)
	}
}

// AsFloat64 converts any Go number to float64. The second return is false
// when v is not a number.
func AsFloat64(v any) (float64, bool) {
	if rankOf(v) != rankNumber {
		return 0, false
	}
	return asFloat64(v), true
}
