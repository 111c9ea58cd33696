// Package matcher contains the default [domain.Matcher] implementation.
package matcher

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/comparer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/fieldnavigator"
)

// WhereFunc is the argument of the $where operator.
type WhereFunc = func(domain.Document) bool

type compFunc func(value any, defined bool, arg any) (bool, error)

// Matcher implements [domain.Matcher].
type Matcher struct {
	comparer       domain.Comparer
	fieldNavigator domain.FieldNavigator
	compFuncs      map[string]compFunc
	logicOps       map[string]func(domain.Document, any) (bool, error)
}

// NewMatcher returns a new implementation of domain.Matcher.
func NewMatcher(comp domain.Comparer, fn domain.FieldNavigator) domain.Matcher {
	if comp == nil {
		comp = comparer.NewComparer()
	}
	if fn == nil {
		fn = fieldnavigator.NewFieldNavigator(data.NewDocument)
	}
	m := &Matcher{
		comparer:       comp,
		fieldNavigator: fn,
	}
	m.logicOps = map[string]func(domain.Document, any) (bool, error){
		"$and":   m.and,
		"$or":    m.or,
		"$not":   m.not,
		"$where": m.where,
	}
	m.compFuncs = map[string]compFunc{
		"$lt":        m.lt,
		"$lte":       m.lte,
		"$gt":        m.gt,
		"$gte":       m.gte,
		"$ne":        m.ne,
		"$in":        m.in,
		"$nin":       m.nin,
		"$regex":     m.regex,
		"$exists":    m.exists,
		"$size":      m.size,
		"$elemMatch": m.elemMatch,
	}
	return m
}

// Match implements [domain.Matcher]. Primitive values are matched as if they
// were the only field of a document.
func (m *Matcher) Match(val any, qry any) (bool, error) {
	if qry == nil {
		return true, nil
	}
	doc, docOk := val.(domain.Document)
	query, qryOk := qry.(domain.Document)
	if !docOk || !qryOk {
		wrapped := data.M{"needAKey": val}
		return m.matchQueryPart(wrapped, "needAKey", qry, false)
	}

	for key, value := range query.Iter() {
		var (
			matches bool
			err     error
		)
		if strings.HasPrefix(key, "$") {
			op, ok := m.logicOps[key]
			if !ok {
				return false, fmt.Errorf("unknown logical operator %s", key)
			}
			matches, err = op(doc, value)
		} else {
			matches, err = m.matchQueryPart(doc, key, value, false)
		}
		if err != nil || !matches {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) matchQueryPart(obj domain.Document, key string, qryValue any, treatObjAsValue bool) (bool, error) {
	addr, err := m.fieldNavigator.GetAddress(key)
	if err != nil {
		return false, err
	}
	objValue, defined := m.fieldNavigator.GetField(obj, addr...)

	if list, ok := objValue.([]any); ok && !treatObjAsValue {
		if _, ok := qryValue.([]any); ok {
			return m.matchQueryPart(obj, key, qryValue, true)
		}
		if q, ok := qryValue.(domain.Document); ok && (q.Has("$size") || q.Has("$elemMatch")) {
			return m.matchQueryPart(obj, key, qryValue, true)
		}
		// an array field matches if any element matches
		for _, item := range list {
			matches, err := m.matchQueryPart(data.M{"k": item}, "k", qryValue, false)
			if err != nil || matches {
				return matches, err
			}
		}
		return false, nil
	}

	if q, ok := qryValue.(domain.Document); ok && q.Len() > 0 {
		ops, err := m.operators(q)
		if err != nil {
			return false, err
		}
		if ops {
			for op, arg := range q.Iter() {
				fn, ok := m.compFuncs[op]
				if !ok {
					return false, fmt.Errorf("unknown comparison function %s", op)
				}
				matches, err := fn(objValue, defined, arg)
				if err != nil || !matches {
					return false, err
				}
			}
			return true, nil
		}
	}

	if re, ok := qryValue.(*regexp.Regexp); ok {
		return m.regex(objValue, defined, re)
	}

	return defined && m.equal(objValue, qryValue), nil
}

// operators reports whether every key of q is an operator. Mixing operators
// and plain fields is an error.
func (m *Matcher) operators(q domain.Document) (bool, error) {
	dollar, total := 0, 0
	for k := range q.Keys() {
		total++
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	if dollar != 0 && dollar != total {
		return false, fmt.Errorf("you cannot mix operators and normal fields")
	}
	return dollar > 0, nil
}

// equal checks deep equality. Arrays never equal non-arrays and documents are
// equal when they have the same keys with equal values.
func (m *Matcher) equal(a, b any) bool {
	if _, ok := a.(domain.Undefined); ok {
		return false
	}
	switch at := a.(type) {
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !m.equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	case domain.Document:
		bt, ok := b.(domain.Document)
		if !ok || at.Len() != bt.Len() {
			return false
		}
		for k, v := range at.Iter() {
			if !bt.Has(k) || !m.equal(v, bt.Get(k)) {
				return false
			}
		}
		return true
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	switch b.(type) {
	case []any, domain.Document, time.Time:
		return false
	}
	c, err := m.comparer.Compare(a, b)
	return err == nil && c == 0
}

func (m *Matcher) compare(a any, defined bool, b any, accept func(int) bool) (bool, error) {
	if !defined || !m.comparer.Comparable(a, b) {
		return false, nil
	}
	c, err := m.comparer.Compare(a, b)
	if err != nil {
		return false, err
	}
	return accept(c), nil
}

func (m *Matcher) lt(a any, defined bool, b any) (bool, error) {
	return m.compare(a, defined, b, func(c int) bool { return c < 0 })
}

func (m *Matcher) lte(a any, defined bool, b any) (bool, error) {
	return m.compare(a, defined, b, func(c int) bool { return c <= 0 })
}

func (m *Matcher) gt(a any, defined bool, b any) (bool, error) {
	return m.compare(a, defined, b, func(c int) bool { return c > 0 })
}

func (m *Matcher) gte(a any, defined bool, b any) (bool, error) {
	return m.compare(a, defined, b, func(c int) bool { return c >= 0 })
}

func (m *Matcher) ne(a any, defined bool, b any) (bool, error) {
	if !defined {
		return true, nil
	}
	return !m.equal(a, b), nil
}

func (m *Matcher) in(a any, defined bool, b any) (bool, error) {
	list, ok := b.([]any)
	if !ok {
		return false, fmt.Errorf("$in operator called with a non-array")
	}
	if !defined {
		return false, nil
	}
	return slices.ContainsFunc(list, func(v any) bool { return m.equal(a, v) }), nil
}

func (m *Matcher) nin(a any, defined bool, b any) (bool, error) {
	if _, ok := b.([]any); !ok {
		return false, fmt.Errorf("$nin operator called with a non-array")
	}
	in, err := m.in(a, defined, b)
	return !in, err
}

func (m *Matcher) regex(a any, _ bool, b any) (bool, error) {
	var re *regexp.Regexp
	switch t := b.(type) {
	case *regexp.Regexp:
		re = t
	case string:
		var err error
		if re, err = regexp.Compile(t); err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("$regex operator called with non regular expression")
	}
	s, ok := a.(string)
	return ok && re.MatchString(s), nil
}

func (m *Matcher) exists(_ any, defined bool, b any) (bool, error) {
	return defined == truthy(b), nil
}

func (m *Matcher) size(a any, _ bool, b any) (bool, error) {
	list, ok := a.([]any)
	if !ok {
		return false, nil
	}
	f, ok := comparer.AsFloat64(b)
	if !ok || f != math.Trunc(f) {
		return false, fmt.Errorf("$size operator called without an integer")
	}
	return float64(len(list)) == f, nil
}

func (m *Matcher) elemMatch(a any, _ bool, b any) (bool, error) {
	list, ok := a.([]any)
	if !ok {
		return false, nil
	}
	for _, item := range list {
		matches, err := m.Match(item, b)
		if err != nil || matches {
			return matches, err
		}
	}
	return false, nil
}

func (m *Matcher) and(obj domain.Document, arg any) (bool, error) {
	list, ok := arg.([]any)
	if !ok {
		return false, fmt.Errorf("$and operator used without an array")
	}
	for _, q := range list {
		matches, err := m.Match(obj, q)
		if err != nil || !matches {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) or(obj domain.Document, arg any) (bool, error) {
	list, ok := arg.([]any)
	if !ok {
		return false, fmt.Errorf("$or operator used without an array")
	}
	for _, q := range list {
		matches, err := m.Match(obj, q)
		if err != nil || matches {
			return matches, err
		}
	}
	return false, nil
}

func (m *Matcher) not(obj domain.Document, arg any) (bool, error) {
	matches, err := m.Match(obj, arg)
	if err != nil {
		return false, err
	}
	return !matches, nil
}

func (m *Matcher) where(obj domain.Document, arg any) (bool, error) {
	fn, ok := arg.(WhereFunc)
	if !ok {
		return false, fmt.Errorf("$where operator used without a function")
	}
	return fn(obj), nil
}

// truthy follows the loose boolean conversion used by $exists: false, zero,
// nil and undefined are false, everything else (including "") is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil, domain.Undefined:
		return false
	case bool:
		return t
	}
	if f, ok := comparer.AsFloat64(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}
