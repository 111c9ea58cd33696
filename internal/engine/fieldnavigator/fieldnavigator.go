// Package fieldnavigator contains the default [domain.FieldNavigator]
// implementation, resolving dotted field names such as "address.city" or
// "tags.0".
package fieldnavigator

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

// FieldNavigator implements [domain.FieldNavigator].
type FieldNavigator struct {
	docFac domain.DocumentFactory
}

// NewFieldNavigator returns a new instance of [domain.FieldNavigator].
func NewFieldNavigator(docFac domain.DocumentFactory) domain.FieldNavigator {
	return &FieldNavigator{
		docFac: docFac,
	}
}

// GetAddress implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetAddress(field string) ([]string, error) {
	addr := strings.Split(field, ".")
	if slices.Contains(addr, "") {
		return nil, fmt.Errorf("invalid field name %q", field)
	}
	return addr, nil
}

// GetField implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetField(obj any, addr ...string) (any, bool) {
	if len(addr) == 0 {
		return obj, true
	}

	doc, ok := obj.(domain.Document)
	if !ok || !doc.Has(addr[0]) {
		return nil, false
	}
	value := doc.Get(addr[0])
	if len(addr) == 1 {
		return value, true
	}

	list, ok := value.([]any)
	if !ok {
		return fn.GetField(value, addr[1:]...)
	}

	if i, err := strconv.Atoi(addr[1]); err == nil {
		if i < 0 || i >= len(list) {
			return nil, false
		}
		return fn.GetField(list[i], addr[2:]...)
	}

	// the remaining path is applied to each element of the list
	res := make([]any, 0, len(list))
	for _, item := range list {
		if v, defined := fn.GetField(item, addr[1:]...); defined {
			res = append(res, v)
		}
	}
	return res, true
}

// EnsureField implements [domain.FieldNavigator].
func (fn *FieldNavigator) EnsureField(obj any, create bool, addr ...string) (domain.GetSetter, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("empty field address")
	}

	curr := obj
	for n, part := range addr {
		last := n == len(addr)-1
		switch c := curr.(type) {
		case domain.Document:
			if last {
				return NewGetSetterWithDoc(c, part), nil
			}
			if !c.Has(part) || c.Get(part) == nil {
				if !create {
					return nil, nil
				}
				sub, err := fn.docFac(nil)
				if err != nil {
					return nil, err
				}
				c.Set(part, sub)
			}
			curr = c.Get(part)
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("cannot access field %q of an array", part)
			}
			if last {
				return NewGetSetterWithArrayIndex(c, i), nil
			}
			if i < 0 || i >= len(c) {
				if !create {
					return nil, nil
				}
				return nil, fmt.Errorf("index %d out of range", i)
			}
			curr = c[i]
		default:
			if !create {
				return nil, nil
			}
			return nil, fmt.Errorf("cannot create field %q in a non-object value", strings.Join(addr[:n+1], "."))
		}
	}
	return nil, nil
}
