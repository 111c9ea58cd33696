package fieldnavigator

import "github.com/vinicius-lino-figueiredo/gedbpromise/domain"

// GetSetter implements [domain.GetSetter].
type GetSetter struct {
	get   func() (any, bool)
	set   func(any)
	unset func()
}

// NewGetSetterWithArrayIndex returns a [domain.GetSetter] over an element of
// array. Out of range indexes are undefined and cannot be set.
func NewGetSetterWithArrayIndex(array []any, index int) domain.GetSetter {
	inRange := func() bool { return index >= 0 && index < len(array) }
	return &GetSetter{
		get: func() (any, bool) {
			if inRange() {
				return array[index], true
			}
			return nil, false
		},
		set: func(value any) {
			if inRange() {
				array[index] = value
			}
		},
		unset: func() {
			if inRange() {
				array[index] = nil
			}
		},
	}
}

// NewGetSetterWithDoc returns a [domain.GetSetter] over the key of doc.
func NewGetSetterWithDoc(doc domain.Document, key string) domain.GetSetter {
	return &GetSetter{
		get:   func() (any, bool) { return doc.Get(key), doc.Has(key) },
		set:   func(value any) { doc.Set(key, value) },
		unset: func() { doc.Unset(key) },
	}
}

// Get implements [domain.GetSetter].
func (gs *GetSetter) Get() (any, bool) {
	return gs.get()
}

// Set implements [domain.GetSetter].
func (gs *GetSetter) Set(value any) {
	gs.set(value)
}

// Unset implements [domain.GetSetter].
func (gs *GetSetter) Unset() {
	gs.unset()
}
