// Package modifier contains the default [domain.Modifier] implementation.
package modifier

import (
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/comparer"
	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/data"
)

type modFunc func(domain.Document, []string, any) error

type eachProps struct {
	each       []any
	hasEach    bool
	slice      int
	hasSlice   bool
	usedFields int
}

// Modifier implements [domain.Modifier].
type Modifier struct {
	comp           domain.Comparer
	docFac         domain.DocumentFactory
	fieldNavigator domain.FieldNavigator
	matcher        domain.Matcher
	mods           map[string]modFunc
}

// NewModifier returns a new implementation of [domain.Modifier].
func NewModifier(docFac domain.DocumentFactory, comp domain.Comparer, fn domain.FieldNavigator, matcher domain.Matcher) domain.Modifier {
	m := &Modifier{
		comp:           comp,
		docFac:         docFac,
		fieldNavigator: fn,
		matcher:        matcher,
	}

	m.mods = map[string]modFunc{
		"$set":      m.set,
		"$unset":    m.unset,
		"$inc":      m.inc,
		"$push":     m.push,
		"$addToSet": m.addToSet,
		"$pop":      m.pop,
		"$pull":     m.pull,
		"$min":      m.min,
		"$max":      m.max,
	}

	return m
}

// Modify implements [domain.Modifier].
func (m *Modifier) Modify(obj domain.Document, updateQuery domain.Document) (domain.Document, error) {
	modQry, replace, err := m.modQuery(obj, updateQuery)
	if err != nil {
		return nil, err
	}

	if replace {
		return m.replaceMod(obj, modQry)
	}

	return m.dollarMod(obj, modQry)
}

func (m *Modifier) modQuery(obj domain.Document, updateQuery domain.Document) (map[string]any, bool, error) {
	dollarFields, total := 0, 0

	query := make(map[string]any, updateQuery.Len())
	for k, v := range updateQuery.Iter() {
		total++
		if k == "_id" && !m.sameID(obj.ID(), v) {
			return nil, false, fmt.Errorf("you cannot change a document's _id")
		}
		if strings.HasPrefix(k, "$") {
			dollarFields++
		}
		query[k] = v
	}
	if dollarFields != 0 && dollarFields != total {
		return nil, false, fmt.Errorf("you cannot mix modifiers and normal fields")
	}
	return query, dollarFields == 0, nil
}

func (m *Modifier) sameID(a, b any) bool {
	c, err := m.comp.Compare(a, b)
	return err == nil && c == 0
}

func (m *Modifier) replaceMod(obj domain.Document, qry map[string]any) (domain.Document, error) {
	newDoc, err := m.docFac(nil)
	if err != nil {
		return nil, err
	}

	for k, v := range qry {
		newDoc.Set(k, data.Clone(v))
	}

	if obj.Has("_id") {
		newDoc.Set("_id", obj.ID())
	}

	return newDoc, nil
}

func (m *Modifier) dollarMod(obj domain.Document, qry map[string]any) (domain.Document, error) {
	type modCall struct {
		fn   modFunc
		args map[string]any
	}

	calls := make([]modCall, 0, len(qry))

	for modName, arg := range qry {
		mod, ok := m.mods[modName]
		if !ok {
			return nil, fmt.Errorf("unknown modifier %s", modName)
		}
		d, ok := arg.(domain.Document)
		if !ok {
			return nil, fmt.Errorf("modifier %s's argument must be an object", modName)
		}
		calls = append(calls, modCall{fn: mod, args: maps.Collect(d.Iter())})
	}

	docCopy, err := m.copyDoc(obj)
	if err != nil {
		return nil, err
	}

	for _, call := range calls {
		for key, arg := range call.args {
			addr, err := m.fieldNavigator.GetAddress(key)
			if err != nil {
				return nil, err
			}
			if err := call.fn(docCopy, addr, arg); err != nil {
				return nil, err
			}
		}
	}

	if !m.sameID(obj.ID(), docCopy.ID()) {
		return nil, fmt.Errorf("you can't change a document's _id")
	}

	return docCopy, nil
}

// copyDoc deep copies doc, dropping top level keys starting with "$".
func (m *Modifier) copyDoc(doc domain.Document) (domain.Document, error) {
	res, err := m.docFac(nil)
	if err != nil {
		return nil, err
	}
	for k, v := range doc.Iter() {
		if strings.HasPrefix(k, "$") {
			continue
		}
		res.Set(k, data.Clone(v))
	}
	return res, nil
}

func (m *Modifier) field(obj domain.Document, addr []string, create bool) (domain.GetSetter, error) {
	return m.fieldNavigator.EnsureField(obj, create, addr...)
}

func (m *Modifier) set(obj domain.Document, addr []string, arg any) error {
	field, err := m.field(obj, addr, true)
	if err != nil {
		return err
	}
	field.Set(data.Clone(arg))
	return nil
}

func (m *Modifier) unset(obj domain.Document, addr []string, _ any) error {
	field, err := m.field(obj, addr, false)
	if err != nil || field == nil {
		return err
	}
	if _, defined := field.Get(); defined {
		field.Unset()
	}
	return nil
}

func (m *Modifier) inc(obj domain.Document, addr []string, v any) error {
	incNum, ok := comparer.AsFloat64(v)
	if !ok {
		return fmt.Errorf("%v must be a number", v)
	}
	field, err := m.field(obj, addr, true)
	if err != nil {
		return err
	}
	value, defined := field.Get()
	if !defined {
		field.Set(v)
		return nil
	}
	num, ok := comparer.AsFloat64(value)
	if !ok {
		return fmt.Errorf("don't use the $inc modifier on non-number fields")
	}
	field.Set(num + incNum)
	return nil
}

func (m *Modifier) arrayField(obj domain.Document, addr []string, op string) (domain.GetSetter, []any, error) {
	field, err := m.field(obj, addr, true)
	if err != nil {
		return nil, nil, err
	}
	value, defined := field.Get()
	if !defined {
		return field, []any{}, nil
	}
	array, ok := value.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("can't %s an element on non-array values", op)
	}
	return field, array, nil
}

func (m *Modifier) push(obj domain.Document, addr []string, v any) error {
	field, array, err := m.arrayField(obj, addr, "$push")
	if err != nil {
		return err
	}

	d, ok := v.(domain.Document)
	if !ok || !(d.Has("$each") || d.Has("$slice")) {
		field.Set(append(array, data.Clone(v)))
		return nil
	}

	props, err := m.getEachProperties(d)
	if err != nil {
		return err
	}
	if d.Len() > props.usedFields {
		return fmt.Errorf("can only use $slice in conjunction with $each when $push to array")
	}

	res := append(array, props.each...)
	if props.hasSlice {
		if props.slice >= 0 {
			res = res[:min(props.slice, len(res))]
		} else {
			res = res[len(res)+max(props.slice, -len(res)):]
		}
	}
	field.Set(res)
	return nil
}

func (m *Modifier) getEachProperties(d domain.Document) (*eachProps, error) {
	res := &eachProps{each: []any{}}

	if d.Has("$each") {
		each, ok := d.Get("$each").([]any)
		if !ok {
			return nil, fmt.Errorf("$each requires an array value")
		}
		res.each = data.Clone(each).([]any)
		res.hasEach = true
		res.usedFields++
	}

	if d.Has("$slice") {
		s, ok := comparer.AsFloat64(d.Get("$slice"))
		if !ok || s != math.Trunc(s) {
			return nil, fmt.Errorf("$slice requires an integer value")
		}
		res.slice = int(s)
		res.hasSlice = true
		res.usedFields++
	}

	return res, nil
}

func (m *Modifier) addToSet(obj domain.Document, addr []string, v any) error {
	field, array, err := m.arrayField(obj, addr, "$addToSet")
	if err != nil {
		return err
	}

	values := []any{v}
	if d, ok := v.(domain.Document); ok && d.Has("$each") {
		if d.Len() > 1 {
			return fmt.Errorf("can't use another field in conjunction with $each")
		}
		props, err := m.getEachProperties(d)
		if err != nil {
			return err
		}
		values = props.each
	}

	for _, value := range values {
		shouldAdd := true
		for _, item := range array {
			c, err := m.comp.Compare(value, item)
			if err != nil {
				return err
			}
			if c == 0 {
				shouldAdd = false
				break
			}
		}
		if shouldAdd {
			array = append(array, data.Clone(value))
		}
	}
	field.Set(array)
	return nil
}

func (m *Modifier) pop(obj domain.Document, addr []string, v any) error {
	n, ok := comparer.AsFloat64(v)
	if !ok || n != math.Trunc(n) {
		return fmt.Errorf("%v isn't an integer, can't use it with $pop", v)
	}

	field, err := m.field(obj, addr, false)
	if err != nil {
		return err
	}
	var value any
	if field != nil {
		value, _ = field.Get()
	}
	l, ok := value.([]any)
	if !ok {
		return fmt.Errorf("can't $pop an element from non-array values")
	}

	if n == 0 || len(l) == 0 {
		return nil
	}
	if n > 0 {
		field.Set(l[:len(l)-1])
	} else {
		field.Set(l[1:])
	}
	return nil
}

func (m *Modifier) pull(obj domain.Document, addr []string, v any) error {
	field, err := m.field(obj, addr, false)
	if err != nil {
		return err
	}
	var value any
	if field != nil {
		value, _ = field.Get()
	}
	l, ok := value.([]any)
	if !ok {
		return fmt.Errorf("can't $pull an element from non-array values")
	}

	res := make([]any, 0, len(l))
	for _, item := range l {
		matches, err := m.matcher.Match(item, v)
		if err != nil {
			return err
		}
		if !matches {
			res = append(res, item)
		}
	}
	field.Set(res)
	return nil
}

func (m *Modifier) min(obj domain.Document, addr []string, v any) error {
	return m.bound(obj, addr, v, func(c int) bool { return c > 0 })
}

func (m *Modifier) max(obj domain.Document, addr []string, v any) error {
	return m.bound(obj, addr, v, func(c int) bool { return c < 0 })
}

func (m *Modifier) bound(obj domain.Document, addr []string, v any, replace func(int) bool) error {
	field, err := m.field(obj, addr, true)
	if err != nil {
		return err
	}
	value, defined := field.Get()
	if !defined {
		field.Set(data.Clone(v))
		return nil
	}
	c, err := m.comp.Compare(value, v)
	if err != nil {
		return err
	}
	if replace(c) {
		field.Set(data.Clone(v))
	}
	return nil
}
