// Package hasher contains a json based implementation of [domain.Hasher].
// Values are turned into a canonical form first, so documents hash the same
// regardless of key order and equal numbers of different Go types hash alike.
package hasher

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

// Hasher implements [domain.Hasher].
type Hasher struct{}

// NewHasher returns a new implementation of [domain.Hasher].
func NewHasher() domain.Hasher {
	return &Hasher{}
}

// Hash implements domain.Hasher.
func (h *Hasher) Hash(value any) (uint64, error) {
	b, err := json.Marshal(h.canonicalize(value))
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}

func (h *Hasher) canonicalize(a any) any {
	switch t := a.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	case time.Time:
		return map[string]int64{"$$date": t.UnixMilli()}
	case domain.Undefined:
		return map[string]bool{"$$undefined": true}
	case domain.Document:
		pairs := make(object, 0, t.Len())
		for k, v := range t.Iter() {
			pairs = append(pairs, keyValuePair{key: k, val: h.canonicalize(v)})
		}
		return pairs
	case []any:
		res := make([]any, len(t))
		for n, v := range t {
			res[n] = h.canonicalize(v)
		}
		return res
	default:
		// values without a json form hash as nil
		if _, err := json.Marshal(t); err != nil {
			return nil
		}
		return t
	}
}

type keyValuePair struct {
	key string
	val any
}

type object []keyValuePair

// MarshalJSON writes the pairs sorted by key.
func (o object) MarshalJSON() ([]byte, error) {
	sorted := slices.SortedFunc(slices.Values(o), func(a, b keyValuePair) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		default:
			return 0
		}
	})

	buf := bytes.NewBuffer(make([]byte, 0, 64))
	buf.WriteByte('{')
	for n, item := range sorted {
		if n > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(item.key)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(item.val)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
