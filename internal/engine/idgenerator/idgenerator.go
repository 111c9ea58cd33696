// Package idgenerator contains the default [domain.IDGenerator] implementation
// using base64-encoded random bytes.
package idgenerator

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

// Option configures behavior through the functional options pattern.
type Option func(*IDGenerator)

// WithReader sets the reader that will provide random bytes.
func WithReader(r io.Reader) Option {
	return func(i *IDGenerator) {
		i.reader = r
	}
}

// IDGenerator implements [domain.IDGenerator].
type IDGenerator struct {
	reader io.Reader
}

// NewIDGenerator returns a new implementation of [domain.IDGenerator].
func NewIDGenerator(opts ...Option) domain.IDGenerator {
	i := IDGenerator{
		reader: rand.Reader,
	}
	for _, opt := range opts {
		opt(&i)
	}
	return &i
}

// GenerateID implements [domain.IDGenerator]. The result only contains
// letters and digits.
func (i *IDGenerator) GenerateID(l int) (string, error) {
	res := make([]byte, 0, l)
	for len(res) < l {
		buf := make([]byte, max(8, (l-len(res))*2))
		if _, err := io.ReadFull(i.reader, buf); err != nil {
			return "", err
		}
		for _, b := range []byte(base64.StdEncoding.EncodeToString(buf)) {
			if b == '+' || b == '/' || b == '=' {
				continue
			}
			res = append(res, b)
			if len(res) == l {
				break
			}
		}
	}
	return string(res), nil
}
