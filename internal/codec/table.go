// Package codec implements discriminated decoding of JSON objects: a closed
// set of variants selected by the value of one field.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/and161185/taler-client/internal/errs"
)

// VariantFunc decodes one variant. raw is the complete object text and obj its
// parsed members.
type VariantFunc[T any] func(raw []byte, obj Object) (T, error)

// TableOption configures a Table.
type TableOption func(*tableOptions)

type tableOptions struct {
	def    string
	hasDef bool
}

// WithDefault sets the discriminator value assumed when the field is absent or null.
func WithDefault(value string) TableOption {
	return func(o *tableOptions) {
		o.def = value
		o.hasDef = true
	}
}

// Table maps discriminator values to variant decoders. A Table is immutable
// once built and safe for concurrent use.
type Table[T any] struct {
	field    string
	opts     tableOptions
	variants map[string]VariantFunc[T]
	allowed  []string
}

// NewTable builds a Table for the given discriminator field. The variants map
// is copied.
func NewTable[T any](field string, variants map[string]VariantFunc[T], opts ...TableOption) *Table[T] {
	t := &Table[T]{
		field:    field,
		variants: make(map[string]VariantFunc[T], len(variants)),
		allowed:  make([]string, 0, len(variants)),
	}
	for _, o := range opts {
		o(&t.opts)
	}
	for k, fn := range variants {
		t.variants[k] = fn
		t.allowed = append(t.allowed, k)
	}
	sort.Strings(t.allowed)
	return t
}

// Field returns the discriminator field name.
func (t *Table[T]) Field() string { return t.field }

// Allowed returns the sorted accepted discriminator values.
func (t *Table[T]) Allowed() []string {
	return append([]string(nil), t.allowed...)
}

// Decode parses raw as a JSON object and dispatches on the discriminator.
func (t *Table[T]) Decode(raw []byte) (T, error) {
	var zero T

	obj, err := ParseObject(raw)
	if err != nil {
		return zero, err
	}
	key, err := t.discriminator(obj)
	if err != nil {
		return zero, err
	}
	fn, ok := t.variants[key]
	if !ok {
		return zero, &errs.DecodeError{
			Path:    t.field,
			Value:   strings.TrimSpace(string(obj[t.field])),
			Allowed: t.Allowed(),
		}
	}
	return fn(raw, obj)
}

// discriminator reads the field as text: strings are unquoted, numbers are
// kept as their literal.
func (t *Table[T]) discriminator(obj Object) (string, error) {
	raw, ok := obj[t.field]
	if !ok || isNull(raw) {
		if t.opts.hasDef {
			return t.opts.def, nil
		}
		return "", &errs.DecodeError{
			Path:    t.field,
			Message: fmt.Sprintf("missing discriminator field %q (allowed: %s)", t.field, strings.Join(t.allowed, ", ")),
		}
	}

	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) > 0 && raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", &errs.DecodeError{Path: t.field, Value: string(raw), Err: err}
		}
		return s, nil
	case len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')):
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", &errs.DecodeError{Path: t.field, Value: string(raw), Err: err}
		}
		return n.String(), nil
	default:
		return "", &errs.DecodeError{Path: t.field, Value: string(raw), Allowed: t.Allowed()}
	}
}
