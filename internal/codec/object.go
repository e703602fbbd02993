package codec

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/and161185/taler-client/internal/errs"
)

// Object is a JSON object whose members are decoded lazily.
type Object map[string]json.RawMessage

// ParseObject parses raw as a JSON object.
func ParseObject(raw []byte) (Object, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, &errs.DecodeError{Message: "expected JSON object", Value: preview(raw)}
	}
	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &errs.DecodeError{Message: "malformed JSON object", Err: err}
	}
	return obj, nil
}

// Has reports whether name is present and not null.
func (o Object) Has(name string) bool {
	raw, ok := o[name]
	return ok && !isNull(raw)
}

// Required decodes member name into a V; absence or null is a decode error.
func Required[V any](obj Object, name string) (V, error) {
	var v V
	if !obj.Has(name) {
		return v, errs.Decodef(name, "missing required field %q", name)
	}
	if err := decodeMember(obj[name], name, &v); err != nil {
		return v, err
	}
	return v, nil
}

// Optional decodes member name into a V if present. The boolean reports presence.
func Optional[V any](obj Object, name string) (V, bool, error) {
	var v V
	if !obj.Has(name) {
		return v, false, nil
	}
	if err := decodeMember(obj[name], name, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// OptionalPtr is Optional returning nil when the member is absent.
func OptionalPtr[V any](obj Object, name string) (*V, error) {
	v, ok, err := Optional[V](obj, name)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func decodeMember(raw json.RawMessage, name string, dst any) error {
	err := json.Unmarshal(raw, dst)
	if err == nil {
		return nil
	}
	var de *errs.DecodeError
	var ve *errs.ValidationError
	if errors.As(err, &de) || errors.As(err, &ve) {
		return errs.AtPath(err, name)
	}
	return &errs.DecodeError{Path: name, Value: preview(raw), Err: err}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func preview(raw []byte) string {
	const max = 64
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}

// RequireFields checks that every name is present and not null, in order,
// reporting the first missing one.
func RequireFields(obj Object, names ...string) error {
	for _, n := range names {
		if !obj.Has(n) {
			return errs.Decodef(n, "missing required field %q", n)
		}
	}
	return nil
}

// Unmarshal decodes raw into dst, mapping failures to decode errors.
func Unmarshal(raw []byte, dst any) error {
	return decodeMember(raw, "", dst)
}
