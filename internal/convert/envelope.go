// Package convert builds request envelopes and turns backend replies into
// typed outcomes.
package convert

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Envelope is one logical request. It is serialised once so that a retry
// sends exactly the same bytes.
type Envelope struct {
	Method string
	// Path is relative to the backend base URL, without a leading slash.
	// Segments taken from user input are escaped by the caller.
	Path  string
	Query url.Values
	// Body is nil for requests without payload.
	Body []byte
}

// NewEnvelope marshals payload (nil for none) into a new envelope.
func NewEnvelope(method, path string, payload any) (Envelope, error) {
	env := Envelope{Method: method, Path: strings.TrimPrefix(path, "/")}
	if payload == nil {
		return env, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	env.Body = b
	return env, nil
}

// WithQuery returns a copy of e with key set to value.
func (e Envelope) WithQuery(key, value string) Envelope {
	q := url.Values{}
	for k, v := range e.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(key, value)
	e.Query = q
	return e
}

// Target resolves the envelope against base, keeping escaped segments.
func (e Envelope) Target(base *url.URL) *url.URL {
	var u *url.URL
	if ref, err := url.Parse(e.Path); err == nil && ref.Scheme == "" && ref.Host == "" {
		u = base.ResolveReference(&url.URL{Path: ref.Path, RawPath: ref.RawPath})
	} else {
		u = base.JoinPath(e.Path)
	}
	if len(e.Query) > 0 {
		u.RawQuery = e.Query.Encode()
	}
	return u
}

// Key identifies the request for caching: method, path and sorted query.
func (e Envelope) Key() string {
	k := e.Method + " " + e.Path
	if len(e.Query) > 0 {
		k += "?" + e.Query.Encode()
	}
	return k
}

// Clone returns a deep copy whose body can not be changed through e.
func (e Envelope) Clone() Envelope {
	c := e
	if e.Body != nil {
		c.Body = append([]byte(nil), e.Body...)
	}
	if e.Query != nil {
		c.Query = url.Values{}
		for k, v := range e.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	return c
}
