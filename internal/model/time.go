package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/and161185/taler-client/internal/errs"
)

const (
	neverText   = "never"
	foreverText = "forever"

	// MaxRelativeMicros is the largest finite relative time (2^53-1 µs).
	MaxRelativeMicros uint64 = 1<<53 - 1
)

// Timestamp is a point in time in whole seconds, or "never".
type Timestamp struct {
	seconds uint64
	never   bool
}

// TimestampFromSeconds returns a finite Timestamp.
func TimestampFromSeconds(s uint64) Timestamp { return Timestamp{seconds: s} }

// TimestampFromTime truncates t to whole seconds. Times before the epoch map to 0.
func TimestampFromTime(t time.Time) Timestamp {
	s := t.Unix()
	if s < 0 {
		s = 0
	}
	return Timestamp{seconds: uint64(s)}
}

// Never returns the "never" sentinel.
func Never() Timestamp { return Timestamp{never: true} }

// IsNever reports whether t is the sentinel.
func (t Timestamp) IsNever() bool { return t.never }

// Seconds returns the seconds since epoch; zero for never.
func (t Timestamp) Seconds() uint64 { return t.seconds }

// maxUnixSeconds is the latest second time.Unix represents without overflow.
const maxUnixSeconds = math.MaxInt64 - 62135596800

// Time converts t; ok is false for never. Seconds beyond what time.Time can
// hold saturate at its latest instant.
func (t Timestamp) Time() (tm time.Time, ok bool) {
	if t.never {
		return time.Time{}, false
	}
	return time.Unix(int64(min(t.seconds, maxUnixSeconds)), 0).UTC(), true
}

// Before reports whether t is strictly earlier than o. Never is after every
// finite timestamp and not before itself.
func (t Timestamp) Before(o Timestamp) bool {
	switch {
	case t.never:
		return false
	case o.never:
		return true
	default:
		return t.seconds < o.seconds
	}
}

// String renders t for logs.
func (t Timestamp) String() string {
	if t.never {
		return neverText
	}
	return strconv.FormatUint(t.seconds, 10)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.never {
		return []byte(`{"t_s":"never"}`), nil
	}
	return []byte(`{"t_s":` + strconv.FormatUint(t.seconds, 10) + `}`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	v, err := ParseTimestamp(b)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTimestamp decodes {"t_s": <uint>} or {"t_s": "never"}.
func ParseTimestamp(b []byte) (Timestamp, error) {
	n, never, err := parseSentinelField(b, "t_s", neverText, ^uint64(0))
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{seconds: n, never: never}, nil
}

// RelativeTime is a duration in microseconds, or "forever".
type RelativeTime struct {
	micros  uint64
	forever bool
}

// RelativeFromMicros returns a finite RelativeTime; values above
// MaxRelativeMicros are rejected.
func RelativeFromMicros(us uint64) (RelativeTime, error) {
	if us > MaxRelativeMicros {
		return RelativeTime{}, errs.Decodef("d_us", "relative time %d exceeds %d", us, MaxRelativeMicros)
	}
	return RelativeTime{micros: us}, nil
}

// RelativeFromDuration converts d, truncated to microseconds. Negative
// durations map to zero.
func RelativeFromDuration(d time.Duration) RelativeTime {
	if d < 0 {
		d = 0
	}
	return RelativeTime{micros: uint64(d / time.Microsecond)}
}

// Forever returns the "forever" sentinel.
func Forever() RelativeTime { return RelativeTime{forever: true} }

// IsForever reports whether r is the sentinel.
func (r RelativeTime) IsForever() bool { return r.forever }

// Micros returns the microseconds; zero for forever.
func (r RelativeTime) Micros() uint64 { return r.micros }

// Duration converts r; ok is false for forever.
func (r RelativeTime) Duration() (d time.Duration, ok bool) {
	if r.forever {
		return 0, false
	}
	return time.Duration(r.micros) * time.Microsecond, true
}

// String renders r for logs.
func (r RelativeTime) String() string {
	if r.forever {
		return foreverText
	}
	return strconv.FormatUint(r.micros, 10) + "us"
}

// MarshalJSON implements json.Marshaler.
func (r RelativeTime) MarshalJSON() ([]byte, error) {
	if r.forever {
		return []byte(`{"d_us":"forever"}`), nil
	}
	return []byte(`{"d_us":` + strconv.FormatUint(r.micros, 10) + `}`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RelativeTime) UnmarshalJSON(b []byte) error {
	v, err := ParseRelativeTime(b)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRelativeTime decodes {"d_us": <uint>} or {"d_us": "forever"}.
func ParseRelativeTime(b []byte) (RelativeTime, error) {
	n, forever, err := parseSentinelField(b, "d_us", foreverText, MaxRelativeMicros)
	if err != nil {
		return RelativeTime{}, err
	}
	return RelativeTime{micros: n, forever: forever}, nil
}

// parseSentinelField decodes an object whose single member field holds either
// a non-negative integer not above max or the sentinel string.
func parseSentinelField(b []byte, field, sentinel string, max uint64) (uint64, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return 0, false, &errs.DecodeError{
			Message: fmt.Sprintf("expected {%q: <number>|%q}", field, sentinel),
			Value:   string(b),
		}
	}
	var w map[string]json.RawMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return 0, false, &errs.DecodeError{Path: field, Err: err}
	}
	raw, ok := w[field]
	if !ok {
		return 0, false, errs.Decodef(field, "missing required field %q", field)
	}
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, &errs.DecodeError{Path: field, Value: string(raw), Err: err}
		}
		if s != sentinel {
			return 0, false, errs.Decodef(field, "invalid value %q: only %q is accepted as a string", s, sentinel)
		}
		return 0, true, nil
	}

	text := string(raw)
	if len(raw) > 0 && raw[0] == '-' {
		return 0, false, errs.Decodef(field, "invalid value %s: must be non-negative", text)
	}
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, false, errs.Decodef(field, "invalid value %s: expected a non-negative integer or %q", text, sentinel)
	}
	if n > max {
		return 0, false, errs.Decodef(field, "invalid value %s: exceeds %d", text, max)
	}
	return n, false, nil
}
