package errs

import (
	"errors"
	"fmt"
	"strings"
)

// DecodeError reports a JSON value that could not be turned into a typed value.
// It is always returned before any partially built object escapes.
type DecodeError struct {
	// Path is the dotted field path of the offending value ("choices[0].outputs[1].type").
	Path string
	// Value is the offending raw value as it appeared on the wire, if any.
	Value string
	// Allowed lists the accepted discriminator values, sorted.
	Allowed []string
	// Message overrides the generated description.
	Message string
	// Err is an optional underlying cause.
	Err error
}

// Error satisfies the error interface.
func (e *DecodeError) Error() string {
	var b strings.Builder
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		fmt.Fprintf(&b, "invalid value for field %q", e.Path)
		if e.Value != "" {
			fmt.Fprintf(&b, ": %s", e.Value)
		}
		if len(e.Allowed) > 0 {
			fmt.Fprintf(&b, " (allowed: %s)", strings.Join(e.Allowed, ", "))
		}
	}
	if e.Message != "" && e.Path != "" {
		fmt.Fprintf(&b, " (at %s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is reports ErrDecode membership.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error { return e.Err }

// Decodef builds a DecodeError with a formatted message.
func Decodef(path, format string, args ...any) *DecodeError {
	return &DecodeError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports the first violated semantic rule of a composite value.
type ValidationError struct {
	// Field names the field (or field pair) the rule is about.
	Field string
	// Rule is a short stable identifier of the violated rule.
	Rule string
	// Message is the human-readable description.
	Message string
}

// Error satisfies the error interface.
func (e *ValidationError) Error() string { return e.Message }

// Is reports ErrValidation membership.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ErrorDetail is the backend error body: {code, hint?, detail?, ...}.
type ErrorDetail struct {
	Code   int    `json:"code"`
	Hint   string `json:"hint,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ProtocolError is a 4xx/5xx reply of the backend.
type ProtocolError struct {
	Status int
	ErrorDetail
	// Err is the sentinel derived from Status (ErrNotFound, ErrConflict, ...).
	Err error
}

// Error satisfies the error interface.
func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("backend error: status %d, code %d", e.Status, e.Code)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is reports ErrProtocol membership.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// Unwrap returns the status sentinel.
func (e *ProtocolError) Unwrap() error { return e.Err }

// AtPath prefixes the path of a DecodeError or ValidationError with prefix.
// Other errors are returned unchanged.
func AtPath(err error, prefix string) error {
	if err == nil || prefix == "" {
		return err
	}
	var de *DecodeError
	if errors.As(err, &de) {
		cp := *de
		cp.Path = joinPath(prefix, de.Path)
		return &cp
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		cp := *ve
		cp.Field = joinPath(prefix, ve.Field)
		return &cp
	}
	return err
}

func joinPath(prefix, p string) string {
	switch {
	case p == "":
		return prefix
	case strings.HasPrefix(p, "["):
		return prefix + p
	default:
		return prefix + "." + p
	}
}
