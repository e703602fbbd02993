// Package model defines the typed values of the Taler merchant and exchange
// APIs together with their wire codecs and validation rules.
package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/validate"
)

// Amount is a currency:value pair. The value text is kept verbatim so that
// formatting reproduces the parsed input exactly.
type Amount struct {
	currency string
	value    string
}

var (
	reAmountValue = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,8})?$`)
	// 2^52, the largest integer part the protocol allows.
	maxAmountValue = decimal.New(1<<52, 0)
)

// NewAmount builds an Amount from its parts after checking both.
func NewAmount(currency, value string) (Amount, error) {
	if err := checkAmount(currency, value); err != nil {
		return Amount{}, err
	}
	return Amount{currency: currency, value: value}, nil
}

// ParseAmount parses "CURRENCY:VALUE". The string is split on the first ':'.
func ParseAmount(raw string) (Amount, error) {
	currency, value, ok := strings.Cut(raw, ":")
	if !ok {
		return Amount{}, &errs.DecodeError{Message: fmt.Sprintf("invalid amount %q: missing ':' separator", raw), Value: raw}
	}
	if currency == "" || value == "" {
		return Amount{}, &errs.DecodeError{Message: fmt.Sprintf("invalid amount %q: empty currency or value", raw), Value: raw}
	}
	return NewAmount(currency, value)
}

// MustParseAmount is ParseAmount that panics on error. For constants and tests.
func MustParseAmount(raw string) Amount {
	a, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return a
}

func checkAmount(currency, value string) error {
	if !validate.Currency(currency) {
		return &errs.DecodeError{Message: fmt.Sprintf("invalid amount currency %q", currency), Value: currency}
	}
	if !reAmountValue.MatchString(value) {
		return &errs.DecodeError{Message: fmt.Sprintf("invalid amount value %q", value), Value: value}
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return &errs.DecodeError{Message: fmt.Sprintf("invalid amount value %q", value), Value: value, Err: err}
	}
	if d.GreaterThan(maxAmountValue) {
		return &errs.DecodeError{Message: fmt.Sprintf("amount value %q out of range", value), Value: value}
	}
	return nil
}

// Currency returns the currency code.
func (a Amount) Currency() string { return a.currency }

// Value returns the value text.
func (a Amount) Value() string { return a.value }

// IsZero reports whether a is the zero Amount (not constructed).
func (a Amount) IsZero() bool { return a.currency == "" }

// Decimal returns the numeric value.
func (a Amount) Decimal() decimal.Decimal {
	d, _ := decimal.NewFromString(a.value)
	return d
}

// String formats a as "CURRENCY:VALUE".
func (a Amount) String() string {
	if a.IsZero() {
		return ""
	}
	return a.currency + ":" + a.value
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("cannot encode an empty amount")
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(b []byte) error {
	v, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
