package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/taler-client/internal/errs"
)

func TestParseAmount_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"KUDOS:0",
		"KUDOS:10",
		"EUR:1.5",
		"EUR:0.00000001",
		"TESTKUDOS:4503599627370496",
		"CHF:007.10",
	} {
		a, err := ParseAmount(raw)
		require.NoError(t, err, raw)
		require.Equal(t, raw, a.String())

		again, err := ParseAmount(a.String())
		require.NoError(t, err)
		require.Equal(t, a, again)
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no separator":    "KUDOS10",
		"empty currency":  ":10",
		"empty value":     "KUDOS:",
		"lower currency":  "kudos:1",
		"long currency":   "ABCDEFGHIJKL:1",
		"negative":        "EUR:-1",
		"exponent":        "EUR:1e3",
		"too many digits": "EUR:0.123456789",
		"over 2^52":       "EUR:4503599627370497",
		"second colon":    "EUR:1:2",
	}
	for name, raw := range cases {
		_, err := ParseAmount(raw)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, errs.ErrDecode), name)
	}
}

func TestNewAmount(t *testing.T) {
	t.Parallel()

	a, err := NewAmount("KUDOS", "3.25")
	require.NoError(t, err)
	require.Equal(t, "KUDOS", a.Currency())
	require.Equal(t, "3.25", a.Value())
	require.Equal(t, "3.25", a.Decimal().String())
	require.Equal(t, MustParseAmount("KUDOS:3.25"), a)

	_, err = NewAmount("KUDOS", "abc")
	require.ErrorIs(t, err, errs.ErrDecode)
}

func TestAmount_JSON(t *testing.T) {
	t.Parallel()

	var v struct {
		A Amount `json:"a"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"EUR:2.50"}`), &v))
	require.Equal(t, "EUR:2.50", v.A.String())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"EUR:2.50"}`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"a":"EUR"}`), &v))

	var empty struct {
		A Amount `json:"a"`
	}
	_, err = json.Marshal(empty)
	require.Error(t, err)
}
