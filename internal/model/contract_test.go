package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/taler-client/internal/errs"
)

var testNow = time.Unix(1_000_000, 0)

func fixedClock() DecodeOptions {
	return DecodeOptions{Now: func() time.Time { return testNow }}
}

func ts(s uint64) map[string]any { return map[string]any{"t_s": s} }

func never() map[string]any { return map[string]any{"t_s": "never"} }

func contractV0() map[string]any {
	return map[string]any{
		"summary":                "Coffee",
		"order_id":               "test-123",
		"products":               []any{map[string]any{"description": "espresso", "price": "KUDOS:2"}},
		"timestamp":              ts(1000),
		"refund_deadline":        ts(5000),
		"pay_deadline":           ts(2000),
		"wire_transfer_deadline": ts(6000),
		"merchant_pub":           "MPUB",
		"merchant_base_url":      "https://backend.example.com/instances/shop/",
		"merchant":               map[string]any{"name": "Shop"},
		"h_wire":                 "HWIRE",
		"wire_method":            "iban",
		"exchanges": []any{map[string]any{
			"url": "https://exchange.example.com/", "priority": 1, "master_pub": "EPUB",
		}},
		"nonce":           "NONCE",
		"amount":          "KUDOS:5",
		"max_fee":         "KUDOS:0.5",
		"fulfillment_url": "https://shop.example.com/thanks",
	}
}

func contractV1() map[string]any {
	c := contractV0()
	delete(c, "amount")
	delete(c, "max_fee")
	c["version"] = 1
	c["choices"] = []any{map[string]any{
		"amount": "KUDOS:5",
		"inputs": []any{map[string]any{"type": "token", "token_family_slug": "member", "count": 1}},
		"outputs": []any{
			map[string]any{"type": "token", "token_family_slug": "member"},
			map[string]any{"type": "tax-receipt"},
		},
	}}
	c["token_families"] = map[string]any{
		"member": map[string]any{
			"name":     "Members",
			"keys":     []any{},
			"details":  map[string]any{"class": "subscription", "trusted_domains": []any{"shop.example.com"}},
			"critical": false,
		},
	}
	return c
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func requireRule(t *testing.T, err error, field, message string) {
	t.Helper()
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve), "want *errs.ValidationError, got %T: %v", err, err)
	require.Equal(t, field, ve.Field)
	require.Equal(t, message, ve.Message)
}

func TestDecodeContractTerms_Versions(t *testing.T) {
	t.Parallel()

	ct, err := DecodeContractTerms(mustJSON(t, contractV0()), fixedClock())
	require.NoError(t, err)
	v0, ok := ct.(*ContractTermsV0)
	require.True(t, ok)
	require.Equal(t, ContractV0, v0.Version())
	require.Equal(t, "KUDOS:5", v0.Amount.String())
	require.Equal(t, "test-123", v0.Common().OrderID)

	explicit := contractV0()
	explicit["version"] = 0
	ct, err = DecodeContractTerms(mustJSON(t, explicit), fixedClock())
	require.NoError(t, err)
	require.IsType(t, &ContractTermsV0{}, ct)

	ct, err = DecodeContractTerms(mustJSON(t, contractV1()), fixedClock())
	require.NoError(t, err)
	v1, ok := ct.(*ContractTermsV1)
	require.True(t, ok)
	require.Len(t, v1.Choices, 1)
	require.Equal(t, Inputs{TokenInput{TokenFamilySlug: "member", Count: 1}}, v1.Choices[0].Inputs)
	require.Equal(t, Outputs{TokenOutput{TokenFamilySlug: "member"}, TaxReceiptOutput{}}, v1.Choices[0].Outputs)
	require.Equal(t, SubscriptionDetails{TrustedDomains: []string{"shop.example.com"}}, v1.TokenFamilies["member"].Details)

	b, err := json.Marshal(v1)
	require.NoError(t, err)
	again, err := DecodeContractTerms(b, fixedClock())
	require.NoError(t, err)
	require.Equal(t, ct, again)

	bad := contractV0()
	bad["version"] = 2
	_, err = DecodeContractTerms(mustJSON(t, bad), fixedClock())
	var de *errs.DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, "version", de.Path)
	require.Equal(t, "2", de.Value)
	require.Equal(t, []string{"0", "1"}, de.Allowed)
}

func TestDecodeContractTerms_Structural(t *testing.T) {
	t.Parallel()

	c := contractV0()
	delete(c, "nonce")
	_, err := DecodeContractTerms(mustJSON(t, c), fixedClock())
	require.ErrorIs(t, err, errs.ErrDecode)
	require.ErrorContains(t, err, `"nonce"`)

	c = contractV1()
	c["choices"] = []any{map[string]any{"amount": "KUDOS:1", "outputs": []any{map[string]any{"type": "coupon"}}}}
	_, err = DecodeContractTerms(mustJSON(t, c), fixedClock())
	var de *errs.DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, "outputs[0].type", de.Path)

	c = contractV1()
	c["token_families"] = map[string]any{"member": map[string]any{"name": "M", "keys": []any{}, "details": map[string]any{"class": "gift"}}}
	_, err = DecodeContractTerms(mustJSON(t, c), fixedClock())
	require.True(t, errors.As(err, &de))
	require.Equal(t, "details.class", de.Path)
}

func TestDecodeContractTerms_DeadlineOrdering(t *testing.T) {
	t.Parallel()

	c := contractV0()
	c["refund_deadline"] = ts(5000)
	c["wire_transfer_deadline"] = ts(4000)
	_, err := DecodeContractTerms(mustJSON(t, c), fixedClock())
	requireRule(t, err, "wire_transfer_deadline", "Wire transfer deadline must be after refund deadline")

	c["wire_transfer_deadline"] = never()
	_, err = DecodeContractTerms(mustJSON(t, c), fixedClock())
	require.NoError(t, err)

	c["refund_deadline"] = never()
	c["wire_transfer_deadline"] = ts(4000)
	_, err = DecodeContractTerms(mustJSON(t, c), fixedClock())
	requireRule(t, err, "wire_transfer_deadline", "Wire transfer deadline must be after refund deadline")

	c["wire_transfer_deadline"] = never()
	_, err = DecodeContractTerms(mustJSON(t, c), fixedClock())
	require.NoError(t, err)
}

func TestDecodeContractTerms_Rules(t *testing.T) {
	t.Parallel()

	c := contractV0()
	c["merchant_base_url"] = "https://backend.example.com/instances/shop"
	_, err := DecodeContractTerms(mustJSON(t, c), fixedClock())
	require.ErrorIs(t, err, errs.ErrValidation)
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "merchant_base_url", ve.Field)

	c = contractV0()
	c["max_fee"] = "EUR:1"
	_, err = DecodeContractTerms(mustJSON(t, c), fixedClock())
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "currency_match", ve.Rule)

	c = contractV1()
	c["token_families"] = map[string]any{}
	_, err = DecodeContractTerms(mustJSON(t, c), fixedClock())
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "token_family_defined", ve.Rule)

	c = contractV0()
	c["products"] = []any{map[string]any{"price": "KUDOS:1"}}
	_, err = DecodeContractTerms(mustJSON(t, c), fixedClock())
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "products[0].description", ve.Field)
}

func TestDecodeContractTerms_ValidationPrecedence(t *testing.T) {
	t.Parallel()

	// Format beats cross-field: both the order id and the deadlines are wrong.
	c := contractV0()
	c["order_id"] = "test@123"
	c["wire_transfer_deadline"] = ts(1)
	_, err := DecodeContractTerms(mustJSON(t, c), fixedClock())
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "order_id", ve.Field)

	// Fulfillment comes before deadlines.
	c = contractV0()
	delete(c, "fulfillment_url")
	c["wire_transfer_deadline"] = ts(1)
	_, err = DecodeContractTerms(mustJSON(t, c), fixedClock())
	requireRule(t, err, "fulfillment_url", "Either fulfillment_url or fulfillment_message must be specified")
}

func TestDecodeContractTerms_SkipValidation(t *testing.T) {
	t.Parallel()

	c := contractV0()
	c["wire_transfer_deadline"] = ts(1)
	ct, err := DecodeContractTerms(mustJSON(t, c), DecodeOptions{SkipValidation: true})
	require.NoError(t, err)
	require.Error(t, ct.Validate(testNow))
}
