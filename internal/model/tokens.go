package model

import (
	"encoding/json"
	"fmt"

	"github.com/and161185/taler-client/internal/codec"
	"github.com/and161185/taler-client/internal/errs"
)

// TokenClass discriminates token family details.
type TokenClass string

// Known token classes.
const (
	TokenClassSubscription TokenClass = "subscription"
	TokenClassDiscount     TokenClass = "discount"
)

// TokenDetails is the class-specific part of a token family.
type TokenDetails interface {
	Class() TokenClass
}

// SubscriptionDetails lists the domains trusted to accept the subscription.
type SubscriptionDetails struct {
	TrustedDomains []string `json:"trusted_domains"`
}

// Class implements TokenDetails.
func (SubscriptionDetails) Class() TokenClass { return TokenClassSubscription }

// MarshalJSON adds the class discriminator.
func (d SubscriptionDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Class          TokenClass `json:"class"`
		TrustedDomains []string   `json:"trusted_domains"`
	}{TokenClassSubscription, nonNilStrings(d.TrustedDomains)})
}

// DiscountDetails lists the domains expected to honour the discount.
type DiscountDetails struct {
	ExpectedDomains []string `json:"expected_domains"`
}

// Class implements TokenDetails.
func (DiscountDetails) Class() TokenClass { return TokenClassDiscount }

// MarshalJSON adds the class discriminator.
func (d DiscountDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Class           TokenClass `json:"class"`
		ExpectedDomains []string   `json:"expected_domains"`
	}{TokenClassDiscount, nonNilStrings(d.ExpectedDomains)})
}

var tokenDetailsTable = codec.NewTable("class", map[string]codec.VariantFunc[TokenDetails]{
	string(TokenClassSubscription): func(_ []byte, obj codec.Object) (TokenDetails, error) {
		domains, err := codec.Required[[]string](obj, "trusted_domains")
		if err != nil {
			return nil, err
		}
		return SubscriptionDetails{TrustedDomains: domains}, nil
	},
	string(TokenClassDiscount): func(_ []byte, obj codec.Object) (TokenDetails, error) {
		domains, err := codec.Required[[]string](obj, "expected_domains")
		if err != nil {
			return nil, err
		}
		return DiscountDetails{ExpectedDomains: domains}, nil
	},
})

// DecodeTokenDetails decodes a token family details object by its class.
func DecodeTokenDetails(raw []byte) (TokenDetails, error) {
	return tokenDetailsTable.Decode(raw)
}

// TokenIssueKey is a public key used to issue tokens of a family.
type TokenIssueKey struct {
	Cipher                 string    `json:"cipher" validate:"required,oneof=RSA CS"`
	RSAPub                 string    `json:"rsa_pub,omitempty" validate:"required_if=Cipher RSA"`
	CSPub                  string    `json:"cs_pub,omitempty" validate:"required_if=Cipher CS"`
	SignatureValidityStart Timestamp `json:"signature_validity_start"`
	SignatureValidityEnd   Timestamp `json:"signature_validity_end"`
}

// ContractTokenFamily describes a token family referenced by v1 contract terms.
type ContractTokenFamily struct {
	Name            string            `json:"name" validate:"required"`
	Description     string            `json:"description"`
	DescriptionI18n map[string]string `json:"description_i18n,omitempty"`
	Keys            []TokenIssueKey   `json:"keys" validate:"dive"`
	Details         TokenDetails      `json:"details"`
	Critical        bool              `json:"critical"`
}

// UnmarshalJSON decodes the details through the class table.
func (f *ContractTokenFamily) UnmarshalJSON(b []byte) error {
	type alias ContractTokenFamily
	var w struct {
		alias
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if len(w.Details) == 0 {
		return errs.Decodef("details", "missing required field %q", "details")
	}
	details, err := DecodeTokenDetails(w.Details)
	if err != nil {
		return errs.AtPath(err, "details")
	}
	*f = ContractTokenFamily(w.alias)
	f.Details = details
	return nil
}

// OutputType discriminates contract/order outputs.
type OutputType string

// Known output types.
const (
	OutputTypeToken      OutputType = "token"
	OutputTypeTaxReceipt OutputType = "tax-receipt"
)

// Output is something the customer receives when paying for a choice.
type Output interface {
	OutputType() OutputType
}

// TokenOutput issues tokens of a family.
type TokenOutput struct {
	TokenFamilySlug string     `json:"token_family_slug"`
	Count           int        `json:"count,omitempty"`
	KeyIndex        *int       `json:"key_index,omitempty"`
	ValidAt         *Timestamp `json:"valid_at,omitempty"`
}

// OutputType implements Output.
func (TokenOutput) OutputType() OutputType { return OutputTypeToken }

// MarshalJSON adds the type discriminator.
func (o TokenOutput) MarshalJSON() ([]byte, error) {
	type alias TokenOutput
	return json.Marshal(struct {
		Type OutputType `json:"type"`
		alias
	}{OutputTypeToken, alias(o)})
}

// TaxReceiptOutput issues a tax receipt. It carries no payload.
type TaxReceiptOutput struct{}

// OutputType implements Output.
func (TaxReceiptOutput) OutputType() OutputType { return OutputTypeTaxReceipt }

// MarshalJSON emits only the type discriminator.
func (TaxReceiptOutput) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"tax-receipt"}`), nil
}

var outputTable = codec.NewTable("type", map[string]codec.VariantFunc[Output]{
	string(OutputTypeToken): func(raw []byte, obj codec.Object) (Output, error) {
		if err := codec.RequireFields(obj, "token_family_slug"); err != nil {
			return nil, err
		}
		var o TokenOutput
		if err := codec.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		if o.Count < 0 {
			return nil, errs.Decodef("count", "invalid value %d: must be non-negative", o.Count)
		}
		return o, nil
	},
	string(OutputTypeTaxReceipt): func([]byte, codec.Object) (Output, error) {
		return TaxReceiptOutput{}, nil
	},
})

// DecodeOutput decodes one output by its type.
func DecodeOutput(raw []byte) (Output, error) { return outputTable.Decode(raw) }

// Outputs is a list of outputs decoded through the type table.
type Outputs []Output

// UnmarshalJSON implements json.Unmarshaler.
func (l *Outputs) UnmarshalJSON(b []byte) error {
	out, err := decodeList(b, outputTable.Decode)
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// InputType discriminates contract/order inputs.
type InputType string

// InputTypeToken spends tokens of a family.
const InputTypeToken InputType = "token"

// Input is something the customer spends in addition to money.
type Input interface {
	InputType() InputType
}

// TokenInput spends tokens of a family.
type TokenInput struct {
	TokenFamilySlug string `json:"token_family_slug"`
	Count           int    `json:"count,omitempty"`
}

// InputType implements Input.
func (TokenInput) InputType() InputType { return InputTypeToken }

// MarshalJSON adds the type discriminator.
func (i TokenInput) MarshalJSON() ([]byte, error) {
	type alias TokenInput
	return json.Marshal(struct {
		Type InputType `json:"type"`
		alias
	}{InputTypeToken, alias(i)})
}

var inputTable = codec.NewTable("type", map[string]codec.VariantFunc[Input]{
	string(InputTypeToken): func(raw []byte, obj codec.Object) (Input, error) {
		if err := codec.RequireFields(obj, "token_family_slug"); err != nil {
			return nil, err
		}
		var in TokenInput
		if err := codec.Unmarshal(raw, &in); err != nil {
			return nil, err
		}
		return in, nil
	},
})

// Inputs is a list of inputs decoded through the type table.
type Inputs []Input

// UnmarshalJSON implements json.Unmarshaler.
func (l *Inputs) UnmarshalJSON(b []byte) error {
	out, err := decodeList(b, inputTable.Decode)
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// decodeList decodes a JSON array element by element, prefixing errors with
// the element index.
func decodeList[T any](b []byte, decode func([]byte) (T, error)) ([]T, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, &errs.DecodeError{Message: "expected JSON array", Err: err}
	}
	out := make([]T, 0, len(raws))
	for i, r := range raws {
		v, err := decode(r)
		if err != nil {
			return nil, errs.AtPath(err, fmt.Sprintf("[%d]", i))
		}
		out = append(out, v)
	}
	return out, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
