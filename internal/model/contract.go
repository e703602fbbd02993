package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/taler-client/internal/codec"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/validate"
)

// ContractVersion discriminates contract terms.
type ContractVersion int

// Known contract versions.
const (
	ContractV0 ContractVersion = 0
	ContractV1 ContractVersion = 1
)

// ContractTerms is either *ContractTermsV0 or *ContractTermsV1.
type ContractTerms interface {
	Version() ContractVersion
	Common() *ContractCommon
	// Validate runs the format and cross-field rules against now.
	Validate(now time.Time) error
}

// ContractCommon holds the members every contract version carries.
type ContractCommon struct {
	Summary                string            `json:"summary" validate:"required"`
	SummaryI18n            map[string]string `json:"summary_i18n,omitempty"`
	OrderID                string            `json:"order_id" validate:"required,taler_order_id"`
	PublicReorderURL       string            `json:"public_reorder_url,omitempty"`
	FulfillmentURL         string            `json:"fulfillment_url,omitempty"`
	FulfillmentMessage     string            `json:"fulfillment_message,omitempty"`
	FulfillmentMessageI18n map[string]string `json:"fulfillment_message_i18n,omitempty"`
	Products               []Product         `json:"products" validate:"dive"`
	Timestamp              Timestamp         `json:"timestamp"`
	RefundDeadline         Timestamp         `json:"refund_deadline"`
	PayDeadline            Timestamp         `json:"pay_deadline"`
	WireTransferDeadline   Timestamp         `json:"wire_transfer_deadline"`
	MerchantPub            string            `json:"merchant_pub" validate:"required"`
	MerchantBaseURL        string            `json:"merchant_base_url" validate:"required,taler_base_url"`
	Merchant               Merchant          `json:"merchant"`
	HWire                  string            `json:"h_wire" validate:"required"`
	WireMethod             string            `json:"wire_method" validate:"required"`
	Exchanges              []Exchange        `json:"exchanges" validate:"dive"`
	DeliveryLocation       *Location         `json:"delivery_location,omitempty"`
	DeliveryDate           *Timestamp        `json:"delivery_date,omitempty"`
	Nonce                  string            `json:"nonce" validate:"required"`
	AutoRefund             *RelativeTime     `json:"auto_refund,omitempty"`
	Extra                  Extra             `json:"extra,omitempty"`
	MinimumAge             int               `json:"minimum_age,omitempty"`
}

var contractCommonRequired = []string{
	"summary", "order_id", "products", "timestamp", "refund_deadline", "pay_deadline",
	"wire_transfer_deadline", "merchant_pub", "merchant_base_url", "merchant", "h_wire",
	"wire_method", "exchanges", "nonce",
}

func (c *ContractCommon) terms() termsFields {
	return termsFields{
		fulfillmentURL:         c.FulfillmentURL,
		fulfillmentMessage:     c.FulfillmentMessage,
		fulfillmentMessageI18n: c.FulfillmentMessageI18n,
		refundDeadline:         &c.RefundDeadline,
		wireTransferDeadline:   &c.WireTransferDeadline,
		deliveryDate:           c.DeliveryDate,
	}
}

// ContractTermsV0 prices the contract with a single amount.
type ContractTermsV0 struct {
	ContractCommon
	Amount Amount `json:"amount"`
	MaxFee Amount `json:"max_fee"`
}

// Version implements ContractTerms.
func (*ContractTermsV0) Version() ContractVersion { return ContractV0 }

// Common implements ContractTerms.
func (t *ContractTermsV0) Common() *ContractCommon { return &t.ContractCommon }

// Validate implements ContractTerms.
func (t *ContractTermsV0) Validate(now time.Time) error {
	return validate.Chain(
		func() error { return validate.Struct(t) },
		func() error {
			return validate.Run(validate.Rule{
				Field:   "max_fee",
				Name:    "currency_match",
				Message: fmt.Sprintf("max_fee currency %s differs from amount currency %s", t.MaxFee.Currency(), t.Amount.Currency()),
				Holds:   func() bool { return t.MaxFee.Currency() == t.Amount.Currency() },
			})
		},
		func() error { return validate.Run(t.terms().crossFieldRules(now)...) },
	)
}

// Choice is one way to pay for v1 contract terms or orders.
type Choice struct {
	Amount  Amount  `json:"amount"`
	Inputs  Inputs  `json:"inputs,omitempty"`
	Outputs Outputs `json:"outputs,omitempty"`
	MaxFee  *Amount `json:"max_fee,omitempty"`
}

// UnmarshalJSON decodes members with their paths.
func (c *Choice) UnmarshalJSON(b []byte) error {
	obj, err := codec.ParseObject(b)
	if err != nil {
		return err
	}
	var out Choice
	if out.Amount, err = codec.Required[Amount](obj, "amount"); err != nil {
		return err
	}
	if out.Inputs, _, err = codec.Optional[Inputs](obj, "inputs"); err != nil {
		return err
	}
	if out.Outputs, _, err = codec.Optional[Outputs](obj, "outputs"); err != nil {
		return err
	}
	if out.MaxFee, err = codec.OptionalPtr[Amount](obj, "max_fee"); err != nil {
		return err
	}
	*c = out
	return nil
}

// ContractTermsV1 offers several choices and may involve tokens.
type ContractTermsV1 struct {
	ContractCommon
	Choices       []Choice                       `json:"choices"`
	TokenFamilies map[string]ContractTokenFamily `json:"token_families"`
}

// Version implements ContractTerms.
func (*ContractTermsV1) Version() ContractVersion { return ContractV1 }

// Common implements ContractTerms.
func (t *ContractTermsV1) Common() *ContractCommon { return &t.ContractCommon }

// MarshalJSON adds "version": 1.
func (t *ContractTermsV1) MarshalJSON() ([]byte, error) {
	type alias ContractTermsV1
	return json.Marshal(struct {
		Version ContractVersion `json:"version"`
		*alias
	}{ContractV1, (*alias)(t)})
}

// Validate implements ContractTerms.
func (t *ContractTermsV1) Validate(now time.Time) error {
	return validate.Chain(
		func() error { return validate.Struct(t) },
		func() error {
			return validate.Run(validate.Rule{
				Field:   "choices",
				Name:    "choices_required",
				Message: "contract terms version 1 need at least one choice",
				Holds:   func() bool { return len(t.Choices) > 0 },
			})
		},
		func() error { return checkChoiceTokens(t.Choices, t.TokenFamilies) },
		func() error { return validate.Run(t.terms().crossFieldRules(now)...) },
	)
}

// checkChoiceTokens verifies every token slug used by a choice is defined.
func checkChoiceTokens(choices []Choice, families map[string]ContractTokenFamily) error {
	for i, c := range choices {
		slugs := make([]string, 0, len(c.Inputs)+len(c.Outputs))
		for _, in := range c.Inputs {
			if ti, ok := in.(TokenInput); ok {
				slugs = append(slugs, ti.TokenFamilySlug)
			}
		}
		for _, out := range c.Outputs {
			if to, ok := out.(TokenOutput); ok {
				slugs = append(slugs, to.TokenFamilySlug)
			}
		}
		for _, slug := range slugs {
			if _, ok := families[slug]; !ok {
				return &errs.ValidationError{
					Field:   fmt.Sprintf("choices[%d]", i),
					Rule:    "token_family_defined",
					Message: fmt.Sprintf("token family %q used by choices[%d] is not defined in token_families", slug, i),
				}
			}
		}
	}
	return nil
}

var contractTable = codec.NewTable("version", map[string]codec.VariantFunc[ContractTerms]{
	"0": func(raw []byte, obj codec.Object) (ContractTerms, error) {
		if err := codec.RequireFields(obj, append(contractCommonRequired, "amount", "max_fee")...); err != nil {
			return nil, err
		}
		var t ContractTermsV0
		if err := codec.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return &t, nil
	},
	"1": func(raw []byte, obj codec.Object) (ContractTerms, error) {
		if err := codec.RequireFields(obj, append(contractCommonRequired, "choices", "token_families")...); err != nil {
			return nil, err
		}
		var t ContractTermsV1
		if err := codec.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return &t, nil
	},
}, codec.WithDefault("0"))

// DecodeContractTerms decodes contract terms by version and, unless skipped,
// validates them.
func DecodeContractTerms(raw []byte, opts DecodeOptions) (ContractTerms, error) {
	t, err := contractTable.Decode(raw)
	if err != nil {
		return nil, err
	}
	if opts.SkipValidation {
		return t, nil
	}
	if err := t.Validate(opts.now()); err != nil {
		return nil, err
	}
	return t, nil
}
