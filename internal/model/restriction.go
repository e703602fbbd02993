package model

import (
	"encoding/json"
	"regexp"

	"github.com/and161185/taler-client/internal/codec"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/validate"
)

// RestrictionType discriminates wire account restrictions.
type RestrictionType string

// Known restriction types.
const (
	RestrictionDeny  RestrictionType = "deny"
	RestrictionRegex RestrictionType = "regex"
)

// AccountRestriction limits which accounts may transact with an exchange account.
type AccountRestriction interface {
	RestrictionType() RestrictionType
}

// DenyAllRestriction forbids every counterparty. It carries no payload.
type DenyAllRestriction struct{}

// RestrictionType implements AccountRestriction.
func (DenyAllRestriction) RestrictionType() RestrictionType { return RestrictionDeny }

// MarshalJSON emits only the type discriminator.
func (DenyAllRestriction) MarshalJSON() ([]byte, error) { return []byte(`{"type":"deny"}`), nil }

// RegexRestriction allows counterparties whose payto URI matches PaytoRegex.
type RegexRestriction struct {
	PaytoRegex    string            `json:"payto_regex" validate:"required"`
	HumanHint     string            `json:"human_hint" validate:"required"`
	HumanHintI18n map[string]string `json:"human_hint_i18n,omitempty"`
}

// RestrictionType implements AccountRestriction.
func (RegexRestriction) RestrictionType() RestrictionType { return RestrictionRegex }

// MarshalJSON adds the type discriminator.
func (r RegexRestriction) MarshalJSON() ([]byte, error) {
	type alias RegexRestriction
	return json.Marshal(struct {
		Type RestrictionType `json:"type"`
		alias
	}{RestrictionRegex, alias(r)})
}

// Matches reports whether payto satisfies the restriction.
func (r RegexRestriction) Matches(payto string) (bool, error) {
	re, err := regexp.Compile(r.PaytoRegex)
	if err != nil {
		return false, err
	}
	return re.MatchString(payto), nil
}

var restrictionTable = codec.NewTable("type", map[string]codec.VariantFunc[AccountRestriction]{
	string(RestrictionDeny): func([]byte, codec.Object) (AccountRestriction, error) {
		return DenyAllRestriction{}, nil
	},
	string(RestrictionRegex): func(raw []byte, obj codec.Object) (AccountRestriction, error) {
		if err := codec.RequireFields(obj, "payto_regex", "human_hint"); err != nil {
			return nil, err
		}
		var r RegexRestriction
		if err := codec.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		if err := validate.Struct(r); err != nil {
			return nil, err
		}
		return r, nil
	},
})

// DecodeAccountRestriction decodes one restriction by its type.
func DecodeAccountRestriction(raw []byte) (AccountRestriction, error) {
	return restrictionTable.Decode(raw)
}

// Restrictions is a list decoded through the restriction table.
type Restrictions []AccountRestriction

// UnmarshalJSON implements json.Unmarshaler.
func (l *Restrictions) UnmarshalJSON(b []byte) error {
	out, err := decodeList(b, restrictionTable.Decode)
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// WireAccount is a bank account of an exchange.
type WireAccount struct {
	PaytoURI           string       `json:"payto_uri"`
	ConversionURL      string       `json:"conversion_url,omitempty"`
	CreditRestrictions Restrictions `json:"credit_restrictions"`
	DebitRestrictions  Restrictions `json:"debit_restrictions"`
	MasterSig          string       `json:"master_sig"`
}

// UnmarshalJSON decodes members with their paths.
func (a *WireAccount) UnmarshalJSON(b []byte) error {
	obj, err := codec.ParseObject(b)
	if err != nil {
		return err
	}
	if err := codec.RequireFields(obj, "payto_uri", "master_sig"); err != nil {
		return err
	}
	var out WireAccount
	if out.PaytoURI, err = codec.Required[string](obj, "payto_uri"); err != nil {
		return err
	}
	if out.ConversionURL, _, err = codec.Optional[string](obj, "conversion_url"); err != nil {
		return err
	}
	if out.CreditRestrictions, _, err = codec.Optional[Restrictions](obj, "credit_restrictions"); err != nil {
		return err
	}
	if out.DebitRestrictions, _, err = codec.Optional[Restrictions](obj, "debit_restrictions"); err != nil {
		return err
	}
	if out.MasterSig, err = codec.Required[string](obj, "master_sig"); err != nil {
		return err
	}
	*a = out
	return nil
}

// ExchangeKeys is the subset of an exchange /keys reply this client uses.
type ExchangeKeys struct {
	Version             string         `json:"version"`
	BaseURL             string         `json:"base_url" validate:"required,taler_base_url"`
	Currency            string         `json:"currency" validate:"required,taler_currency"`
	MasterPublicKey     string         `json:"master_public_key" validate:"required"`
	ReserveClosingDelay RelativeTime   `json:"reserve_closing_delay"`
	ListIssueDate       Timestamp      `json:"list_issue_date"`
	Denominations       []Denomination `json:"denominations"`
	Accounts            []WireAccount  `json:"accounts"`
}

// DecodeExchangeKeys decodes and checks a /keys reply.
func DecodeExchangeKeys(raw []byte, opts DecodeOptions) (ExchangeKeys, error) {
	obj, err := codec.ParseObject(raw)
	if err != nil {
		return ExchangeKeys{}, err
	}
	if err := codec.RequireFields(obj, "version", "base_url", "currency", "master_public_key"); err != nil {
		return ExchangeKeys{}, err
	}
	var out ExchangeKeys
	if err := codec.Unmarshal(raw, &out); err != nil {
		return ExchangeKeys{}, err
	}
	if opts.SkipValidation {
		return out, nil
	}
	if err := validate.Struct(out); err != nil {
		return ExchangeKeys{}, err
	}
	for i, d := range out.Denominations {
		if d.Value.Currency() != out.Currency {
			return ExchangeKeys{}, errs.AtPath(&errs.ValidationError{
				Field:   "value",
				Rule:    "currency_match",
				Message: "denomination currency " + d.Value.Currency() + " differs from exchange currency " + out.Currency,
			}, "denominations["+itoa(i)+"]")
		}
	}
	return out, nil
}
