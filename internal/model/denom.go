package model

import (
	"encoding/json"
	"fmt"

	"github.com/and161185/taler-client/internal/codec"
	"github.com/and161185/taler-client/internal/errs"
)

// DenomCipher discriminates denomination public keys.
type DenomCipher string

// Known denomination ciphers.
const (
	CipherRSA              DenomCipher = "RSA"
	CipherCS               DenomCipher = "CS"
	CipherRSAAgeRestricted DenomCipher = "RSA+age_restricted"
	CipherCSAgeRestricted  DenomCipher = "CS+age_restricted"
)

// DenomPub is a denomination public key.
type DenomPub interface {
	Cipher() DenomCipher
}

// RSADenomPub is an RSA blind-signature key.
type RSADenomPub struct {
	RSAPub string
}

// CSDenomPub is a Clause-Schnorr key.
type CSDenomPub struct {
	CSPub string
}

// RSAAgeRestrictedDenomPub is an RSA key of an age-restricted denomination.
type RSAAgeRestrictedDenomPub struct {
	RSAPub  string
	AgeMask uint32
}

// CSAgeRestrictedDenomPub is a Clause-Schnorr key of an age-restricted denomination.
type CSAgeRestrictedDenomPub struct {
	CSPub   string
	AgeMask uint32
}

func (RSADenomPub) Cipher() DenomCipher              { return CipherRSA }
func (CSDenomPub) Cipher() DenomCipher               { return CipherCS }
func (RSAAgeRestrictedDenomPub) Cipher() DenomCipher { return CipherRSAAgeRestricted }
func (CSAgeRestrictedDenomPub) Cipher() DenomCipher  { return CipherCSAgeRestricted }

type denomPubWire struct {
	Cipher  DenomCipher `json:"cipher"`
	RSAPub  string      `json:"rsa_pub,omitempty"`
	CSPub   string      `json:"cs_pub,omitempty"`
	AgeMask *uint32     `json:"age_mask,omitempty"`
}

func (k RSADenomPub) MarshalJSON() ([]byte, error) {
	return json.Marshal(denomPubWire{Cipher: CipherRSA, RSAPub: k.RSAPub})
}

func (k CSDenomPub) MarshalJSON() ([]byte, error) {
	return json.Marshal(denomPubWire{Cipher: CipherCS, CSPub: k.CSPub})
}

func (k RSAAgeRestrictedDenomPub) MarshalJSON() ([]byte, error) {
	return json.Marshal(denomPubWire{Cipher: CipherRSAAgeRestricted, RSAPub: k.RSAPub, AgeMask: &k.AgeMask})
}

func (k CSAgeRestrictedDenomPub) MarshalJSON() ([]byte, error) {
	return json.Marshal(denomPubWire{Cipher: CipherCSAgeRestricted, CSPub: k.CSPub, AgeMask: &k.AgeMask})
}

// keyData reads the key member and, when ageRestricted, the age mask. Any
// missing or mistyped part yields the cipher-specific error.
func keyData(obj codec.Object, cipher DenomCipher, keyField string, ageRestricted bool) (string, uint32, error) {
	bad := &errs.DecodeError{
		Path:    keyField,
		Message: fmt.Sprintf("Invalid or incomplete key data for cipher type %q", string(cipher)),
	}
	key, err := codec.Required[string](obj, keyField)
	if err != nil || key == "" {
		bad.Err = err
		return "", 0, bad
	}
	if !ageRestricted {
		return key, 0, nil
	}
	mask, err := codec.Required[uint32](obj, "age_mask")
	if err != nil {
		bad.Path = "age_mask"
		bad.Err = err
		return "", 0, bad
	}
	return key, mask, nil
}

var denomPubTable = codec.NewTable("cipher", map[string]codec.VariantFunc[DenomPub]{
	string(CipherRSA): func(_ []byte, obj codec.Object) (DenomPub, error) {
		key, _, err := keyData(obj, CipherRSA, "rsa_pub", false)
		if err != nil {
			return nil, err
		}
		return RSADenomPub{RSAPub: key}, nil
	},
	string(CipherCS): func(_ []byte, obj codec.Object) (DenomPub, error) {
		key, _, err := keyData(obj, CipherCS, "cs_pub", false)
		if err != nil {
			return nil, err
		}
		return CSDenomPub{CSPub: key}, nil
	},
	string(CipherRSAAgeRestricted): func(_ []byte, obj codec.Object) (DenomPub, error) {
		key, mask, err := keyData(obj, CipherRSAAgeRestricted, "rsa_pub", true)
		if err != nil {
			return nil, err
		}
		return RSAAgeRestrictedDenomPub{RSAPub: key, AgeMask: mask}, nil
	},
	string(CipherCSAgeRestricted): func(_ []byte, obj codec.Object) (DenomPub, error) {
		key, mask, err := keyData(obj, CipherCSAgeRestricted, "cs_pub", true)
		if err != nil {
			return nil, err
		}
		return CSAgeRestrictedDenomPub{CSPub: key, AgeMask: mask}, nil
	},
})

// DecodeDenomPub decodes a denomination public key by its cipher.
func DecodeDenomPub(raw []byte) (DenomPub, error) { return denomPubTable.Decode(raw) }

// Denomination is one coin denomination offered by an exchange.
type Denomination struct {
	Value               Amount    `json:"value"`
	FeeWithdraw         Amount    `json:"fee_withdraw"`
	FeeDeposit          Amount    `json:"fee_deposit"`
	FeeRefresh          Amount    `json:"fee_refresh"`
	FeeRefund           Amount    `json:"fee_refund"`
	StampStart          Timestamp `json:"stamp_start"`
	StampExpireWithdraw Timestamp `json:"stamp_expire_withdraw"`
	StampExpireDeposit  Timestamp `json:"stamp_expire_deposit"`
	StampExpireLegal    Timestamp `json:"stamp_expire_legal"`
	MasterSig           string    `json:"master_sig"`
	DenomPub            DenomPub  `json:"denom_pub"`
}

// UnmarshalJSON decodes the key through the cipher table.
func (d *Denomination) UnmarshalJSON(b []byte) error {
	obj, err := codec.ParseObject(b)
	if err != nil {
		return err
	}
	if err := codec.RequireFields(obj,
		"value", "fee_withdraw", "fee_deposit", "fee_refresh", "fee_refund",
		"stamp_start", "stamp_expire_withdraw", "stamp_expire_deposit", "stamp_expire_legal",
		"master_sig", "denom_pub",
	); err != nil {
		return err
	}
	type alias Denomination
	var w struct {
		alias
		DenomPub json.RawMessage `json:"denom_pub"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	pub, err := DecodeDenomPub(w.DenomPub)
	if err != nil {
		return errs.AtPath(err, "denom_pub")
	}
	*d = Denomination(w.alias)
	d.DenomPub = pub
	return nil
}

// AgeRestricted reports whether the denomination carries an age mask.
func (d Denomination) AgeRestricted() bool {
	switch d.DenomPub.(type) {
	case RSAAgeRestrictedDenomPub, CSAgeRestrictedDenomPub:
		return true
	default:
		return false
	}
}
