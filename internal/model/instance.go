package model

import (
	"github.com/and161185/taler-client/internal/codec"
	"github.com/and161185/taler-client/internal/validate"
)

// AuthMethod selects how clients authenticate against an instance.
type AuthMethod string

// Known authentication methods.
const (
	AuthMethodExternal AuthMethod = "external"
	AuthMethodToken    AuthMethod = "token"
)

// InstanceAuthConfig is the body of a change-auth request and the auth part
// of an instance creation.
type InstanceAuthConfig struct {
	Method   AuthMethod `json:"method" validate:"required,oneof=external token"`
	Password string     `json:"password,omitempty"`
}

// Validate checks the method and that token auth carries a password.
func (a InstanceAuthConfig) Validate() error {
	return validate.Chain(
		func() error { return validate.Struct(a) },
		func() error {
			return validate.Run(validate.Rule{
				Field:   "password",
				Name:    "token_password",
				Message: `password is required for auth method "token"`,
				Holds:   func() bool { return a.Method != AuthMethodToken || a.Password != "" },
			}, validate.Rule{
				Field:   "password",
				Name:    "external_no_password",
				Message: `password must be empty for auth method "external"`,
				Holds:   func() bool { return a.Method != AuthMethodExternal || a.Password == "" },
			})
		},
	)
}

// InstanceConfig is the body of a create-instance request.
type InstanceConfig struct {
	ID                       string             `json:"id" validate:"required,taler_order_id"`
	Name                     string             `json:"name" validate:"required"`
	Auth                     InstanceAuthConfig `json:"auth"`
	Email                    string             `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber              string             `json:"phone_number,omitempty"`
	Website                  string             `json:"website,omitempty" validate:"omitempty,url"`
	Logo                     string             `json:"logo,omitempty"`
	Address                  Location           `json:"address"`
	Jurisdiction             Location           `json:"jurisdiction"`
	UseStefan                bool               `json:"use_stefan"`
	DefaultWireTransferDelay RelativeTime       `json:"default_wire_transfer_delay"`
	DefaultPayDelay          RelativeTime       `json:"default_pay_delay"`
}

// Validate checks presence and format of the fields.
func (c InstanceConfig) Validate() error {
	return validate.Chain(
		func() error { return validate.Struct(c) },
		func() error { return c.Auth.Validate() },
	)
}

// InstanceReconfig is the body of an update-instance request.
type InstanceReconfig struct {
	Name                     string       `json:"name" validate:"required"`
	Email                    string       `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber              string       `json:"phone_number,omitempty"`
	Website                  string       `json:"website,omitempty" validate:"omitempty,url"`
	Logo                     string       `json:"logo,omitempty"`
	Address                  Location     `json:"address"`
	Jurisdiction             Location     `json:"jurisdiction"`
	UseStefan                bool         `json:"use_stefan"`
	DefaultWireTransferDelay RelativeTime `json:"default_wire_transfer_delay"`
	DefaultPayDelay          RelativeTime `json:"default_pay_delay"`
}

// Validate checks presence and format of the fields.
func (c InstanceReconfig) Validate() error { return validate.Struct(c) }

// InstanceDetails is returned by GET on an instance.
type InstanceDetails struct {
	Name                     string       `json:"name"`
	MerchantPub              string       `json:"merchant_pub"`
	Email                    string       `json:"email,omitempty"`
	EmailValidated           bool         `json:"email_validated,omitempty"`
	PhoneNumber              string       `json:"phone_number,omitempty"`
	PhoneValidated           bool         `json:"phone_validated,omitempty"`
	Website                  string       `json:"website,omitempty"`
	Logo                     string       `json:"logo,omitempty"`
	Address                  Location     `json:"address"`
	Jurisdiction             Location     `json:"jurisdiction"`
	UseStefan                bool         `json:"use_stefan"`
	DefaultWireTransferDelay RelativeTime `json:"default_wire_transfer_delay"`
	DefaultPayDelay          RelativeTime `json:"default_pay_delay"`
	Auth                     struct {
		Method AuthMethod `json:"method"`
	} `json:"auth"`
}

// DecodeInstanceDetails decodes a GET instance reply.
func DecodeInstanceDetails(raw []byte) (InstanceDetails, error) {
	obj, err := codec.ParseObject(raw)
	if err != nil {
		return InstanceDetails{}, err
	}
	if err := codec.RequireFields(obj, "name", "merchant_pub", "auth"); err != nil {
		return InstanceDetails{}, err
	}
	var out InstanceDetails
	if err := codec.Unmarshal(raw, &out); err != nil {
		return InstanceDetails{}, err
	}
	return out, nil
}
