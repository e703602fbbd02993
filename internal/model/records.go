package model

import "encoding/json"

// Location is a postal address.
type Location struct {
	Country            string   `json:"country,omitempty"`
	CountrySubdivision string   `json:"country_subdivision,omitempty"`
	District           string   `json:"district,omitempty"`
	Town               string   `json:"town,omitempty"`
	TownLocation       string   `json:"town_location,omitempty"`
	PostCode           string   `json:"post_code,omitempty"`
	Street             string   `json:"street,omitempty"`
	BuildingNumber     string   `json:"building_number,omitempty"`
	AddressLines       []string `json:"address_lines,omitempty"`
}

// Tax is one tax line of a product.
type Tax struct {
	Name string `json:"name" validate:"required"`
	Tax  Amount `json:"tax"`
}

// Product is one line item of an order or contract.
type Product struct {
	ProductID       string            `json:"product_id,omitempty"`
	Description     string            `json:"description" validate:"required"`
	DescriptionI18n map[string]string `json:"description_i18n,omitempty"`
	Quantity        int64             `json:"quantity,omitempty"`
	Unit            string            `json:"unit,omitempty"`
	Price           *Amount           `json:"price,omitempty"`
	Image           string            `json:"image,omitempty"`
	Taxes           []Tax             `json:"taxes,omitempty" validate:"dive"`
	DeliveryDate    *Timestamp        `json:"delivery_date,omitempty"`
}

// Merchant describes the seller in contract terms.
type Merchant struct {
	Name         string    `json:"name" validate:"required"`
	Email        string    `json:"email,omitempty"`
	Website      string    `json:"website,omitempty"`
	Logo         string    `json:"logo,omitempty"`
	Address      *Location `json:"address,omitempty"`
	Jurisdiction *Location `json:"jurisdiction,omitempty"`
}

// Exchange is an exchange the merchant accepts, as listed in contract terms.
type Exchange struct {
	URL             string  `json:"url" validate:"required,taler_base_url"`
	Priority        int     `json:"priority"`
	MasterPub       string  `json:"master_pub" validate:"required"`
	MaxContribution *Amount `json:"max_contribution,omitempty"`
}

// Extra is free-form merchant data carried through unchanged.
type Extra = json.RawMessage
