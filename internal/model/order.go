package model

import (
	"encoding/json"
	"time"

	"github.com/and161185/taler-client/internal/codec"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/validate"
)

// Order is the merchant-supplied order a contract is created from.
// Version 0 orders carry amount, version 1 orders carry choices.
type Order struct {
	Version                ContractVersion   `json:"version,omitempty"`
	Summary                string            `json:"summary" validate:"required"`
	SummaryI18n            map[string]string `json:"summary_i18n,omitempty"`
	OrderID                string            `json:"order_id,omitempty" validate:"omitempty,taler_order_id"`
	Amount                 *Amount           `json:"amount,omitempty"`
	MaxFee                 *Amount           `json:"max_fee,omitempty"`
	Choices                []Choice          `json:"choices,omitempty"`
	Products               []Product         `json:"products,omitempty" validate:"dive"`
	Timestamp              *Timestamp        `json:"timestamp,omitempty"`
	RefundDeadline         *Timestamp        `json:"refund_deadline,omitempty"`
	PayDeadline            *Timestamp        `json:"pay_deadline,omitempty"`
	WireTransferDeadline   *Timestamp        `json:"wire_transfer_deadline,omitempty"`
	MerchantBaseURL        string            `json:"merchant_base_url,omitempty" validate:"omitempty,taler_base_url"`
	FulfillmentURL         string            `json:"fulfillment_url,omitempty"`
	FulfillmentMessage     string            `json:"fulfillment_message,omitempty"`
	FulfillmentMessageI18n map[string]string `json:"fulfillment_message_i18n,omitempty"`
	PublicReorderURL       string            `json:"public_reorder_url,omitempty"`
	DeliveryLocation       *Location         `json:"delivery_location,omitempty"`
	DeliveryDate           *Timestamp        `json:"delivery_date,omitempty"`
	AutoRefund             *RelativeTime     `json:"auto_refund,omitempty"`
	Extra                  Extra             `json:"extra,omitempty"`
	MinimumAge             int               `json:"minimum_age,omitempty"`
}

func (o *Order) terms() termsFields {
	return termsFields{
		fulfillmentURL:         o.FulfillmentURL,
		fulfillmentMessage:     o.FulfillmentMessage,
		fulfillmentMessageI18n: o.FulfillmentMessageI18n,
		refundDeadline:         o.RefundDeadline,
		wireTransferDeadline:   o.WireTransferDeadline,
		deliveryDate:           o.DeliveryDate,
	}
}

// Validate checks presence, format and cross-field rules in that order.
func (o *Order) Validate(now time.Time) error {
	return validate.Chain(
		func() error { return validate.Run(o.pricingRule()) },
		func() error { return validate.Struct(o) },
		func() error { return validate.Run(o.terms().crossFieldRules(now)...) },
	)
}

func (o *Order) pricingRule() validate.Rule {
	if o.Version == ContractV1 {
		return validate.Rule{
			Field:   "choices",
			Name:    "choices_required",
			Message: "version 1 orders need at least one choice and no amount",
			Holds:   func() bool { return len(o.Choices) > 0 && o.Amount == nil },
		}
	}
	return validate.Rule{
		Field:   "amount",
		Name:    "amount_required",
		Message: "version 0 orders need an amount and no choices",
		Holds:   func() bool { return o.Amount != nil && len(o.Choices) == 0 },
	}
}

var orderTable = codec.NewTable("version", map[string]codec.VariantFunc[*Order]{
	"0": func(raw []byte, obj codec.Object) (*Order, error) {
		return decodeOrderBody(raw, obj, ContractV0, "summary", "amount")
	},
	"1": func(raw []byte, obj codec.Object) (*Order, error) {
		return decodeOrderBody(raw, obj, ContractV1, "summary", "choices")
	},
}, codec.WithDefault("0"))

func decodeOrderBody(raw []byte, obj codec.Object, v ContractVersion, required ...string) (*Order, error) {
	if err := codec.RequireFields(obj, required...); err != nil {
		return nil, err
	}
	var o Order
	if err := codec.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	o.Version = v
	return &o, nil
}

// DecodeOrder decodes an order by version and, unless skipped, validates it.
func DecodeOrder(raw []byte, opts DecodeOptions) (*Order, error) {
	o, err := orderTable.Decode(raw)
	if err != nil {
		return nil, err
	}
	if opts.SkipValidation {
		return o, nil
	}
	if err := o.Validate(opts.now()); err != nil {
		return nil, err
	}
	return o, nil
}

// InventoryProduct references a product from the instance inventory.
type InventoryProduct struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// PostOrderRequest is the body of POST private/orders.
type PostOrderRequest struct {
	Order             *Order             `json:"order"`
	RefundDelay       *RelativeTime      `json:"refund_delay,omitempty"`
	PaymentTarget     string             `json:"payment_target,omitempty"`
	InventoryProducts []InventoryProduct `json:"inventory_products,omitempty" validate:"dive"`
	LockUUIDs         []string           `json:"lock_uuids,omitempty"`
	CreateToken       *bool              `json:"create_token,omitempty"`
	OTPID             string             `json:"otp_id,omitempty"`
}

// Validate checks the embedded order and the inventory references.
func (r *PostOrderRequest) Validate(now time.Time) error {
	if r.Order == nil {
		return &errs.ValidationError{Field: "order", Rule: "required", Message: `missing required field "order"`}
	}
	if err := r.Order.Validate(now); err != nil {
		return errs.AtPath(err, "order")
	}
	return validate.Struct(struct {
		InventoryProducts []InventoryProduct `json:"inventory_products" validate:"dive"`
	}{r.InventoryProducts})
}

// PostOrderResponse is the reply to a created order.
type PostOrderResponse struct {
	OrderID string `json:"order_id"`
	Token   string `json:"token,omitempty"`
}

// DecodePostOrderResponse decodes a created order reply.
func DecodePostOrderResponse(raw []byte) (PostOrderResponse, error) {
	obj, err := codec.ParseObject(raw)
	if err != nil {
		return PostOrderResponse{}, err
	}
	var r PostOrderResponse
	if r.OrderID, err = codec.Required[string](obj, "order_id"); err != nil {
		return PostOrderResponse{}, err
	}
	if r.Token, _, err = codec.Optional[string](obj, "token"); err != nil {
		return PostOrderResponse{}, err
	}
	return r, nil
}

// OrderStatus discriminates the merchant view of an order.
type OrderStatus string

// Known order states.
const (
	OrderUnpaid  OrderStatus = "unpaid"
	OrderClaimed OrderStatus = "claimed"
	OrderPaid    OrderStatus = "paid"
)

// OrderStatusResponse is UnpaidOrder, ClaimedOrder or PaidOrder.
type OrderStatusResponse interface {
	OrderStatus() OrderStatus
}

// UnpaidOrder has not been claimed by a wallet yet.
type UnpaidOrder struct {
	TalerPayURI        string    `json:"taler_pay_uri"`
	CreationTime       Timestamp `json:"creation_time"`
	Summary            string    `json:"summary"`
	TotalAmount        *Amount   `json:"total_amount,omitempty"`
	OrderStatusURL     string    `json:"order_status_url"`
	AlreadyPaidOrderID string    `json:"already_paid_order_id,omitempty"`
}

// OrderStatus implements OrderStatusResponse.
func (UnpaidOrder) OrderStatus() OrderStatus { return OrderUnpaid }

// ClaimedOrder was claimed by a wallet but not paid.
type ClaimedOrder struct {
	ContractTerms  ContractTerms
	OrderStatusURL string
}

// OrderStatus implements OrderStatusResponse.
func (ClaimedOrder) OrderStatus() OrderStatus { return OrderClaimed }

// PaidOrder has been paid.
type PaidOrder struct {
	ContractTerms  ContractTerms
	Refunded       bool
	RefundPending  bool
	Wired          bool
	DepositTotal   *Amount
	RefundAmount   *Amount
	LastPayment    *Timestamp
	OrderStatusURL string
}

// OrderStatus implements OrderStatusResponse.
func (PaidOrder) OrderStatus() OrderStatus { return OrderPaid }

// embeddedTerms decodes the contract_terms member structurally.
func embeddedTerms(obj codec.Object) (ContractTerms, error) {
	raw, err := codec.Required[json.RawMessage](obj, "contract_terms")
	if err != nil {
		return nil, err
	}
	t, err := contractTable.Decode(raw)
	if err != nil {
		return nil, errs.AtPath(err, "contract_terms")
	}
	return t, nil
}

var orderStatusTable = codec.NewTable("order_status", map[string]codec.VariantFunc[OrderStatusResponse]{
	"unpaid": func(raw []byte, obj codec.Object) (OrderStatusResponse, error) {
		if err := codec.RequireFields(obj, "taler_pay_uri", "creation_time", "summary", "order_status_url"); err != nil {
			return nil, err
		}
		var o UnpaidOrder
		if err := codec.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		return o, nil
	},
	"claimed": func(_ []byte, obj codec.Object) (OrderStatusResponse, error) {
		terms, err := embeddedTerms(obj)
		if err != nil {
			return nil, err
		}
		url, _, err := codec.Optional[string](obj, "order_status_url")
		if err != nil {
			return nil, err
		}
		return ClaimedOrder{ContractTerms: terms, OrderStatusURL: url}, nil
	},
	"paid": func(_ []byte, obj codec.Object) (OrderStatusResponse, error) {
		if err := codec.RequireFields(obj, "refunded", "wired", "contract_terms"); err != nil {
			return nil, err
		}
		terms, err := embeddedTerms(obj)
		if err != nil {
			return nil, err
		}
		o := PaidOrder{ContractTerms: terms}
		if o.Refunded, err = codec.Required[bool](obj, "refunded"); err != nil {
			return nil, err
		}
		if o.Wired, err = codec.Required[bool](obj, "wired"); err != nil {
			return nil, err
		}
		if o.RefundPending, _, err = codec.Optional[bool](obj, "refund_pending"); err != nil {
			return nil, err
		}
		if o.DepositTotal, err = codec.OptionalPtr[Amount](obj, "deposit_total"); err != nil {
			return nil, err
		}
		if o.RefundAmount, err = codec.OptionalPtr[Amount](obj, "refund_amount"); err != nil {
			return nil, err
		}
		if o.LastPayment, err = codec.OptionalPtr[Timestamp](obj, "last_payment"); err != nil {
			return nil, err
		}
		if o.OrderStatusURL, _, err = codec.Optional[string](obj, "order_status_url"); err != nil {
			return nil, err
		}
		return o, nil
	},
})

// DecodeOrderStatus decodes the merchant order status reply. Embedded
// contract terms are validated unless skipped; delivery dates of historical
// orders usually lie in the past, so callers reading old orders skip.
func DecodeOrderStatus(raw []byte, opts DecodeOptions) (OrderStatusResponse, error) {
	st, err := orderStatusTable.Decode(raw)
	if err != nil {
		return nil, err
	}
	if opts.SkipValidation {
		return st, nil
	}
	var terms ContractTerms
	switch v := st.(type) {
	case ClaimedOrder:
		terms = v.ContractTerms
	case PaidOrder:
		terms = v.ContractTerms
	}
	if terms != nil {
		if err := terms.Validate(opts.now()); err != nil {
			return nil, errs.AtPath(err, "contract_terms")
		}
	}
	return st, nil
}
