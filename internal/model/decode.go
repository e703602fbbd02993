package model

import (
	"fmt"
	"time"

	"github.com/and161185/taler-client/internal/validate"
)

// DecodeOptions controls how composite records are decoded.
type DecodeOptions struct {
	// SkipValidation returns structurally decoded values without running the
	// format and cross-field rules. Callers validate later via Validate.
	SkipValidation bool
	// Now is the reference clock for time-relative rules. Defaults to time.Now.
	Now func() time.Time
}

func (o DecodeOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// termsFields are the members shared by orders and contract terms that the
// cross-field rules look at.
type termsFields struct {
	fulfillmentURL         string
	fulfillmentMessage     string
	fulfillmentMessageI18n map[string]string
	refundDeadline         *Timestamp
	wireTransferDeadline   *Timestamp
	deliveryDate           *Timestamp
}

// crossFieldRules returns the rules applied after the format stage, in order.
// Exactly one of fulfillment_url and a fulfillment message is required. The
// message may be given as fulfillment_message, fulfillment_message_i18n or
// both; the two forms together still count as one message.
func (f termsFields) crossFieldRules(now time.Time) []validate.Rule {
	hasMessage := f.fulfillmentMessage != "" || len(f.fulfillmentMessageI18n) > 0
	hasURL := f.fulfillmentURL != ""
	return []validate.Rule{
		{
			Field:   "fulfillment_url",
			Name:    "fulfillment_required",
			Message: "Either fulfillment_url or fulfillment_message must be specified",
			Holds:   func() bool { return hasURL || hasMessage },
		},
		{
			Field:   "fulfillment_url",
			Name:    "fulfillment_exclusive",
			Message: "Only one of fulfillment_url or fulfillment_message may be specified",
			Holds:   func() bool { return !(hasURL && hasMessage) },
		},
		{
			Field:   "wire_transfer_deadline",
			Name:    "deadline_order",
			Message: "Wire transfer deadline must be after refund deadline",
			Holds:   func() bool { return deadlinesOrdered(f.refundDeadline, f.wireTransferDeadline) },
		},
		{
			Field:   "delivery_date",
			Name:    "delivery_future",
			Message: "Delivery date must be in the future",
			Holds:   func() bool { return deliveryInFuture(f.deliveryDate, now) },
		},
	}
}

// deadlinesOrdered: a never wire deadline always holds; a never refund
// deadline cannot precede a finite wire deadline.
func deadlinesOrdered(refund, wire *Timestamp) bool {
	if refund == nil || wire == nil {
		return true
	}
	if wire.IsNever() {
		return true
	}
	if refund.IsNever() {
		return false
	}
	return wire.Seconds() >= refund.Seconds()
}

func deliveryInFuture(d *Timestamp, now time.Time) bool {
	if d == nil || d.IsNever() {
		return true
	}
	return d.Seconds() > uint64(max(now.Unix(), 0))
}

func itoa(i int) string { return fmt.Sprint(i) }
