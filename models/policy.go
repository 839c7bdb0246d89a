package models

import "github.com/shopspring/decimal"

// PolicyKind is one of the three seller-account policy resources.
type PolicyKind string

const (
	PolicyPayment     PolicyKind = "payment"
	PolicyReturn      PolicyKind = "return"
	PolicyFulfillment PolicyKind = "fulfillment"
)

// BusinessPolicy is a remote seller policy. The marketplace is the source of
// truth; locally only the id is remembered.
type BusinessPolicy[S any] struct {
	Kind  PolicyKind
	ID    string
	Name  string
	Shape S
}

// PaymentShape describes a payment policy. Auctions must not demand
// immediate payment; fixed-price listings do.
type PaymentShape struct {
	ImmediatePay bool
}

// ReturnShape describes a return policy.
type ReturnShape struct {
	Accepted   bool
	PeriodDays int
	Payer      string // BUYER or SELLER
}

// FulfillmentShape describes a domestic shipping policy.
type FulfillmentShape struct {
	ServiceCode  string
	Cost         decimal.Decimal
	FreeShipping bool
	Calculated   bool
	HandlingDays int
}

// PolicyBundle holds the three ids an offer must reference.
type PolicyBundle struct {
	PaymentID     string `json:"payment_policy_id"`
	ReturnID      string `json:"return_policy_id"`
	FulfillmentID string `json:"fulfillment_policy_id"`
}
