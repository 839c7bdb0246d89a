package ebay

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"collectibles-market/marketplace"
	"collectibles-market/models"
)

const accountPath = "/sell/account/v1"

type categoryType struct {
	Name string `json:"name"`
}

var allCategories = []categoryType{{Name: "ALL_EXCLUDING_MOTORS_VEHICLES"}}

type timeDuration struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type paymentPolicy struct {
	PaymentPolicyID string         `json:"paymentPolicyId,omitempty"`
	Name            string         `json:"name"`
	MarketplaceID   string         `json:"marketplaceId,omitempty"`
	CategoryTypes   []categoryType `json:"categoryTypes,omitempty"`
	ImmediatePay    bool           `json:"immediatePay"`
}

type returnPolicy struct {
	ReturnPolicyID          string         `json:"returnPolicyId,omitempty"`
	Name                    string         `json:"name"`
	MarketplaceID           string         `json:"marketplaceId,omitempty"`
	CategoryTypes           []categoryType `json:"categoryTypes,omitempty"`
	ReturnsAccepted         bool           `json:"returnsAccepted"`
	ReturnPeriod            *timeDuration  `json:"returnPeriod,omitempty"`
	ReturnShippingCostPayer string         `json:"returnShippingCostPayer,omitempty"`
}

type shippingService struct {
	ShippingServiceCode string  `json:"shippingServiceCode"`
	ShippingCost        *amount `json:"shippingCost,omitempty"`
	FreeShipping        bool    `json:"freeShipping"`
}

type shippingOption struct {
	OptionType       string            `json:"optionType"`
	CostType         string            `json:"costType"`
	ShippingServices []shippingService `json:"shippingServices"`
}

type fulfillmentPolicy struct {
	FulfillmentPolicyID string           `json:"fulfillmentPolicyId,omitempty"`
	Name                string           `json:"name"`
	MarketplaceID       string           `json:"marketplaceId,omitempty"`
	CategoryTypes       []categoryType   `json:"categoryTypes,omitempty"`
	HandlingTime        *timeDuration    `json:"handlingTime,omitempty"`
	ShippingOptions     []shippingOption `json:"shippingOptions,omitempty"`
}

func (c *Client) policyQuery() string {
	return "?marketplace_id=" + url.QueryEscape(c.marketplaceID)
}

// ListPaymentPolicies implements marketplace.PolicyAPI.
func (c *Client) ListPaymentPolicies(ctx context.Context, token string) ([]marketplace.RemotePolicy[models.PaymentShape], error) {
	var resp struct {
		PaymentPolicies []paymentPolicy `json:"paymentPolicies"`
	}
	if err := c.do(ctx, "list payment policies", "GET", accountPath+"/payment_policy"+c.policyQuery(), token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]marketplace.RemotePolicy[models.PaymentShape], 0, len(resp.PaymentPolicies))
	for _, p := range resp.PaymentPolicies {
		out = append(out, marketplace.RemotePolicy[models.PaymentShape]{
			ID:    p.PaymentPolicyID,
			Name:  p.Name,
			Shape: models.PaymentShape{ImmediatePay: p.ImmediatePay},
		})
	}
	return out, nil
}

// CreatePaymentPolicy implements marketplace.PolicyAPI.
func (c *Client) CreatePaymentPolicy(ctx context.Context, token, name string, shape models.PaymentShape) (string, error) {
	body := paymentPolicy{
		Name:          name,
		MarketplaceID: c.marketplaceID,
		CategoryTypes: allCategories,
		ImmediatePay:  shape.ImmediatePay,
	}
	var resp paymentPolicy
	if err := c.do(ctx, "create payment policy", "POST", accountPath+"/payment_policy", token, body, &resp); err != nil {
		return "", err
	}
	return resp.PaymentPolicyID, nil
}

// ListReturnPolicies implements marketplace.PolicyAPI.
func (c *Client) ListReturnPolicies(ctx context.Context, token string) ([]marketplace.RemotePolicy[models.ReturnShape], error) {
	var resp struct {
		ReturnPolicies []returnPolicy `json:"returnPolicies"`
	}
	if err := c.do(ctx, "list return policies", "GET", accountPath+"/return_policy"+c.policyQuery(), token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]marketplace.RemotePolicy[models.ReturnShape], 0, len(resp.ReturnPolicies))
	for _, p := range resp.ReturnPolicies {
		shape := models.ReturnShape{Accepted: p.ReturnsAccepted, Payer: p.ReturnShippingCostPayer}
		if p.ReturnPeriod != nil {
			shape.PeriodDays = p.ReturnPeriod.Value
		}
		out = append(out, marketplace.RemotePolicy[models.ReturnShape]{ID: p.ReturnPolicyID, Name: p.Name, Shape: shape})
	}
	return out, nil
}

// CreateReturnPolicy implements marketplace.PolicyAPI.
func (c *Client) CreateReturnPolicy(ctx context.Context, token, name string, shape models.ReturnShape) (string, error) {
	body := returnPolicy{
		Name:            name,
		MarketplaceID:   c.marketplaceID,
		CategoryTypes:   allCategories,
		ReturnsAccepted: shape.Accepted,
	}
	if shape.Accepted {
		body.ReturnPeriod = &timeDuration{Value: shape.PeriodDays, Unit: "DAY"}
		body.ReturnShippingCostPayer = strings.ToUpper(shape.Payer)
	}
	var resp returnPolicy
	if err := c.do(ctx, "create return policy", "POST", accountPath+"/return_policy", token, body, &resp); err != nil {
		return "", err
	}
	return resp.ReturnPolicyID, nil
}

// ListFulfillmentPolicies implements marketplace.PolicyAPI. Only the first
// domestic shipping service of each policy is considered.
func (c *Client) ListFulfillmentPolicies(ctx context.Context, token string) ([]marketplace.RemotePolicy[models.FulfillmentShape], error) {
	var resp struct {
		FulfillmentPolicies []fulfillmentPolicy `json:"fulfillmentPolicies"`
	}
	if err := c.do(ctx, "list fulfillment policies", "GET", accountPath+"/fulfillment_policy"+c.policyQuery(), token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]marketplace.RemotePolicy[models.FulfillmentShape], 0, len(resp.FulfillmentPolicies))
	for _, p := range resp.FulfillmentPolicies {
		out = append(out, marketplace.RemotePolicy[models.FulfillmentShape]{
			ID:    p.FulfillmentPolicyID,
			Name:  p.Name,
			Shape: fulfillmentShape(p),
		})
	}
	return out, nil
}

func fulfillmentShape(p fulfillmentPolicy) models.FulfillmentShape {
	var shape models.FulfillmentShape
	if p.HandlingTime != nil {
		shape.HandlingDays = p.HandlingTime.Value
	}
	for _, opt := range p.ShippingOptions {
		if opt.OptionType != "DOMESTIC" || len(opt.ShippingServices) == 0 {
			continue
		}
		svc := opt.ShippingServices[0]
		shape.ServiceCode = svc.ShippingServiceCode
		shape.Calculated = opt.CostType == "CALCULATED"
		shape.FreeShipping = svc.FreeShipping
		if svc.ShippingCost != nil {
			if d, err := decimal.NewFromString(svc.ShippingCost.Value); err == nil {
				shape.Cost = d
			}
		}
		break
	}
	return shape
}

// CreateFulfillmentPolicy implements marketplace.PolicyAPI.
func (c *Client) CreateFulfillmentPolicy(ctx context.Context, token, name string, shape models.FulfillmentShape) (string, error) {
	svc := shippingService{ShippingServiceCode: shape.ServiceCode, FreeShipping: shape.FreeShipping}
	costType := "FLAT_RATE"
	switch {
	case shape.Calculated:
		costType = "CALCULATED"
	case shape.FreeShipping:
		svc.ShippingCost = c.money("0.00")
	default:
		svc.ShippingCost = c.money(shape.Cost.StringFixed(2))
	}
	body := fulfillmentPolicy{
		Name:          name,
		MarketplaceID: c.marketplaceID,
		CategoryTypes: allCategories,
		HandlingTime:  &timeDuration{Value: shape.HandlingDays, Unit: "DAY"},
		ShippingOptions: []shippingOption{{
			OptionType:       "DOMESTIC",
			CostType:         costType,
			ShippingServices: []shippingService{svc},
		}},
	}
	var resp fulfillmentPolicy
	if err := c.do(ctx, "create fulfillment policy", "POST", accountPath+"/fulfillment_policy", token, body, &resp); err != nil {
		return "", err
	}
	return resp.FulfillmentPolicyID, nil
}
