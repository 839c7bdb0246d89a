package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collectibles-market/marketplace"
	"collectibles-market/models"
	"collectibles-market/storage"
	"collectibles-market/utils"
)

func testTerms() PolicyTerms {
	return PolicyTerms{
		Payment:     models.PaymentShape{ImmediatePay: true},
		Return:      models.ReturnShape{Accepted: true, PeriodDays: 30, Payer: "BUYER"},
		Fulfillment: models.FulfillmentShape{ServiceCode: "USPSGroundAdvantage", Cost: decimal.RequireFromString("4.50"), HandlingDays: 1},
	}
}

func TestEnsureBundleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	market := newFakeMarket()
	ids := storage.NewMemoryPolicyIDs()
	svc := NewPolicyService(market, ids, utils.NewSilentLogger())

	first, err := svc.EnsureBundle(ctx, "tok", testTerms())
	require.NoError(t, err)
	assert.NotEmpty(t, first.PaymentID)
	assert.NotEmpty(t, first.ReturnID)
	assert.NotEmpty(t, first.FulfillmentID)

	second, err := svc.EnsureBundle(ctx, "tok", testTerms())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, market.count("CreatePaymentPolicy"))
	assert.Equal(t, 1, market.count("CreateReturnPolicy"))
	assert.Equal(t, 1, market.count("CreateFulfillmentPolicy"))

	id, ok, err := ids.GetPolicyID(ctx, models.PolicyFulfillment, "cm-ship-USPSGroundAdvantage-4.50-h1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first.FulfillmentID, id)
}

func TestEnsureReusesEquivalentRemotePolicy(t *testing.T) {
	ctx := context.Background()
	market := newFakeMarket()
	// created by hand under another name, same terms
	market.returns = append(market.returns, marketplace.RemotePolicy[models.ReturnShape]{
		ID: "seller-ret", Name: "My returns", Shape: models.ReturnShape{Accepted: true, PeriodDays: 30, Payer: "buyer"},
	})
	r := NewReconciler(ReturnPolicies(market), nil, utils.NewSilentLogger())

	p, err := r.Ensure(ctx, "tok", models.ReturnShape{Accepted: true, PeriodDays: 30, Payer: "BUYER"})
	require.NoError(t, err)
	assert.Equal(t, "seller-ret", p.ID)
	assert.Zero(t, market.count("CreateReturnPolicy"))
}

func TestEnsurePrefersCachedID(t *testing.T) {
	ctx := context.Background()
	market := newFakeMarket()
	shape := models.PaymentShape{ImmediatePay: true}
	market.payments = []marketplace.RemotePolicy[models.PaymentShape]{
		{ID: "a", Name: "first", Shape: shape},
		{ID: "b", Name: "cm-payment-immediate", Shape: shape},
	}
	ids := storage.NewMemoryPolicyIDs()
	require.NoError(t, ids.PutPolicyID(ctx, models.PolicyPayment, "cm-payment-immediate", "b"))

	r := NewReconciler(PaymentPolicies(market), ids, utils.NewSilentLogger())
	p, err := r.Ensure(ctx, "tok", shape)
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID)
}

func TestEnsureStaleCachedIDIsIgnored(t *testing.T) {
	ctx := context.Background()
	market := newFakeMarket()
	ids := storage.NewMemoryPolicyIDs()
	require.NoError(t, ids.PutPolicyID(ctx, models.PolicyPayment, "cm-payment-immediate", "deleted"))

	r := NewReconciler(PaymentPolicies(market), ids, utils.NewSilentLogger())
	p, err := r.Ensure(ctx, "tok", models.PaymentShape{ImmediatePay: true})
	require.NoError(t, err)
	assert.NotEqual(t, "deleted", p.ID)
	assert.Equal(t, 1, market.count("CreatePaymentPolicy"))
}

func TestEnsureRecoversFromDuplicateName(t *testing.T) {
	ctx := context.Background()
	market := newFakeMarket()
	shape := models.PaymentShape{ImmediatePay: true}

	// a concurrent writer creates the policy between our list and create
	market.hooks["CreatePaymentPolicy"] = func() {
		market.payments = append(market.payments, marketplace.RemotePolicy[models.PaymentShape]{
			ID: "racer", Name: "cm-payment-immediate", Shape: shape,
		})
	}
	market.failures["CreatePaymentPolicy"] = &marketplace.RemoteRejection{
		Operation: "create payment policy",
		Status:    400,
		Errors:    []marketplace.RemoteError{{ErrorID: duplicatePolicyErrorID, Message: "Duplicate policy name"}},
	}

	r := NewReconciler(PaymentPolicies(market), nil, utils.NewSilentLogger())
	p, err := r.Ensure(ctx, "tok", shape)
	require.NoError(t, err)
	assert.Equal(t, "racer", p.ID)
	assert.Equal(t, 2, market.count("ListPaymentPolicies"))
}

func TestEnsureBundleNamesFailingKind(t *testing.T) {
	ctx := context.Background()
	market := newFakeMarket()
	market.failures["CreateReturnPolicy"] = &marketplace.RemoteRejection{
		Operation: "create return policy",
		Status:    400,
		Errors:    []marketplace.RemoteError{{ErrorID: 20403, Message: "Invalid return period"}},
	}
	svc := NewPolicyService(market, nil, utils.NewSilentLogger())

	_, err := svc.EnsureBundle(ctx, "tok", testTerms())
	var pr *marketplace.PolicyResolutionError
	require.ErrorAs(t, err, &pr)
	assert.Equal(t, models.PolicyReturn, pr.Kind)

	var rr *marketplace.RemoteRejection
	require.True(t, errors.As(err, &rr))
	assert.Equal(t, "Invalid return period", rr.Message())
	assert.Zero(t, market.count("ListFulfillmentPolicies"))
}

func TestEnsureRejectsBlankCreatedID(t *testing.T) {
	ctx := context.Background()
	market := newFakeMarket()
	market.blankIDs["CreatePaymentPolicy"] = true
	ids := storage.NewMemoryPolicyIDs()

	r := NewReconciler(PaymentPolicies(market), ids, utils.NewSilentLogger())
	_, err := r.Ensure(ctx, "tok", models.PaymentShape{ImmediatePay: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no policy id")

	_, ok, err := ids.GetPolicyID(ctx, models.PolicyPayment, "cm-payment-immediate")
	require.NoError(t, err)
	assert.False(t, ok, "a blank id is never cached")
}

func TestEnsureSkipsRemotePolicyWithoutID(t *testing.T) {
	ctx := context.Background()
	market := newFakeMarket()
	shape := models.PaymentShape{ImmediatePay: true}
	market.payments = append(market.payments, marketplace.RemotePolicy[models.PaymentShape]{
		Name: "cm-payment-immediate", Shape: shape,
	})

	r := NewReconciler(PaymentPolicies(market), nil, utils.NewSilentLogger())
	p, err := r.Ensure(ctx, "tok", shape)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 1, market.count("CreatePaymentPolicy"))
}

func TestEnsureBundleBlankIDIsPolicyFailure(t *testing.T) {
	market := newFakeMarket()
	market.blankIDs["CreateFulfillmentPolicy"] = true
	svc := NewPolicyService(market, nil, utils.NewSilentLogger())

	bundle, err := svc.EnsureBundle(context.Background(), "tok", testTerms())
	var pr *marketplace.PolicyResolutionError
	require.ErrorAs(t, err, &pr)
	assert.Equal(t, models.PolicyFulfillment, pr.Kind)
	assert.Empty(t, bundle.FulfillmentID)
}

func TestPolicyNames(t *testing.T) {
	api := newFakeMarket()
	assert.Equal(t, "cm-payment-standard", PaymentPolicies(api).Name(models.PaymentShape{}))
	assert.Equal(t, "cm-returns-none", ReturnPolicies(api).Name(models.ReturnShape{}))
	assert.Equal(t, "cm-returns-60d-seller", ReturnPolicies(api).Name(models.ReturnShape{Accepted: true, PeriodDays: 60, Payer: "SELLER"}))

	ful := FulfillmentPolicies(api)
	assert.Equal(t, "cm-ship-USPSPriority-calculated-h2", ful.Name(models.FulfillmentShape{ServiceCode: "USPSPriority", Calculated: true, HandlingDays: 2}))
	assert.Equal(t, "cm-ship-X-free-h1", ful.Name(models.FulfillmentShape{ServiceCode: "X", FreeShipping: true, HandlingDays: 1}))

	a := models.FulfillmentShape{ServiceCode: "X", Cost: decimal.RequireFromString("4.5")}
	b := models.FulfillmentShape{ServiceCode: "x", Cost: decimal.RequireFromString("4.50")}
	assert.True(t, ful.Equal(a, b))
	b.Cost = decimal.RequireFromString("5")
	assert.False(t, ful.Equal(a, b))
}
