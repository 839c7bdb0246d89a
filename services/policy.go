package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"collectibles-market/marketplace"
	"collectibles-market/models"
	"collectibles-market/storage"
	"collectibles-market/utils"
)

// duplicatePolicyErrorID is the marketplace error raised when a policy with
// the requested name already exists.
const duplicatePolicyErrorID = 20400

// PolicyKind describes how to list, create, compare and name one policy
// resource kind.
type PolicyKind[S any] struct {
	Kind   models.PolicyKind
	List   func(ctx context.Context, token string) ([]marketplace.RemotePolicy[S], error)
	Create func(ctx context.Context, token, name string, shape S) (string, error)
	Equal  func(a, b S) bool
	Name   func(S) string
}

// Reconciler finds or creates a remote policy matching a desired shape. The
// marketplace is the source of truth; only resolved ids are cached locally.
type Reconciler[S any] struct {
	kind   PolicyKind[S]
	ids    storage.PolicyIDCache
	logger *utils.Logger
}

func NewReconciler[S any](kind PolicyKind[S], ids storage.PolicyIDCache, logger *utils.Logger) *Reconciler[S] {
	return &Reconciler[S]{kind: kind, ids: ids, logger: logger}
}

// Ensure returns a remote policy equal to shape, creating one under a
// deterministic name if none exists. Repeating the call with the same shape
// returns the same id and creates nothing.
func (r *Reconciler[S]) Ensure(ctx context.Context, token string, shape S) (models.BusinessPolicy[S], error) {
	name := r.kind.Name(shape)

	existing, err := r.kind.List(ctx, token)
	if err != nil {
		return models.BusinessPolicy[S]{}, fmt.Errorf("list: %w", err)
	}

	if p, ok := r.pick(ctx, existing, name, shape); ok {
		return p, nil
	}

	id, err := r.kind.Create(ctx, token, name, shape)
	if err != nil {
		var rr *marketplace.RemoteRejection
		if !errors.As(err, &rr) || !isDuplicateName(rr) {
			return models.BusinessPolicy[S]{}, fmt.Errorf("create %q: %w", name, err)
		}
		// another writer created it between our list and create
		r.logger.Debug("[policy] %s policy %q already exists, re-reading", r.kind.Kind, name)
		existing, lerr := r.kind.List(ctx, token)
		if lerr != nil {
			return models.BusinessPolicy[S]{}, fmt.Errorf("list after duplicate: %w", lerr)
		}
		for _, p := range existing {
			if p.ID != "" && strings.EqualFold(p.Name, name) {
				return r.remember(ctx, p), nil
			}
		}
		return models.BusinessPolicy[S]{}, fmt.Errorf("create %q: %w", name, err)
	}

	if strings.TrimSpace(id) == "" {
		return models.BusinessPolicy[S]{}, fmt.Errorf("create %q: marketplace returned no policy id", name)
	}

	r.logger.Info("[policy] Created %s policy %q (%s)", r.kind.Kind, name, id)
	return r.remember(ctx, marketplace.RemotePolicy[S]{ID: id, Name: name, Shape: shape}), nil
}

// pick prefers the locally remembered id when it still exists remotely with
// the same shape, then the first remote policy of equal shape. Policies
// without an id are unusable and skipped.
func (r *Reconciler[S]) pick(ctx context.Context, existing []marketplace.RemotePolicy[S], name string, shape S) (models.BusinessPolicy[S], bool) {
	if r.ids != nil {
		cached, ok, err := r.ids.GetPolicyID(ctx, r.kind.Kind, name)
		if err != nil {
			r.logger.Warn("[policy] Reading cached %s policy id failed: %v", r.kind.Kind, err)
		}
		if ok {
			for _, p := range existing {
				if p.ID != "" && p.ID == cached && r.kind.Equal(p.Shape, shape) {
					return r.toPolicy(p), true
				}
			}
		}
	}
	for _, p := range existing {
		if p.ID != "" && r.kind.Equal(p.Shape, shape) {
			return r.remember(ctx, p), true
		}
	}
	return models.BusinessPolicy[S]{}, false
}

func (r *Reconciler[S]) remember(ctx context.Context, p marketplace.RemotePolicy[S]) models.BusinessPolicy[S] {
	if r.ids != nil {
		if err := r.ids.PutPolicyID(ctx, r.kind.Kind, r.kind.Name(p.Shape), p.ID); err != nil {
			r.logger.Warn("[policy] Caching %s policy id failed: %v", r.kind.Kind, err)
		}
	}
	return r.toPolicy(p)
}

func (r *Reconciler[S]) toPolicy(p marketplace.RemotePolicy[S]) models.BusinessPolicy[S] {
	return models.BusinessPolicy[S]{Kind: r.kind.Kind, ID: p.ID, Name: p.Name, Shape: p.Shape}
}

func isDuplicateName(rr *marketplace.RemoteRejection) bool {
	if rr.HasErrorID(duplicatePolicyErrorID) {
		return true
	}
	msg := strings.ToLower(rr.Message())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists")
}

// PaymentPolicies is the payment PolicyKind over api.
func PaymentPolicies(api marketplace.PolicyAPI) PolicyKind[models.PaymentShape] {
	return PolicyKind[models.PaymentShape]{
		Kind:   models.PolicyPayment,
		List:   api.ListPaymentPolicies,
		Create: api.CreatePaymentPolicy,
		Equal:  func(a, b models.PaymentShape) bool { return a == b },
		Name: func(s models.PaymentShape) string {
			if s.ImmediatePay {
				return "cm-payment-immediate"
			}
			return "cm-payment-standard"
		},
	}
}

// ReturnPolicies is the return PolicyKind over api. Period and payer only
// matter when returns are accepted.
func ReturnPolicies(api marketplace.PolicyAPI) PolicyKind[models.ReturnShape] {
	return PolicyKind[models.ReturnShape]{
		Kind:   models.PolicyReturn,
		List:   api.ListReturnPolicies,
		Create: api.CreateReturnPolicy,
		Equal: func(a, b models.ReturnShape) bool {
			if a.Accepted != b.Accepted {
				return false
			}
			return !a.Accepted || (a.PeriodDays == b.PeriodDays && strings.EqualFold(a.Payer, b.Payer))
		},
		Name: func(s models.ReturnShape) string {
			if !s.Accepted {
				return "cm-returns-none"
			}
			return fmt.Sprintf("cm-returns-%dd-%s", s.PeriodDays, strings.ToLower(s.Payer))
		},
	}
}

// FulfillmentPolicies is the fulfillment PolicyKind over api.
func FulfillmentPolicies(api marketplace.PolicyAPI) PolicyKind[models.FulfillmentShape] {
	return PolicyKind[models.FulfillmentShape]{
		Kind:   models.PolicyFulfillment,
		List:   api.ListFulfillmentPolicies,
		Create: api.CreateFulfillmentPolicy,
		Equal: func(a, b models.FulfillmentShape) bool {
			return strings.EqualFold(a.ServiceCode, b.ServiceCode) &&
				a.FreeShipping == b.FreeShipping &&
				a.Calculated == b.Calculated &&
				a.HandlingDays == b.HandlingDays &&
				(a.Calculated || a.FreeShipping || a.Cost.Equal(b.Cost))
		},
		Name: func(s models.FulfillmentShape) string {
			switch {
			case s.Calculated:
				return fmt.Sprintf("cm-ship-%s-calculated-h%d", s.ServiceCode, s.HandlingDays)
			case s.FreeShipping:
				return fmt.Sprintf("cm-ship-%s-free-h%d", s.ServiceCode, s.HandlingDays)
			}
			return fmt.Sprintf("cm-ship-%s-%s-h%d", s.ServiceCode, s.Cost.StringFixed(2), s.HandlingDays)
		},
	}
}

// PolicyTerms is the desired shape of all three policies for one listing.
type PolicyTerms struct {
	Payment     models.PaymentShape
	Return      models.ReturnShape
	Fulfillment models.FulfillmentShape
}

// PolicyService resolves the full policy bundle an offer needs.
type PolicyService struct {
	payment     *Reconciler[models.PaymentShape]
	returns     *Reconciler[models.ReturnShape]
	fulfillment *Reconciler[models.FulfillmentShape]
}

func NewPolicyService(api marketplace.PolicyAPI, ids storage.PolicyIDCache, logger *utils.Logger) *PolicyService {
	return &PolicyService{
		payment:     NewReconciler(PaymentPolicies(api), ids, logger),
		returns:     NewReconciler(ReturnPolicies(api), ids, logger),
		fulfillment: NewReconciler(FulfillmentPolicies(api), ids, logger),
	}
}

// EnsureBundle resolves payment, return and fulfillment policies in that
// order. The first failure is returned as a PolicyResolutionError naming the
// kind.
func (s *PolicyService) EnsureBundle(ctx context.Context, token string, terms PolicyTerms) (models.PolicyBundle, error) {
	var bundle models.PolicyBundle

	pay, err := s.payment.Ensure(ctx, token, terms.Payment)
	if err != nil {
		return bundle, &marketplace.PolicyResolutionError{Kind: models.PolicyPayment, Cause: err}
	}
	ret, err := s.returns.Ensure(ctx, token, terms.Return)
	if err != nil {
		return bundle, &marketplace.PolicyResolutionError{Kind: models.PolicyReturn, Cause: err}
	}
	ful, err := s.fulfillment.Ensure(ctx, token, terms.Fulfillment)
	if err != nil {
		return bundle, &marketplace.PolicyResolutionError{Kind: models.PolicyFulfillment, Cause: err}
	}

	bundle.PaymentID = pay.ID
	bundle.ReturnID = ret.ID
	bundle.FulfillmentID = ful.ID
	return bundle, nil
}
