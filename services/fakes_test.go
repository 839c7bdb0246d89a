package services

import (
	"context"
	"fmt"
	"sync"

	"collectibles-market/marketplace"
	"collectibles-market/models"
)

type staticTokens struct {
	err error
}

func (s staticTokens) Token(_ context.Context, userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-" + userID, nil
}

// fakeMarket is an in-memory seller account: policies, inventory and offers.
type fakeMarket struct {
	mu sync.Mutex
	n  int

	payments     []marketplace.RemotePolicy[models.PaymentShape]
	returns      []marketplace.RemotePolicy[models.ReturnShape]
	fulfillments []marketplace.RemotePolicy[models.FulfillmentShape]

	inventory map[string]marketplace.InventoryItem
	offers    map[string]*marketplace.OfferStatus
	created   []marketplace.Offer

	calls map[string]int

	// failures keyed by operation name; a nil entry means success
	failures map[string]error
	// hooks run before an operation, after counting it
	hooks map[string]func()
	// blankIDs lists create operations that succeed without returning an id
	blankIDs map[string]bool
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		inventory: map[string]marketplace.InventoryItem{},
		offers:    map[string]*marketplace.OfferStatus{},
		calls:     map[string]int{},
		failures:  map[string]error{},
		hooks:     map[string]func(){},
		blankIDs:  map[string]bool{},
	}
}

func (f *fakeMarket) enter(op string) error {
	f.calls[op]++
	if h := f.hooks[op]; h != nil {
		h()
	}
	return f.failures[op]
}

func (f *fakeMarket) nextID(prefix string) string {
	f.n++
	return fmt.Sprintf("%s-%d", prefix, f.n)
}

func (f *fakeMarket) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeMarket) ListPaymentPolicies(context.Context, string) ([]marketplace.RemotePolicy[models.PaymentShape], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListPaymentPolicies"); err != nil {
		return nil, err
	}
	return append([]marketplace.RemotePolicy[models.PaymentShape](nil), f.payments...), nil
}

func (f *fakeMarket) CreatePaymentPolicy(_ context.Context, _, name string, shape models.PaymentShape) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreatePaymentPolicy"); err != nil {
		return "", err
	}
	if f.blankIDs["CreatePaymentPolicy"] {
		return "", nil
	}
	id := f.nextID("pay")
	f.payments = append(f.payments, marketplace.RemotePolicy[models.PaymentShape]{ID: id, Name: name, Shape: shape})
	return id, nil
}

func (f *fakeMarket) ListReturnPolicies(context.Context, string) ([]marketplace.RemotePolicy[models.ReturnShape], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListReturnPolicies"); err != nil {
		return nil, err
	}
	return append([]marketplace.RemotePolicy[models.ReturnShape](nil), f.returns...), nil
}

func (f *fakeMarket) CreateReturnPolicy(_ context.Context, _, name string, shape models.ReturnShape) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateReturnPolicy"); err != nil {
		return "", err
	}
	if f.blankIDs["CreateReturnPolicy"] {
		return "", nil
	}
	id := f.nextID("ret")
	f.returns = append(f.returns, marketplace.RemotePolicy[models.ReturnShape]{ID: id, Name: name, Shape: shape})
	return id, nil
}

func (f *fakeMarket) ListFulfillmentPolicies(context.Context, string) ([]marketplace.RemotePolicy[models.FulfillmentShape], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListFulfillmentPolicies"); err != nil {
		return nil, err
	}
	return append([]marketplace.RemotePolicy[models.FulfillmentShape](nil), f.fulfillments...), nil
}

func (f *fakeMarket) CreateFulfillmentPolicy(_ context.Context, _, name string, shape models.FulfillmentShape) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateFulfillmentPolicy"); err != nil {
		return "", err
	}
	if f.blankIDs["CreateFulfillmentPolicy"] {
		return "", nil
	}
	id := f.nextID("ful")
	f.fulfillments = append(f.fulfillments, marketplace.RemotePolicy[models.FulfillmentShape]{ID: id, Name: name, Shape: shape})
	return id, nil
}

func (f *fakeMarket) PutInventoryItem(_ context.Context, _ string, item marketplace.InventoryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutInventoryItem"); err != nil {
		return err
	}
	f.inventory[item.SKU] = item
	return nil
}

func (f *fakeMarket) DeleteInventoryItem(_ context.Context, _, sku string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteInventoryItem"); err != nil {
		return err
	}
	if _, ok := f.inventory[sku]; !ok {
		return &marketplace.RemoteRejection{Operation: "delete inventory item", Status: 404}
	}
	delete(f.inventory, sku)
	return nil
}

func (f *fakeMarket) CreateOffer(_ context.Context, _ string, offer marketplace.Offer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateOffer"); err != nil {
		return "", err
	}
	id := f.nextID("offer")
	f.offers[id] = &marketplace.OfferStatus{OfferID: id, SKU: offer.SKU, Status: "UNPUBLISHED"}
	f.created = append(f.created, offer)
	return id, nil
}

func (f *fakeMarket) GetOffer(_ context.Context, _, offerID string) (*marketplace.OfferStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetOffer"); err != nil {
		return nil, err
	}
	o, ok := f.offers[offerID]
	if !ok {
		return nil, &marketplace.RemoteRejection{Operation: "get offer", Status: 404}
	}
	cp := *o
	return &cp, nil
}

func (f *fakeMarket) ListOffers(_ context.Context, _, sku string) ([]marketplace.OfferStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListOffers"); err != nil {
		return nil, err
	}
	var out []marketplace.OfferStatus
	for _, o := range f.offers {
		if o.SKU == sku {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeMarket) PublishOffer(_ context.Context, _, offerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PublishOffer"); err != nil {
		return "", err
	}
	o, ok := f.offers[offerID]
	if !ok {
		return "", &marketplace.RemoteRejection{Operation: "publish offer", Status: 404}
	}
	o.Status = "PUBLISHED"
	o.ListingID = f.nextID("listing")
	return o.ListingID, nil
}

func (f *fakeMarket) DeleteOffer(_ context.Context, _, offerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteOffer"); err != nil {
		return err
	}
	if _, ok := f.offers[offerID]; !ok {
		return &marketplace.RemoteRejection{Operation: "delete offer", Status: 404}
	}
	delete(f.offers, offerID)
	return nil
}

func (f *fakeMarket) ListingURL(listingID string) string {
	return "https://market.test/itm/" + listingID
}
