// Package marketplace defines the boundary between the pricing and listing
// engine and an eBay-class marketplace: the search, policy, inventory and
// token collaborators, and the error taxonomy they report through.
package marketplace

import (
	"context"
	"fmt"

	"collectibles-market/models"
)

// SearchQuery is one outbound search.
type SearchQuery struct {
	Text           string
	Mode           models.SearchMode
	Condition      string // "new", "used" or "" for any
	SoldWithinDays int
	Limit          int
}

// SearchClient executes a query and returns raw candidates. Implementations
// are stateless; callers own retries.
type SearchClient interface {
	Search(ctx context.Context, q SearchQuery) ([]*models.RawCandidate, error)
}

// ModeRouter sends each query to the client registered for its mode.
type ModeRouter struct {
	Active SearchClient
	Sold   SearchClient
}

// Search implements SearchClient.
func (r *ModeRouter) Search(ctx context.Context, q SearchQuery) ([]*models.RawCandidate, error) {
	var c SearchClient
	switch q.Mode {
	case models.ModeSold:
		c = r.Sold
	default:
		c = r.Active
	}
	if c == nil {
		return nil, fmt.Errorf("marketplace: no search client for mode %q", q.Mode)
	}
	return c.Search(ctx, q)
}

// TokenSupplier returns a currently valid bearer token for a user, refreshing
// it when needed. It returns ErrNotConnected when the user has no usable
// credential.
type TokenSupplier interface {
	Token(ctx context.Context, userID string) (string, error)
}

// RemotePolicy is a policy as listed by the marketplace.
type RemotePolicy[S any] struct {
	ID    string
	Name  string
	Shape S
}

// PolicyAPI lists and creates the three seller policy kinds.
type PolicyAPI interface {
	ListPaymentPolicies(ctx context.Context, token string) ([]RemotePolicy[models.PaymentShape], error)
	CreatePaymentPolicy(ctx context.Context, token, name string, shape models.PaymentShape) (string, error)
	ListReturnPolicies(ctx context.Context, token string) ([]RemotePolicy[models.ReturnShape], error)
	CreateReturnPolicy(ctx context.Context, token, name string, shape models.ReturnShape) (string, error)
	ListFulfillmentPolicies(ctx context.Context, token string) ([]RemotePolicy[models.FulfillmentShape], error)
	CreateFulfillmentPolicy(ctx context.Context, token, name string, shape models.FulfillmentShape) (string, error)
}

// PackageSpec is the shipping package class of an inventory item.
type PackageSpec struct {
	WeightOz    float64
	LengthIn    float64
	WidthIn     float64
	HeightIn    float64
	PackageType string
}

// InventoryItem is the remote representation of a SKU.
type InventoryItem struct {
	SKU         string
	Title       string
	Description string
	Condition   string
	ConditionID string
	Aspects     map[string][]string
	ImageURLs   []string
	Quantity    int
	Package     PackageSpec
}

// Offer is a priced, policy-attached, not yet public inventory item.
type Offer struct {
	SKU               string
	CategoryID        string
	Format            string // FIXED_PRICE or AUCTION
	Quantity          int
	Description       string
	Price             string
	Currency          string
	AuctionStartPrice string
	AuctionReserve    string
	Duration          string
	Policies          models.PolicyBundle
	ShippingCost      string
	LocationKey       string
}

// OfferStatus is the remote view of an offer.
type OfferStatus struct {
	OfferID   string
	SKU       string
	Status    string // UNPUBLISHED or PUBLISHED
	ListingID string
}

// InventoryAPI registers inventory, manages offers and publishes them.
type InventoryAPI interface {
	PutInventoryItem(ctx context.Context, token string, item InventoryItem) error
	DeleteInventoryItem(ctx context.Context, token, sku string) error
	CreateOffer(ctx context.Context, token string, offer Offer) (string, error)
	GetOffer(ctx context.Context, token, offerID string) (*OfferStatus, error)
	ListOffers(ctx context.Context, token, sku string) ([]OfferStatus, error)
	PublishOffer(ctx context.Context, token, offerID string) (string, error)
	DeleteOffer(ctx context.Context, token, offerID string) error
	ListingURL(listingID string) string
}
