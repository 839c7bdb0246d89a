package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingType is the sell-side format of a listing.
type ListingType string

const (
	ListingFixedPrice ListingType = "fixed_price"
	ListingAuction    ListingType = "auction"
	ListingLot        ListingType = "lot"
)

// ListingStatus is a state of the listing lifecycle.
type ListingStatus string

const (
	StatusDraft               ListingStatus = "draft"
	StatusInventoryRegistered ListingStatus = "inventory_registered"
	StatusOfferCreated        ListingStatus = "offer_created"
	StatusPublished           ListingStatus = "published"
	StatusActive              ListingStatus = "active"
	StatusEnded               ListingStatus = "ended"
	StatusFailed              ListingStatus = "failed"
)

var transitions = map[ListingStatus][]ListingStatus{
	StatusDraft:               {StatusInventoryRegistered, StatusFailed},
	StatusInventoryRegistered: {StatusOfferCreated, StatusFailed},
	StatusOfferCreated:        {StatusPublished, StatusFailed},
	StatusPublished:           {StatusActive, StatusEnded, StatusFailed},
	StatusActive:              {StatusEnded},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s ListingStatus) CanTransition(next ListingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s ListingStatus) Terminal() bool {
	return s == StatusEnded || s == StatusFailed
}

// Live reports whether the record holds a public listing.
func (s ListingStatus) Live() bool {
	return s == StatusPublished || s == StatusActive
}

// Orphanable reports whether a record stuck in s may hold remote resources
// that were never published.
func (s ListingStatus) Orphanable() bool {
	return s == StatusInventoryRegistered || s == StatusOfferCreated
}

// EndReason is the reason code sent when a live listing is ended early.
type EndReason string

const (
	EndNotAvailable      EndReason = "NotAvailable"
	EndIncorrect         EndReason = "Incorrect"
	EndLostOrBroken      EndReason = "LostOrBroken"
	EndOtherListingError EndReason = "OtherListingError"
	EndSellToHighBidder  EndReason = "SellToHighBidder"
	EndRelisted          EndReason = "Relisted"
)

// Valid reports whether r is a known reason code.
func (r EndReason) Valid() bool {
	switch r {
	case EndNotAvailable, EndIncorrect, EndLostOrBroken, EndOtherListingError, EndSellToHighBidder, EndRelisted:
		return true
	}
	return false
}

// ListingRecord tracks one listing attempt through its lifecycle.
type ListingRecord struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	ItemRefs     []string        `json:"item_refs"`
	SKU          string          `json:"sku"`
	OfferID      string          `json:"offer_id,omitempty"`
	ListingID    string          `json:"listing_id,omitempty"`
	URL          string          `json:"url,omitempty"`
	Status       ListingStatus   `json:"status"`
	Price        decimal.Decimal `json:"price"`
	ListingType  ListingType     `json:"listing_type"`
	Marketplace  string          `json:"marketplace"`
	Policies     PolicyBundle    `json:"policies"`
	EndReason    EndReason       `json:"end_reason,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AuctionTerms holds the auction-only parts of a listing request.
type AuctionTerms struct {
	StartPrice decimal.Decimal  `json:"start_price"`
	Reserve    *decimal.Decimal `json:"reserve,omitempty"`
	BuyItNow   *decimal.Decimal `json:"buy_it_now,omitempty"`
	Duration   string           `json:"duration"`
}

// ReturnTerms is what the seller wants buyers offered on returns.
type ReturnTerms struct {
	Accepted   bool   `json:"accepted"`
	PeriodDays int    `json:"period_days,omitempty"`
	Payer      string `json:"payer,omitempty"`
}

// ListingRequest is everything needed to publish one listing. Items holds a
// single item unless Type is ListingLot.
type ListingRequest struct {
	UserID       string           `json:"user_id"`
	Items        []Item           `json:"items"`
	Type         ListingType      `json:"type"`
	Title        string           `json:"title,omitempty"`
	Description  string           `json:"description,omitempty"`
	CategoryID   string           `json:"category_id"`
	Price        decimal.Decimal  `json:"price"`
	Auction      *AuctionTerms    `json:"auction,omitempty"`
	ShippingCost *decimal.Decimal `json:"shipping_cost,omitempty"`
	ShippingTier string           `json:"shipping_tier,omitempty"`
	Returns      *ReturnTerms     `json:"returns,omitempty"`
	ImageURLs    []string         `json:"image_urls,omitempty"`
}

// ItemRefs returns the refs of every item in the request.
func (r ListingRequest) ItemRefs() []string {
	refs := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		refs = append(refs, it.Ref)
	}
	return refs
}

// BatchItemResult is the outcome of one request inside a batch.
type BatchItemResult struct {
	Index   int            `json:"index"`
	ItemRef string         `json:"item_ref"`
	Record  *ListingRecord `json:"record,omitempty"`
	Err     error          `json:"-"`
	Error   string         `json:"error,omitempty"`
}

// OK reports whether the request published.
func (r BatchItemResult) OK() bool { return r.Err == nil && r.Record != nil }

// BatchResult reports per-item outcomes of a batch publish.
type BatchResult struct {
	ID    string            `json:"id"`
	Items []BatchItemResult `json:"items"`
}

// Succeeded counts published items.
func (b BatchResult) Succeeded() int {
	n := 0
	for _, it := range b.Items {
		if it.OK() {
			n++
		}
	}
	return n
}

// Failed returns the results that did not publish.
func (b BatchResult) Failed() []BatchItemResult {
	var out []BatchItemResult
	for _, it := range b.Items {
		if !it.OK() {
			out = append(out, it)
		}
	}
	return out
}
