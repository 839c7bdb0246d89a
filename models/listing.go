package models

import "time"

// SearchMode selects between live listings and recently completed sales.
type SearchMode string

const (
	ModeActive SearchMode = "active"
	ModeSold   SearchMode = "sold"
)

// RawCandidate holds an unprocessed search result as returned by a search
// client. Prices are kept as text because sold-page scraping yields strings
// like "$10.00 to $20.00".
type RawCandidate struct {
	Title     string
	RawPrice  string
	Currency  string
	Date      string
	URL       string
	ImageURL  string
	Condition string
	Seller    string
	FetchedAt time.Time
	Source    string
}

// ListingCandidate is a normalized search result ready for classification.
type ListingCandidate struct {
	Title          string     `json:"title"`
	Price          float64    `json:"price"`
	Currency       string     `json:"currency"`
	EndOrStartDate *time.Time `json:"date,omitempty"`
	URL            string     `json:"url"`
	ImageRef       string     `json:"image,omitempty"`
	ConditionLabel string     `json:"condition,omitempty"`
	SellerRef      string     `json:"seller,omitempty"`
}

// MatchTier is the classification of a candidate against the source item.
type MatchTier string

const (
	TierExact     MatchTier = "exact"
	TierSimilar   MatchTier = "similar"
	TierDifferent MatchTier = "different"
)

// MatchResult is a candidate plus its tier and the query variant that found it.
type MatchResult struct {
	ListingCandidate
	Tier         MatchTier `json:"tier"`
	VariantLabel string    `json:"variant"`
	Reason       string    `json:"reason,omitempty"`
}

// TierCounts aggregates classification results per tier.
type TierCounts struct {
	Exact     int `json:"exact"`
	Similar   int `json:"similar"`
	Different int `json:"different"`
}

// Add records one result of the given tier.
func (c *TierCounts) Add(t MatchTier) {
	switch t {
	case TierExact:
		c.Exact++
	case TierSimilar:
		c.Similar++
	default:
		c.Different++
	}
}
