package models

import (
	"encoding/json"
	"time"
)

// Attribute names one discriminating field of an item used in a query.
type Attribute string

const (
	AttrName    Attribute = "name"
	AttrYear    Attribute = "year"
	AttrSeries  Attribute = "series"
	AttrNumber  Attribute = "number"
	AttrVariant Attribute = "variant"
	AttrGrade   Attribute = "grade"
	AttrSerial  Attribute = "serial"
)

// QueryVariant is one specificity level of a search string.
type QueryVariant struct {
	Text        string      `json:"text"`
	Specificity int         `json:"specificity"`
	Label       string      `json:"label"`
	Attributes  []Attribute `json:"attributes"`
}

// Has reports whether the variant includes the attribute.
func (v QueryVariant) Has(a Attribute) bool {
	for _, x := range v.Attributes {
		if x == a {
			return true
		}
	}
	return false
}

// PriceStatistics summarises the prices that survived outlier filtering.
type PriceStatistics struct {
	Low            float64 `json:"low"`
	Average        float64 `json:"average"`
	High           float64 `json:"high"`
	SampleSize     int     `json:"sample_size"`
	UsedQueryLabel string  `json:"used_query,omitempty"`
	FallbackUsed   bool    `json:"fallback_used"`
}

// PricingResult is the outcome of one pricing lookup, and the payload cached
// for it. Stats is nil when NoComparables is set.
type PricingResult struct {
	Key           string                        `json:"key"`
	Item          Item                          `json:"item"`
	Purpose       Purpose                       `json:"purpose"`
	Mode          SearchMode                    `json:"mode"`
	MinSample     int                           `json:"min_sample"`
	Stats         *PriceStatistics              `json:"stats,omitempty"`
	ByTier        map[MatchTier]PriceStatistics `json:"by_tier,omitempty"`
	Counts        TierCounts                    `json:"counts"`
	Matches       []MatchResult                 `json:"matches,omitempty"`
	VariantsTried []string                      `json:"variants_tried"`
	NoComparables bool                          `json:"no_comparables"`
	FromCache     bool                          `json:"-"`
	ComputedAt    time.Time                     `json:"computed_at"`
}

// CacheEntry is the stored form of a cached lookup. Entries are replaced,
// never mutated.
type CacheEntry struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the entry must no longer be served at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
