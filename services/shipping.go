package services

import (
	"strings"

	"github.com/shopspring/decimal"

	"collectibles-market/config"
	"collectibles-market/marketplace"
	"collectibles-market/models"
)

// PackageClass is the physical shipping class of a listing.
type PackageClass string

const (
	PackageGradedSlab  PackageClass = "graded_slab"
	PackageRawEnvelope PackageClass = "raw_envelope"
	PackageRawTracked  PackageClass = "raw_tracked"
	PackageLot         PackageClass = "lot"
)

// Service codes used by the fulfillment policies this engine creates.
const (
	serviceEnvelope = "US_eBayStandardEnvelope"
	serviceGround   = "USPSGroundAdvantage"
	servicePriority = "USPSPriority"
)

var packageSpecs = map[PackageClass]marketplace.PackageSpec{
	PackageGradedSlab:  {WeightOz: 8, LengthIn: 8, WidthIn: 5, HeightIn: 1.5, PackageType: "PACKAGE_THICK_ENVELOPE"},
	PackageRawEnvelope: {WeightOz: 1, LengthIn: 6, WidthIn: 4, HeightIn: 0.25, PackageType: "LETTER"},
	PackageRawTracked:  {WeightOz: 3, LengthIn: 7, WidthIn: 5, HeightIn: 0.5, PackageType: "PACKAGE_THICK_ENVELOPE"},
}

// lot packages grow with the number of cards
const (
	lotBaseWeightOz    = 4.0
	lotPerItemWeightOz = 0.2
)

// ShippingDecision is the shipping outcome for one listing.
type ShippingDecision struct {
	Class       PackageClass
	ServiceCode string
	Cost        decimal.Decimal
	Free        bool
	Calculated  bool
	Source      string // override, free_threshold, heuristic, calculated, flat
	Package     marketplace.PackageSpec
}

// Fulfillment returns the fulfillment policy shape for the decision.
func (d ShippingDecision) Fulfillment(handlingDays int) models.FulfillmentShape {
	return models.FulfillmentShape{
		ServiceCode:  d.ServiceCode,
		Cost:         d.Cost,
		FreeShipping: d.Free,
		Calculated:   d.Calculated,
		HandlingDays: handlingDays,
	}
}

// ShippingPlanner decides shipping cost and package class.
type ShippingPlanner struct {
	cfg config.Publishing
}

func NewShippingPlanner(cfg config.Publishing) *ShippingPlanner {
	return &ShippingPlanner{cfg: cfg}
}

// Decide applies, in priority order: an explicit override, the free-shipping
// threshold, the graded/raw/price heuristic for single items, carrier
// calculated shipping for large lots when enabled, and the flat fallback.
func (s *ShippingPlanner) Decide(req models.ListingRequest, price decimal.Decimal) ShippingDecision {
	class := s.Class(req, price)
	d := ShippingDecision{
		Class:       class,
		ServiceCode: serviceFor(class),
		Package:     s.Package(req, class),
	}

	switch {
	case req.ShippingCost != nil:
		d.Source = "override"
		d.Cost = req.ShippingCost.Round(2)
		d.Free = d.Cost.IsZero()
	case s.cfg.FreeShippingThreshold > 0 && price.GreaterThanOrEqual(decimal.NewFromFloat(s.cfg.FreeShippingThreshold)):
		d.Source = "free_threshold"
		d.Free = true
		d.Cost = decimal.Zero
	case class != PackageLot:
		d.Source = "heuristic"
		d.Cost = s.heuristicCost(class)
	case s.cfg.CalculatedShipping && len(req.Items) >= s.cfg.CalculatedLotMinItems:
		d.Source = "calculated"
		d.Calculated = true
		d.Cost = decimal.Zero
	default:
		d.Source = "flat"
		d.Cost = decimal.NewFromFloat(s.cfg.FlatShippingCost).Round(2)
	}
	return d
}

// Class picks the package class. A ShippingTier of "graded", "envelope" or
// "tracked" forces the class for single items.
func (s *ShippingPlanner) Class(req models.ListingRequest, price decimal.Decimal) PackageClass {
	if req.Type == models.ListingLot || len(req.Items) > 1 {
		return PackageLot
	}
	switch strings.ToLower(strings.TrimSpace(req.ShippingTier)) {
	case "graded":
		return PackageGradedSlab
	case "envelope":
		return PackageRawEnvelope
	case "tracked":
		return PackageRawTracked
	}
	if len(req.Items) == 1 && req.Items[0].Graded() {
		return PackageGradedSlab
	}
	if price.LessThan(decimal.NewFromFloat(s.cfg.EnvelopeMaxPrice)) {
		return PackageRawEnvelope
	}
	return PackageRawTracked
}

// Package returns the weight and dimensions for class.
func (s *ShippingPlanner) Package(req models.ListingRequest, class PackageClass) marketplace.PackageSpec {
	if class != PackageLot {
		return packageSpecs[class]
	}
	n := float64(len(req.Items))
	return marketplace.PackageSpec{
		WeightOz:    lotBaseWeightOz + lotPerItemWeightOz*n,
		LengthIn:    9,
		WidthIn:     6,
		HeightIn:    2 + n/100,
		PackageType: "USPS_LARGE_PACK",
	}
}

func (s *ShippingPlanner) heuristicCost(class PackageClass) decimal.Decimal {
	var cost float64
	switch class {
	case PackageGradedSlab:
		cost = s.cfg.GradedShippingCost
	case PackageRawEnvelope:
		cost = s.cfg.EnvelopeShippingCost
	default:
		cost = s.cfg.TrackedShippingCost
	}
	return decimal.NewFromFloat(cost).Round(2)
}

func serviceFor(class PackageClass) string {
	switch class {
	case PackageRawEnvelope:
		return serviceEnvelope
	case PackageLot:
		return servicePriority
	}
	return serviceGround
}
