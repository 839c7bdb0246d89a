package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"collectibles-market/config"
	"collectibles-market/marketplace"
	"collectibles-market/models"
	"collectibles-market/storage"
	"collectibles-market/utils"
)

// ListingBaseURL is the public URL prefix of a published listing.
const ListingBaseURL = "https://www.ebay.com/itm/"

// Auction durations the marketplace accepts.
var auctionDurations = map[string]bool{
	"DAYS_1": true, "DAYS_3": true, "DAYS_5": true, "DAYS_7": true, "DAYS_10": true,
}

const (
	defaultAuctionDuration = "DAYS_7"
	buyItNowMinRatio       = 1.3
	maxSKULength           = 50
)

// Item condition enums for trading cards.
const (
	conditionGraded   = "LIKE_NEW"
	conditionIDGraded = "2750"
	conditionRaw      = "USED_VERY_GOOD"
	conditionIDRaw    = "4000"
)

// ItemMarker is the boundary to the inventory application: it is told when
// items go live and when they come back off the marketplace.
type ItemMarker interface {
	MarkListed(ctx context.Context, itemRefs []string, rec *models.ListingRecord) error
	MarkUnlisted(ctx context.Context, itemRefs []string) error
}

// Publisher walks listing requests through the listing lifecycle, persisting
// the record after every step so partial progress stays visible.
type Publisher struct {
	cfg           config.Publishing
	marketplaceID string
	currency      string
	locationKey   string
	tokens        marketplace.TokenSupplier
	inventory     marketplace.InventoryAPI
	policies      *PolicyService
	shipping      *ShippingPlanner
	records       storage.RecordStore
	marker        ItemMarker
	pacer         *utils.Pacer
	logger        *utils.Logger
	now           func() time.Time
}

func NewPublisher(
	cfg *config.Config,
	tokens marketplace.TokenSupplier,
	inventory marketplace.InventoryAPI,
	policies *PolicyService,
	records storage.RecordStore,
	logger *utils.Logger,
) *Publisher {
	return &Publisher{
		cfg:           cfg.Publishing,
		marketplaceID: cfg.Marketplace.MarketplaceID,
		currency:      cfg.Marketplace.Currency,
		locationKey:   cfg.Marketplace.LocationKey,
		tokens:        tokens,
		inventory:     inventory,
		policies:      policies,
		shipping:      NewShippingPlanner(cfg.Publishing),
		records:       records,
		pacer:         utils.NewPacer(cfg.Publishing.RateLimitMs),
		logger:        logger,
		now:           time.Now,
	}
}

// Pacer returns the pacer spacing remote creation calls. Batch pools draw on
// it so single and batch publishes share one budget.
func (p *Publisher) Pacer() *utils.Pacer {
	return p.pacer
}

// WithMarker sets the inventory application boundary.
func (p *Publisher) WithMarker(m ItemMarker) *Publisher {
	p.marker = m
	return p
}

// WithClock replaces the clock used for timestamps and SKUs. Tests only.
func (p *Publisher) WithClock(now func() time.Time) *Publisher {
	p.now = now
	return p
}

// listingPlan is a validated request with every derived value resolved.
type listingPlan struct {
	req       models.ListingRequest
	title     string
	price     decimal.Decimal
	format    string
	auction   *models.AuctionTerms
	returns   models.ReturnShape
	images    []string
	condition string
	condID    string
}

// Publish registers inventory, resolves policies, creates and publishes an
// offer, and confirms it is live. A remote failure marks the record Failed
// and keeps the remote code and message. Cancellation between steps leaves
// the record where it stopped so orphan cleanup can find it.
func (p *Publisher) Publish(ctx context.Context, req models.ListingRequest) (*models.ListingRecord, error) {
	plan, err := p.plan(req)
	if err != nil {
		return nil, err
	}

	token, err := p.tokens.Token(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}

	if err := p.clearStale(ctx, token, plan.req); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	rec := &models.ListingRecord{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		ItemRefs:    plan.req.ItemRefs(),
		SKU:         makeSKU(plan.req, now),
		Status:      models.StatusDraft,
		Price:       plan.price,
		ListingType: plan.req.Type,
		Marketplace: p.marketplaceID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("publisher: save draft: %w", err)
	}
	p.logger.Info("[publisher] Publishing %s as %s (%s)", rec.SKU, plan.req.Type, plan.title)

	decision := p.shipping.Decide(plan.req, plan.price)

	if err := p.register(ctx, token, rec, plan, decision); err != nil {
		return rec, err
	}
	if err := p.createOffer(ctx, token, rec, plan, decision); err != nil {
		return rec, err
	}
	if err := p.publishOffer(ctx, token, rec); err != nil {
		return rec, err
	}
	if err := p.confirm(ctx, token, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (p *Publisher) register(ctx context.Context, token string, rec *models.ListingRecord, plan *listingPlan, decision ShippingDecision) error {
	if err := p.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	item := marketplace.InventoryItem{
		SKU:         rec.SKU,
		Title:       plan.title,
		Description: describe(plan),
		Condition:   plan.condition,
		ConditionID: plan.condID,
		Aspects:     aspectsFor(plan.req),
		ImageURLs:   plan.images,
		Quantity:    1,
		Package:     decision.Package,
	}
	if err := p.inventory.PutInventoryItem(ctx, token, item); err != nil {
		return p.fail(ctx, token, rec, "register inventory", err)
	}
	return p.advance(ctx, rec, models.StatusInventoryRegistered)
}

func (p *Publisher) createOffer(ctx context.Context, token string, rec *models.ListingRecord, plan *listingPlan, decision ShippingDecision) error {
	bundle, err := p.policies.EnsureBundle(ctx, token, PolicyTerms{
		Payment:     models.PaymentShape{ImmediatePay: plan.format != "AUCTION"},
		Return:      plan.returns,
		Fulfillment: decision.Fulfillment(p.cfg.HandlingDays),
	})
	if err != nil {
		return p.fail(ctx, token, rec, "resolve policies", err)
	}
	rec.Policies = bundle

	offer := marketplace.Offer{
		SKU:         rec.SKU,
		CategoryID:  plan.req.CategoryID,
		Format:      plan.format,
		Quantity:    1,
		Description: describe(plan),
		Currency:    p.currency,
		Duration:    "GTC",
		Policies:    bundle,
		LocationKey: p.locationKey,
	}
	if plan.auction != nil {
		offer.AuctionStartPrice = plan.auction.StartPrice.StringFixed(2)
		if plan.auction.Reserve != nil {
			offer.AuctionReserve = plan.auction.Reserve.StringFixed(2)
		}
		if plan.auction.BuyItNow != nil {
			offer.Price = plan.auction.BuyItNow.StringFixed(2)
		}
		offer.Duration = plan.auction.Duration
	} else {
		offer.Price = plan.price.StringFixed(2)
	}
	if !decision.Free && !decision.Calculated {
		offer.ShippingCost = decision.Cost.StringFixed(2)
	}

	if err := p.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	offerID, err := p.inventory.CreateOffer(ctx, token, offer)
	if err != nil {
		return p.fail(ctx, token, rec, "create offer", err)
	}
	rec.OfferID = offerID
	return p.advance(ctx, rec, models.StatusOfferCreated)
}

func (p *Publisher) publishOffer(ctx context.Context, token string, rec *models.ListingRecord) error {
	if err := p.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	listingID, err := p.inventory.PublishOffer(ctx, token, rec.OfferID)
	if err != nil {
		return p.fail(ctx, token, rec, "publish offer", err)
	}
	rec.ListingID = listingID
	rec.URL = p.inventory.ListingURL(listingID)
	if rec.URL == "" {
		rec.URL = ListingBaseURL + listingID
	}
	return p.advance(ctx, rec, models.StatusPublished)
}

// confirm moves a published record to Active once the marketplace reports
// the offer as published. An unconfirmed record stays Published.
func (p *Publisher) confirm(ctx context.Context, token string, rec *models.ListingRecord) error {
	status, err := p.inventory.GetOffer(ctx, token, rec.OfferID)
	if err != nil {
		p.logger.Warn("[publisher] Could not confirm %s yet: %v", rec.SKU, err)
		return nil
	}
	if !strings.EqualFold(status.Status, "PUBLISHED") {
		p.logger.Info("[publisher] Offer %s reports %s, leaving record published", rec.OfferID, status.Status)
		return nil
	}
	if err := transition(rec, models.StatusActive); err != nil {
		return err
	}
	rec.UpdatedAt = p.now().UTC()

	if rec.ListingType == models.ListingLot {
		if err := p.records.ActivateLot(ctx, rec); err != nil {
			if errors.Is(err, storage.ErrLotConflict) {
				p.logger.Error("[publisher] Lot %s lost a member to another lot, ending it", rec.SKU)
				if derr := p.inventory.DeleteOffer(ctx, token, rec.OfferID); derr != nil {
					p.logger.Error("[publisher] Ending conflicting lot %s failed: %v", rec.SKU, derr)
				}
				rec.Status = models.StatusEnded
				rec.EndReason = models.EndOtherListingError
				rec.ErrorCode = "lot_conflict"
				rec.ErrorMessage = err.Error()
				if serr := p.records.Save(context.WithoutCancel(ctx), rec); serr != nil {
					p.logger.Error("[publisher] Saving ended lot %s failed: %v", rec.ID, serr)
				}
			}
			return fmt.Errorf("publisher: activate lot: %w", err)
		}
	} else if err := p.records.Save(ctx, rec); err != nil {
		return fmt.Errorf("publisher: save active: %w", err)
	}

	p.logger.Info("[publisher] %s is live at %s", rec.SKU, rec.URL)
	if p.marker != nil {
		if err := p.marker.MarkListed(ctx, rec.ItemRefs, rec); err != nil {
			p.logger.Warn("[publisher] Marking items listed failed: %v", err)
		}
	}
	return nil
}

// Confirm re-checks a Published record against the marketplace.
func (p *Publisher) Confirm(ctx context.Context, recordID string) (*models.ListingRecord, error) {
	rec, err := p.records.Get(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load %s: %w", recordID, err)
	}
	if rec.Status != models.StatusPublished {
		return rec, nil
	}
	token, err := p.tokens.Token(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}
	if err := p.confirm(ctx, token, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// End withdraws a live listing. The reason is recorded locally.
func (p *Publisher) End(ctx context.Context, recordID string, reason models.EndReason) (*models.ListingRecord, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: unknown end reason %q", marketplace.ErrInvalidListing, reason)
	}
	rec, err := p.records.Get(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load %s: %w", recordID, err)
	}
	if !rec.Status.Live() {
		return nil, fmt.Errorf("%w: record %s is %s, not live", marketplace.ErrInvalidListing, rec.ID, rec.Status)
	}

	token, err := p.tokens.Token(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}
	if err := p.inventory.DeleteOffer(ctx, token, rec.OfferID); err != nil {
		return nil, fmt.Errorf("publisher: end %s: %w", rec.SKU, err)
	}

	if err := transition(rec, models.StatusEnded); err != nil {
		return nil, err
	}
	rec.EndReason = reason
	rec.UpdatedAt = p.now().UTC()
	if rec.ListingType == models.ListingLot {
		err = p.records.ReleaseLot(ctx, rec)
	} else {
		err = p.records.Save(ctx, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("publisher: save ended: %w", err)
	}

	p.logger.Info("[publisher] Ended %s (%s)", rec.SKU, reason)
	if p.marker != nil {
		if err := p.marker.MarkUnlisted(ctx, rec.ItemRefs); err != nil {
			p.logger.Warn("[publisher] Marking items unlisted failed: %v", err)
		}
	}
	return rec, nil
}

// Relist ends a live listing and publishes req as a new record.
func (p *Publisher) Relist(ctx context.Context, recordID string, req models.ListingRequest) (*models.ListingRecord, error) {
	if _, err := p.plan(req); err != nil {
		return nil, err
	}
	if _, err := p.End(ctx, recordID, models.EndRelisted); err != nil {
		return nil, err
	}
	return p.Publish(ctx, req)
}

// FindOrphans lists records stuck before publication since before olderThan.
func (p *Publisher) FindOrphans(ctx context.Context, olderThan time.Time) ([]*models.ListingRecord, error) {
	recs, err := p.records.ListOrphans(ctx, olderThan)
	if err != nil {
		return nil, fmt.Errorf("publisher: list orphans: %w", err)
	}
	return recs, nil
}

// CleanupOrphan deletes whatever an interrupted publish left remotely and
// marks the record Failed.
func (p *Publisher) CleanupOrphan(ctx context.Context, rec *models.ListingRecord) error {
	token, err := p.tokens.Token(ctx, rec.UserID)
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	return p.cleanup(ctx, token, rec)
}

func (p *Publisher) cleanup(ctx context.Context, token string, rec *models.ListingRecord) error {
	if !rec.Status.Orphanable() {
		return fmt.Errorf("publisher: record %s is %s, not an orphan", rec.ID, rec.Status)
	}
	if err := p.removeRemote(ctx, token, rec); err != nil {
		return err
	}
	rec.Status = models.StatusFailed
	rec.ErrorCode = "orphaned"
	rec.ErrorMessage = "publish interrupted, remote resources removed"
	rec.UpdatedAt = p.now().UTC()
	if err := p.records.Save(ctx, rec); err != nil {
		return fmt.Errorf("publisher: save cleaned orphan: %w", err)
	}
	p.logger.Info("[publisher] Cleaned up orphan %s", rec.SKU)
	return nil
}

// removeRemote deletes the record's offers and inventory item. Offers are
// looked up by SKU too, since an offer may exist remotely before its id was
// saved. Resources already gone are not an error.
func (p *Publisher) removeRemote(ctx context.Context, token string, rec *models.ListingRecord) error {
	offerIDs := map[string]bool{}
	if rec.OfferID != "" {
		offerIDs[rec.OfferID] = true
	}
	offers, err := p.inventory.ListOffers(ctx, token, rec.SKU)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("publisher: list offers for %s: %w", rec.SKU, err)
	}
	for _, o := range offers {
		offerIDs[o.OfferID] = true
	}
	for id := range offerIDs {
		if err := p.inventory.DeleteOffer(ctx, token, id); err != nil && !isNotFound(err) {
			return fmt.Errorf("publisher: delete offer %s: %w", id, err)
		}
	}
	if err := p.inventory.DeleteInventoryItem(ctx, token, rec.SKU); err != nil && !isNotFound(err) {
		return fmt.Errorf("publisher: delete inventory %s: %w", rec.SKU, err)
	}
	return nil
}

// clearStale cleans up orphans holding the request's items and refuses items
// that are already live in another lot.
func (p *Publisher) clearStale(ctx context.Context, token string, req models.ListingRequest) error {
	for _, ref := range req.ItemRefs() {
		recs, err := p.records.ListByItem(ctx, ref)
		if err != nil {
			return fmt.Errorf("publisher: records for %s: %w", ref, err)
		}
		for _, rec := range recs {
			switch {
			case rec.Status.Orphanable():
				if err := p.cleanup(ctx, token, rec); err != nil {
					p.logger.Warn("[publisher] Orphan cleanup of %s failed: %v", rec.SKU, err)
				}
			case req.Type == models.ListingLot && rec.ListingType == models.ListingLot && rec.Status.Live():
				return fmt.Errorf("%w: %s: %v", marketplace.ErrInvalidListing, ref, storage.ErrLotConflict)
			}
		}
	}
	return nil
}

// fail marks rec Failed with the remote code and message, removes any remote
// resources already created, and returns the cause. Cancellation is not a
// failure: the record keeps its status and becomes an orphan.
func (p *Publisher) fail(ctx context.Context, token string, rec *models.ListingRecord, step string, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("publisher: %s: %w", step, cause)
	}

	bg := context.WithoutCancel(ctx)
	if rec.Status.Orphanable() {
		if err := p.removeRemote(bg, token, rec); err != nil {
			p.logger.Warn("[publisher] Removing partial listing %s failed: %v", rec.SKU, err)
		}
	}

	rec.Status = models.StatusFailed
	rec.ErrorCode, rec.ErrorMessage = errorDetails(cause)
	rec.UpdatedAt = p.now().UTC()
	if err := p.records.Save(bg, rec); err != nil {
		p.logger.Error("[publisher] Saving failed record %s: %v", rec.ID, err)
	}
	p.logger.Error("[publisher] %s failed for %s: %v", step, rec.SKU, cause)
	return fmt.Errorf("publisher: %s: %w", step, cause)
}

func (p *Publisher) advance(ctx context.Context, rec *models.ListingRecord, next models.ListingStatus) error {
	if err := transition(rec, next); err != nil {
		return err
	}
	rec.UpdatedAt = p.now().UTC()
	if err := p.records.Save(ctx, rec); err != nil {
		return fmt.Errorf("publisher: save %s: %w", next, err)
	}
	return nil
}

func transition(rec *models.ListingRecord, next models.ListingStatus) error {
	if !rec.Status.CanTransition(next) {
		return fmt.Errorf("publisher: illegal transition %s -> %s for %s", rec.Status, next, rec.ID)
	}
	rec.Status = next
	return nil
}

func errorDetails(err error) (code, message string) {
	var rr *marketplace.RemoteRejection
	var rl *marketplace.RateLimitedError
	var pr *marketplace.PolicyResolutionError
	switch {
	case errors.As(err, &pr):
		return "policy_" + string(pr.Kind), pr.Error()
	case errors.As(err, &rr):
		return rr.Code(), rr.Message()
	case errors.As(err, &rl):
		return "rate_limited", rl.Error()
	case errors.Is(err, marketplace.ErrNotConnected):
		return "not_connected", err.Error()
	}
	return "error", err.Error()
}

func isNotFound(err error) bool {
	var rr *marketplace.RemoteRejection
	return errors.As(err, &rr) && rr.Status == 404
}

// plan validates req and derives title, price and terms.
func (p *Publisher) plan(req models.ListingRequest) (*listingPlan, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", marketplace.ErrInvalidListing, fmt.Sprintf(format, args...))
	}

	if len(req.Items) == 0 {
		return nil, invalid("no items")
	}
	if req.Type == "" {
		req.Type = models.ListingFixedPrice
		if len(req.Items) > 1 {
			req.Type = models.ListingLot
		}
	}
	switch req.Type {
	case models.ListingLot:
		if len(req.Items) < 2 {
			return nil, invalid("a lot needs at least two items")
		}
	case models.ListingFixedPrice, models.ListingAuction:
		if len(req.Items) != 1 {
			return nil, invalid("%s listing takes exactly one item", req.Type)
		}
	default:
		return nil, invalid("unknown listing type %q", req.Type)
	}

	seen := map[string]bool{}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Ref) == "" {
			return nil, invalid("item %d has no ref", i)
		}
		if strings.TrimSpace(it.Name) == "" {
			return nil, invalid("item %s has no name", it.Ref)
		}
		if seen[it.Ref] {
			return nil, invalid("item %s appears twice", it.Ref)
		}
		seen[it.Ref] = true
	}
	if strings.TrimSpace(req.CategoryID) == "" {
		return nil, invalid("category id is required")
	}
	if req.ShippingCost != nil && req.ShippingCost.IsNegative() {
		return nil, invalid("shipping cost %s is negative", req.ShippingCost.StringFixed(2))
	}

	plan := &listingPlan{req: req, format: "FIXED_PRICE"}

	maxLen := p.cfg.TitleMaxLen
	if maxLen <= 0 {
		maxLen = 80
	}
	if t := strings.Join(strings.Fields(req.Title), " "); t != "" {
		if utf8.RuneCountInString(t) > maxLen {
			return nil, invalid("title is longer than %d characters", maxLen)
		}
		plan.title = t
	} else {
		plan.title = truncateWords(buildTitle(req), maxLen)
	}

	floor := decimal.NewFromFloat(p.cfg.PriceFloor).Round(2)
	if req.Type == models.ListingAuction {
		if req.Auction == nil {
			return nil, invalid("auction terms are required")
		}
		a := *req.Auction
		if !a.StartPrice.IsPositive() {
			return nil, invalid("auction start price must be positive")
		}
		a.StartPrice = decimal.Max(a.StartPrice.Round(2), floor)
		if a.Reserve != nil && a.Reserve.LessThan(a.StartPrice) {
			return nil, invalid("reserve %s is below start price %s", a.Reserve.StringFixed(2), a.StartPrice.StringFixed(2))
		}
		if a.BuyItNow != nil {
			minBIN := a.StartPrice.Mul(decimal.NewFromFloat(buyItNowMinRatio)).Round(2)
			if a.BuyItNow.LessThan(minBIN) {
				return nil, invalid("buy it now %s must be at least %s", a.BuyItNow.StringFixed(2), minBIN.StringFixed(2))
			}
		}
		if a.Duration == "" {
			a.Duration = defaultAuctionDuration
		}
		a.Duration = strings.ToUpper(a.Duration)
		if !auctionDurations[a.Duration] {
			return nil, invalid("unsupported auction duration %q", a.Duration)
		}
		plan.auction = &a
		plan.format = "AUCTION"
		plan.price = a.StartPrice
	} else {
		if !req.Price.IsPositive() {
			return nil, invalid("price must be positive")
		}
		plan.price = decimal.Max(req.Price.Round(2), floor)
	}

	plan.returns = models.ReturnShape{
		Accepted:   p.cfg.ReturnsAccepted,
		PeriodDays: p.cfg.ReturnPeriodDays,
		Payer:      strings.ToUpper(p.cfg.ReturnCostPayer),
	}
	if req.Returns != nil {
		plan.returns = models.ReturnShape{
			Accepted:   req.Returns.Accepted,
			PeriodDays: req.Returns.PeriodDays,
			Payer:      strings.ToUpper(req.Returns.Payer),
		}
	}
	if plan.returns.Accepted {
		if plan.returns.PeriodDays <= 0 {
			plan.returns.PeriodDays = 30
		}
		if plan.returns.Payer == "" {
			plan.returns.Payer = "BUYER"
		}
	} else {
		plan.returns.PeriodDays = 0
		plan.returns.Payer = ""
	}

	plan.images = req.ImageURLs
	if len(plan.images) == 0 {
		for _, it := range req.Items {
			plan.images = append(plan.images, it.ImageURLs...)
		}
	}

	plan.condition, plan.condID = conditionRaw, conditionIDRaw
	if req.Type != models.ListingLot && req.Items[0].Graded() {
		plan.condition, plan.condID = conditionGraded, conditionIDGraded
	}
	return plan, nil
}

// makeSKU builds a unique SKU from the primary item ref and a base36
// millisecond timestamp.
func makeSKU(req models.ListingRequest, now time.Time) string {
	var b strings.Builder
	for _, r := range req.Items[0].Ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	base := strings.Trim(b.String(), "-")
	if base == "" {
		base = "ITEM"
	}
	if req.Type == models.ListingLot {
		base = "LOT-" + base
	}
	suffix := "-" + strconv.FormatInt(now.UnixMilli(), 36)
	if len(base)+len(suffix) > maxSKULength {
		base = base[:maxSKULength-len(suffix)]
	}
	return strings.ToUpper(base + suffix)
}

func buildTitle(req models.ListingRequest) string {
	if req.Type == models.ListingLot {
		names := make([]string, 0, len(req.Items))
		for _, it := range req.Items {
			names = append(names, it.Name)
		}
		return fmt.Sprintf("Lot of %d: %s", len(req.Items), strings.Join(names, ", "))
	}

	it := req.Items[0]
	parts := []string{it.Year, it.Series, it.Name}
	if n := normaliseNumber(it.Number); n != "" {
		parts = append(parts, "#"+n)
	}
	parts = append(parts, it.Variant)
	if s := normaliseSerial(it.SerialNumber); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, it.GradeLabel())
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// truncateWords cuts s to at most max runes, at a word boundary when one
// exists.
func truncateWords(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)[:max]
	if i := strings.LastIndex(string(r), " "); i > 0 {
		return strings.TrimRight(string(r)[:i], " ,:")
	}
	return string(r)
}

func describe(plan *listingPlan) string {
	if d := strings.TrimSpace(plan.req.Description); d != "" {
		return d
	}
	if len(plan.req.Items) == 1 {
		if d := strings.TrimSpace(plan.req.Items[0].Description); d != "" {
			return d
		}
		return plan.title
	}
	lines := []string{plan.title, ""}
	for _, it := range plan.req.Items {
		lines = append(lines, "- "+buildTitle(models.ListingRequest{Items: []models.Item{it}}))
	}
	return strings.Join(lines, "\n")
}

func aspectsFor(req models.ListingRequest) map[string][]string {
	aspects := map[string][]string{}
	add := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			aspects[k] = []string{v}
		}
	}

	if req.Type == models.ListingLot {
		add("Number of Cards", strconv.Itoa(len(req.Items)))
		add("Graded", "No")
		if c := req.Items[0].Category; c != "" {
			add("Game", c)
		}
		return aspects
	}

	it := req.Items[0]
	add("Card Name", it.Name)
	add("Year Manufactured", it.Year)
	add("Set", it.Series)
	add("Card Number", normaliseNumber(it.Number))
	add("Parallel/Variety", it.Variant)
	add("Game", it.Category)
	add("Print Run", normaliseSerial(it.SerialNumber))
	if company, grade := it.GradeParts(); company != "" {
		add("Graded", "Yes")
		add("Professional Grader", company)
		add("Grade", grade)
	} else {
		add("Graded", "No")
		add("Card Condition", it.Condition)
	}
	return aspects
}
