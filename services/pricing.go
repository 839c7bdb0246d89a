package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"collectibles-market/config"
	"collectibles-market/marketplace"
	"collectibles-market/models"
	"collectibles-market/storage"
	"collectibles-market/utils"
)

// PriceRequest is one pricing lookup. An empty Purpose prices the item as it
// is described (graded if it carries a grade, raw otherwise). An empty Mode
// searches active listings.
type PriceRequest struct {
	Item         models.Item
	Purpose      models.Purpose
	Mode         models.SearchMode
	UserID       string
	ForceRefresh bool
	MinSample    int
}

// PricingService runs the query ladder for an item and turns the matched
// comparables into a price estimate.
type PricingService struct {
	cfg      config.Pricing
	currency string
	planner  *Planner
	cleaner  *Cleaner
	matcher  *Matcher
	stats    *StatsEngine
	search   marketplace.SearchClient
	cache    *ResultCache
	quota    *QuotaLimiter
	comps    storage.CompsSink
	retry    *utils.RetryConfig
	logger   *utils.Logger
	now      func() time.Time
}

// NewPricingService wires the pricing pipeline. cache may be nil to disable
// result caching.
func NewPricingService(cfg *config.Config, search marketplace.SearchClient, cache *ResultCache, logger *utils.Logger) *PricingService {
	return &PricingService{
		cfg:      cfg.Pricing,
		currency: strings.ToUpper(cfg.Marketplace.Currency),
		planner:  NewPlanner(cfg.Matching),
		cleaner:  NewCleaner(logger, cfg.Marketplace.Currency),
		matcher:  NewMatcher(cfg.Matching),
		stats:    NewStatsEngine(logger),
		search:   search,
		cache:    cache,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.Marketplace.MaxRetries,
			BaseDelay:   500 * time.Millisecond,
			Logger:      logger,
			Retryable:   marketplace.IsRetryable,
		},
		logger: logger,
		now:    time.Now,
	}
}

// WithQuota enables per-caller lookup limits.
func (s *PricingService) WithQuota(q *QuotaLimiter) *PricingService {
	s.quota = q
	return s
}

// WithComps records the comparables behind every fresh estimate.
func (s *PricingService) WithComps(sink storage.CompsSink) *PricingService {
	s.comps = sink
	return s
}

// WithRetry replaces the search retry policy.
func (s *PricingService) WithRetry(r *utils.RetryConfig) *PricingService {
	s.retry = r
	return s
}

// WithClock replaces the clock stamped on results. Tests only.
func (s *PricingService) WithClock(now func() time.Time) *PricingService {
	s.now = now
	return s
}

// Estimate prices an item from comparable listings. Finding no comparables is
// a valid outcome reported through NoComparables. Search failures, quota
// exhaustion and cancellation are returned as errors.
func (s *PricingService) Estimate(ctx context.Context, req PriceRequest) (*models.PricingResult, error) {
	if strings.TrimSpace(req.Item.Name) == "" {
		return nil, fmt.Errorf("pricing: item name is required")
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = models.PurposeRaw
		if c, g := req.Item.GradeParts(); c != "" {
			purpose = models.GradedPurpose(c, g)
		}
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeActive
	}
	minSample := req.MinSample
	if minSample <= 0 {
		minSample = s.cfg.MinSample
	}
	if minSample <= 0 {
		minSample = 3
	}

	key := CacheKey(req.Item, purpose, mode)
	if s.cache != nil && !req.ForceRefresh {
		var cached models.PricingResult
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("[pricing] Cache read failed, fetching fresh: %v", err)
		} else if hit && cached.MinSample != minSample {
			s.logger.Debug("[pricing] Cached result for %s used min sample %d, want %d", req.Item.Name, cached.MinSample, minSample)
		} else if hit {
			s.logger.Debug("[pricing] Cache hit for %s (%s)", req.Item.Name, purpose)
			cached.FromCache = true
			return &cached, nil
		}
	}

	if err := s.quota.Allow(ctx, req.UserID); err != nil {
		return nil, err
	}

	result := &models.PricingResult{
		Key:       key,
		Item:      req.Item,
		Purpose:   purpose,
		Mode:      mode,
		MinSample: minSample,
		ByTier:    make(map[models.MatchTier]models.PriceStatistics),
	}

	variants := s.planner.Plan(req.Item, purpose, s.planner.IdentifierCentric(req.Item.Category))
	seen := utils.NewURLSet()
	usedIndex := -1

	for i, v := range variants {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pricing: %w", err)
		}

		raws, err := s.searchVariant(ctx, v, purpose, mode)
		if err != nil {
			return nil, fmt.Errorf("pricing: search %q: %w", v.Label, err)
		}
		result.VariantsTried = append(result.VariantsTried, v.Label)
		usedIndex = i

		var fresh []*models.ListingCandidate
		for _, c := range s.cleaner.Clean(raws) {
			if c.Currency != "" && s.currency != "" && c.Currency != s.currency {
				continue
			}
			if seen.Add(c.URL) {
				fresh = append(fresh, c)
			}
		}

		report := s.matcher.Classify(req.Item, purpose, fresh, v.Label)
		result.Matches = append(result.Matches, report.Results...)
		result.Counts.Exact += report.Counts.Exact
		result.Counts.Similar += report.Counts.Similar
		result.Counts.Different += report.Counts.Different

		s.logger.Info("[pricing] %s: %d results (exact %d, similar %d, different %d)",
			v.Label, len(fresh), report.Counts.Exact, report.Counts.Similar, report.Counts.Different)

		if pool, _ := Accepted(result.Matches, minSample); len(pool) >= minSample {
			break
		}
	}

	s.summarise(result, variants, usedIndex, minSample)
	result.ComputedAt = s.now().UTC()

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, result, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("[pricing] Cache write failed: %v", err)
		}
	}
	if s.comps != nil && len(result.Matches) > 0 {
		if err := s.comps.WriteComps(ctx, result); err != nil {
			s.logger.Warn("[pricing] Comparables sink failed: %v", err)
		}
	}
	return result, nil
}

func (s *PricingService) searchVariant(ctx context.Context, v models.QueryVariant, purpose models.Purpose, mode models.SearchMode) ([]*models.RawCandidate, error) {
	q := marketplace.SearchQuery{
		Text:  v.Text,
		Mode:  mode,
		Limit: s.cfg.SearchLimit,
	}
	if mode == models.ModeSold {
		q.SoldWithinDays = s.cfg.SoldWithinDays
	}
	if !purpose.IsGraded() {
		q.Condition = "used"
	}

	var raws []*models.RawCandidate
	err := s.retry.Do(ctx, "search "+v.Label, func() error {
		var err error
		raws, err = s.search.Search(ctx, q)
		return err
	})
	return raws, err
}

// summarise fills the per-tier and overall statistics of result.
func (s *PricingService) summarise(result *models.PricingResult, variants []models.QueryVariant, usedIndex, minSample int) {
	bounds := Bounds{Ceiling: s.cfg.PriceCeiling}

	byTier := map[models.MatchTier][]float64{}
	for _, m := range result.Matches {
		byTier[m.Tier] = append(byTier[m.Tier], m.Price)
	}
	for _, tier := range []models.MatchTier{models.TierExact, models.TierSimilar} {
		if st, ok := s.stats.Compute(byTier[tier], bounds); ok {
			result.ByTier[tier] = st
		}
	}

	pool, fallback := Accepted(result.Matches, minSample)
	prices := make([]float64, 0, len(pool))
	for _, m := range pool {
		prices = append(prices, m.Price)
	}

	st, ok := s.stats.Compute(prices, bounds)
	if !ok {
		result.NoComparables = true
		s.logger.Info("[pricing] No comparables for %s after %d queries", result.Item.Name, len(result.VariantsTried))
		return
	}
	if usedIndex >= 0 {
		st.UsedQueryLabel = variants[usedIndex].Label
	}
	st.FallbackUsed = fallback || usedIndex > 0
	result.Stats = &st
}
