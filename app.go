package main

import (
	"context"
	"fmt"

	"collectibles-market/config"
	"collectibles-market/marketplace"
	"collectibles-market/marketplace/ebay"
	"collectibles-market/models"
	ebayscraper "collectibles-market/scraper/ebay"
	"collectibles-market/services"
	"collectibles-market/storage"
	"collectibles-market/utils"
)

// app holds the configuration and the resources opened for one command.
// Everything opened is closed by close in reverse order.
type app struct {
	cfg    *config.Config
	logger *utils.Logger

	bolt    *storage.BoltStore
	closers []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := utils.NewLoggerWithLevel(utils.ParseLevel(cfg.LogLevel))
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed: %v", err)
		}
	}
	a.closers = nil
}

// boltStore opens the local cache/counter/token file once.
func (a *app) boltStore() (*storage.BoltStore, error) {
	if a.bolt != nil {
		return a.bolt, nil
	}
	s, err := storage.OpenBolt(a.cfg.Storage.BoltPath)
	if err != nil {
		return nil, err
	}
	a.bolt = s
	a.onClose(s.Close)
	return s, nil
}

func (a *app) recordStore() (storage.RecordStore, error) {
	var (
		rs  storage.RecordStore
		err error
	)
	switch a.cfg.Storage.RecordBackend {
	case "postgres":
		rs, err = storage.NewPostgresRecords(a.cfg.Storage.DSN())
	case "sqlite", "":
		rs, err = storage.OpenSQLiteRecords(a.cfg.Storage.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown RECORD_BACKEND %q", a.cfg.Storage.RecordBackend)
	}
	if err != nil {
		return nil, err
	}
	a.onClose(rs.Close)
	return rs, nil
}

func (a *app) ebayClient(ctx context.Context) (*ebay.Client, error) {
	mc := a.cfg.Marketplace
	opts := ebay.Options{
		BaseURL:       mc.APIBaseURL,
		WebBaseURL:    mc.WebBaseURL,
		MarketplaceID: mc.MarketplaceID,
		Currency:      mc.Currency,
		Timeout:       mc.HTTPTimeout,
	}
	if mc.ClientID != "" && mc.ClientSecret != "" {
		opts.AppTokens = ebay.AppTokenSource(ctx, mc)
	}
	return ebay.NewClient(opts, a.logger)
}

func (a *app) tokenSupplier() (*ebay.UserTokenSupplier, error) {
	bs, err := a.boltStore()
	if err != nil {
		return nil, err
	}
	return ebay.NewUserTokenSupplier(a.cfg.Marketplace, bs, a.logger), nil
}

// pricingService wires search, cache, quota and the optional comparables
// sinks.
func (a *app) pricingService(ctx context.Context) (*services.PricingService, error) {
	client, err := a.ebayClient(ctx)
	if err != nil {
		return nil, err
	}
	sold := ebayscraper.New(a.cfg.Marketplace, a.logger)
	a.onClose(func() error { sold.Close(); return nil })

	bs, err := a.boltStore()
	if err != nil {
		return nil, err
	}

	router := &marketplace.ModeRouter{Active: client, Sold: sold}
	cache := services.NewResultCache(bs, a.cfg.Pricing.CacheTTL, a.logger)
	svc := services.NewPricingService(a.cfg, router, cache, a.logger).
		WithQuota(services.NewQuotaLimiter(bs, a.cfg.Pricing.QuotaPerWindow, a.cfg.Pricing.QuotaWindow))

	var sinks multiSink
	if dsn := a.cfg.Storage.CompsDSN; dsn != "" {
		pg, err := storage.NewPgxComps(ctx, dsn, a.cfg.Storage.CompsMaxConns)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	if path := a.cfg.Storage.CompsCSVPath; path != "" {
		csv, err := storage.NewCSVComps(path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, csv)
	}
	if len(sinks) > 0 {
		a.onClose(sinks.Close)
		svc.WithComps(sinks)
	}
	return svc, nil
}

func (a *app) publisher(ctx context.Context) (*services.Publisher, error) {
	client, err := a.ebayClient(ctx)
	if err != nil {
		return nil, err
	}
	bs, err := a.boltStore()
	if err != nil {
		return nil, err
	}
	records, err := a.recordStore()
	if err != nil {
		return nil, err
	}
	tokens := ebay.NewUserTokenSupplier(a.cfg.Marketplace, bs, a.logger)
	policies := services.NewPolicyService(client, bs, a.logger)
	return services.NewPublisher(a.cfg, tokens, client, policies, records, a.logger), nil
}

// multiSink fans comparables out to several sinks.
type multiSink []storage.CompsSink

func (m multiSink) WriteComps(ctx context.Context, r *models.PricingResult) error {
	var first error
	for _, s := range m {
		if err := s.WriteComps(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
