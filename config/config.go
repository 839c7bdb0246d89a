package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Marketplace Marketplace
	Storage     Storage
	Pricing     Pricing
	Publishing  Publishing
	Matching    Matching
}

// Marketplace configures the remote marketplace APIs and OAuth.
type Marketplace struct {
	APIBaseURL    string        `env:"EBAY_API_BASE_URL"    envDefault:"https://api.ebay.com"`
	WebBaseURL    string        `env:"EBAY_WEB_BASE_URL"    envDefault:"https://www.ebay.com"`
	AuthBaseURL   string        `env:"EBAY_AUTH_BASE_URL"   envDefault:"https://auth.ebay.com"`
	MarketplaceID string        `env:"EBAY_MARKETPLACE_ID"  envDefault:"EBAY_US"`
	Currency      string        `env:"EBAY_CURRENCY"        envDefault:"USD"`
	ClientID      string        `env:"EBAY_CLIENT_ID"`
	ClientSecret  string        `env:"EBAY_CLIENT_SECRET"`
	RedirectURI   string        `env:"EBAY_REDIRECT_URI"`
	Scopes        []string      `env:"EBAY_SCOPES"          envSeparator:"," envDefault:"https://api.ebay.com/oauth/api_scope/sell.inventory,https://api.ebay.com/oauth/api_scope/sell.account"`
	LocationKey   string        `env:"EBAY_MERCHANT_LOCATION_KEY" envDefault:"default"`
	HTTPTimeout   time.Duration `env:"EBAY_HTTP_TIMEOUT"    envDefault:"20s"`
	MaxRetries    int           `env:"MAX_RETRIES"          envDefault:"3"`
	ChromeBin     string        `env:"CHROME_BIN"`
}

// Storage configures the record store, cache and history sinks.
type Storage struct {
	RecordBackend string `env:"RECORD_BACKEND" envDefault:"sqlite"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"market"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"market123"`
	PostgresDB       string `env:"POSTGRES_DB"       envDefault:"market_db"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE"  envDefault:"disable"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/listings.db"`
	BoltPath   string `env:"BOLT_PATH"   envDefault:"./data/cache.db"`

	CompsDSN      string `env:"COMPS_PG_DSN"`
	CompsCSVPath  string `env:"COMPS_CSV_PATH"`
	CompsMaxConns int    `env:"COMPS_PG_MAX_CONNS" envDefault:"4"`
}

// Pricing configures comparable lookups.
type Pricing struct {
	CacheTTL       time.Duration `env:"PRICE_CACHE_TTL"        envDefault:"24h"`
	MinSample      int           `env:"PRICE_MIN_SAMPLE"       envDefault:"3"`
	PriceCeiling   float64       `env:"PRICE_CEILING"          envDefault:"100000"`
	SoldWithinDays int           `env:"PRICE_SOLD_WITHIN_DAYS" envDefault:"90"`
	SearchLimit    int           `env:"PRICE_SEARCH_LIMIT"     envDefault:"50"`
	QuotaPerWindow int           `env:"PRICE_QUOTA"            envDefault:"0"`
	QuotaWindow    time.Duration `env:"PRICE_QUOTA_WINDOW"     envDefault:"1h"`
}

// Publishing configures the listing publisher.
type Publishing struct {
	MaxConcurrency int     `env:"MAX_CONCURRENCY" envDefault:"3"`
	RateLimitMs    int     `env:"RATE_LIMIT_MS"   envDefault:"2000"`
	PriceFloor     float64 `env:"PRICE_FLOOR"     envDefault:"0.99"`
	TitleMaxLen    int     `env:"TITLE_MAX_LEN"   envDefault:"80"`

	FreeShippingThreshold float64 `env:"FREE_SHIPPING_THRESHOLD" envDefault:"0"`
	GradedShippingCost    float64 `env:"GRADED_SHIPPING_COST"    envDefault:"5.25"`
	EnvelopeShippingCost  float64 `env:"ENVELOPE_SHIPPING_COST"  envDefault:"1.32"`
	EnvelopeMaxPrice      float64 `env:"ENVELOPE_MAX_PRICE"      envDefault:"20"`
	TrackedShippingCost   float64 `env:"TRACKED_SHIPPING_COST"   envDefault:"4.50"`
	FlatShippingCost      float64 `env:"FLAT_SHIPPING_COST"      envDefault:"5.00"`
	CalculatedShipping    bool    `env:"CALCULATED_SHIPPING"     envDefault:"false"`
	CalculatedLotMinItems int     `env:"CALCULATED_LOT_MIN_ITEMS" envDefault:"25"`
	HandlingDays          int     `env:"HANDLING_DAYS"           envDefault:"1"`

	ReturnsAccepted   bool          `env:"RETURNS_ACCEPTED"    envDefault:"true"`
	ReturnPeriodDays  int           `env:"RETURN_PERIOD_DAYS"  envDefault:"30"`
	ReturnCostPayer   string        `env:"RETURN_COST_PAYER"   envDefault:"BUYER"`
	OrphanGracePeriod time.Duration `env:"ORPHAN_GRACE_PERIOD" envDefault:"15m"`
}

// Matching holds the keyword sets used by the planner and the classifier.
// They are heuristics, kept out of code so they can be tuned per deployment.
type Matching struct {
	GradingCompanies     []string `env:"MATCH_GRADING_COMPANIES"  envSeparator:"," envDefault:"PSA,BGS,CGC,SGC,TAG,BCCG,HGA"`
	CommonVariants       []string `env:"MATCH_COMMON_VARIANTS"    envSeparator:"," envDefault:"base,holo,non-holo,reverse holo,1st edition,unlimited"`
	IdentifierCategories []string `env:"MATCH_IDENTIFIER_CATEGORIES" envSeparator:"," envDefault:"pokemon,magic,yugioh,one piece,lorcana,tcg"`
	ExcludeKeywords      []string `env:"MATCH_EXCLUDE_KEYWORDS"   envSeparator:"," envDefault:"proxy,reprint,custom,digital,orica,fan art,replica"`
}

// Load reads the .env file and returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.Matching.normalise()
	return cfg, nil
}

// Default returns the configuration produced by an empty environment.
func Default() *Config {
	cfg := &Config{}
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	cfg.Matching.normalise()
	return cfg
}

// DSN returns the PostgreSQL connection string.
func (s Storage) DSN() string {
	return "host=" + s.PostgresHost +
		" port=" + s.PostgresPort +
		" user=" + s.PostgresUser +
		" password=" + s.PostgresPassword +
		" dbname=" + s.PostgresDB +
		" sslmode=" + s.PostgresSSLMode
}

func (m *Matching) normalise() {
	m.GradingCompanies = cleanList(m.GradingCompanies, strings.ToUpper)
	m.CommonVariants = cleanList(m.CommonVariants, strings.ToLower)
	m.IdentifierCategories = cleanList(m.IdentifierCategories, strings.ToLower)
	m.ExcludeKeywords = cleanList(m.ExcludeKeywords, strings.ToLower)
}

func cleanList(in []string, fold func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = fold(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
