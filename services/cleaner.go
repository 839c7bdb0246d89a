package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"collectibles-market/models"
	"collectibles-market/utils"
)

var (
	// priceRegexp captures numeric price values
	priceRegexp = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	// soldDateRegexp captures "Sold  Oct 3, 2026" style prefixes
	soldDateRegexp = regexp.MustCompile(`(?i)^\s*sold\s+`)
)

var currencySymbols = map[string]string{
	"$":    "USD",
	"us $": "USD",
	"c $":  "CAD",
	"au $": "AUD",
	"£":    "GBP",
	"€":    "EUR",
	"¥":    "JPY",
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"Jan 2, 2006",
	"Jan 02, 2006",
	"2 Jan 2006",
	"2006-01-02",
}

// Cleaner transforms raw search results into normalized candidates.
type Cleaner struct {
	logger          *utils.Logger
	defaultCurrency string
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger, defaultCurrency string) *Cleaner {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Cleaner{logger: logger, defaultCurrency: defaultCurrency}
}

// Clean processes raw candidates and returns cleaned records. Entries without
// a URL are dropped and URLs are de-duplicated.
func (c *Cleaner) Clean(raw []*models.RawCandidate) []*models.ListingCandidate {
	seen := make(map[string]struct{})
	result := make([]*models.ListingCandidate, 0, len(raw))

	for _, r := range raw {
		url := canonicalURL(r.URL)
		if url == "" {
			c.logger.Debug("[cleaner] Dropping candidate with empty URL: %s", r.Title)
			continue
		}

		if _, dup := seen[url]; dup {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", url)
			continue
		}
		seen[url] = struct{}{}

		currency := strings.ToUpper(strings.TrimSpace(r.Currency))
		if currency == "" {
			currency = c.detectCurrency(r.RawPrice)
		}

		result = append(result, &models.ListingCandidate{
			Title:          normaliseText(r.Title),
			Price:          c.parsePrice(r.RawPrice),
			Currency:       currency,
			EndOrStartDate: parseDate(r.Date),
			URL:            url,
			ImageRef:       strings.TrimSpace(r.ImageURL),
			ConditionLabel: normaliseText(r.Condition),
			SellerRef:      normaliseText(r.Seller),
		})
	}

	c.logger.Debug("[cleaner] Cleaned %d -> %d candidates (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// parsePrice extracts the first numeric value. Ranges such as
// "$10.00 to $20.00" resolve to their low end.
func (c *Cleaner) parsePrice(raw string) float64 {
	cleaned := strings.ReplaceAll(strings.ToLower(raw), ",", "")
	match := priceRegexp.FindString(cleaned)
	if match == "" {
		return 0
	}

	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return price
}

func (c *Cleaner) detectCurrency(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	// longest prefixes first so "us $" wins over "$"
	for _, sym := range []string{"us $", "c $", "au $", "$", "£", "€", "¥"} {
		if strings.HasPrefix(lower, sym) {
			return currencySymbols[sym]
		}
	}
	for _, code := range []string{"usd", "eur", "gbp", "cad", "aud", "jpy"} {
		if strings.Contains(lower, code) {
			return strings.ToUpper(code)
		}
	}
	return c.defaultCurrency
}

func parseDate(raw string) *time.Time {
	s := strings.TrimSpace(soldDateRegexp.ReplaceAllString(raw, ""))
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// canonicalURL drops tracking query strings so the same listing found by two
// query variants collapses to one candidate.
func canonicalURL(raw string) string {
	u := strings.TrimSpace(raw)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, "/")
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
