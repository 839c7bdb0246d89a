package services

import (
	"testing"
	"time"

	"collectibles-market/models"
	"collectibles-market/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func TestCleanerParsePrice(t *testing.T) {
	c := NewCleaner(newTestLogger(), "USD")

	tests := []struct {
		raw  string
		want float64
	}{
		{"$120.00", 120},
		{"US $3,500.00", 3500},
		{"", 0},
		{"free", 0},
		{"$10.00 to $20.00", 10},
		{"GBP 99", 99},
	}

	for _, tt := range tests {
		got := c.parsePrice(tt.raw)
		if got != tt.want {
			t.Errorf("parsePrice(%q) = %.2f; want %.2f", tt.raw, got, tt.want)
		}
	}
}

func TestCleanerDetectCurrency(t *testing.T) {
	c := NewCleaner(newTestLogger(), "USD")

	tests := []struct {
		raw  string
		want string
	}{
		{"$12.00", "USD"},
		{"C $15.00", "CAD"},
		{"AU $15.00", "AUD"},
		{"£8.50", "GBP"},
		{"EUR 9,00", "EUR"},
		{"12.00", "USD"},
	}

	for _, tt := range tests {
		if got := c.detectCurrency(tt.raw); got != tt.want {
			t.Errorf("detectCurrency(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCleanerParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Sold  Oct 3, 2026", "2026-10-03"},
		{"2026-09-30T12:00:00.000Z", "2026-09-30"},
		{"2026-09-01", "2026-09-01"},
	}
	for _, tt := range tests {
		got := parseDate(tt.raw)
		if got == nil {
			t.Errorf("parseDate(%q) = nil; want %s", tt.raw, tt.want)
			continue
		}
		if s := got.Format("2006-01-02"); s != tt.want {
			t.Errorf("parseDate(%q) = %s; want %s", tt.raw, s, tt.want)
		}
	}

	if got := parseDate("yesterday"); got != nil {
		t.Errorf("parseDate(yesterday) = %v; want nil", got)
	}
}

func TestCleanerDeduplication(t *testing.T) {
	c := NewCleaner(newTestLogger(), "USD")

	raw := []*models.RawCandidate{
		{Title: "Wonder Card #12", RawPrice: "$10.00", URL: "https://www.ebay.com/itm/1?hash=abc"},
		{Title: "Wonder Card #12 dup", RawPrice: "$10.00", URL: "https://www.ebay.com/itm/1"},
		{Title: "Wonder Card #12 PSA 9", RawPrice: "$30.00", URL: "https://www.ebay.com/itm/2/"},
		{Title: "No link", RawPrice: "$5.00", URL: ""},
	}

	result := c.Clean(raw)
	if len(result) != 2 {
		t.Fatalf("expected 2 candidates after dedup, got %d", len(result))
	}
	if result[1].URL != "https://www.ebay.com/itm/2" {
		t.Errorf("URL not canonicalised: %q", result[1].URL)
	}
}

func TestCleanerNormalisesFields(t *testing.T) {
	c := NewCleaner(newTestLogger(), "GBP")
	fetched := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	result := c.Clean([]*models.RawCandidate{{
		Title:     "  Wonder   Card\t12  ",
		RawPrice:  "7.25",
		Date:      "Sold Sep 28, 2026",
		URL:       " https://www.ebay.com/itm/9 ",
		Condition: " Pre-owned ",
		FetchedAt: fetched,
	}})
	if len(result) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result))
	}
	got := result[0]
	if got.Title != "Wonder Card 12" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Currency != "GBP" {
		t.Errorf("Currency = %q; want default GBP", got.Currency)
	}
	if got.Price != 7.25 {
		t.Errorf("Price = %.2f", got.Price)
	}
	if got.ConditionLabel != "Pre-owned" {
		t.Errorf("ConditionLabel = %q", got.ConditionLabel)
	}
	if got.EndOrStartDate == nil || got.EndOrStartDate.Day() != 28 {
		t.Errorf("EndOrStartDate = %v", got.EndOrStartDate)
	}
}
