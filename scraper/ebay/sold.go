// Package ebay renders eBay's completed-listings search in a headless
// browser to collect recently sold items, which no public API exposes.
package ebay

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"collectibles-market/config"
	"collectibles-market/marketplace"
	"collectibles-market/models"
	"collectibles-market/utils"
)

const (
	source       = "ebay-sold"
	pageTimeout  = 60 * time.Second
	maxPageItems = 240
)

// soldDateLayout is the date format of the "Sold  Oct 3, 2026" caption.
const soldDateLayout = "Jan 2, 2006"

// Scraper implements marketplace.SearchClient for sold mode. One browser is
// started lazily and shared by every search; each search gets its own tab.
type Scraper struct {
	webBaseURL string
	chromeBin  string
	logger     *utils.Logger
	now        func() time.Time

	once        sync.Once
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelTabs  context.CancelFunc
	startErr    error

	// launch starts the browser behind ctx; later contexts derived from it
	// open tabs in the same process.
	launch func(ctx context.Context) error
}

var _ marketplace.SearchClient = (*Scraper)(nil)

// New creates a sold-listings Scraper. No browser starts until the first
// search.
func New(mc config.Marketplace, logger *utils.Logger) *Scraper {
	return &Scraper{
		webBaseURL: strings.TrimRight(mc.WebBaseURL, "/"),
		chromeBin:  mc.ChromeBin,
		logger:     logger,
		now:        time.Now,
		launch:     func(ctx context.Context) error { return chromedp.Run(ctx) },
	}
}

func (s *Scraper) start() {
	chromeBin := s.chromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	s.logger.Info("[ebay-sold] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	s.allocCtx, s.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	s.browserCtx, s.cancelTabs = chromedp.NewContext(s.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	if err := s.launch(s.browserCtx); err != nil {
		s.startErr = fmt.Errorf("ebay-sold: start browser: %w", err)
		s.logger.Error("[ebay-sold] %v", s.startErr)
	}
}

// Close shuts the browser down.
func (s *Scraper) Close() {
	if s.cancelTabs != nil {
		s.cancelTabs()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
}

// SearchURL builds the completed-and-sold search URL for q.
func (s *Scraper) SearchURL(q marketplace.SearchQuery) string {
	v := url.Values{}
	v.Set("_nkw", strings.TrimSpace(q.Text))
	v.Set("LH_Sold", "1")
	v.Set("LH_Complete", "1")
	v.Set("rt", "nc")
	limit := q.Limit
	if limit <= 0 || limit > maxPageItems {
		limit = 60
	}
	v.Set("_ipg", strconv.Itoa(limit))
	switch strings.ToLower(q.Condition) {
	case "new":
		v.Set("LH_ItemCondition", "1000")
	case "used":
		v.Set("LH_ItemCondition", "3000")
	}
	return s.webBaseURL + "/sch/i.html?" + v.Encode()
}

type soldCard struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Date      string `json:"date"`
	URL       string `json:"url"`
	Image     string `json:"image"`
	Condition string `json:"condition"`
	Seller    string `json:"seller"`
}

// Search implements marketplace.SearchClient. Only sold mode is served.
func (s *Scraper) Search(ctx context.Context, q marketplace.SearchQuery) ([]*models.RawCandidate, error) {
	if q.Mode != models.ModeSold {
		return nil, fmt.Errorf("ebay-sold: cannot serve %q searches", q.Mode)
	}
	s.once.Do(s.start)
	if s.startErr != nil {
		return nil, s.startErr
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, pageTimeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	pageURL := s.SearchURL(q)
	s.logger.Debug("[ebay-sold] Loading %s", pageURL)

	var cards []soldCard
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(1*time.Second),
		chromedp.Evaluate(extractCardsJS, &cards),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ebay-sold: chromedp search: %w", err)
	}

	out := s.toCandidates(cards, q.SoldWithinDays)
	s.logger.Debug("[ebay-sold] %q: %d cards, %d kept", q.Text, len(cards), len(out))
	return out, nil
}

func (s *Scraper) toCandidates(cards []soldCard, withinDays int) []*models.RawCandidate {
	now := s.now().UTC()
	var cutoff time.Time
	if withinDays > 0 {
		cutoff = now.AddDate(0, 0, -withinDays)
	}

	out := make([]*models.RawCandidate, 0, len(cards))
	for _, c := range cards {
		if c.URL == "" || strings.EqualFold(strings.TrimSpace(c.Title), "Shop on eBay") {
			continue
		}
		date := strings.TrimSpace(c.Date)
		if !cutoff.IsZero() {
			if t, ok := parseSoldDate(date); ok && t.Before(cutoff) {
				continue
			}
		}
		out = append(out, &models.RawCandidate{
			Title:     c.Title,
			RawPrice:  c.Price,
			Date:      date,
			URL:       c.URL,
			ImageURL:  c.Image,
			Condition: c.Condition,
			Seller:    c.Seller,
			FetchedAt: now,
			Source:    source,
		})
	}
	return out
}

func parseSoldDate(caption string) (time.Time, bool) {
	s := strings.TrimSpace(caption)
	if i := strings.Index(strings.ToLower(s), "sold"); i >= 0 {
		s = strings.TrimSpace(s[i+len("sold"):])
	}
	t, err := time.Parse(soldDateLayout, strings.Join(strings.Fields(s), " "))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

const extractCardsJS = `
(function() {
	var results = [];
	var seen = {};
	var cards = document.querySelectorAll('li.s-item, li.s-card');
	for (var i = 0; i < cards.length; i++) {
		var card = cards[i];
		var link = card.querySelector('a.s-item__link, a.su-link, a[href*="/itm/"]');
		var href = link ? link.href : '';
		if (!href || seen[href]) continue;
		seen[href] = true;

		var text = function(sel) {
			var el = card.querySelector(sel);
			return el ? el.innerText.trim() : '';
		};
		var img = card.querySelector('img');

		results.push({
			title:     text('.s-item__title, .s-card__title'),
			price:     text('.s-item__price, .s-card__price'),
			date:      text('.s-item__caption--signal, .s-item__title--tagblock .POSITIVE, .s-card__caption'),
			url:       href,
			image:     img ? (img.getAttribute('src') || '') : '',
			condition: text('.SECONDARY_INFO, .s-card__subtitle'),
			seller:    text('.s-item__seller-info-text')
		});
	}
	return results;
})()
`

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
