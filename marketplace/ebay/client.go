// Package ebay implements the marketplace collaborators over the eBay REST
// APIs: Browse search, Account policies and the Inventory offer lifecycle.
package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"collectibles-market/marketplace"
	"collectibles-market/utils"
)

// Options configures a Client.
type Options struct {
	BaseURL       string
	WebBaseURL    string
	MarketplaceID string
	Currency      string
	UserAgent     string
	Timeout       time.Duration
	// AppTokens supplies application tokens for Browse search. Without it
	// Search reports ErrNotConnected.
	AppTokens oauth2.TokenSource
}

// Client talks to the eBay REST APIs.
type Client struct {
	baseURL       string
	webBaseURL    string
	marketplaceID string
	currency      string
	userAgent     string
	client        *http.Client
	appTokens     oauth2.TokenSource
	logger        *utils.Logger
}

var (
	_ marketplace.SearchClient = (*Client)(nil)
	_ marketplace.PolicyAPI    = (*Client)(nil)
	_ marketplace.InventoryAPI = (*Client)(nil)
)

func NewClient(opts Options, logger *utils.Logger) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("ebay: BaseURL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("ebay: invalid BaseURL: %w", err)
	}
	to := opts.Timeout
	if to <= 0 {
		to = 20 * time.Second
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "collectibles-market/1.0"
	}
	web := strings.TrimRight(strings.TrimSpace(opts.WebBaseURL), "/")
	if web == "" {
		web = "https://www.ebay.com"
	}
	mid := opts.MarketplaceID
	if mid == "" {
		mid = "EBAY_US"
	}
	cur := opts.Currency
	if cur == "" {
		cur = "USD"
	}
	return &Client{
		baseURL:       strings.TrimRight(base, "/"),
		webBaseURL:    web,
		marketplaceID: mid,
		currency:      cur,
		userAgent:     ua,
		client:        &http.Client{Timeout: to},
		appTokens:     opts.AppTokens,
		logger:        logger,
	}, nil
}

// ListingURL implements marketplace.InventoryAPI.
func (c *Client) ListingURL(listingID string) string {
	return c.webBaseURL + "/itm/" + url.PathEscape(listingID)
}

type errorBody struct {
	Errors []marketplace.RemoteError `json:"errors"`
}

// do sends one JSON request and decodes a JSON response into out. Non-2xx
// responses are mapped onto the marketplace error taxonomy.
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ebay: %s: encode body: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("ebay: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplaceID)
	req.Header.Set("Content-Language", "en-US")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ebay: %s: %w", op, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	c.logger.Debug("[ebay] %s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	switch status := resp.StatusCode; {
	case status >= 200 && status < 300:
		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("ebay: %s: decode response: %w", op, err)
		}
		return nil
	case status == http.StatusUnauthorized:
		return fmt.Errorf("ebay: %s: %w", op, marketplace.ErrNotConnected)
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return &marketplace.RateLimitedError{Operation: op, RetryAfter: retryAfter(resp.Header.Get("Retry-After"), time.Now())}
	default:
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return &marketplace.RemoteRejection{Operation: op, Status: status, Errors: eb.Errors}
	}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h string, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// amount is the eBay money object.
type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency,omitempty"`
}

func (c *Client) money(v string) *amount {
	if v == "" {
		return nil
	}
	return &amount{Value: v, Currency: c.currency}
}
