package ebay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"collectibles-market/marketplace"
	"collectibles-market/models"
)

const maxBrowseLimit = 200

type itemSummary struct {
	ItemID           string  `json:"itemId"`
	Title            string  `json:"title"`
	Price            *amount `json:"price"`
	ItemWebURL       string  `json:"itemWebUrl"`
	Condition        string  `json:"condition"`
	ItemCreationDate string  `json:"itemCreationDate"`
	ItemEndDate      string  `json:"itemEndDate"`
	Image            *struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
	Seller *struct {
		Username string `json:"username"`
	} `json:"seller"`
}

type searchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

// Search implements marketplace.SearchClient over the Browse API. Browse
// only sees live listings, so sold-mode queries are refused.
func (c *Client) Search(ctx context.Context, q marketplace.SearchQuery) ([]*models.RawCandidate, error) {
	if q.Mode == models.ModeSold {
		return nil, errors.New("ebay: browse search cannot return sold listings")
	}
	if c.appTokens == nil {
		return nil, fmt.Errorf("ebay: browse search: %w", marketplace.ErrNotConnected)
	}
	tok, err := c.appTokens.Token()
	if err != nil {
		return nil, fmt.Errorf("ebay: app token: %w: %v", marketplace.ErrNotConnected, err)
	}

	v := url.Values{}
	v.Set("q", strings.TrimSpace(q.Text))
	limit := q.Limit
	if limit <= 0 || limit > maxBrowseLimit {
		limit = 50
	}
	v.Set("limit", strconv.Itoa(limit))
	switch strings.ToLower(q.Condition) {
	case "new":
		v.Set("filter", "conditions:{NEW}")
	case "used":
		v.Set("filter", "conditions:{USED}")
	}

	var resp searchResponse
	if err := c.do(ctx, "browse search", "GET", "/buy/browse/v1/item_summary/search?"+v.Encode(), tok.AccessToken, nil, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]*models.RawCandidate, 0, len(resp.ItemSummaries))
	for _, it := range resp.ItemSummaries {
		rc := &models.RawCandidate{
			Title:     strings.TrimSpace(it.Title),
			URL:       strings.TrimSpace(it.ItemWebURL),
			Condition: it.Condition,
			Date:      it.ItemCreationDate,
			FetchedAt: now,
			Source:    "ebay-browse",
		}
		if it.Price != nil {
			if d, err := decimal.NewFromString(it.Price.Value); err == nil {
				rc.RawPrice = d.StringFixed(2)
			}
			rc.Currency = it.Price.Currency
		}
		if it.Image != nil {
			rc.ImageURL = it.Image.ImageURL
		}
		if it.Seller != nil {
			rc.Seller = it.Seller.Username
		}
		out = append(out, rc)
	}
	c.logger.Debug("[ebay] browse %q: %d of %d results", q.Text, len(out), resp.Total)
	return out, nil
}
