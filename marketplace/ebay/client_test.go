package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"collectibles-market/marketplace"
	"collectibles-market/models"
	"collectibles-market/utils"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{
		BaseURL:    srv.URL,
		WebBaseURL: "https://www.ebay.test",
		AppTokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "app-token"}),
	}, utils.NewSilentLogger())
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Options{}, utils.NewSilentLogger())
	assert.Error(t, err)
}

func TestDoMapsStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, marketplace.ErrNotConnected)
			},
		},
		{
			name:   "throttled",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "7"},
			check: func(t *testing.T, err error) {
				var rl *marketplace.RateLimitedError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 7*time.Second, rl.RetryAfter)
				assert.False(t, marketplace.IsRetryable(err))
			},
		},
		{
			name:   "unavailable",
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				var rl *marketplace.RateLimitedError
				require.ErrorAs(t, err, &rl)
				assert.Zero(t, rl.RetryAfter)
			},
		},
		{
			name:   "rejection",
			status: http.StatusBadRequest,
			body:   `{"errors":[{"errorId":25002,"domain":"API_INVENTORY","message":"A user error has occurred","longMessage":"Price is missing."}]}`,
			check: func(t *testing.T, err error) {
				var rr *marketplace.RemoteRejection
				require.ErrorAs(t, err, &rr)
				assert.Equal(t, http.StatusBadRequest, rr.Status)
				assert.Equal(t, "25002", rr.Code())
				assert.Equal(t, "Price is missing.", rr.Message())
			},
		},
		{
			name:   "rejection without body",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var rr *marketplace.RemoteRejection
				require.ErrorAs(t, err, &rr)
				assert.Equal(t, "http_404", rr.Code())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			err := c.do(context.Background(), "test op", "GET", "/x", "tok", nil, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 30*time.Second, retryAfter("30", now))
	assert.Equal(t, time.Minute, retryAfter(now.Add(time.Minute).Format(http.TimeFormat), now))
	assert.Zero(t, retryAfter("", now))
	assert.Zero(t, retryAfter("soon", now))
	assert.Zero(t, retryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/buy/browse/v1/item_summary/search", r.URL.Path)
		assert.Equal(t, "Wonder Card 12", r.URL.Query().Get("q"))
		assert.Equal(t, "conditions:{USED}", r.URL.Query().Get("filter"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		assert.Equal(t, "EBAY_US", r.Header.Get("X-EBAY-C-MARKETPLACE-ID"))
		_, _ = io.WriteString(w, `{
			"total": 2,
			"itemSummaries": [
				{"itemId":"v1|1|0","title":" Wonder Card #12 ","price":{"value":"10.5","currency":"USD"},
				 "itemWebUrl":"https://www.ebay.com/itm/1","condition":"Used","itemCreationDate":"2026-09-01T10:00:00.000Z",
				 "image":{"imageUrl":"https://i.ebayimg.com/1.jpg"},"seller":{"username":"cardshop"}},
				{"itemId":"v1|2|0","title":"Wonder Card 12","itemWebUrl":"https://www.ebay.com/itm/2"}
			]
		}`)
	}))

	got, err := c.Search(context.Background(), marketplace.SearchQuery{Text: "Wonder Card 12", Condition: "used"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Wonder Card #12", got[0].Title)
	assert.Equal(t, "10.50", got[0].RawPrice)
	assert.Equal(t, "USD", got[0].Currency)
	assert.Equal(t, "https://i.ebayimg.com/1.jpg", got[0].ImageURL)
	assert.Equal(t, "cardshop", got[0].Seller)
	assert.Equal(t, "ebay-browse", got[0].Source)
	assert.Empty(t, got[1].RawPrice)
}

func TestSearchRefusals(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.Search(context.Background(), marketplace.SearchQuery{Text: "x", Mode: models.ModeSold})
	assert.Error(t, err)

	c.appTokens = nil
	_, err = c.Search(context.Background(), marketplace.SearchQuery{Text: "x"})
	assert.ErrorIs(t, err, marketplace.ErrNotConnected)
}

// offerServer is a minimal Inventory API holding offers in memory.
type offerServer struct {
	mu        sync.Mutex
	items     map[string]inventoryItemBody
	offers    map[string]*offerBody
	lastOffer offerBody
}

func (s *offerServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	write := func(v any) { _ = json.NewEncoder(w).Encode(v) }

	switch {
	case r.Method == "PUT" && len(r.URL.Path) > len("/sell/inventory/v1/inventory_item/"):
		var body inventoryItemBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.items[r.URL.Path[len("/sell/inventory/v1/inventory_item/"):]] = body
		w.WriteHeader(http.StatusNoContent)
	case r.Method == "POST" && r.URL.Path == "/sell/inventory/v1/offer":
		var body offerBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		body.OfferID = "offer-1"
		body.Status = "UNPUBLISHED"
		s.lastOffer = body
		s.offers[body.OfferID] = &body
		w.WriteHeader(http.StatusCreated)
		write(map[string]string{"offerId": body.OfferID})
	case r.Method == "POST" && r.URL.Path == "/sell/inventory/v1/offer/offer-1/publish":
		o := s.offers["offer-1"]
		o.Status = "PUBLISHED"
		o.Listing = &struct {
			ListingID string `json:"listingId"`
		}{ListingID: "110001"}
		write(map[string]string{"listingId": "110001"})
	case r.Method == "GET" && r.URL.Path == "/sell/inventory/v1/offer/offer-1":
		o, ok := s.offers["offer-1"]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		write(o)
	case r.Method == "GET" && r.URL.Path == "/sell/inventory/v1/offer":
		var list []offerBody
		for _, o := range s.offers {
			if o.SKU == r.URL.Query().Get("sku") {
				list = append(list, *o)
			}
		}
		write(map[string]any{"offers": list})
	case r.Method == "DELETE" && r.URL.Path == "/sell/inventory/v1/offer/offer-1":
		delete(s.offers, "offer-1")
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
		write(map[string]any{"errors": []map[string]any{{"errorId": 25710, "message": "not found"}}})
	}
}

func TestOfferLifecycle(t *testing.T) {
	srv := &offerServer{items: map[string]inventoryItemBody{}, offers: map[string]*offerBody{}}
	c := newTestClient(t, srv)
	ctx := context.Background()

	err := c.PutInventoryItem(ctx, "tok", marketplace.InventoryItem{
		SKU:       "CARD-1-ABC",
		Title:     "Wonder Card #12",
		Condition: "USED_VERY_GOOD",
		Quantity:  1,
		Package:   marketplace.PackageSpec{WeightOz: 1, LengthIn: 6, WidthIn: 4, HeightIn: 0.25, PackageType: "LETTER"},
	})
	require.NoError(t, err)
	item := srv.items["CARD-1-ABC"]
	assert.Equal(t, "Wonder Card #12", item.Product.Title)
	require.NotNil(t, item.PackageWeightAndSize)
	assert.Equal(t, "OUNCE", item.PackageWeightAndSize.Weight.Unit)

	offerID, err := c.CreateOffer(ctx, "tok", marketplace.Offer{
		SKU:          "CARD-1-ABC",
		CategoryID:   "183454",
		Format:       "FIXED_PRICE",
		Quantity:     1,
		Price:        "20.00",
		Duration:     "GTC",
		ShippingCost: "1.32",
		Policies:     models.PolicyBundle{PaymentID: "p", ReturnID: "r", FulfillmentID: "f"},
	})
	require.NoError(t, err)
	assert.Equal(t, "offer-1", offerID)
	assert.Equal(t, "20.00", srv.lastOffer.PricingSummary.Price.Value)
	assert.Equal(t, "USD", srv.lastOffer.PricingSummary.Price.Currency)
	assert.Nil(t, srv.lastOffer.PricingSummary.AuctionStartPrice)
	require.Len(t, srv.lastOffer.ListingPolicies.ShippingCostOverrides, 1)
	assert.Equal(t, "1.32", srv.lastOffer.ListingPolicies.ShippingCostOverrides[0].ShippingCost.Value)
	assert.Equal(t, "f", srv.lastOffer.ListingPolicies.FulfillmentPolicyID)

	offers, err := c.ListOffers(ctx, "tok", "CARD-1-ABC")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "UNPUBLISHED", offers[0].Status)

	listingID, err := c.PublishOffer(ctx, "tok", offerID)
	require.NoError(t, err)
	assert.Equal(t, "110001", listingID)
	assert.Equal(t, "https://www.ebay.test/itm/110001", c.ListingURL(listingID))

	st, err := c.GetOffer(ctx, "tok", offerID)
	require.NoError(t, err)
	assert.Equal(t, "PUBLISHED", st.Status)
	assert.Equal(t, "110001", st.ListingID)

	require.NoError(t, c.DeleteOffer(ctx, "tok", offerID))
	_, err = c.GetOffer(ctx, "tok", offerID)
	var rr *marketplace.RemoteRejection
	require.True(t, errors.As(err, &rr))
	assert.Equal(t, http.StatusNotFound, rr.Status)
}

func TestFulfillmentPolicyRoundTrip(t *testing.T) {
	var created fulfillmentPolicy
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "POST":
			_ = json.NewDecoder(r.Body).Decode(&created)
			created.FulfillmentPolicyID = "ful-9"
			_ = json.NewEncoder(w).Encode(created)
		default:
			assert.Equal(t, "EBAY_US", r.URL.Query().Get("marketplace_id"))
			_ = json.NewEncoder(w).Encode(map[string]any{"fulfillmentPolicies": []fulfillmentPolicy{created}})
		}
	}))
	ctx := context.Background()
	shape := models.FulfillmentShape{ServiceCode: "USPSGroundAdvantage", Cost: decimal.RequireFromString("4.5"), HandlingDays: 2}

	id, err := c.CreateFulfillmentPolicy(ctx, "tok", "cm-ship-USPSGroundAdvantage-4.50-h2", shape)
	require.NoError(t, err)
	assert.Equal(t, "ful-9", id)
	assert.Equal(t, "FLAT_RATE", created.ShippingOptions[0].CostType)
	assert.Equal(t, "4.50", created.ShippingOptions[0].ShippingServices[0].ShippingCost.Value)

	list, err := c.ListFulfillmentPolicies(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ful-9", list[0].ID)
	assert.Equal(t, 2, list[0].Shape.HandlingDays)
	assert.True(t, shape.Cost.Equal(list[0].Shape.Cost))
	assert.Equal(t, shape.ServiceCode, list[0].Shape.ServiceCode)
}
