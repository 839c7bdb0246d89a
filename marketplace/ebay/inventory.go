package ebay

import (
	"context"
	"net/url"
	"strconv"

	"collectibles-market/marketplace"
)

const inventoryPath = "/sell/inventory/v1"

type dimension struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   string  `json:"unit"`
}

type weight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type inventoryItemBody struct {
	Availability struct {
		ShipToLocationAvailability struct {
			Quantity int `json:"quantity"`
		} `json:"shipToLocationAvailability"`
	} `json:"availability"`
	Condition string `json:"condition"`
	Product   struct {
		Title       string              `json:"title"`
		Description string              `json:"description,omitempty"`
		Aspects     map[string][]string `json:"aspects,omitempty"`
		ImageURLs   []string            `json:"imageUrls,omitempty"`
	} `json:"product"`
	PackageWeightAndSize *packageWeightAndSize `json:"packageWeightAndSize,omitempty"`
}

type packageWeightAndSize struct {
	Dimensions  dimension `json:"dimensions"`
	PackageType string    `json:"packageType,omitempty"`
	Weight      weight    `json:"weight"`
}

type shippingCostOverride struct {
	Priority            int     `json:"priority"`
	ShippingServiceType string  `json:"shippingServiceType"`
	ShippingCost        *amount `json:"shippingCost"`
}

type offerBody struct {
	OfferID             string `json:"offerId,omitempty"`
	SKU                 string `json:"sku"`
	MarketplaceID       string `json:"marketplaceId"`
	Format              string `json:"format"`
	AvailableQuantity   int    `json:"availableQuantity"`
	CategoryID          string `json:"categoryId"`
	ListingDescription  string `json:"listingDescription,omitempty"`
	ListingDuration     string `json:"listingDuration,omitempty"`
	MerchantLocationKey string `json:"merchantLocationKey,omitempty"`
	Status              string `json:"status,omitempty"`
	ListingPolicies     struct {
		FulfillmentPolicyID   string                 `json:"fulfillmentPolicyId"`
		PaymentPolicyID       string                 `json:"paymentPolicyId"`
		ReturnPolicyID        string                 `json:"returnPolicyId"`
		ShippingCostOverrides []shippingCostOverride `json:"shippingCostOverrides,omitempty"`
	} `json:"listingPolicies"`
	PricingSummary struct {
		Price               *amount `json:"price,omitempty"`
		AuctionStartPrice   *amount `json:"auctionStartPrice,omitempty"`
		AuctionReservePrice *amount `json:"auctionReservePrice,omitempty"`
	} `json:"pricingSummary"`
	Listing *struct {
		ListingID string `json:"listingId"`
	} `json:"listing,omitempty"`
}

func (o offerBody) status() marketplace.OfferStatus {
	st := marketplace.OfferStatus{OfferID: o.OfferID, SKU: o.SKU, Status: o.Status}
	if o.Listing != nil {
		st.ListingID = o.Listing.ListingID
	}
	return st
}

// PutInventoryItem implements marketplace.InventoryAPI. PUT is an upsert, so
// repeating it is harmless.
func (c *Client) PutInventoryItem(ctx context.Context, token string, item marketplace.InventoryItem) error {
	var body inventoryItemBody
	body.Availability.ShipToLocationAvailability.Quantity = item.Quantity
	body.Condition = item.Condition
	body.Product.Title = item.Title
	body.Product.Description = item.Description
	body.Product.Aspects = item.Aspects
	body.Product.ImageURLs = item.ImageURLs
	if pkg := item.Package; pkg.WeightOz > 0 {
		body.PackageWeightAndSize = &packageWeightAndSize{
			Dimensions:  dimension{Length: pkg.LengthIn, Width: pkg.WidthIn, Height: pkg.HeightIn, Unit: "INCH"},
			PackageType: pkg.PackageType,
			Weight:      weight{Value: pkg.WeightOz, Unit: "OUNCE"},
		}
	}
	return c.do(ctx, "put inventory item", "PUT", inventoryPath+"/inventory_item/"+url.PathEscape(item.SKU), token, body, nil)
}

// DeleteInventoryItem implements marketplace.InventoryAPI.
func (c *Client) DeleteInventoryItem(ctx context.Context, token, sku string) error {
	return c.do(ctx, "delete inventory item", "DELETE", inventoryPath+"/inventory_item/"+url.PathEscape(sku), token, nil, nil)
}

// CreateOffer implements marketplace.InventoryAPI.
func (c *Client) CreateOffer(ctx context.Context, token string, offer marketplace.Offer) (string, error) {
	body := offerBody{
		SKU:                 offer.SKU,
		MarketplaceID:       c.marketplaceID,
		Format:              offer.Format,
		AvailableQuantity:   offer.Quantity,
		CategoryID:          offer.CategoryID,
		ListingDescription:  offer.Description,
		ListingDuration:     offer.Duration,
		MerchantLocationKey: offer.LocationKey,
	}
	body.ListingPolicies.PaymentPolicyID = offer.Policies.PaymentID
	body.ListingPolicies.ReturnPolicyID = offer.Policies.ReturnID
	body.ListingPolicies.FulfillmentPolicyID = offer.Policies.FulfillmentID
	if offer.ShippingCost != "" {
		body.ListingPolicies.ShippingCostOverrides = []shippingCostOverride{{
			Priority:            1,
			ShippingServiceType: "DOMESTIC",
			ShippingCost:        c.money(offer.ShippingCost),
		}}
	}
	body.PricingSummary.Price = c.money(offer.Price)
	body.PricingSummary.AuctionStartPrice = c.money(offer.AuctionStartPrice)
	body.PricingSummary.AuctionReservePrice = c.money(offer.AuctionReserve)

	var resp struct {
		OfferID string `json:"offerId"`
	}
	if err := c.do(ctx, "create offer", "POST", inventoryPath+"/offer", token, body, &resp); err != nil {
		return "", err
	}
	return resp.OfferID, nil
}

// GetOffer implements marketplace.InventoryAPI.
func (c *Client) GetOffer(ctx context.Context, token, offerID string) (*marketplace.OfferStatus, error) {
	var resp offerBody
	if err := c.do(ctx, "get offer", "GET", inventoryPath+"/offer/"+url.PathEscape(offerID), token, nil, &resp); err != nil {
		return nil, err
	}
	st := resp.status()
	if st.OfferID == "" {
		st.OfferID = offerID
	}
	return &st, nil
}

// ListOffers implements marketplace.InventoryAPI.
func (c *Client) ListOffers(ctx context.Context, token, sku string) ([]marketplace.OfferStatus, error) {
	v := url.Values{}
	v.Set("sku", sku)
	v.Set("marketplace_id", c.marketplaceID)
	v.Set("limit", strconv.Itoa(25))

	var resp struct {
		Offers []offerBody `json:"offers"`
	}
	if err := c.do(ctx, "list offers", "GET", inventoryPath+"/offer?"+v.Encode(), token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]marketplace.OfferStatus, 0, len(resp.Offers))
	for _, o := range resp.Offers {
		out = append(out, o.status())
	}
	return out, nil
}

// PublishOffer implements marketplace.InventoryAPI and returns the listing id.
func (c *Client) PublishOffer(ctx context.Context, token, offerID string) (string, error) {
	var resp struct {
		ListingID string `json:"listingId"`
	}
	if err := c.do(ctx, "publish offer", "POST", inventoryPath+"/offer/"+url.PathEscape(offerID)+"/publish", token, nil, &resp); err != nil {
		return "", err
	}
	return resp.ListingID, nil
}

// DeleteOffer implements marketplace.InventoryAPI. Deleting a published
// offer ends its listing.
func (c *Client) DeleteOffer(ctx context.Context, token, offerID string) error {
	return c.do(ctx, "delete offer", "DELETE", inventoryPath+"/offer/"+url.PathEscape(offerID), token, nil, nil)
}
