package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Client calls the catalog backend for delivery eligibility, bulk cart
// validation, and location-scoped product listings.
//
// Eligibility and validation failures are folded into result values
// rather than returned as errors: a network fault and "no delivery
// here" are the same thing to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a backend client. Every request carries an explicit
// deadline; there is no reliance on transport defaults.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		timeout:    timeout,
		logger:     util.GetLogger(),
	}
}

// DeliveryCheckResult is the outcome of an eligibility check.
type DeliveryCheckResult struct {
	Success             bool                           `json:"success"`
	DeliveryAvailable   bool                           `json:"delivery_available"`
	AvailableWarehouses []models.WarehouseDeliveryInfo `json:"available_warehouses"`
	Message             string                         `json:"message,omitempty"`
}

// CheckLocationDelivery asks the backend which warehouses can deliver to
// coords. Callers are expected to validate coords first; this client
// does not re-validate. All failures become a success:false result.
func (c *Client) CheckLocationDelivery(ctx context.Context, coords models.Coordinates) *DeliveryCheckResult {
	ctx, span := util.StartSpan(ctx, "backend.CheckLocationDelivery")
	defer span.End()

	start := time.Now()
	defer func() {
		util.DeliveryCheckLatency.Observe(time.Since(start).Seconds())
	}()

	var result DeliveryCheckResult
	err := c.postJSON(ctx, "/location/check-delivery", map[string]float64{
		"lat": coords.Lat,
		"lng": coords.Lng,
	}, &result)
	if err != nil {
		c.logger.Warn("Delivery check failed",
			zap.Float64("lat", coords.Lat),
			zap.Float64("lng", coords.Lng),
			zap.Error(err))
		util.DeliveryChecksTotal.WithLabelValues("error").Inc()
		return &DeliveryCheckResult{
			Success:             false,
			DeliveryAvailable:   false,
			AvailableWarehouses: nil,
			Message:             "delivery check unavailable, please try again",
		}
	}

	if result.DeliveryAvailable {
		util.DeliveryChecksTotal.WithLabelValues("available").Inc()
	} else {
		util.DeliveryChecksTotal.WithLabelValues("unavailable").Inc()
	}
	return &result
}

// CartItemValidation is the per-item outcome of a bulk validation.
type CartItemValidation struct {
	ProductID   string `json:"product_id"`
	Deliverable bool   `json:"deliverable"`
	Reason      string `json:"reason,omitempty"`
}

// CartValidationResult partitions cart items into deliverable and
// undeliverable for a delivery address.
type CartValidationResult struct {
	Success             bool                 `json:"success"`
	AllItemsDeliverable bool                 `json:"all_items_deliverable"`
	ValidationResults   []CartItemValidation `json:"validation_results"`
	UndeliverableItems  []models.CartItem    `json:"undeliverable_items"`
	Message             string               `json:"message,omitempty"`
}

// ValidateCartDelivery runs the per-item eligibility check in bulk,
// supporting pre-checkout validation without a full conflict resolution.
func (c *Client) ValidateCartDelivery(ctx context.Context, items []models.CartItem, address string) *CartValidationResult {
	ctx, span := util.StartSpan(ctx, "backend.ValidateCartDelivery")
	defer span.End()

	var result CartValidationResult
	err := c.postJSON(ctx, "/location/validate-cart", map[string]interface{}{
		"cartItems":       items,
		"deliveryAddress": address,
	}, &result)
	if err != nil {
		c.logger.Warn("Cart validation failed", zap.Error(err))
		util.CartValidationsTotal.WithLabelValues("error").Inc()
		return &CartValidationResult{
			Success: false,
			Message: "cart validation unavailable, please try again",
		}
	}

	if result.AllItemsDeliverable {
		util.CartValidationsTotal.WithLabelValues("deliverable").Inc()
	} else {
		util.CartValidationsTotal.WithLabelValues("partial").Inc()
	}
	return &result
}

// ProductQuery selects a page of products for a pincode and mode.
type ProductQuery struct {
	Pincode  string
	Page     int
	Limit    int
	Mode     string
	Category string
	Brand    string
	Search   string
}

// ProductPage is one page of location-scoped products.
type ProductPage struct {
	Products []models.Product `json:"products"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Total    int              `json:"total"`
}

// ProductsByPincode fetches a paginated, location-scoped product list.
// Unlike the eligibility calls this returns an error: the caller caches
// and serves fallbacks itself.
func (c *Client) ProductsByPincode(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "backend.ProductsByPincode")
	defer span.End()

	params := url.Values{}
	params.Set("pincode", q.Pincode)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Mode != "" {
		params.Set("mode", q.Mode)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Brand != "" {
		params.Set("brand", q.Brand)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/warehouses/products-by-pincode?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("products request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("products request returned status %d", resp.StatusCode)
	}

	var page ProductPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode products response: %w", err)
	}
	return &page, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
