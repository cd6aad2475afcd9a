package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLocationDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/location/check-delivery", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 28.6139, body["lat"])

		json.NewEncoder(w).Encode(DeliveryCheckResult{
			Success:           true,
			DeliveryAvailable: true,
			AvailableWarehouses: []models.WarehouseDeliveryInfo{
				{Warehouse: models.Warehouse{ID: "w1", Name: "Okhla"}, CanDeliver: true, DistanceKm: 3.2},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	result := client.CheckLocationDelivery(context.Background(), models.Coordinates{Lat: 28.6139, Lng: 77.2090})

	assert.True(t, result.Success)
	assert.True(t, result.DeliveryAvailable)
	require.Len(t, result.AvailableWarehouses, 1)
	assert.Equal(t, "w1", result.AvailableWarehouses[0].Warehouse.ID)
}

func TestCheckLocationDeliveryBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	result := client.CheckLocationDelivery(context.Background(), models.Coordinates{Lat: 1, Lng: 1})

	// Failures fold into the result, never into an error.
	assert.False(t, result.Success)
	assert.False(t, result.DeliveryAvailable)
	assert.Empty(t, result.AvailableWarehouses)
	assert.NotEmpty(t, result.Message)
}

func TestCheckLocationDeliveryUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond)
	result := client.CheckLocationDelivery(context.Background(), models.Coordinates{Lat: 1, Lng: 1})

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}

func TestValidateCartDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/location/validate-cart", r.URL.Path)

		json.NewEncoder(w).Encode(CartValidationResult{
			Success:             true,
			AllItemsDeliverable: false,
			ValidationResults: []CartItemValidation{
				{ProductID: "p1", Deliverable: true},
				{ProductID: "p2", Deliverable: false, Reason: "out of delivery radius"},
			},
			UndeliverableItems: []models.CartItem{{ProductID: "p2"}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	items := []models.CartItem{{ProductID: "p1"}, {ProductID: "p2"}}
	result := client.ValidateCartDelivery(context.Background(), items, "110001")

	assert.True(t, result.Success)
	assert.False(t, result.AllItemsDeliverable)
	require.Len(t, result.ValidationResults, 2)
	assert.Equal(t, "out of delivery radius", result.ValidationResults[1].Reason)
	require.Len(t, result.UndeliverableItems, 1)
}

func TestProductsByPincode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/warehouses/products-by-pincode", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "110001", q.Get("pincode"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "global", q.Get("mode"))

		json.NewEncoder(w).Encode(ProductPage{
			Products: []models.Product{{ID: "p1", Name: "Milk"}},
			Page:     2,
			Limit:    20,
			Total:    45,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	page, err := client.ProductsByPincode(context.Background(), ProductQuery{
		Pincode: "110001",
		Page:    2,
		Limit:   20,
		Mode:    "global",
	})
	require.NoError(t, err)
	assert.Equal(t, 45, page.Total)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Milk", page.Products[0].Name)
}

func TestProductsByPincodeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	_, err := client.ProductsByPincode(context.Background(), ProductQuery{Pincode: "110001", Page: 1, Limit: 20})
	assert.Error(t, err)
}
