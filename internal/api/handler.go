package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/backend"
	"storefront-service/internal/cache"
	"storefront-service/internal/cart"
	"storefront-service/internal/conflict"
	"storefront-service/internal/geo"
	"storefront-service/internal/location"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	locations   *location.Manager
	carts       *cart.Manager
	conflicts   *conflict.Manager
	backend     *backend.Client
	cache       *cache.Cache
	productsTTL time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(
	locations *location.Manager,
	carts *cart.Manager,
	conflicts *conflict.Manager,
	backendClient *backend.Client,
	catalogCache *cache.Cache,
	productsTTL time.Duration,
) *Handler {
	return &Handler{
		locations:   locations,
		carts:       carts,
		conflicts:   conflicts,
		backend:     backendClient,
		cache:       catalogCache,
		productsTTL: productsTTL,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/location", h.getLocation)
		v1.POST("/location", h.setLocation)
		v1.POST("/location/detect", h.detectLocation)
		v1.POST("/location/mode", h.switchMode)
		v1.DELETE("/location", h.clearLocation)
		v1.POST("/location/check-delivery", h.checkDelivery)

		v1.GET("/products", h.listProducts)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PATCH("/cart/items/:productId", h.updateCartItem)
		v1.DELETE("/cart/items/:productId", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)
		v1.POST("/cart/validate-delivery", h.validateCartDelivery)

		v1.GET("/conflict", h.getConflict)
		v1.POST("/conflict/resolve", h.resolveConflict)
	}
}

// sessionID extracts the caller's session, minting one when absent.
// The id is echoed back so first-time callers learn the session they
// were assigned.
func sessionID(c *gin.Context) string {
	id := c.GetHeader("X-Session-ID")
	if id == "" {
		id = uuid.New().String()
	}
	c.Header("X-Session-ID", id)
	return id
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) getLocation(c *gin.Context) {
	state, err := h.locations.State(c.Request.Context(), sessionID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No location set",
		})
		return
	}
	c.JSON(http.StatusOK, state)
}

type setLocationRequest struct {
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Name    string   `json:"name"`
	Pincode string   `json:"pincode"`
}

func (h *Handler) setLocation(c *gin.Context) {
	var req setLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session := sessionID(c)
	h.carts.Hydrate(c.Request.Context(), session)

	state, err := h.locations.SetSelectedLocation(c.Request.Context(), session,
		models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}, req.Name, req.Pincode)
	if err != nil {
		if errors.Is(err, location.ErrInvalidCoordinates) || errors.Is(err, location.ErrInvalidPincode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update location",
		})
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *Handler) detectLocation(c *gin.Context) {
	session := sessionID(c)
	h.carts.Hydrate(c.Request.Context(), session)

	state, err := h.locations.DetectCurrentLocation(c.Request.Context(), session, c.ClientIP())
	if err != nil {
		// Each geolocation failure class keeps its own reason; the
		// client must be able to tell them apart.
		c.JSON(http.StatusFailedDependency, gin.H{
			"error":  location.FailureMessage(err),
			"reason": location.FailureReason(err),
		})
		return
	}

	c.JSON(http.StatusOK, state)
}

type switchModeRequest struct {
	Mode string `json:"mode" binding:"required,oneof=global custom"`
}

func (h *Handler) switchMode(c *gin.Context) {
	var req switchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session := sessionID(c)
	var err error
	if req.Mode == "global" {
		err = h.locations.SwitchToGlobalMode(c.Request.Context(), session)
	} else {
		err = h.locations.SwitchToCustomMode(c.Request.Context(), session)
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No location set"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"mode": req.Mode})
}

func (h *Handler) clearLocation(c *gin.Context) {
	if err := h.locations.ClearLocation(c.Request.Context(), sessionID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear location"})
		return
	}
	c.Status(http.StatusNoContent)
}

type checkDeliveryRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

func (h *Handler) checkDelivery(c *gin.Context) {
	var req checkDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	coords := models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	if !geo.IsValidCoordinates(coords) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
		return
	}

	c.JSON(http.StatusOK, h.backend.CheckLocationDelivery(c.Request.Context(), coords))
}

func (h *Handler) listProducts(c *gin.Context) {
	pincode := c.Query("pincode")
	if !geo.IsValidPincode(pincode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pincode"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := backend.ProductQuery{
		Pincode:  pincode,
		Page:     page,
		Limit:    limit,
		Mode:     c.DefaultQuery("mode", "local"),
		Category: c.Query("category"),
		Brand:    c.Query("brand"),
		Search:   c.Query("search"),
	}

	base := "products_p" + strconv.Itoa(page) + "_l" + strconv.Itoa(limit) +
		"_c" + query.Category + "_b" + query.Brand + "_s" + query.Search
	key := cache.GenerateLocationKey(base, pincode, query.Mode == "global")

	var cached backend.ProductPage
	if h.cache.Get(c.Request.Context(), key, &cached) {
		c.JSON(http.StatusOK, &cached)
		return
	}

	result, err := h.backend.ProductsByPincode(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Product catalog unavailable, try again",
		})
		return
	}

	if err := h.cache.Set(c.Request.Context(), key, result, h.productsTTL); err == nil {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getCart(c *gin.Context) {
	session := sessionID(c)
	h.carts.Hydrate(c.Request.Context(), session)

	items := h.carts.Items(session)
	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"warehouse": h.carts.Warehouse(session),
	})
}

type addCartItemRequest struct {
	Product   models.Product `json:"product" binding:"required"`
	VariantID string         `json:"variant_id"`
	Quantity  int            `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Product.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product id is required"})
		return
	}

	session := sessionID(c)
	h.carts.Hydrate(c.Request.Context(), session)

	item, err := h.carts.AddItem(c.Request.Context(), session, req.Product, req.VariantID, req.Quantity)
	if err != nil {
		h.respondCartError(c, session, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// respondCartError maps domain-rule violations to their typed payloads.
// Only variant-required and warehouse-conflict reach the client as
// actionable objects; everything else degrades to a generic message.
func (h *Handler) respondCartError(c *gin.Context, session string, err error) {
	var conflictErr *cart.WarehouseConflictError
	if errors.As(err, &conflictErr) {
		state := h.conflicts.RegisterProductConflict(c.Request.Context(), session,
			conflictErr.Item, conflictErr.Existing)
		c.JSON(http.StatusConflict, gin.H{
			"is_warehouse_conflict": true,
			"message":               conflictErr.Error(),
			"conflict":              state,
		})
		return
	}

	var variantErr *cart.VariantRequiredError
	if errors.As(err, &variantErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"is_variant_required": true,
			"message":             variantErr.Error(),
			"product_id":          variantErr.ProductID,
		})
		return
	}

	if errors.Is(err, cart.ErrItemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Something went wrong, try again",
	})
}

type updateCartItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  *int   `json:"quantity" binding:"required"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session := sessionID(c)
	h.carts.Hydrate(c.Request.Context(), session)

	err := h.carts.UpdateQuantity(c.Request.Context(), session,
		c.Param("productId"), req.VariantID, *req.Quantity)
	if err != nil {
		h.respondCartError(c, session, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": h.carts.Items(session)})
}

func (h *Handler) removeCartItem(c *gin.Context) {
	session := sessionID(c)
	h.carts.Hydrate(c.Request.Context(), session)

	err := h.carts.RemoveItem(c.Request.Context(), session,
		c.Param("productId"), c.Query("variant_id"))
	if err != nil {
		h.respondCartError(c, session, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), sessionID(c), "user_request"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}
	c.Status(http.StatusNoContent)
}

type validateDeliveryRequest struct {
	DeliveryAddress string `json:"delivery_address" binding:"required"`
}

func (h *Handler) validateCartDelivery(c *gin.Context) {
	var req validateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session := sessionID(c)
	h.carts.Hydrate(c.Request.Context(), session)

	items := h.carts.Items(session)
	if len(items) == 0 {
		c.JSON(http.StatusOK, &backend.CartValidationResult{
			Success:             true,
			AllItemsDeliverable: true,
		})
		return
	}

	c.JSON(http.StatusOK, h.backend.ValidateCartDelivery(c.Request.Context(), items, req.DeliveryAddress))
}

func (h *Handler) getConflict(c *gin.Context) {
	state := h.conflicts.Pending(sessionID(c))
	if state == nil {
		c.JSON(http.StatusOK, gin.H{"pending": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": true, "conflict": state})
}

type resolveConflictRequest struct {
	Action string `json:"action" binding:"required,oneof=clear switch-global keep"`
}

func (h *Handler) resolveConflict(c *gin.Context) {
	var req resolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.conflicts.Resolve(c.Request.Context(), sessionID(c), req.Action); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
