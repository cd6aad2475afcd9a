package models

import "time"

// Coordinates is a geographic point in decimal degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DeliveryWindow describes the daily hours a warehouse delivers in
type DeliveryWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Warehouse represents a fulfillment source. A warehouse is either the
// singleton global warehouse (serves any location) or a local warehouse
// bound to a delivery radius.
type Warehouse struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Address              string          `json:"address,omitempty"`
	DeliveryRadiusKm     float64         `json:"delivery_radius_km"`
	FreeDeliveryRadiusKm float64         `json:"free_delivery_radius_km"`
	IsGlobal             bool            `json:"is_global"`
	DeliveryEnabled      bool            `json:"delivery_enabled"`
	DeliveryHours        *DeliveryWindow `json:"delivery_hours,omitempty"`
	DeliveryDays         []string        `json:"delivery_days,omitempty"`
}

// Ref returns the minimal identity used on cart items.
func (w *Warehouse) Ref() WarehouseRef {
	if w == nil {
		return WarehouseRef{}
	}
	return WarehouseRef{ID: w.ID, Name: w.Name, IsGlobal: w.IsGlobal}
}

// WarehouseRef is the minimal warehouse identity carried on cart items.
// Both ID and Name must be present for the identity to be trusted by
// conflict evaluation.
type WarehouseRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsGlobal bool   `json:"is_global"`
}

// Complete reports whether the reference carries verifiable identity.
func (r WarehouseRef) Complete() bool {
	return r.ID != "" && r.Name != ""
}

// WarehouseDeliveryInfo is a warehouse plus backend-computed delivery data.
// Distance and duration are opaque display values; CanDeliver is the
// authoritative eligibility flag.
type WarehouseDeliveryInfo struct {
	Warehouse   Warehouse `json:"warehouse"`
	DistanceKm  float64   `json:"distance_km"`
	DurationMin float64   `json:"duration_min"`
	CanDeliver  bool      `json:"can_deliver"`
	Reason      string    `json:"reason,omitempty"`
}

// LocationStatus is the location lifecycle state
type LocationStatus string

// Location lifecycle: Unset -> Detecting -> Resolved | Failed.
// Failed is retryable; any new input re-enters Detecting.
const (
	LocationStatusUnset     LocationStatus = "UNSET"
	LocationStatusDetecting LocationStatus = "DETECTING"
	LocationStatusResolved  LocationStatus = "RESOLVED"
	LocationStatusFailed    LocationStatus = "FAILED"
)

// LocationState tracks a session's current location and delivery mode
type LocationState struct {
	SessionID        string         `json:"session_id"`
	Pincode          string         `json:"pincode,omitempty"`
	Coordinates      *Coordinates   `json:"coordinates,omitempty"`
	Name             string         `json:"name,omitempty"`
	IsDetected       bool           `json:"is_detected"`
	MatchedWarehouse *Warehouse     `json:"matched_warehouse,omitempty"`
	IsGlobalMode     bool           `json:"is_global_mode"`
	DeliveryMessage  string         `json:"delivery_message,omitempty"`
	Status           LocationStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	// Previous holds the prior resolved state so a declined
	// location-change conflict can be reverted.
	Previous *LocationState `json:"previous,omitempty"`
}

// CartItem is one cart line. All items in a non-empty cart must reference
// the same warehouse (same local id, or all global).
type CartItem struct {
	ProductID string       `json:"product_id" db:"product_id"`
	VariantID string       `json:"variant_id,omitempty" db:"variant_id"`
	Name      string       `json:"name" db:"name"`
	Price     int64        `json:"price" db:"price"`
	Quantity  int          `json:"quantity" db:"quantity"`
	Warehouse WarehouseRef `json:"warehouse"`
}

// ProductVariant is a SKU-level option of a product
type ProductVariant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int    `json:"stock"`
}

// Product is a catalog entry as returned by the products-by-pincode proxy
type Product struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Price     int64            `json:"price"`
	Category  string           `json:"category,omitempty"`
	Brand     string           `json:"brand,omitempty"`
	Stock     int              `json:"stock"`
	Variants  []ProductVariant `json:"variants,omitempty"`
	Warehouse WarehouseRef     `json:"warehouse"`
}

// ConflictKind distinguishes what triggered a warehouse conflict
type ConflictKind string

const (
	ConflictKindProduct  ConflictKind = "product"
	ConflictKindLocation ConflictKind = "location"
)

// ConflictState is a transient pending conflict awaiting user resolution.
// It is never persisted; it dies with resolution or session expiry.
type ConflictState struct {
	SessionID         string       `json:"session_id"`
	Kind              ConflictKind `json:"kind"`
	ExistingWarehouse WarehouseRef `json:"existing_warehouse"`
	IncomingWarehouse WarehouseRef `json:"incoming_warehouse"`
	ProductName       string       `json:"product_name,omitempty"`
	DetectedAt        time.Time    `json:"detected_at"`

	// PendingItem is set for product conflicts: the add that was blocked.
	PendingItem *CartItem `json:"pending_item,omitempty"`
}

// Conflict resolution actions
const (
	ResolutionClear        = "clear"
	ResolutionSwitchGlobal = "switch-global"
	ResolutionKeep         = "keep"
)

// LocationSnapshot is the persisted form of a location state, restored
// on demand. A snapshot that fails shape validation is treated as absent.
type LocationSnapshot struct {
	SessionID    string       `json:"session_id" db:"session_id"`
	Pincode      string       `json:"pincode" db:"pincode"`
	Lat          float64      `json:"lat" db:"lat"`
	Lng          float64      `json:"lng" db:"lng"`
	Name         string       `json:"name" db:"name"`
	IsDetected   bool         `json:"is_detected" db:"is_detected"`
	IsGlobalMode bool         `json:"is_global_mode" db:"is_global_mode"`
	Warehouse    WarehouseRef `json:"warehouse"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Valid reports whether a restored snapshot has a trustworthy shape.
func (s *LocationSnapshot) Valid() bool {
	if s == nil || s.SessionID == "" {
		return false
	}
	if s.Lat < -90 || s.Lat > 90 || s.Lng < -180 || s.Lng > 180 {
		return false
	}
	return true
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
