package models

import "time"

// Event types
const (
	EventTypeLocationChanged  = "LOCATION_CHANGED"
	EventTypeLocationCleared  = "LOCATION_CLEARED"
	EventTypeModeSwitched     = "MODE_SWITCHED"
	EventTypeCartItemAdded    = "CART_ITEM_ADDED"
	EventTypeCartCleared      = "CART_CLEARED"
	EventTypeConflictDetected = "CONFLICT_DETECTED"
	EventTypeConflictResolved = "CONFLICT_RESOLVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationChangedEvent published when a session's location resolves
type LocationChangedEvent struct {
	BaseEvent
	SessionID      string       `json:"session_id"`
	Pincode        string       `json:"pincode,omitempty"`
	Coordinates    Coordinates  `json:"coordinates"`
	Warehouse      WarehouseRef `json:"warehouse"`
	IsGlobalMode   bool         `json:"is_global_mode"`
	IsDetected     bool         `json:"is_detected"`
	StateCreatedAt time.Time    `json:"state_created_at"`
}

// LocationClearedEvent published when a session clears its location
type LocationClearedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
}

// ModeSwitchedEvent published on global/custom mode toggles
type ModeSwitchedEvent struct {
	BaseEvent
	SessionID    string `json:"session_id"`
	IsGlobalMode bool   `json:"is_global_mode"`
}

// CartItemAddedEvent published when an item lands in a cart
type CartItemAddedEvent struct {
	BaseEvent
	SessionID string       `json:"session_id"`
	ProductID string       `json:"product_id"`
	VariantID string       `json:"variant_id,omitempty"`
	Quantity  int          `json:"quantity"`
	Warehouse WarehouseRef `json:"warehouse"`
}

// CartClearedEvent published when a cart is emptied
type CartClearedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// ConflictDetectedEvent published when a warehouse conflict blocks an action
type ConflictDetectedEvent struct {
	BaseEvent
	SessionID         string       `json:"session_id"`
	Kind              ConflictKind `json:"kind"`
	ExistingWarehouse WarehouseRef `json:"existing_warehouse"`
	IncomingWarehouse WarehouseRef `json:"incoming_warehouse"`
	ProductName       string       `json:"product_name,omitempty"`
}

// ConflictResolvedEvent published when the user picks a resolution
type ConflictResolvedEvent struct {
	BaseEvent
	SessionID string       `json:"session_id"`
	Kind      ConflictKind `json:"kind"`
	Action    string       `json:"action"`
}
