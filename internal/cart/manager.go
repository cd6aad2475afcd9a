package cart

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/conflict"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository persists carts across restarts. The in-memory state is the
// source of truth; persistence is fire-and-forget.
type Repository interface {
	SaveCart(ctx context.Context, sessionID string, items []models.CartItem) error
	GetCart(ctx context.Context, sessionID string) ([]models.CartItem, error)
	DeleteCart(ctx context.Context, sessionID string) error
}

type eventPublisher interface {
	PublishCartItemAdded(ctx context.Context, event *models.CartItemAddedEvent) error
	PublishCartCleared(ctx context.Context, event *models.CartClearedEvent) error
}

// Manager holds session-scoped carts. Mutation only happens through its
// operations; the warehouse invariant (one source per cart) is enforced
// on every add.
type Manager struct {
	mu       sync.RWMutex
	carts    map[string][]models.CartItem
	loading  map[string]bool
	hydrated map[string]bool

	repo      Repository
	publisher eventPublisher
	logger    *zap.Logger
}

// NewManager creates a cart manager. repo and publisher may be nil in
// tests.
func NewManager(repo Repository, publisher eventPublisher) *Manager {
	return &Manager{
		carts:     make(map[string][]models.CartItem),
		loading:   make(map[string]bool),
		hydrated:  make(map[string]bool),
		repo:      repo,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// AddItem validates and adds a product to the session's cart.
//
// Validation order is part of the contract: variant selection is checked
// before any warehouse comparison, so a missing variant never surfaces
// as a conflict prompt.
func (m *Manager) AddItem(ctx context.Context, sessionID string, product models.Product, variantID string, quantity int) (*models.CartItem, error) {
	if len(product.Variants) > 0 && variantID == "" {
		util.CartMutationsFailed.WithLabelValues("variant_required").Inc()
		return nil, &VariantRequiredError{ProductID: product.ID, ProductName: product.Name}
	}

	price := product.Price
	if variantID != "" {
		variant := findVariant(product.Variants, variantID)
		if variant == nil {
			util.CartMutationsFailed.WithLabelValues("variant_not_found").Inc()
			return nil, ErrItemNotFound
		}
		price = variant.Price
	}

	item := models.CartItem{
		ProductID: product.ID,
		VariantID: variantID,
		Name:      product.Name,
		Price:     price,
		Quantity:  quantity,
		Warehouse: product.Warehouse,
	}

	m.mu.Lock()
	existing := cartWarehouse(m.carts[sessionID])
	if result := conflict.CheckConflict(existing, item.Warehouse); result.HasConflict {
		m.mu.Unlock()
		util.CartMutationsFailed.WithLabelValues("warehouse_conflict").Inc()
		return nil, &WarehouseConflictError{Existing: existing, Incoming: item.Warehouse, Item: item}
	}
	m.merge(sessionID, item)
	items := m.snapshot(sessionID)
	m.mu.Unlock()

	util.CartItemsAddedTotal.Inc()
	m.persist(ctx, sessionID, items)
	m.publishAdded(ctx, sessionID, item)
	return &item, nil
}

// ForceAdd inserts an item without a conflict check. Used by conflict
// resolution after the cart has been cleared.
func (m *Manager) ForceAdd(ctx context.Context, sessionID string, item models.CartItem) error {
	m.mu.Lock()
	m.merge(sessionID, item)
	items := m.snapshot(sessionID)
	m.mu.Unlock()

	util.CartItemsAddedTotal.Inc()
	m.persist(ctx, sessionID, items)
	m.publishAdded(ctx, sessionID, item)
	return nil
}

// UpdateQuantity sets a line's quantity. Zero or negative removes the
// line.
func (m *Manager) UpdateQuantity(ctx context.Context, sessionID, productID, variantID string, quantity int) error {
	m.mu.Lock()
	items := m.carts[sessionID]
	idx := -1
	for i, item := range items {
		if item.ProductID == productID && item.VariantID == variantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		util.CartMutationsFailed.WithLabelValues("not_found").Inc()
		return ErrItemNotFound
	}

	if quantity <= 0 {
		m.carts[sessionID] = append(items[:idx], items[idx+1:]...)
	} else {
		items[idx].Quantity = quantity
	}
	snapshot := m.snapshot(sessionID)
	m.mu.Unlock()

	m.persist(ctx, sessionID, snapshot)
	return nil
}

// RemoveItem deletes a line from the cart.
func (m *Manager) RemoveItem(ctx context.Context, sessionID, productID, variantID string) error {
	return m.UpdateQuantity(ctx, sessionID, productID, variantID, 0)
}

// Clear empties the session's cart.
func (m *Manager) Clear(ctx context.Context, sessionID, reason string) error {
	m.mu.Lock()
	delete(m.carts, sessionID)
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.DeleteCart(ctx, sessionID); err != nil {
			m.logger.Warn("Failed to delete persisted cart",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}

	if m.publisher != nil {
		event := &models.CartClearedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCartCleared,
				Timestamp: time.Now(),
			},
			SessionID: sessionID,
			Reason:    reason,
		}
		if err := m.publisher.PublishCartCleared(ctx, event); err != nil {
			m.logger.Error("Failed to publish CartCleared event", zap.Error(err))
		}
	}
	return nil
}

// Items returns a copy of the session's cart lines.
func (m *Manager) Items(sessionID string) []models.CartItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(sessionID)
}

// Warehouse returns the cart's single warehouse identity, or a zero ref
// for an empty cart.
func (m *Manager) Warehouse(sessionID string) models.WarehouseRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cartWarehouse(m.carts[sessionID])
}

// Loading reports whether the session's cart is still hydrating from
// the repository. Conflict evaluation must not run against a cart that
// has not finished loading.
func (m *Manager) Loading(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading[sessionID]
}

// Hydrate restores a session's cart from the repository, once per
// process lifetime. A repository failure leaves the cart empty and
// logged, never fatal.
func (m *Manager) Hydrate(ctx context.Context, sessionID string) {
	if m.repo == nil {
		return
	}

	m.mu.Lock()
	if m.hydrated[sessionID] {
		m.mu.Unlock()
		return
	}
	m.hydrated[sessionID] = true
	m.loading[sessionID] = true
	m.mu.Unlock()

	items, err := m.repo.GetCart(ctx, sessionID)

	m.mu.Lock()
	delete(m.loading, sessionID)
	if err == nil && len(items) > 0 {
		m.carts[sessionID] = items
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("Failed to hydrate cart",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// merge adds item or bumps quantity on an existing line. Caller holds
// the lock.
func (m *Manager) merge(sessionID string, item models.CartItem) {
	items := m.carts[sessionID]
	for i := range items {
		if items[i].ProductID == item.ProductID && items[i].VariantID == item.VariantID {
			items[i].Quantity += item.Quantity
			return
		}
	}
	m.carts[sessionID] = append(items, item)
}

// snapshot copies the session's lines. Caller holds the lock.
func (m *Manager) snapshot(sessionID string) []models.CartItem {
	items := m.carts[sessionID]
	out := make([]models.CartItem, len(items))
	copy(out, items)
	return out
}

func (m *Manager) persist(ctx context.Context, sessionID string, items []models.CartItem) {
	if m.repo == nil {
		return
	}
	if err := m.repo.SaveCart(ctx, sessionID, items); err != nil {
		m.logger.Warn("Failed to persist cart",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

func (m *Manager) publishAdded(ctx context.Context, sessionID string, item models.CartItem) {
	if m.publisher == nil {
		return
	}
	event := &models.CartItemAddedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCartItemAdded,
			Timestamp: time.Now(),
		},
		SessionID: sessionID,
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Quantity:  item.Quantity,
		Warehouse: item.Warehouse,
	}
	if err := m.publisher.PublishCartItemAdded(ctx, event); err != nil {
		m.logger.Error("Failed to publish CartItemAdded event", zap.Error(err))
	}
}

func cartWarehouse(items []models.CartItem) models.WarehouseRef {
	if len(items) == 0 {
		return models.WarehouseRef{}
	}
	return items[0].Warehouse
}

func findVariant(variants []models.ProductVariant, id string) *models.ProductVariant {
	for i := range variants {
		if variants[i].ID == id {
			return &variants[i]
		}
	}
	return nil
}
