package conflict

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// cartOps is the slice of cart behavior the resolver needs.
type cartOps interface {
	Items(sessionID string) []models.CartItem
	Loading(sessionID string) bool
	Clear(ctx context.Context, sessionID, reason string) error
	ForceAdd(ctx context.Context, sessionID string, item models.CartItem) error
}

// locationOps is the slice of location behavior the resolver needs.
type locationOps interface {
	SwitchToGlobalMode(ctx context.Context, sessionID string) error
	RevertToPreviousLocation(ctx context.Context, sessionID string) error
}

type eventPublisher interface {
	PublishConflictDetected(ctx context.Context, event *models.ConflictDetectedEvent) error
	PublishConflictResolved(ctx context.Context, event *models.ConflictResolvedEvent) error
}

// LocationChangeNotice carries the facts a location-driven evaluation
// needs, decoupled from the location manager's internals.
type LocationChangeNotice struct {
	SessionID      string
	NewWarehouse   models.WarehouseRef
	StateCreatedAt time.Time
}

// Manager holds pending conflicts per session and applies resolutions.
type Manager struct {
	mu      sync.RWMutex
	pending map[string]*models.ConflictState

	cart      cartOps
	location  locationOps
	publisher eventPublisher
	logger    *zap.Logger

	// grace suppresses location-driven evaluation right after a
	// session's state is created, avoiding false positives from
	// initialization races.
	grace time.Duration
	now   func() time.Time
}

// DefaultGracePeriod is how long after state creation location-driven
// conflicts stay suppressed.
const DefaultGracePeriod = 2 * time.Second

// NewManager creates a conflict manager.
func NewManager(cart cartOps, location locationOps, publisher eventPublisher) *Manager {
	return &Manager{
		pending:   make(map[string]*models.ConflictState),
		cart:      cart,
		location:  location,
		publisher: publisher,
		logger:    util.GetLogger(),
		grace:     DefaultGracePeriod,
		now:       time.Now,
	}
}

// SetGracePeriod overrides the suppression window. Not safe to call
// after the manager is serving requests.
func (m *Manager) SetGracePeriod(d time.Duration) {
	m.grace = d
}

// RegisterProductConflict records a blocked add-to-cart awaiting user
// resolution.
func (m *Manager) RegisterProductConflict(ctx context.Context, sessionID string, item models.CartItem, existing models.WarehouseRef) *models.ConflictState {
	state := &models.ConflictState{
		SessionID:         sessionID,
		Kind:              models.ConflictKindProduct,
		ExistingWarehouse: existing,
		IncomingWarehouse: item.Warehouse,
		ProductName:       item.Name,
		DetectedAt:        m.now(),
		PendingItem:       &item,
	}

	m.mu.Lock()
	m.pending[sessionID] = state
	m.mu.Unlock()

	util.ConflictsDetectedTotal.WithLabelValues(string(models.ConflictKindProduct)).Inc()
	m.publishDetected(ctx, state)
	return state
}

// EvaluateLocationChange runs the location-driven trigger: the session's
// matched warehouse changed while the cart is non-empty. Returns the
// pending conflict, or nil when none arises or evaluation is suppressed.
func (m *Manager) EvaluateLocationChange(ctx context.Context, notice LocationChangeNotice) *models.ConflictState {
	if m.now().Sub(notice.StateCreatedAt) < m.grace {
		util.ConflictsSuppressedTotal.WithLabelValues("grace_period").Inc()
		return nil
	}
	if m.cart.Loading(notice.SessionID) {
		util.ConflictsSuppressedTotal.WithLabelValues("cart_loading").Inc()
		return nil
	}

	items := m.cart.Items(notice.SessionID)
	if len(items) == 0 {
		return nil
	}

	// Require at least one item with verifiable warehouse identity.
	// Incomplete cart data must never raise a prompt.
	var existing models.WarehouseRef
	for _, item := range items {
		if item.Warehouse.Complete() {
			existing = item.Warehouse
			break
		}
	}
	if !existing.Complete() {
		util.ConflictsSuppressedTotal.WithLabelValues("incomplete_identity").Inc()
		return nil
	}

	if !CheckConflict(existing, notice.NewWarehouse).HasConflict {
		return nil
	}

	state := &models.ConflictState{
		SessionID:         notice.SessionID,
		Kind:              models.ConflictKindLocation,
		ExistingWarehouse: existing,
		IncomingWarehouse: notice.NewWarehouse,
		DetectedAt:        m.now(),
	}

	m.mu.Lock()
	m.pending[notice.SessionID] = state
	m.mu.Unlock()

	util.ConflictsDetectedTotal.WithLabelValues(string(models.ConflictKindLocation)).Inc()
	m.publishDetected(ctx, state)
	return state
}

// Pending returns the session's unresolved conflict, if any.
func (m *Manager) Pending(sessionID string) *models.ConflictState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending[sessionID]
}

// Resolve applies one of the mutually exclusive resolution actions and
// destroys the pending conflict.
func (m *Manager) Resolve(ctx context.Context, sessionID, action string) error {
	m.mu.Lock()
	state, ok := m.pending[sessionID]
	if ok {
		delete(m.pending, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending conflict for session")
	}

	switch action {
	case models.ResolutionClear:
		if err := m.cart.Clear(ctx, sessionID, "conflict_resolution"); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		if state.Kind == models.ConflictKindProduct && state.PendingItem != nil {
			if err := m.cart.ForceAdd(ctx, sessionID, *state.PendingItem); err != nil {
				return fmt.Errorf("failed to apply pending add: %w", err)
			}
		}
		// Location conflicts need nothing more: the new location is
		// already applied; clearing the cart removes the mismatch.

	case models.ResolutionSwitchGlobal:
		// Only valid for a pure mode mismatch on a product conflict:
		// the incoming source is global and the cart is local.
		if state.Kind != models.ConflictKindProduct {
			m.restorePending(sessionID, state)
			return fmt.Errorf("switch-global only resolves product conflicts")
		}
		if !state.IncomingWarehouse.IsGlobal || state.ExistingWarehouse.IsGlobal {
			m.restorePending(sessionID, state)
			return fmt.Errorf("switch-global requires a global/local mode mismatch")
		}
		if err := m.location.SwitchToGlobalMode(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to switch mode: %w", err)
		}

	case models.ResolutionKeep:
		if state.Kind == models.ConflictKindLocation {
			if err := m.location.RevertToPreviousLocation(ctx, sessionID); err != nil {
				return fmt.Errorf("failed to revert location: %w", err)
			}
		}
		// Product conflicts: the pending add is simply discarded.

	default:
		m.restorePending(sessionID, state)
		return fmt.Errorf("unknown resolution action: %s", action)
	}

	util.ConflictsResolvedTotal.WithLabelValues(action).Inc()
	m.publishResolved(ctx, state, action)

	m.logger.Info("Conflict resolved",
		zap.String("session_id", sessionID),
		zap.String("kind", string(state.Kind)),
		zap.String("action", action))
	return nil
}

// Discard drops a session's pending conflict without applying anything.
func (m *Manager) Discard(sessionID string) {
	m.mu.Lock()
	delete(m.pending, sessionID)
	m.mu.Unlock()
}

func (m *Manager) restorePending(sessionID string, state *models.ConflictState) {
	m.mu.Lock()
	m.pending[sessionID] = state
	m.mu.Unlock()
}

func (m *Manager) publishDetected(ctx context.Context, state *models.ConflictState) {
	if m.publisher == nil {
		return
	}
	event := &models.ConflictDetectedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeConflictDetected,
			Timestamp: m.now(),
		},
		SessionID:         state.SessionID,
		Kind:              state.Kind,
		ExistingWarehouse: state.ExistingWarehouse,
		IncomingWarehouse: state.IncomingWarehouse,
		ProductName:       state.ProductName,
	}
	if err := m.publisher.PublishConflictDetected(ctx, event); err != nil {
		m.logger.Error("Failed to publish ConflictDetected event", zap.Error(err))
	}
}

func (m *Manager) publishResolved(ctx context.Context, state *models.ConflictState, action string) {
	if m.publisher == nil {
		return
	}
	event := &models.ConflictResolvedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeConflictResolved,
			Timestamp: m.now(),
		},
		SessionID: state.SessionID,
		Kind:      state.Kind,
		Action:    action,
	}
	if err := m.publisher.PublishConflictResolved(ctx, event); err != nil {
		m.logger.Error("Failed to publish ConflictResolved event", zap.Error(err))
	}
}
