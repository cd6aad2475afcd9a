package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront-service/internal/backend"
	"storefront-service/internal/geo"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidPincode     = errors.New("invalid pincode")
	ErrNoLocation         = errors.New("no location set for session")
	ErrNoPreviousLocation = errors.New("no previous location to revert to")
)

type eligibilityClient interface {
	CheckLocationDelivery(ctx context.Context, coords models.Coordinates) *backend.DeliveryCheckResult
}

// snapshotStore persists location state across restarts. Both the Redis
// client and the Postgres store satisfy this.
type snapshotStore interface {
	SaveLocationSnapshot(ctx context.Context, snap *models.LocationSnapshot) error
	LoadLocationSnapshot(ctx context.Context, sessionID string) (*models.LocationSnapshot, error)
	DeleteLocationSnapshot(ctx context.Context, sessionID string) error
}

type positionCache interface {
	CachePosition(ctx context.Context, sessionID string, coords models.Coordinates, name string, maxAge time.Duration) error
	CachedPosition(ctx context.Context, sessionID string) (models.Coordinates, string, bool, error)
}

type eventPublisher interface {
	PublishLocationChanged(ctx context.Context, event *models.LocationChangedEvent) error
	PublishLocationCleared(ctx context.Context, event *models.LocationClearedEvent) error
	PublishModeSwitched(ctx context.Context, event *models.ModeSwitchedEvent) error
}

// Subscriber receives a copy of the state after every resolved change.
// Fan-out is synchronous; subscribers re-derive what they need.
type Subscriber func(state models.LocationState)

// Manager tracks each session's current location and delivery mode.
// One SetSelectedLocation is processed at a time per caller, and a
// per-session sequence counter discards responses that lost the race to
// a newer request.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*models.LocationState
	seq    map[string]uint64

	eligibility eligibilityClient
	locator     Locator
	positions   positionCache
	snapshots   []snapshotStore
	publisher   eventPublisher
	subscribers []Subscriber

	detect DetectOptions
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a location manager. positions, snapshots and
// publisher may be nil/empty in tests.
func NewManager(eligibility eligibilityClient, locator Locator, positions positionCache, publisher eventPublisher, snapshots ...snapshotStore) *Manager {
	return &Manager{
		states:      make(map[string]*models.LocationState),
		seq:         make(map[string]uint64),
		eligibility: eligibility,
		locator:     locator,
		positions:   positions,
		snapshots:   snapshots,
		publisher:   publisher,
		detect:      DefaultDetectOptions(),
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// SetDetectOptions overrides the detection timeout and cached-position
// max age. Not safe to call after the manager is serving requests.
func (m *Manager) SetDetectOptions(opts DetectOptions) {
	m.detect = opts
}

// Subscribe registers a change listener. Not safe to call after the
// manager is serving requests.
func (m *Manager) Subscribe(fn Subscriber) {
	m.subscribers = append(m.subscribers, fn)
}

// SetSelectedLocation records a user-chosen location, resolves delivery
// eligibility for it, and broadcasts the result. The location is
// recorded even when eligibility fails, so the UI can show "no delivery
// here" instead of silently reverting.
func (m *Manager) SetSelectedLocation(ctx context.Context, sessionID string, coords models.Coordinates, name, pincode string) (*models.LocationState, error) {
	if !geo.IsValidCoordinates(coords) {
		return nil, ErrInvalidCoordinates
	}
	if pincode != "" && !geo.IsValidPincode(pincode) {
		return nil, ErrInvalidPincode
	}

	return m.resolve(ctx, sessionID, coords, name, pincode, false)
}

// DetectCurrentLocation resolves the session's position through the
// locator, reusing a cached position inside the cache window. Each
// failure class surfaces its own typed error.
func (m *Manager) DetectCurrentLocation(ctx context.Context, sessionID, hint string) (*models.LocationState, error) {
	coords, name, ok := m.cachedPosition(ctx, sessionID)
	if !ok {
		locateCtx, cancel := context.WithTimeout(ctx, m.detect.Timeout)
		defer cancel()

		var err error
		coords, name, err = m.locator.Locate(locateCtx, hint)
		if err != nil {
			if errors.Is(locateCtx.Err(), context.DeadlineExceeded) {
				err = ErrLocateTimeout
			}
			util.LocationDetectFailures.WithLabelValues(FailureReason(err)).Inc()
			m.markDetectFailed(sessionID, err)
			return nil, err
		}

		if m.positions != nil {
			if cacheErr := m.positions.CachePosition(ctx, sessionID, coords, name, m.detect.MaxAge); cacheErr != nil {
				m.logger.Warn("Failed to cache position",
					zap.String("session_id", sessionID),
					zap.Error(cacheErr))
			}
		}
	}

	if !geo.IsValidCoordinates(coords) {
		util.LocationDetectFailures.WithLabelValues("invalid_position").Inc()
		return nil, ErrLocateUnavailable
	}

	return m.resolve(ctx, sessionID, coords, name, "", true)
}

// SwitchToGlobalMode flips the session into global delivery without
// re-running eligibility.
func (m *Manager) SwitchToGlobalMode(ctx context.Context, sessionID string) error {
	return m.switchMode(ctx, sessionID, true)
}

// SwitchToCustomMode flips the session back to local delivery without
// re-running eligibility.
func (m *Manager) SwitchToCustomMode(ctx context.Context, sessionID string) error {
	return m.switchMode(ctx, sessionID, false)
}

// ClearLocation resets the session to initial state and removes every
// persisted entry.
func (m *Manager) ClearLocation(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.states, sessionID)
	// Bump, never reset: an in-flight resolve must see a mismatch, and
	// a fresh request after the clear must not collide with its number.
	m.seq[sessionID]++
	m.mu.Unlock()

	for _, store := range m.snapshots {
		if err := store.DeleteLocationSnapshot(ctx, sessionID); err != nil {
			m.logger.Warn("Failed to delete location snapshot",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}

	if m.publisher != nil {
		event := &models.LocationClearedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeLocationCleared,
				Timestamp: m.now(),
			},
			SessionID: sessionID,
		}
		if err := m.publisher.PublishLocationCleared(ctx, event); err != nil {
			m.logger.Error("Failed to publish LocationCleared event", zap.Error(err))
		}
	}
	return nil
}

// RevertToPreviousLocation restores the prior state snapshot. Used when
// a user declines a location-change-triggered conflict.
func (m *Manager) RevertToPreviousLocation(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	state, ok := m.states[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrNoLocation
	}
	if state.Previous == nil {
		m.mu.Unlock()
		return ErrNoPreviousLocation
	}
	restored := *state.Previous
	restored.Previous = nil
	restored.UpdatedAt = m.now()
	m.states[sessionID] = &restored
	snapshot := restored
	m.mu.Unlock()

	m.persist(ctx, &snapshot)
	m.notify(snapshot)
	return nil
}

// State returns a copy of the session's state, restoring it from a
// persisted snapshot when the process has none in memory.
func (m *Manager) State(ctx context.Context, sessionID string) (*models.LocationState, error) {
	m.mu.RLock()
	state, ok := m.states[sessionID]
	if ok {
		copied := *state
		m.mu.RUnlock()
		return &copied, nil
	}
	m.mu.RUnlock()

	for _, store := range m.snapshots {
		snap, err := store.LoadLocationSnapshot(ctx, sessionID)
		if err != nil {
			m.logger.Warn("Failed to load location snapshot", zap.Error(err))
			continue
		}
		if snap == nil || !snap.Valid() {
			continue
		}

		restored := stateFromSnapshot(snap)
		m.mu.Lock()
		m.states[sessionID] = restored
		copied := *restored
		m.mu.Unlock()
		return &copied, nil
	}

	return nil, ErrNoLocation
}

// resolve runs the eligibility check and applies the outcome, guarded
// by the per-session sequence counter.
func (m *Manager) resolve(ctx context.Context, sessionID string, coords models.Coordinates, name, pincode string, detected bool) (*models.LocationState, error) {
	seq := m.begin(sessionID)

	result := m.eligibility.CheckLocationDelivery(ctx, coords)

	m.mu.Lock()
	if m.seq[sessionID] != seq {
		// A newer request or a clear was issued while this one was in
		// flight; whatever happened since owns the state now.
		current := m.states[sessionID]
		var copied *models.LocationState
		if current != nil {
			c := *current
			copied = &c
		}
		m.mu.Unlock()
		util.StaleResponsesDiscarded.Inc()
		if copied == nil {
			return nil, ErrNoLocation
		}
		return copied, nil
	}

	state := m.states[sessionID]
	state.Coordinates = &models.Coordinates{Lat: coords.Lat, Lng: coords.Lng}
	state.Name = name
	if pincode != "" {
		state.Pincode = pincode
	}
	state.IsDetected = detected
	state.UpdatedAt = m.now()

	if !result.Success {
		state.MatchedWarehouse = nil
		state.IsGlobalMode = false
		state.Status = models.LocationStatusFailed
		state.DeliveryMessage = result.Message
	} else {
		matched, global := pickWarehouse(result.AvailableWarehouses)
		state.MatchedWarehouse = matched
		state.IsGlobalMode = global
		state.Status = models.LocationStatusResolved
		state.DeliveryMessage = result.Message
		if matched == nil && result.Message == "" {
			state.DeliveryMessage = "delivery is not available at this location"
		}
	}

	copied := *state
	m.mu.Unlock()

	source := "selected"
	if detected {
		source = "detected"
	}
	util.LocationUpdatesTotal.WithLabelValues(source).Inc()

	if copied.Status == models.LocationStatusResolved {
		m.persist(ctx, &copied)
	}
	m.notify(copied)
	m.publishChanged(ctx, &copied)

	m.logger.Info("Location updated",
		zap.String("session_id", sessionID),
		zap.String("status", string(copied.Status)),
		zap.Bool("is_global_mode", copied.IsGlobalMode))
	return &copied, nil
}

// begin snapshots the current resolved state and moves the session into
// Detecting, returning the request's sequence number.
func (m *Manager) begin(sessionID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[sessionID]
	if !ok {
		state = &models.LocationState{
			SessionID: sessionID,
			Status:    models.LocationStatusUnset,
			CreatedAt: m.now(),
		}
		m.states[sessionID] = state
	}

	if state.Status == models.LocationStatusResolved {
		prev := *state
		prev.Previous = nil
		state.Previous = &prev
	}
	state.Status = models.LocationStatusDetecting

	m.seq[sessionID]++
	return m.seq[sessionID]
}

func (m *Manager) switchMode(ctx context.Context, sessionID string, global bool) error {
	m.mu.Lock()
	state, ok := m.states[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrNoLocation
	}
	state.IsGlobalMode = global
	state.UpdatedAt = m.now()
	copied := *state
	m.mu.Unlock()

	m.persist(ctx, &copied)
	m.notify(copied)

	if m.publisher != nil {
		event := &models.ModeSwitchedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeModeSwitched,
				Timestamp: m.now(),
			},
			SessionID:    sessionID,
			IsGlobalMode: global,
		}
		if err := m.publisher.PublishModeSwitched(ctx, event); err != nil {
			m.logger.Error("Failed to publish ModeSwitched event", zap.Error(err))
		}
	}
	return nil
}

func (m *Manager) markDetectFailed(sessionID string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[sessionID]
	if !ok {
		state = &models.LocationState{
			SessionID: sessionID,
			CreatedAt: m.now(),
		}
		m.states[sessionID] = state
	}
	state.Status = models.LocationStatusFailed
	state.DeliveryMessage = FailureMessage(cause)
	state.UpdatedAt = m.now()
}

func (m *Manager) cachedPosition(ctx context.Context, sessionID string) (models.Coordinates, string, bool) {
	if m.positions == nil {
		return models.Coordinates{}, "", false
	}
	coords, name, ok, err := m.positions.CachedPosition(ctx, sessionID)
	if err != nil {
		m.logger.Warn("Position cache read failed", zap.Error(err))
		return models.Coordinates{}, "", false
	}
	return coords, name, ok
}

// persist writes the snapshot to every configured store. Failures are
// logged and never roll back the in-memory change.
func (m *Manager) persist(ctx context.Context, state *models.LocationState) {
	if state.Coordinates == nil {
		return
	}
	snap := &models.LocationSnapshot{
		SessionID:    state.SessionID,
		Pincode:      state.Pincode,
		Lat:          state.Coordinates.Lat,
		Lng:          state.Coordinates.Lng,
		Name:         state.Name,
		IsDetected:   state.IsDetected,
		IsGlobalMode: state.IsGlobalMode,
		Warehouse:    state.MatchedWarehouse.Ref(),
		UpdatedAt:    state.UpdatedAt,
	}
	for _, store := range m.snapshots {
		if err := store.SaveLocationSnapshot(ctx, snap); err != nil {
			m.logger.Warn("Failed to persist location snapshot",
				zap.String("session_id", state.SessionID),
				zap.Error(err))
		}
	}
}

func (m *Manager) notify(state models.LocationState) {
	for _, fn := range m.subscribers {
		fn(state)
	}
}

func (m *Manager) publishChanged(ctx context.Context, state *models.LocationState) {
	if m.publisher == nil || state.Coordinates == nil {
		return
	}
	event := &models.LocationChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeLocationChanged,
			Timestamp: m.now(),
		},
		SessionID:      state.SessionID,
		Pincode:        state.Pincode,
		Coordinates:    *state.Coordinates,
		Warehouse:      state.MatchedWarehouse.Ref(),
		IsGlobalMode:   state.IsGlobalMode,
		IsDetected:     state.IsDetected,
		StateCreatedAt: state.CreatedAt,
	}
	if err := m.publisher.PublishLocationChanged(ctx, event); err != nil {
		m.logger.Error("Failed to publish LocationChanged event", zap.Error(err))
	}
}

// pickWarehouse chooses the matched warehouse from an eligibility
// response: a deliverable local warehouse wins; otherwise a deliverable
// global warehouse flips the session into global mode.
func pickWarehouse(infos []models.WarehouseDeliveryInfo) (*models.Warehouse, bool) {
	for i := range infos {
		if infos[i].CanDeliver && infos[i].Warehouse.DeliveryEnabled && !infos[i].Warehouse.IsGlobal {
			w := infos[i].Warehouse
			return &w, false
		}
	}
	for i := range infos {
		if infos[i].CanDeliver && infos[i].Warehouse.DeliveryEnabled && infos[i].Warehouse.IsGlobal {
			w := infos[i].Warehouse
			return &w, true
		}
	}
	return nil, false
}

func stateFromSnapshot(snap *models.LocationSnapshot) *models.LocationState {
	state := &models.LocationState{
		SessionID:    snap.SessionID,
		Pincode:      snap.Pincode,
		Coordinates:  &models.Coordinates{Lat: snap.Lat, Lng: snap.Lng},
		Name:         snap.Name,
		IsDetected:   snap.IsDetected,
		IsGlobalMode: snap.IsGlobalMode,
		Status:       models.LocationStatusResolved,
		CreatedAt:    snap.UpdatedAt,
		UpdatedAt:    snap.UpdatedAt,
	}
	if snap.Warehouse.Complete() {
		state.MatchedWarehouse = &models.Warehouse{
			ID:       snap.Warehouse.ID,
			Name:     snap.Warehouse.Name,
			IsGlobal: snap.Warehouse.IsGlobal,
		}
	}
	return state
}
