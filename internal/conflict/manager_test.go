package conflict

import (
	"context"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCart struct {
	items   []models.CartItem
	loading bool

	cleared bool
	forced  []models.CartItem
}

func (f *fakeCart) Items(string) []models.CartItem { return f.items }
func (f *fakeCart) Loading(string) bool           { return f.loading }

func (f *fakeCart) Clear(context.Context, string, string) error {
	f.cleared = true
	f.items = nil
	return nil
}

func (f *fakeCart) ForceAdd(_ context.Context, _ string, item models.CartItem) error {
	f.forced = append(f.forced, item)
	return nil
}

type fakeLocation struct {
	switched bool
	reverted bool
}

func (f *fakeLocation) SwitchToGlobalMode(context.Context, string) error {
	f.switched = true
	return nil
}

func (f *fakeLocation) RevertToPreviousLocation(context.Context, string) error {
	f.reverted = true
	return nil
}

var (
	local1 = models.WarehouseRef{ID: "w1", Name: "Koramangala"}
	local2 = models.WarehouseRef{ID: "w2", Name: "Indiranagar"}
	global = models.WarehouseRef{ID: "g1", Name: "Global", IsGlobal: true}
)

func newTestManager() (*Manager, *fakeCart, *fakeLocation) {
	cart := &fakeCart{}
	loc := &fakeLocation{}
	m := NewManager(cart, loc, nil)
	return m, cart, loc
}

func cartItem(w models.WarehouseRef) models.CartItem {
	return models.CartItem{ProductID: "p1", Name: "Milk", Price: 60, Quantity: 1, Warehouse: w}
}

func oldNotice(w models.WarehouseRef) LocationChangeNotice {
	return LocationChangeNotice{
		SessionID:      "sess-1",
		NewWarehouse:   w,
		StateCreatedAt: time.Now().Add(-time.Minute),
	}
}

func TestEvaluateSuppressedWithinGracePeriod(t *testing.T) {
	m, cart, _ := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}

	state := m.EvaluateLocationChange(context.Background(), LocationChangeNotice{
		SessionID:      "sess-1",
		NewWarehouse:   local2,
		StateCreatedAt: time.Now(),
	})

	assert.Nil(t, state)
	assert.Nil(t, m.Pending("sess-1"))
}

func TestEvaluateSuppressedWhileCartLoading(t *testing.T) {
	m, cart, _ := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}
	cart.loading = true

	assert.Nil(t, m.EvaluateLocationChange(context.Background(), oldNotice(local2)))
}

func TestEvaluateEmptyCartNeverConflicts(t *testing.T) {
	m, _, _ := newTestManager()

	assert.Nil(t, m.EvaluateLocationChange(context.Background(), oldNotice(local2)))
}

func TestEvaluateSuppressedOnIncompleteIdentity(t *testing.T) {
	m, cart, _ := newTestManager()
	cart.items = []models.CartItem{cartItem(models.WarehouseRef{ID: "w1"})}

	assert.Nil(t, m.EvaluateLocationChange(context.Background(), oldNotice(local2)))
}

func TestEvaluateDetectsLocationConflict(t *testing.T) {
	m, cart, _ := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}

	state := m.EvaluateLocationChange(context.Background(), oldNotice(local2))

	require.NotNil(t, state)
	assert.Equal(t, models.ConflictKindLocation, state.Kind)
	assert.Equal(t, local1, state.ExistingWarehouse)
	assert.Equal(t, local2, state.IncomingWarehouse)
	assert.Same(t, state, m.Pending("sess-1"))
}

func TestEvaluateSameWarehouseNoConflict(t *testing.T) {
	m, cart, _ := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}

	assert.Nil(t, m.EvaluateLocationChange(context.Background(), oldNotice(local1)))
}

func TestResolveClearProductConflictAppliesPendingAdd(t *testing.T) {
	m, cart, _ := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}
	blocked := cartItem(local2)
	blocked.ProductID = "p2"

	m.RegisterProductConflict(context.Background(), "sess-1", blocked, local1)

	require.NoError(t, m.Resolve(context.Background(), "sess-1", models.ResolutionClear))
	assert.True(t, cart.cleared)
	require.Len(t, cart.forced, 1)
	assert.Equal(t, "p2", cart.forced[0].ProductID)
	assert.Nil(t, m.Pending("sess-1"))
}

func TestResolveClearLocationConflictOnlyClears(t *testing.T) {
	m, cart, loc := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}

	require.NotNil(t, m.EvaluateLocationChange(context.Background(), oldNotice(local2)))

	require.NoError(t, m.Resolve(context.Background(), "sess-1", models.ResolutionClear))
	assert.True(t, cart.cleared)
	assert.Empty(t, cart.forced)
	assert.False(t, loc.reverted)
}

func TestResolveSwitchGlobal(t *testing.T) {
	m, cart, loc := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}
	blocked := cartItem(global)

	m.RegisterProductConflict(context.Background(), "sess-1", blocked, local1)

	require.NoError(t, m.Resolve(context.Background(), "sess-1", models.ResolutionSwitchGlobal))
	assert.True(t, loc.switched)
	assert.False(t, cart.cleared, "cart must survive a mode switch")
	assert.Nil(t, m.Pending("sess-1"))
}

func TestResolveSwitchGlobalRejectsLocalIncoming(t *testing.T) {
	m, cart, loc := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}
	blocked := cartItem(local2)

	m.RegisterProductConflict(context.Background(), "sess-1", blocked, local1)

	err := m.Resolve(context.Background(), "sess-1", models.ResolutionSwitchGlobal)
	require.Error(t, err)
	assert.False(t, loc.switched)
	assert.NotNil(t, m.Pending("sess-1"), "invalid action must not destroy the conflict")
}

func TestResolveSwitchGlobalRejectsLocationConflicts(t *testing.T) {
	m, cart, _ := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}

	require.NotNil(t, m.EvaluateLocationChange(context.Background(), oldNotice(global)))

	err := m.Resolve(context.Background(), "sess-1", models.ResolutionSwitchGlobal)
	require.Error(t, err)
	assert.NotNil(t, m.Pending("sess-1"))
}

func TestResolveKeepRevertsLocation(t *testing.T) {
	m, cart, loc := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}

	require.NotNil(t, m.EvaluateLocationChange(context.Background(), oldNotice(local2)))

	require.NoError(t, m.Resolve(context.Background(), "sess-1", models.ResolutionKeep))
	assert.True(t, loc.reverted)
	assert.False(t, cart.cleared)
	assert.Nil(t, m.Pending("sess-1"))
}

func TestResolveKeepDiscardsPendingAdd(t *testing.T) {
	m, cart, loc := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}

	m.RegisterProductConflict(context.Background(), "sess-1", cartItem(local2), local1)

	require.NoError(t, m.Resolve(context.Background(), "sess-1", models.ResolutionKeep))
	assert.False(t, loc.reverted)
	assert.Empty(t, cart.forced)
	assert.Nil(t, m.Pending("sess-1"))
}

func TestResolveUnknownActionRestoresPending(t *testing.T) {
	m, cart, _ := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}

	m.RegisterProductConflict(context.Background(), "sess-1", cartItem(local2), local1)

	require.Error(t, m.Resolve(context.Background(), "sess-1", "merge"))
	assert.NotNil(t, m.Pending("sess-1"))
}

func TestResolveWithoutPendingConflict(t *testing.T) {
	m, _, _ := newTestManager()

	assert.Error(t, m.Resolve(context.Background(), "sess-1", models.ResolutionClear))
}

func TestDiscard(t *testing.T) {
	m, cart, _ := newTestManager()
	cart.items = []models.CartItem{cartItem(local1)}

	m.RegisterProductConflict(context.Background(), "sess-1", cartItem(local2), local1)
	m.Discard("sess-1")

	assert.Nil(t, m.Pending("sess-1"))
}
