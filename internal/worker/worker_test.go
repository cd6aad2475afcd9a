package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront-service/internal/conflict"
	"storefront-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCart struct {
	items   []models.CartItem
	loading bool
}

func (c *fakeCart) Items(string) []models.CartItem { return c.items }
func (c *fakeCart) Loading(string) bool            { return c.loading }
func (c *fakeCart) Clear(context.Context, string, string) error {
	c.items = nil
	return nil
}
func (c *fakeCart) ForceAdd(_ context.Context, _ string, item models.CartItem) error {
	c.items = append(c.items, item)
	return nil
}

type fakeLocation struct{}

func (l *fakeLocation) SwitchToGlobalMode(context.Context, string) error       { return nil }
func (l *fakeLocation) RevertToPreviousLocation(context.Context, string) error { return nil }

type memProcessed struct {
	seen map[string]bool
}

func (s *memProcessed) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	return s.seen[eventID], nil
}

func (s *memProcessed) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	s.seen[eventID] = true
	return nil
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

var (
	local1 = models.WarehouseRef{ID: "w1", Name: "Koramangala"}
	local2 = models.WarehouseRef{ID: "w2", Name: "Indiranagar"}
)

func locationChanged(eventID, sessionID string, warehouse models.WarehouseRef) *models.LocationChangedEvent {
	return &models.LocationChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypeLocationChanged,
			Timestamp: time.Now(),
		},
		SessionID:      sessionID,
		Warehouse:      warehouse,
		StateCreatedAt: time.Now().Add(-time.Minute),
	}
}

func TestLocationChangedRaisesConflict(t *testing.T) {
	cart := &fakeCart{items: []models.CartItem{{ProductID: "p1", Name: "Milk", Warehouse: local1}}}
	resolver := conflict.NewManager(cart, &fakeLocation{}, nil)
	w := NewConflictWorker(nil, resolver, &memProcessed{}, nil)

	msg := message(t, locationChanged("evt-1", "sess-1", local2))
	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))

	pending := resolver.Pending("sess-1")
	require.NotNil(t, pending)
	assert.Equal(t, models.ConflictKindLocation, pending.Kind)
	assert.Equal(t, local1, pending.ExistingWarehouse)
	assert.Equal(t, local2, pending.IncomingWarehouse)
}

func TestLocationChangedDeduplicated(t *testing.T) {
	cart := &fakeCart{items: []models.CartItem{{ProductID: "p1", Name: "Milk", Warehouse: local1}}}
	resolver := conflict.NewManager(cart, &fakeLocation{}, nil)
	w := NewConflictWorker(nil, resolver, &memProcessed{}, nil)
	ctx := context.Background()

	msg := message(t, locationChanged("evt-1", "sess-1", local2))
	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))
	resolver.Discard("sess-1")

	// A redelivery of the same event must not re-raise the conflict.
	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))
	assert.Nil(t, resolver.Pending("sess-1"))
}

func TestCartClearedDiscardsPendingConflict(t *testing.T) {
	cart := &fakeCart{items: []models.CartItem{{ProductID: "p1", Name: "Milk", Warehouse: local1}}}
	resolver := conflict.NewManager(cart, &fakeLocation{}, nil)
	w := NewConflictWorker(nil, resolver, &memProcessed{}, nil)
	ctx := context.Background()

	item := models.CartItem{ProductID: "p2", Name: "Bread", Warehouse: local2}
	resolver.RegisterProductConflict(ctx, "sess-1", item, local1)
	require.NotNil(t, resolver.Pending("sess-1"))

	// An emptied cart removes the premise of the pending conflict.
	msg := message(t, &models.CartClearedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-2",
			EventType: models.EventTypeCartCleared,
			Timestamp: time.Now(),
		},
		SessionID: "sess-1",
		Reason:    "user_request",
	})
	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))

	assert.Nil(t, resolver.Pending("sess-1"))
}

func TestCartClearedForOtherSessionKeepsConflict(t *testing.T) {
	cart := &fakeCart{items: []models.CartItem{{ProductID: "p1", Name: "Milk", Warehouse: local1}}}
	resolver := conflict.NewManager(cart, &fakeLocation{}, nil)
	w := NewConflictWorker(nil, resolver, &memProcessed{}, nil)
	ctx := context.Background()

	item := models.CartItem{ProductID: "p2", Name: "Bread", Warehouse: local2}
	resolver.RegisterProductConflict(ctx, "sess-1", item, local1)

	msg := message(t, &models.CartClearedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-3",
			EventType: models.EventTypeCartCleared,
			Timestamp: time.Now(),
		},
		SessionID: "sess-2",
	})
	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))

	assert.NotNil(t, resolver.Pending("sess-1"))
}
