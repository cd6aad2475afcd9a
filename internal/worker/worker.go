package worker

import (
	"context"
	"log"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/conflict"
	"storefront-service/internal/models"
)

// sweeper is the slice of cache behavior the sweep worker needs.
type sweeper interface {
	Sweep(ctx context.Context)
}

// SweepWorker periodically removes expired entries from both cache
// tiers. Reads evict lazily, so the sweep only bounds footprint.
type SweepWorker struct {
	cache    sweeper
	interval time.Duration
	done     chan struct{}
}

// DefaultSweepInterval between cache sweeps.
const DefaultSweepInterval = 10 * time.Minute

// NewSweepWorker creates a sweep worker.
func NewSweepWorker(cache sweeper, interval time.Duration) *SweepWorker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SweepWorker{
		cache:    cache,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (w *SweepWorker) Start(ctx context.Context) error {
	log.Printf("Starting cache sweep worker: interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
			w.cache.Sweep(ctx)
		}
	}
}

// Stop stops the worker
func (w *SweepWorker) Stop() error {
	log.Println("Stopping cache sweep worker...")
	close(w.done)
	return nil
}

// processedStore provides consumer idempotency.
type processedStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// idempotencyCache is the fast dedup tier in front of the store.
type idempotencyCache interface {
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
}

const idempotencyTTL = 24 * time.Hour

// ConflictWorker consumes LocationChanged events and runs the
// location-driven conflict evaluation against the session's cart.
type ConflictWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	resolver     *conflict.Manager
}

// NewConflictWorker creates a conflict worker. idem is an optional fast
// dedup tier; processed is the durable one.
func NewConflictWorker(consumer *broker.Consumer, resolver *conflict.Manager, processed processedStore, idem idempotencyCache) *ConflictWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnLocationChanged(func(ctx context.Context, event *models.LocationChangedEvent) error {
		if idem != nil {
			if seen, err := idem.CheckIdempotencyKey(ctx, event.EventID); err == nil && seen {
				return nil
			}
		}
		if processed != nil {
			done, err := processed.IsEventProcessed(ctx, event.EventID)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}

		resolver.EvaluateLocationChange(ctx, conflict.LocationChangeNotice{
			SessionID:      event.SessionID,
			NewWarehouse:   event.Warehouse,
			StateCreatedAt: event.StateCreatedAt,
		})

		if processed != nil {
			if err := processed.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
				log.Printf("Failed to mark event processed: %v", err)
			}
		}
		if idem != nil {
			if err := idem.SetIdempotencyKey(ctx, event.EventID, event.EventType, idempotencyTTL); err != nil {
				log.Printf("Failed to set idempotency key: %v", err)
			}
		}
		return nil
	})

	eventHandler.OnCartCleared(func(ctx context.Context, event *models.CartClearedEvent) error {
		// An emptied cart removes the premise of any pending conflict.
		resolver.Discard(event.SessionID)
		return nil
	})

	return &ConflictWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		resolver:     resolver,
	}
}

// Start starts the worker
func (w *ConflictWorker) Start(ctx context.Context) error {
	log.Println("Starting conflict worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ConflictWorker) Stop() error {
	log.Println("Stopping conflict worker...")
	return w.consumer.Close()
}
