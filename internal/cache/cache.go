package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// KeyPrefix namespaces every durable entry so ClearAll never touches
// unrelated keys in the shared store.
const KeyPrefix = "bazarxpress_cache_"

// Durable is the second cache tier: survives process restarts.
// Fetch returns (nil, nil) on miss.
type Durable interface {
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Fetch(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Envelope wraps every cached value with its expiry metadata.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type memEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Cache is a two-tier TTL cache: an in-process map in front of a durable
// key-value tier. Reads fall through memory to durable and write back on
// a durable hit. Entries are lazily evicted on read; Sweep proactively
// removes expired entries from both tiers.
type Cache struct {
	mu      sync.RWMutex
	mem     map[string]memEntry
	durable Durable
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a cache in front of the given durable tier.
func New(durable Durable) *Cache {
	return &Cache{
		mem:     make(map[string]memEntry),
		durable: durable,
		logger:  util.GetLogger(),
		now:     time.Now,
	}
}

// GenerateLocationKey derives a cache key scoped to a location/mode
// context so entries never leak across pincodes or delivery modes.
func GenerateLocationKey(base, pincode string, isGlobal bool) string {
	mode := "local"
	if isGlobal {
		mode = "global"
	}
	return fmt.Sprintf("%s_%s_%s", base, pincode, mode)
}

// Set writes value to both tiers with the given TTL. Durable-tier
// failures are logged and swallowed; the memory tier is authoritative
// for the lifetime of the process.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	now := c.now()
	env := Envelope{
		Data:      data,
		Timestamp: now,
		ExpiresAt: now.Add(ttl),
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}

	c.mu.Lock()
	c.mem[key] = memEntry{payload: payload, expiresAt: env.ExpiresAt}
	c.mu.Unlock()

	if err := c.durable.Put(ctx, KeyPrefix+key, payload, ttl); err != nil {
		c.logger.Warn("Durable cache write failed",
			zap.String("key", key),
			zap.Error(err))
	}

	return nil
}

// Get reads key into out. Returns false on miss, expiry, or a corrupt
// envelope in both tiers. A durable hit repopulates the memory tier.
func (c *Cache) Get(ctx context.Context, key string, out interface{}) bool {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.mem[key]
	c.mu.RUnlock()

	if ok {
		if now.Before(entry.expiresAt) {
			if c.decode(entry.payload, out) {
				util.CacheHitsTotal.WithLabelValues("memory").Inc()
				return true
			}
		}
		c.mu.Lock()
		delete(c.mem, key)
		c.mu.Unlock()
	}

	payload, err := c.durable.Fetch(ctx, KeyPrefix+key)
	if err != nil {
		c.logger.Warn("Durable cache read failed",
			zap.String("key", key),
			zap.Error(err))
		util.CacheMissesTotal.Inc()
		return false
	}
	if payload == nil {
		util.CacheMissesTotal.Inc()
		return false
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil || !now.Before(env.ExpiresAt) {
		// Corrupt or expired durable entry: drop it, report a miss.
		_ = c.durable.Delete(ctx, KeyPrefix+key)
		util.CacheMissesTotal.Inc()
		return false
	}

	if !c.decode(payload, out) {
		util.CacheMissesTotal.Inc()
		return false
	}

	// Write back so the next read hits memory.
	c.mu.Lock()
	c.mem[key] = memEntry{payload: payload, expiresAt: env.ExpiresAt}
	c.mu.Unlock()

	util.CacheHitsTotal.WithLabelValues("durable").Inc()
	return true
}

func (c *Cache) decode(payload []byte, out interface{}) bool {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return false
	}
	if out == nil {
		return true
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		c.logger.Warn("Corrupt cache entry", zap.Error(err))
		return false
	}
	return true
}

// Clear removes key from both tiers.
func (c *Cache) Clear(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()

	if err := c.durable.Delete(ctx, KeyPrefix+key); err != nil {
		c.logger.Warn("Durable cache delete failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// ClearAll removes every entry owned by this cache. Only keys under
// KeyPrefix are touched in the durable tier.
func (c *Cache) ClearAll(ctx context.Context) {
	c.mu.Lock()
	c.mem = make(map[string]memEntry)
	c.mu.Unlock()

	keys, err := c.durable.Keys(ctx, KeyPrefix)
	if err != nil {
		c.logger.Warn("Durable cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.durable.Delete(ctx, keys...); err != nil {
		c.logger.Warn("Durable cache clear failed", zap.Error(err))
	}
}

// Sweep drops expired entries from both tiers. Reads already evict
// lazily, so this only bounds the footprint between reads.
func (c *Cache) Sweep(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	for key, entry := range c.mem {
		if !now.Before(entry.expiresAt) {
			delete(c.mem, key)
		}
	}
	c.mu.Unlock()

	keys, err := c.durable.Keys(ctx, KeyPrefix)
	if err != nil {
		c.logger.Warn("Durable cache scan failed", zap.Error(err))
		return
	}

	var expired []string
	for _, key := range keys {
		payload, err := c.durable.Fetch(ctx, key)
		if err != nil || payload == nil {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil || !now.Before(env.ExpiresAt) {
			expired = append(expired, key)
		}
	}
	if len(expired) > 0 {
		if err := c.durable.Delete(ctx, expired...); err != nil {
			c.logger.Warn("Durable cache sweep failed", zap.Error(err))
		}
		util.CacheSweepEvictions.Add(float64(len(expired)))
	}
}
