package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// Client wraps Redis for the durable cache tier, cached geolocation
// positions, and persisted location snapshots.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Put stores a cache payload with TTL (durable cache tier).
func (c *Client) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, payload, ttl).Err()
}

// Fetch reads a cache payload. Returns (nil, nil) on miss.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Delete removes the given keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Keys scans for keys under prefix. SCAN, not KEYS, so a large
// keyspace does not block the server.
func (c *Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return keys, nil
}

// CachePosition stores a resolved geolocation position for a session.
// The TTL is the position-cache window (maximumAge).
func (c *Client) CachePosition(ctx context.Context, sessionID string, coords models.Coordinates, name string, maxAge time.Duration) error {
	payload, err := json.Marshal(cachedPosition{Coords: coords, Name: name})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("position:%s", sessionID), payload, maxAge).Err()
}

// CachedPosition returns a previously resolved position if still within
// the cache window. ok is false on miss.
func (c *Client) CachedPosition(ctx context.Context, sessionID string) (models.Coordinates, string, bool, error) {
	payload, err := c.rdb.Get(ctx, fmt.Sprintf("position:%s", sessionID)).Bytes()
	if err == redis.Nil {
		return models.Coordinates{}, "", false, nil
	}
	if err != nil {
		return models.Coordinates{}, "", false, err
	}

	var pos cachedPosition
	if err := json.Unmarshal(payload, &pos); err != nil {
		return models.Coordinates{}, "", false, nil
	}
	return pos.Coords, pos.Name, true, nil
}

type cachedPosition struct {
	Coords models.Coordinates `json:"coords"`
	Name   string             `json:"name"`
}

// SaveLocationSnapshot persists a session's location under its dedicated
// keys, outside the generic cache namespace.
func (c *Client) SaveLocationSnapshot(ctx context.Context, snap *models.LocationSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal location snapshot: %w", err)
	}

	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, fmt.Sprintf("selectedLocation:%s", snap.SessionID), payload, 0)
	pipe.Set(ctx, fmt.Sprintf("locationName:%s", snap.SessionID), snap.Name, 0)

	_, err = pipe.Exec(ctx)
	return err
}

// LoadLocationSnapshot restores a persisted location. A missing or
// malformed entry returns nil without error: persisted storage is a
// restore mechanism, never a source of truth.
func (c *Client) LoadLocationSnapshot(ctx context.Context, sessionID string) (*models.LocationSnapshot, error) {
	payload, err := c.rdb.Get(ctx, fmt.Sprintf("selectedLocation:%s", sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap models.LocationSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, nil
	}
	if !snap.Valid() {
		return nil, nil
	}
	return &snap, nil
}

// DeleteLocationSnapshot removes a session's persisted location keys.
func (c *Client) DeleteLocationSnapshot(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx,
		fmt.Sprintf("selectedLocation:%s", sessionID),
		fmt.Sprintf("locationName:%s", sessionID),
	).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
