package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDurable is an in-memory stand-in for the Redis tier.
type memDurable struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemDurable() *memDurable {
	return &memDurable{data: map[string][]byte{}}
}

func (d *memDurable) Put(_ context.Context, key string, payload []byte, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[key] = payload
	return nil
}

func (d *memDurable) Fetch(_ context.Context, key string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data[key], nil
}

func (d *memDurable) Delete(_ context.Context, keys ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		delete(d.data, k)
	}
	return nil
}

func (d *memDurable) Keys(_ context.Context, prefix string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var keys []string
	for k := range d.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func newTestCache() (*Cache, *memDurable, *time.Time) {
	durable := newMemDurable()
	c := New(durable)
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, durable, &now
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "categories", []string{"dairy", "produce"}, time.Minute))

	var got []string
	assert.True(t, c.Get(ctx, "categories", &got))
	assert.Equal(t, []string{"dairy", "produce"}, got)
}

func TestGetAfterExpiry(t *testing.T) {
	c, _, now := newTestCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "banners", "homepage", time.Minute))

	*now = now.Add(time.Minute + time.Second)

	var got string
	assert.False(t, c.Get(ctx, "banners", &got))
}

func TestDurableTierFallbackAndWriteBack(t *testing.T) {
	c, durable, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "brands", []string{"amul"}, time.Minute))

	// Drop the memory tier only.
	c.mu.Lock()
	c.mem = map[string]memEntry{}
	c.mu.Unlock()

	var got []string
	require.True(t, c.Get(ctx, "brands", &got))
	assert.Equal(t, []string{"amul"}, got)

	// Write-back: second read must hit memory even if durable vanishes.
	durable.mu.Lock()
	durable.data = map[string][]byte{}
	durable.mu.Unlock()

	var again []string
	assert.True(t, c.Get(ctx, "brands", &again))
	assert.Equal(t, []string{"amul"}, again)
}

func TestCorruptDurableEntryIsAMiss(t *testing.T) {
	c, durable, _ := newTestCache()
	ctx := context.Background()

	durable.data[KeyPrefix+"bad"] = []byte("{not json")

	var got string
	assert.False(t, c.Get(ctx, "bad", &got))
	assert.Empty(t, durable.data, "corrupt entry should be dropped")
}

func TestClearAllIsPrefixScoped(t *testing.T) {
	c, durable, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "products_110001_local", 1, time.Minute))
	durable.data["selectedLocation:sess-1"] = []byte(`{"session_id":"sess-1"}`)

	c.ClearAll(ctx)

	var got int
	assert.False(t, c.Get(ctx, "products_110001_local", &got))
	assert.Contains(t, durable.data, "selectedLocation:sess-1",
		"unrelated durable keys must survive ClearAll")
}

func TestSweepRemovesExpiredFromBothTiers(t *testing.T) {
	c, durable, now := newTestCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "long", 2, time.Hour))

	*now = now.Add(10 * time.Minute)
	c.Sweep(ctx)

	c.mu.RLock()
	_, shortInMem := c.mem["short"]
	_, longInMem := c.mem["long"]
	c.mu.RUnlock()
	assert.False(t, shortInMem)
	assert.True(t, longInMem)

	assert.NotContains(t, durable.data, KeyPrefix+"short")
	assert.Contains(t, durable.data, KeyPrefix+"long")
}

func TestGenerateLocationKey(t *testing.T) {
	assert.Equal(t, "products_110001_local", GenerateLocationKey("products", "110001", false))
	assert.Equal(t, "products_110001_global", GenerateLocationKey("products", "110001", true))
}
