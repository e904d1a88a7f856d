package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hyperjump/kangae/internal/config"
	"github.com/hyperjump/kangae/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "a", []float32{1, 2, 3}))
	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)

	require.NoError(t, c.Set(ctx, "b", []float32{4, 5}))
	_, _ = c.Get(ctx, "a") // a is now most recent
	require.NoError(t, c.Set(ctx, "c", []float32{6}))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss, "b was least recently used")
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "c")
	assert.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(10, time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []float32{1}))
	now = now.Add(30 * time.Second)
	_, err := c.Get(ctx, "k")
	assert.NoError(t, err)

	now = now.Add(31 * time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, c.Len(), "expired entries are dropped on read")
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []float32{0.5, -1}))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1}, v)
	assert.Equal(t, time.Minute, mr.TTL(redisKeyPrefix+"k"))

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(config.RedisConfig{Addr: addr}, time.Minute, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestNewCache_SelectsBackend(t *testing.T) {
	c, err := NewCache(&config.CacheConfig{Size: 5, TTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Backend())

	mr := miniredis.RunT(t)
	c, err = NewCache(&config.CacheConfig{TTL: time.Minute, Redis: config.RedisConfig{Addr: mr.Addr()}}, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "redis", c.Backend())
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := NewMockEmbedder(8)
	collector := metrics.NewCollector("test")
	e := NewCachedEmbedder(inner, NewMemoryCache(10, time.Minute), collector, zap.NewNop())

	first, err := e.Embed(ctx, "query")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "query")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.Calls(), "second lookup is served from cache")

	vectors, err := e.EmbedBatch(ctx, []string{"query", "other"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, first, vectors[0])
	assert.Equal(t, 2, inner.Calls(), "only the miss is embedded")

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `test_embedding_cache_hits_total{backend="memory"} 2`)
	assert.Contains(t, w.Body.String(), `test_embedding_cache_misses_total{backend="memory"} 2`)
	assert.Equal(t, "mock", e.Model())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("m", "text"), CacheKey("m", "text"))
	assert.NotEqual(t, CacheKey("m1", "text"), CacheKey("m2", "text"))
	assert.Len(t, CacheKey("m", "text"), 64)
}
