package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/kangae/internal/config"
	"github.com/hyperjump/kangae/internal/metrics"
	"github.com/hyperjump/kangae/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores query embeddings for a bounded time.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, error)
	Set(ctx context.Context, key string, value []float32) error
	// Backend names the implementation for metrics and logs.
	Backend() string
	Close() error
}

// CacheKey derives the key for text embedded by model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// NewCache returns a Redis cache when an address is configured, else an in-process LRU.
func NewCache(cfg *config.CacheConfig, logger *zap.Logger) (Cache, error) {
	if cfg.Redis.Addr != "" {
		return NewRedisCache(cfg.Redis, cfg.TTL, logger)
	}
	return NewMemoryCache(cfg.Size, cfg.TTL), nil
}

// MemoryCache is an LRU cache with a per-entry TTL.
type MemoryCache struct {
	capacity int
	ttl      time.Duration
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	now      func() time.Time
}

type cacheEntry struct {
	key     string
	value   []float32
	expires time.Time
}

// NewMemoryCache creates a cache holding at most capacity entries. A ttl of 0 never expires.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the cached embedding for key if present and fresh.
func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	entry := elem.Value.(*cacheEntry)
	if !entry.expires.IsZero() && c.now().After(entry.expires) {
		c.lru.Remove(elem)
		delete(c.cache, key)
		return nil, ErrCacheMiss
	}
	c.lru.MoveToFront(elem)
	return entry.value, nil
}

// Set stores the embedding for key, evicting the least recently used entry if at capacity.
func (c *MemoryCache) Set(_ context.Context, key string, value []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expires = expires
		return nil
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value, expires: expires})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *MemoryCache) Backend() string { return "memory" }

func (c *MemoryCache) Close() error { return nil }

const redisKeyPrefix = "kangae:embedding:"

// RedisCache keeps embeddings in Redis as packed float32 blobs.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("embedding cache initialized", zap.String("backend", "redis"), zap.String("addr", cfg.Addr))
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "cache")),
	}, nil
}

// Get fetches an embedding. A missing key is ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	return utils.DecodeVector(raw)
}

// Set stores an embedding with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []float32) error {
	if err := c.client.Set(ctx, redisKeyPrefix+key, utils.EncodeVector(value), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Backend() string { return "redis" }

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedEmbedder serves repeated texts from a Cache and embeds only the misses.
// Cache failures are logged and treated as misses.
type CachedEmbedder struct {
	inner   Embedder
	cache   Cache
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewCachedEmbedder wraps inner with cache.
func NewCachedEmbedder(inner Embedder, cache Cache, collector *metrics.Collector, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		inner:   inner,
		cache:   cache,
		metrics: collector,
		logger:  logger.With(zap.String("component", "cached_embedder")),
	}
}

// Embed returns the embedding for text, consulting the cache first.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds the texts that are not cached in one call and fills the rest from the cache.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		keys[i] = CacheKey(e.inner.Model(), text)
		v, err := e.cache.Get(ctx, keys[i])
		switch {
		case err == nil:
			out[i] = v
			e.metrics.ObserveCache(e.cache.Backend(), true)
			continue
		case !errors.Is(err, ErrCacheMiss):
			e.logger.Warn("cache lookup failed", zap.Error(err))
		}
		e.metrics.ObserveCache(e.cache.Backend(), false)
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := e.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, idx := range missingIdx {
		out[idx] = vectors[j]
		if err := e.cache.Set(ctx, keys[idx], vectors[j]); err != nil {
			e.logger.Warn("cache store failed", zap.Error(err))
		}
	}
	return out, nil
}

func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

func (e *CachedEmbedder) Model() string { return e.inner.Model() }

// Close closes the cache and the wrapped embedder.
func (e *CachedEmbedder) Close() error {
	return errors.Join(e.cache.Close(), e.inner.Close())
}
