package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
)

const defaultMemoryCacheSize = 512

// CachedFormulary decorates a FormularyService with two cache tiers: an
// in-memory LRU for hot entries and Redis for warm shared data. Formulary
// data is immutable per version, so the only consistency concern is TTL.
// Both tiers are optional degradations: a cache failure falls through to
// the underlying store.
type CachedFormulary struct {
	next   domain.FormularyService
	memory *lru.Cache
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedFormulary wraps the given formulary service. Pass a nil redis
// client to run memory-only.
func NewCachedFormulary(next domain.FormularyService, redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) (*CachedFormulary, error) {
	memory, err := lru.New(defaultMemoryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating formulary memory cache: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedFormulary{
		next:   next,
		memory: memory,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// NewRedisClient builds the shared cache connection from configuration and
// verifies it with a ping.
func NewRedisClient(cfg domain.CacheConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

type cachedEntry struct {
	Entry    *domain.FormularyEntry `json:"entry"`
	CachedAt time.Time              `json:"cached_at"`
}

type cachedEntryList struct {
	Entries  []domain.FormularyEntry `json:"entries"`
	CachedAt time.Time               `json:"cached_at"`
}

// GetEntry implements domain.FormularyService with read-through caching.
// Misses (ErrNotFound) are not cached.
func (c *CachedFormulary) GetEntry(ctx context.Context, planID, drugName string) (*domain.FormularyEntry, error) {
	key := entryKey(planID, drugName)

	if cached, ok := c.memory.Get(key); ok {
		return cached.(*cachedEntry).Entry, nil
	}
	if entry := c.redisGetEntry(ctx, key); entry != nil {
		c.memory.Add(key, &cachedEntry{Entry: entry, CachedAt: time.Now()})
		return entry, nil
	}

	entry, err := c.next.GetEntry(ctx, planID, drugName)
	if err != nil {
		return nil, err
	}

	wrapped := &cachedEntry{Entry: entry, CachedAt: time.Now()}
	c.memory.Add(key, wrapped)
	c.redisSet(ctx, key, wrapped)
	return entry, nil
}

// ListByClass implements domain.FormularyService with read-through caching.
func (c *CachedFormulary) ListByClass(ctx context.Context, planID, drugClass string, maxTier int) ([]domain.FormularyEntry, error) {
	key := classKey(planID, drugClass, maxTier)

	if cached, ok := c.memory.Get(key); ok {
		return cached.(*cachedEntryList).Entries, nil
	}
	if entries := c.redisGetList(ctx, key); entries != nil {
		c.memory.Add(key, &cachedEntryList{Entries: entries, CachedAt: time.Now()})
		return entries, nil
	}

	entries, err := c.next.ListByClass(ctx, planID, drugClass, maxTier)
	if err != nil {
		return nil, err
	}

	wrapped := &cachedEntryList{Entries: entries, CachedAt: time.Now()}
	c.memory.Add(key, wrapped)
	c.redisSet(ctx, key, wrapped)
	return entries, nil
}

// Invalidate drops both cache tiers for a plan/drug pair. Called after a
// formulary data load.
func (c *CachedFormulary) Invalidate(ctx context.Context, planID, drugName string) {
	key := entryKey(planID, drugName)
	c.memory.Remove(key)
	if c.redis != nil {
		if err := c.redis.Del(ctx, key).Err(); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Failed to invalidate Redis cache entry")
		}
	}
}

func (c *CachedFormulary) redisGetEntry(ctx context.Context, key string) *domain.FormularyEntry {
	if c.redis == nil {
		return nil
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.WithError(err).Debug("Redis formulary read failed, falling through")
		return nil
	}
	var wrapped cachedEntry
	if err := json.Unmarshal([]byte(val), &wrapped); err != nil {
		return nil
	}
	return wrapped.Entry
}

func (c *CachedFormulary) redisGetList(ctx context.Context, key string) []domain.FormularyEntry {
	if c.redis == nil {
		return nil
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.WithError(err).Debug("Redis formulary read failed, falling through")
		return nil
	}
	var wrapped cachedEntryList
	if err := json.Unmarshal([]byte(val), &wrapped); err != nil {
		return nil
	}
	return wrapped.Entries
}

func (c *CachedFormulary) redisSet(ctx context.Context, key string, value interface{}) {
	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("Redis formulary write failed")
	}
}

func entryKey(planID, drugName string) string {
	return fmt.Sprintf("formulary:entry:%s:%s", planID, domain.NormalizeDrugName(drugName))
}

func classKey(planID, drugClass string, maxTier int) string {
	return fmt.Sprintf("formulary:class:%s:%s:%d", planID, strings.ToLower(drugClass), maxTier)
}
