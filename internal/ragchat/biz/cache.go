package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/ragchat/internal/ragchat/metrics"
	"github.com/kart-io/ragchat/pkg/utils/json"
)

// EmbeddingCache stores embeddings by key. Implementations never fail the
// caller: a miss and an error look the same.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

// RedisCacheConfig 向量缓存配置。
type RedisCacheConfig struct {
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// RedisEmbeddingCache 基于 Redis 的向量缓存。
type RedisEmbeddingCache struct {
	redis  *goredis.Client
	config *RedisCacheConfig
}

// NewRedisEmbeddingCache 创建 Redis 向量缓存。
func NewRedisEmbeddingCache(redis *goredis.Client, config *RedisCacheConfig) *RedisEmbeddingCache {
	if config == nil {
		config = &RedisCacheConfig{
			TTL:       24 * time.Hour,
			KeyPrefix: "ragchat:embed:",
		}
	}
	return &RedisEmbeddingCache{
		redis:  redis,
		config: config,
	}
}

// Get 从缓存读取向量。
func (c *RedisEmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.redis.Get(ctx, c.config.KeyPrefix+key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("failed to get from cache", "error", err.Error(), "key", key)
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		logger.Warnw("failed to unmarshal cached embedding", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, c.config.KeyPrefix+key).Err()
		return nil, false
	}
	return vec, true
}

// Set 写入缓存。
func (c *RedisEmbeddingCache) Set(ctx context.Context, key string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		logger.Warnw("failed to marshal embedding for caching", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, c.config.KeyPrefix+key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", key)
	}
}

// CachedEmbedder consults cache before delegating to next.
type CachedEmbedder struct {
	next    Embedder
	cache   EmbeddingCache
	model   string
	metrics *metrics.Metrics
}

// NewCachedEmbedder wraps next with cache. model is part of the cache key
// so switching models never serves stale vectors.
func NewCachedEmbedder(next Embedder, cache EmbeddingCache, model string, m *metrics.Metrics) *CachedEmbedder {
	return &CachedEmbedder{
		next:    next,
		cache:   cache,
		model:   model,
		metrics: m,
	}
}

// Embed implements Embedder.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := embeddingKey(e.model, text)
	if vec, ok := e.cache.Get(ctx, key); ok {
		e.metrics.RecordCache(true)
		logger.Debugw("embedding cache hit", "key", key)
		return vec, nil
	}
	e.metrics.RecordCache(false)

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(ctx, key, vec)
	return vec, nil
}

func embeddingKey(model, text string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(hash[:])
}
