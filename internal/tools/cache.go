package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/redis"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultCacheTTL 工具结果默认缓存时间
const DefaultCacheTTL = 10 * time.Minute

// Cache 工具结果缓存
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// RedisCache 基于 Redis 的工具结果缓存；读写失败时视为未命中
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache 创建 RedisCache；client 为 nil 时返回 nil，nil 缓存的读写均为空操作
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, log: log.Named("tools.cache")}
}

// Get 读取缓存
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	value, err := c.client.Get(ctx, key)
	if err != nil {
		if !redis.IsNil(err) {
			c.log.Warn("tool cache read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if c == nil {
		return
	}
	_ = c.client.Set(ctx, key, value, c.ttl)
}

// cacheKey 由工具名和规范化后的参数生成
// 参数按 key 排序重新序列化，字段顺序不同的同一调用命中同一条缓存
func cacheKey(tool string, args gjson.Result) string {
	normalized := "{}"
	if args.IsObject() {
		if b, err := json.Marshal(args.Value()); err == nil {
			normalized = string(b)
		}
	}
	sum := sha256.Sum256([]byte(normalized))
	return "tools:" + tool + ":" + hex.EncodeToString(sum[:])
}
