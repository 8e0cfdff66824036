package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/agentic-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/redis"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/response"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/validator"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 时间窗口内允许的最大请求数
	MaxRequests int `mapstructure:"max_requests"`
	// 时间窗口（秒）
	WindowSeconds int `mapstructure:"window_seconds"`
	// 限流策略：subject, endpoint, ip（默认）
	Strategy string `mapstructure:"strategy"`
}

// 滑动窗口：每个请求以毫秒时间戳为 score、唯一 ID 为 member 写入有序集合
const slidingWindowScript = `
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window)
		return {1, limit - current - 1, now + window}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')[2]
	return {0, 0, tonumber(oldest) + window}
`

// RateLimiter 基于 Redis 的滑动窗口限流中间件
// redisClient 为 nil 时不限流；Redis 故障时放行
func RateLimiter(redisClient *redis.Client, cfg RateLimiterConfig, log *logger.Logger) gin.HandlerFunc {
	if redisClient == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "ip"
	}

	return func(c *gin.Context) {
		key := buildRateLimitKey(c, cfg.Strategy)

		ctx := c.Request.Context()
		allowed, remaining, resetAt, err := checkRateLimit(ctx, redisClient, key, cfg, time.Now())
		if err != nil {
			log.WithContext(ctx).Error("rate limiter error", zap.Error(err), zap.String("key", key))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			response.AbortWithError(c, apperrors.NewRateLimitedError(
				fmt.Sprintf("too many requests, please try again in %d seconds", retryAfter)))
			return
		}

		c.Next()
	}
}

// buildRateLimitKey 构建限流 key
func buildRateLimitKey(c *gin.Context, strategy string) string {
	prefix := "rate_limit"

	switch strategy {
	case "subject":
		// 需要先经过 JWTAuth，未认证时回退到 IP
		if subject, ok := GetSubject(c); ok {
			return fmt.Sprintf("%s:subject:%s", prefix, subject)
		}
		return fmt.Sprintf("%s:ip:%s", prefix, clientIP(c))

	case "endpoint":
		return fmt.Sprintf("%s:endpoint:%s:%s", prefix, c.FullPath(), clientIP(c))

	default:
		return fmt.Sprintf("%s:ip:%s", prefix, clientIP(c))
	}
}

// clientIP 去掉 IPv6 zone，无法解析时归为 unknown
func clientIP(c *gin.Context) string {
	return validator.GetIPOrDefault(c.ClientIP(), "unknown")
}

// checkRateLimit 原子地检查并记录一次请求
func checkRateLimit(ctx context.Context, redisClient *redis.Client, key string, cfg RateLimiterConfig, now time.Time) (allowed bool, remaining int, resetAt time.Time, err error) {
	windowMs := int64(cfg.WindowSeconds) * 1000

	result, err := redisClient.Eval(ctx, slidingWindowScript, []string{key},
		now.UnixMilli(), windowMs, cfg.MaxRequests, ulid.Make().String())
	if err != nil {
		return false, 0, time.Time{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("invalid rate limit result: %v", result)
	}

	allowedInt, _ := values[0].(int64)
	remainingInt, _ := values[1].(int64)
	resetMs, _ := values[2].(int64)

	return allowedInt == 1, int(remainingInt), time.UnixMilli(resetMs), nil
}
