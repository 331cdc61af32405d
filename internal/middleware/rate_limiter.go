package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/pkg/logger"
)

// RateLimiter is a fixed-window limit per client IP. Without redis, or when redis
// fails, requests pass.
func RateLimiter(redisClient *redis.Client, cfg *config.Config, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("rate_limit:%s", c.ClientIP())
		count, ttl, err := hit(c, redisClient, key, cfg.RateLimitDuration)
		if err != nil {
			log.Warn("Rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		remaining := cfg.RateLimitRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RateLimitRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > cfg.RateLimitRequests {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"code":        "RATE_LIMITED",
				"retry_after": int(ttl.Seconds()),
			})
			return
		}
		c.Next()
	}
}

// hit increments key and starts its window on the first hit.
func hit(c *gin.Context, rdb *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	ctx := c.Request.Context()
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}
	ttl, err := rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// key lost its expiry
		_ = rdb.Expire(ctx, key, window).Err()
		ttl = window
	}
	return count, ttl, nil
}
