package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/releasedesk/backend/internal/pkg/logger"
)

// ActionRateLimit limits how often a user may trigger an expensive action (task
// generation) within window. A user who keeps going past twice the limit is blocked
// for an hour. Must run after Auth.
func ActionRateLimit(redisClient *redis.Client, log *logger.Logger, action string, maxActions int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok || redisClient == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		blockKey := fmt.Sprintf("action_blocked:%s:%s", userID, action)

		if blocked, err := redisClient.Exists(ctx, blockKey).Result(); err == nil && blocked > 0 {
			ttl, _ := redisClient.TTL(ctx, blockKey).Result()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":                 "Temporarily blocked after too many requests",
				"code":                  "ACTION_BLOCKED",
				"blocked_until_minutes": int(ttl.Minutes()),
			})
			return
		}

		count, _, err := hit(c, redisClient, fmt.Sprintf("action_limit:%s:%s", userID, action), window)
		if err != nil {
			log.Warn("Action limiter unavailable", "action", action, "error", err)
			c.Next()
			return
		}

		if int(count) > 2*maxActions {
			_ = redisClient.Set(ctx, blockKey, 1, time.Hour).Err()
			log.Warn("User blocked for repeated actions", "user_id", userID, "action", action, "count", count)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":               "Temporarily blocked after too many requests",
				"code":                "ACTION_BLOCKED",
				"blocked_for_minutes": 60,
			})
			return
		}
		if int(count) > maxActions {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "Too many requests, wait a few minutes",
				"code":                "RATE_LIMITED",
				"retry_after_minutes": int(window.Minutes()),
			})
			return
		}
		c.Next()
	}
}
