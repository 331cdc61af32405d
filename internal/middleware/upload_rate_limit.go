package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/pkg/logger"
)

// UploadRateLimit caps the number of file uploads per user per day. The counter
// resets at midnight UTC. Must run after Auth.
func UploadRateLimit(redisClient *redis.Client, cfg *config.Config, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok || redisClient == nil || cfg.UploadsPerDay <= 0 {
			c.Next()
			return
		}

		now := time.Now().UTC()
		key := fmt.Sprintf("upload_limit:%s:%s", userID, now.Format("2006-01-02"))
		midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

		count, ttl, err := hit(c, redisClient, key, midnight.Sub(now))
		if err != nil {
			log.Warn("Upload limiter unavailable", "user_id", userID, "error", err)
			c.Next()
			return
		}
		if int(count) > cfg.UploadsPerDay {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "Too many uploads today, try again tomorrow",
				"code":                "UPLOAD_LIMIT",
				"retry_after_hours":   int(ttl.Hours()),
				"max_uploads_per_day": cfg.UploadsPerDay,
			})
			return
		}
		c.Next()
	}
}
