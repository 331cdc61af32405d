package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Health reports database and redis reachability. Redis is optional, so only a
// database failure makes the service unhealthy.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	database := "ok"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		database, status, code = "unreachable", "degraded", http.StatusServiceUnavailable
	}
	cache := "disabled"
	if h.redis != nil {
		cache = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			cache = "unreachable"
		}
	}

	c.JSON(code, gin.H{
		"status":   status,
		"database": database,
		"redis":    cache,
		"time":     time.Now().UTC(),
	})
}
