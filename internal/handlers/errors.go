package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/releasedesk/backend/internal/services"
)

// respondError writes the JSON error body for err. Unknown errors become a generic 500
// and are attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	var (
		notFound   *services.NotFoundError
		validation *services.ValidationError
		conflict   *services.ConflictError
		upstream   *services.UpstreamError
		timeout    *services.TimeoutError
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error(), "code": "NOT_FOUND"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "code": "VALIDATION_ERROR"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "code": "CONFLICT"})
	case errors.As(err, &timeout):
		_ = c.Error(err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": timeout.Service + " timed out", "code": "TIMEOUT"})
	case errors.As(err, &upstream):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": upstream.Service + " is unavailable", "code": "UPSTREAM_ERROR"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "INTERNAL_ERROR"})
	}
}

// badRequest answers 400 for malformed input caught in the handler.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "VALIDATION_ERROR"})
}
