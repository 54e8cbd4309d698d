package api

import (
	"net/http"
	"time"

	"HeritageAtlas/internal/state"

	"github.com/gin-gonic/gin"
)

// RateLimit applies a fixed-window limit per client IP, counting in the
// shared key-value store. A failing store fails open: rate limiting
// degrades, requests do not.
func RateLimit(st *state.Service, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		count := st.IncrementRequestCount(c.Request.Context(), clientIP, window)
		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
