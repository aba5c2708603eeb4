package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aq2208/payment-relay/internal/logging"
	"github.com/aq2208/payment-relay/internal/usecase"
	"github.com/gin-gonic/gin"
)

// RateLimit admits perWindow requests per client IP and route. Limiter
// errors let the request through.
func RateLimit(l usecase.RateLimiter, perWindow int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := c.ClientIP() + ":" + path

		allowed, err := l.Allow(c.Request.Context(), key, perWindow, window)
		if err != nil {
			logging.From(c).Warn("rate limiter unavailable, admitting request", "error", err)
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}
