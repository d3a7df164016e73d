package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the store's API key on webhook pushes.
const HeaderAPIKey = "X-Api-Key"

const ContextKeyAPIKey = "api_key"

// WebhookAuth requires an X-Api-Key header and applies a token bucket per key.
// Resolving the key to a site is left to the handler.
func WebhookAuth(limiter *KeyRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "missing X-Api-Key header",
			})
			c.Abort()
			return
		}

		if limiter != nil && !limiter.Allow(apiKey) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": "too many webhook calls",
			})
			c.Abort()
			return
		}

		c.Set(ContextKeyAPIKey, apiKey)
		c.Next()
	}
}

// GetAPIKey returns the key stored by WebhookAuth.
func GetAPIKey(c *gin.Context) string {
	return c.GetString(ContextKeyAPIKey)
}
