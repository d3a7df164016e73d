package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== Cooldown middleware ====================

// SyncRateLimit limits a site-scoped action per site + action.
//
//	router.POST("/api/v1/sites/:id/sync",
//	    middleware.SyncRateLimit(limiter, middleware.SyncTypeProducts, 0),
//	    siteCtrl.Sync,
//	)
//
// A zero interval uses the default of syncType.
func SyncRateLimit(limiter *SyncRateLimiter, syncType SyncType, interval time.Duration) gin.HandlerFunc {
	return syncRateLimit(limiter, syncType, interval, SiteSyncKey)
}

// ProductSyncRateLimit is SyncRateLimit for product-scoped routes: the :id
// param is a product id and keys live in their own namespace, so product 7
// and site 7 never share a cooldown.
func ProductSyncRateLimit(limiter *SyncRateLimiter, syncType SyncType, interval time.Duration) gin.HandlerFunc {
	return syncRateLimit(limiter, syncType, interval, ProductSyncKey)
}

func syncRateLimit(limiter *SyncRateLimiter, syncType SyncType, interval time.Duration, keyFor func(int64, SyncType) string) gin.HandlerFunc {
	if interval == 0 {
		interval = GetInterval(syncType)
	}

	return func(c *gin.Context) {
		var key string
		if idStr := c.Param("id"); idStr != "" {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"code":    400,
					"message": "invalid id",
				})
				c.Abort()
				return
			}
			key = keyFor(id, syncType)
		} else {
			key = GlobalSyncKey(syncType)
		}

		result := limiter.Check(key, interval)
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(retrySeconds(result.RetryAfter)))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": retrySeconds(result.RetryAfter),
					"sync_type":   syncType,
				},
			})
			c.Abort()
			return
		}

		c.Next()

		// a rejected request does not cost a cooldown
		if c.Writer.Status() >= http.StatusBadRequest {
			limiter.Reset(key)
		}
	}
}

// ==================== Helpers ====================

func retrySeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

func formatRetryMessage(d time.Duration) string {
	seconds := retrySeconds(d)

	if seconds < 60 {
		return fmt.Sprintf("cooling down, retry in %d seconds", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60
	if remainingSeconds == 0 {
		return fmt.Sprintf("cooling down, retry in %d minutes", minutes)
	}
	return fmt.Sprintf("cooling down, retry in %d min %d s", minutes, remainingSeconds)
}
