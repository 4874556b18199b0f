package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-servicehealth/pkg/cache"
)

// RateLimiter implements fixed-window per-client-IP limiting on the Valkey
// cache. A cache outage lets requests through.
func RateLimiter(valkeyCache cache.ValkeyCluster, maxRequests int64) gin.HandlerFunc {
	return rateLimiter(valkeyCache, maxRequests, time.Now)
}

func rateLimiter(valkeyCache cache.ValkeyCluster, maxRequests int64, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		window := now().Unix() / 60 // 1-minute windows
		key := fmt.Sprintf("rate_limit:%s:%d", c.ClientIP(), window)
		reset := strconv.FormatInt((window+1)*60, 10)

		var currentCount int64
		if countBytes, err := valkeyCache.Get(c.Request.Context(), key); err == nil {
			if count, err := strconv.ParseInt(string(countBytes), 10, 64); err == nil {
				currentCount = count
			}
		}

		c.Header("X-Rate-Limit-Limit", strconv.FormatInt(maxRequests, 10))
		c.Header("X-Rate-Limit-Reset", reset)

		if currentCount >= maxRequests {
			c.Header("X-Rate-Limit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":      "error",
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		newCount := currentCount + 1
		_ = valkeyCache.Set(c.Request.Context(), key, strconv.FormatInt(newCount, 10), 2*time.Minute)
		c.Header("X-Rate-Limit-Remaining", strconv.FormatInt(maxRequests-newCount, 10))

		c.Next()
	}
}
